package exchange

import (
	"encoding/json"
	"time"
)

const binanceBaseURL = "https://fapi.binance.com"

type binancePremiumIndex struct {
	Symbol          string     `json:"symbol"`
	LastFundingRate flexString `json:"lastFundingRate"`
	NextFundingTime flexString `json:"nextFundingTime"`
}

// NewBinanceAdapter reads USD-M premium indexes. Delivered contracts report a
// zero nextFundingTime and are rejected by timestamp validation.
func NewBinanceAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(binanceBaseURL, opts)
	meta := Metadata{
		Name:        "binance",
		DisplayName: "Binance",
		WSURL:       "wss://fstream.binance.com/ws",
		Color:       "#f0b90b",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/fapi/v1/premiumIndex",
		Extract: extractBinance,
	}
	return newRESTAdapter(meta, f, o, strategy, parseBinance)
}

func extractBinance(body []byte) ([]RawRecord, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return nil, upstreamError("binance", apiErr.Code, apiErr.Msg)
		}
		return nil, decodeBody("binance", body, &items)
	}
	return toRecords(items), nil
}

func parseBinance(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r binancePremiumIndex
	if err := decodeRecord("binance", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(r.NextFundingTime), now)
	return newRecord("binance", r.Symbol, r.LastFundingRate, next, err, now)
}
