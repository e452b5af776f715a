package exchange

import (
	"encoding/json"
	"time"
)

const bybitBaseURL = "https://api.bybit.com"

type bybitTicker struct {
	Symbol          string     `json:"symbol"`
	FundingRate     flexString `json:"fundingRate"`
	NextFundingTime flexString `json:"nextFundingTime"`
}

// NewBybitAdapter reads linear perpetual tickers, which carry the current rate.
func NewBybitAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(bybitBaseURL, opts)
	meta := Metadata{
		Name:        "bybit",
		DisplayName: "Bybit",
		WSURL:       "wss://stream.bybit.com/v5/public/linear",
		Color:       "#f7931a",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/v5/market/tickers?category=linear",
		Extract: extractBybit,
	}
	return newRESTAdapter(meta, f, o, strategy, parseBybit)
}

func extractBybit(body []byte) ([]RawRecord, error) {
	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []json.RawMessage `json:"list"`
		} `json:"result"`
	}
	if err := decodeBody("bybit", body, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, upstreamError("bybit", resp.RetCode, resp.RetMsg)
	}
	return toRecords(resp.Result.List), nil
}

func parseBybit(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var t bybitTicker
	if err := decodeRecord("bybit", raw, &t); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(t.NextFundingTime), now)
	return newRecord("bybit", t.Symbol, t.FundingRate, next, err, now)
}
