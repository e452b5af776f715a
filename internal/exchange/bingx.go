package exchange

import (
	"encoding/json"
	"time"
)

const bingxBaseURL = "https://open-api.bingx.com"

type bingxPremiumIndex struct {
	Symbol          string     `json:"symbol"`
	LastFundingRate flexString `json:"lastFundingRate"`
	NextFundingTime flexString `json:"nextFundingTime"`
}

func NewBingXAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(bingxBaseURL, opts)
	meta := Metadata{
		Name:        "bingx",
		DisplayName: "BingX",
		WSURL:       "wss://open-api-swap.bingx.com/swap-market",
		Color:       "#06b6d4",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/openApi/swap/v2/quote/premiumIndex",
		Extract: extractBingX,
	}
	return newRESTAdapter(meta, f, o, strategy, parseBingX)
}

func extractBingX(body []byte) ([]RawRecord, error) {
	var resp struct {
		Code int               `json:"code"`
		Msg  string            `json:"msg"`
		Data []json.RawMessage `json:"data"`
	}
	if err := decodeBody("bingx", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, upstreamError("bingx", resp.Code, resp.Msg)
	}
	return toRecords(resp.Data), nil
}

func parseBingX(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r bingxPremiumIndex
	if err := decodeRecord("bingx", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(r.NextFundingTime), now)
	return newRecord("bingx", r.Symbol, r.LastFundingRate, next, err, now)
}
