package exchange

import (
	"encoding/json"
	"time"
)

const mexcBaseURL = "https://contract.mexc.com"

type mexcFunding struct {
	Symbol         string     `json:"symbol"`
	FundingRate    flexString `json:"fundingRate"`
	NextSettleTime flexString `json:"nextSettleTime"`
}

func NewMEXCAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(mexcBaseURL, opts)
	meta := Metadata{
		Name:        "mexc",
		DisplayName: "MEXC",
		WSURL:       "wss://contract.mexc.com/edge",
		Color:       "#ef4444",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/api/v1/contract/funding_rate",
		Extract: extractMEXC,
	}
	return newRESTAdapter(meta, f, o, strategy, parseMEXC)
}

func extractMEXC(body []byte) ([]RawRecord, error) {
	var resp struct {
		Success bool              `json:"success"`
		Code    int               `json:"code"`
		Message string            `json:"message"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := decodeBody("mexc", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Code != 0 {
		return nil, upstreamError("mexc", resp.Code, resp.Message)
	}
	return toRecords(resp.Data), nil
}

func parseMEXC(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r mexcFunding
	if err := decodeRecord("mexc", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(r.NextSettleTime), now)
	return newRecord("mexc", r.Symbol, r.FundingRate, next, err, now)
}
