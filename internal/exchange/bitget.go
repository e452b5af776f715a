package exchange

import (
	"encoding/json"
	"time"
)

const bitgetBaseURL = "https://api.bitget.com"

type bitgetFunding struct {
	Symbol      string     `json:"symbol"`
	FundingRate flexString `json:"fundingRate"`
	NextUpdate  flexString `json:"nextUpdate"`
}

func NewBitgetAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(bitgetBaseURL, opts)
	meta := Metadata{
		Name:        "bitget",
		DisplayName: "Bitget",
		WSURL:       "wss://ws.bitget.com/v2/ws/public",
		Color:       "#f59e0b",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/api/v2/mix/market/current-fund-rate?productType=USDT-FUTURES",
		Extract: extractBitget,
	}
	return newRESTAdapter(meta, f, o, strategy, parseBitget)
}

func extractBitget(body []byte) ([]RawRecord, error) {
	var resp struct {
		Code string            `json:"code"`
		Msg  string            `json:"msg"`
		Data []json.RawMessage `json:"data"`
	}
	if err := decodeBody("bitget", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "00000" {
		return nil, upstreamError("bitget", resp.Code, resp.Msg)
	}
	return toRecords(resp.Data), nil
}

func parseBitget(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r bitgetFunding
	if err := decodeRecord("bitget", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(r.NextUpdate), now)
	return newRecord("bitget", r.Symbol, r.FundingRate, next, err, now)
}
