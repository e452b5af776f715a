package exchange

import (
	"encoding/json"
	"time"
)

const bitmartBaseURL = "https://api-cloud.bitmart.com"

type bitmartContract struct {
	Symbol      string     `json:"symbol"`
	FundingRate flexString `json:"funding_rate"`
	FundingTime flexString `json:"funding_time"`
}

func NewBitmartAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(bitmartBaseURL, opts)
	meta := Metadata{
		Name:        "bitmart",
		DisplayName: "Bitmart",
		WSURL:       "wss://openapi-ws-v2.bitmart.com/api?protocol=1.1",
		Color:       "#8b5cf6",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/contract/public/details",
		Extract: extractBitmart,
	}
	return newRESTAdapter(meta, f, o, strategy, parseBitmart)
}

func extractBitmart(body []byte) ([]RawRecord, error) {
	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Symbols []json.RawMessage `json:"symbols"`
		} `json:"data"`
	}
	if err := decodeBody("bitmart", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 1000 {
		return nil, upstreamError("bitmart", resp.Code, resp.Message)
	}
	return toRecords(resp.Data.Symbols), nil
}

func parseBitmart(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var c bitmartContract
	if err := decodeRecord("bitmart", raw, &c); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(c.FundingTime), now)
	return newRecord("bitmart", c.Symbol, c.FundingRate, next, err, now)
}
