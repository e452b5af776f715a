package exchange

import (
	"encoding/json"
	"time"
)

const htxBaseURL = "https://api.hbdm.com"

type htxFunding struct {
	ContractCode string     `json:"contract_code"`
	FundingRate  flexString `json:"funding_rate"`
	FundingTime  flexString `json:"funding_time"`
}

func NewHTXAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(htxBaseURL, opts)
	meta := Metadata{
		Name:        "htx",
		DisplayName: "HTX",
		WSURL:       "wss://api.hbdm.com/linear-swap-ws",
		Color:       "#2e7bff",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/linear-swap-api/v1/swap_batch_funding_rate",
		Extract: extractHTX,
	}
	return newRESTAdapter(meta, f, o, strategy, parseHTX)
}

func extractHTX(body []byte) ([]RawRecord, error) {
	var resp struct {
		Status  string            `json:"status"`
		ErrCode interface{}       `json:"err_code"`
		ErrMsg  string            `json:"err_msg"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := decodeBody("htx", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, upstreamError("htx", resp.ErrCode, resp.ErrMsg)
	}
	return toRecords(resp.Data), nil
}

func parseHTX(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r htxFunding
	if err := decodeRecord("htx", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochMillis(string(r.FundingTime), now)
	return newRecord("htx", r.ContractCode, r.FundingRate, next, err, now)
}
