package exchange

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

const okxBaseURL = "https://www.okx.com"

type okxFunding struct {
	InstID          string     `json:"instId"`
	FundingRate     flexString `json:"fundingRate"`
	FundingTime     flexString `json:"fundingTime"`
	NextFundingTime flexString `json:"nextFundingTime"`
}

// NewOKXAdapter lists live swap instruments, then requests each instrument's
// funding rate.
func NewOKXAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(okxBaseURL, opts)
	meta := Metadata{
		Name:        "okx",
		DisplayName: "OKX",
		WSURL:       "wss://ws.okx.com:8443/ws/v5/public",
		Color:       "#111827",
	}
	base := o.baseURL
	strategy := &ListThenDetail{
		ListURL:     base + "/api/v5/public/instruments?instType=SWAP",
		ExtractList: extractOKXInstruments,
		DetailURL: func(id string) string {
			return base + "/api/v5/public/funding-rate?instId=" + url.QueryEscape(id)
		},
		ExtractDetail: extractOKXFunding,
		Limiter:       o.limiter(),
		Logger:        o.logger.With("exchange", "okx"),
	}
	return newRESTAdapter(meta, f, o, strategy, parseOKX)
}

type okxEnvelope struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func decodeOKX(body []byte) ([]json.RawMessage, error) {
	var resp okxEnvelope
	if err := decodeBody("okx", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, upstreamError("okx", resp.Code, resp.Msg)
	}
	return resp.Data, nil
}

func extractOKXInstruments(body []byte) ([]string, error) {
	data, err := decodeOKX(body)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(data))
	for _, item := range data {
		var inst struct {
			InstID string `json:"instId"`
			State  string `json:"state"`
		}
		if err := json.Unmarshal(item, &inst); err != nil || inst.InstID == "" {
			continue
		}
		if inst.State != "" && inst.State != "live" {
			continue
		}
		ids = append(ids, inst.InstID)
	}
	return ids, nil
}

func extractOKXFunding(id string, body []byte) (RawRecord, error) {
	data, err := decodeOKX(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, upstreamError("okx", "empty", "no funding rate for "+id)
	}
	return RawRecord(data[0]), nil
}

// parseOKX uses fundingTime, the upcoming settlement, falling back to
// nextFundingTime when the venue leaves it blank.
func parseOKX(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r okxFunding
	if err := decodeRecord("okx", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	settle := string(r.FundingTime)
	if strings.TrimSpace(settle) == "" {
		settle = string(r.NextFundingTime)
	}
	next, err := parseEpochMillis(settle, now)
	return newRecord("okx", r.InstID, r.FundingRate, next, err, now)
}
