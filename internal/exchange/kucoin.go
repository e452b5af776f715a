package exchange

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const kucoinBaseURL = "https://api-futures.kucoin.com"

// kucoinFunding is the record handed to Parse: the detail payload plus the
// contract it was requested for, since the detail's own symbol is an index name.
type kucoinFunding struct {
	Contract    string     `json:"contract"`
	Value       flexString `json:"value"`
	TimePoint   flexString `json:"timePoint"`
	Granularity flexString `json:"granularity"`
}

// NewKuCoinAdapter lists active contracts, then requests each contract's
// current funding rate.
func NewKuCoinAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(kucoinBaseURL, opts)
	meta := Metadata{
		Name:        "kucoin",
		DisplayName: "KuCoin",
		WSURL:       "wss://ws-api-futures.kucoin.com",
		Color:       "#10b981",
	}
	base := o.baseURL
	strategy := &ListThenDetail{
		ListURL:     base + "/api/v1/contracts/active",
		ExtractList: extractKuCoinContracts,
		DetailURL: func(id string) string {
			return base + "/api/v1/funding-rate/" + url.PathEscape(id) + "/current"
		},
		ExtractDetail: extractKuCoinFunding,
		Limiter:       o.limiter(),
		Logger:        o.logger.With("exchange", "kucoin"),
	}
	return newRESTAdapter(meta, f, o, strategy, parseKuCoin)
}

func extractKuCoinContracts(body []byte) ([]string, error) {
	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := decodeBody("kucoin", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "200000" {
		return nil, upstreamError("kucoin", resp.Code, resp.Msg)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, c := range resp.Data {
		if c.Symbol == "" || (c.Status != "" && c.Status != "Open") {
			continue
		}
		ids = append(ids, c.Symbol)
	}
	return ids, nil
}

func extractKuCoinFunding(id string, body []byte) (RawRecord, error) {
	var resp struct {
		Code string        `json:"code"`
		Msg  string        `json:"msg"`
		Data kucoinFunding `json:"data"`
	}
	if err := decodeBody("kucoin", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "200000" {
		return nil, upstreamError("kucoin", resp.Code, resp.Msg)
	}

	resp.Data.Contract = id
	out, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode kucoin record: %w", err)
	}
	return RawRecord(out), nil
}

func parseKuCoin(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var r kucoinFunding
	if err := decodeRecord("kucoin", raw, &r); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := kucoinNextFunding(r)
	if err == nil {
		next, err = validateTimestamp(next, now)
	}
	return newRecord("kucoin", kucoinSymbol(r.Contract), r.Value, next, err, now)
}

// kucoinNextFunding is the start of the current period plus its length.
func kucoinNextFunding(r kucoinFunding) (time.Time, error) {
	point, err := parseEpoch(string(r.TimePoint))
	if err != nil {
		return time.Time{}, err
	}
	if point <= 0 {
		return time.Time{}, fmt.Errorf("%w: timePoint %d", ErrEpochInvalid, point)
	}
	granularity, err := strconv.ParseInt(strings.TrimSpace(string(r.Granularity)), 10, 64)
	if err != nil || granularity <= 0 {
		return time.Time{}, fmt.Errorf("%w: granularity %q", ErrEpochInvalid, string(r.Granularity))
	}
	return time.UnixMilli(point + granularity).UTC(), nil
}

// kucoinSymbol drops the perpetual marker: XBTUSDTM becomes XBTUSDT.
func kucoinSymbol(contract string) string {
	for _, quote := range []string{"USDTM", "USDCM", "USDM"} {
		if strings.HasSuffix(contract, quote) {
			return strings.TrimSuffix(contract, "M")
		}
	}
	return contract
}
