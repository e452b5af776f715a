package exchange

import (
	"encoding/json"
	"time"
)

const gateBaseURL = "https://api.gateio.ws"

type gateContract struct {
	Name             string     `json:"name"`
	FundingRate      flexString `json:"funding_rate"`
	FundingNextApply flexString `json:"funding_next_apply"`
}

// NewGateAdapter reads the USDT-settled contract list; funding_next_apply is in seconds.
func NewGateAdapter(f Fetcher, opts ...Option) Adapter {
	o := buildOptions(gateBaseURL, opts)
	meta := Metadata{
		Name:        "gate",
		DisplayName: "Gate.io",
		WSURL:       "wss://fx-ws.gateio.ws/v4/ws/usdt",
		Color:       "#7c3aed",
	}
	strategy := &SinglePhase{
		URL:     o.baseURL + "/api/v4/futures/usdt/contracts",
		Extract: extractGate,
	}
	return newRESTAdapter(meta, f, o, strategy, parseGate)
}

func extractGate(body []byte) ([]RawRecord, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		var apiErr struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Label != "" {
			return nil, upstreamError("gate", apiErr.Label, apiErr.Message)
		}
		return nil, decodeBody("gate", body, &items)
	}
	return toRecords(items), nil
}

func parseGate(raw RawRecord, now time.Time) (NormalizedRecord, error) {
	var c gateContract
	if err := decodeRecord("gate", raw, &c); err != nil {
		return NormalizedRecord{}, err
	}
	next, err := parseEpochSeconds(string(c.FundingNextApply), now)
	return newRecord("gate", c.Name, c.FundingRate, next, err, now)
}
