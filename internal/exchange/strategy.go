package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// Strategy performs the network half of an adapter.
type Strategy interface {
	Fetch(ctx context.Context, f Fetcher) ([]RawRecord, error)
}

// SinglePhase fetches every instrument's funding rate in one request.
type SinglePhase struct {
	URL     string
	Headers map[string]string
	Extract func(body []byte) ([]RawRecord, error)
}

func (s *SinglePhase) Fetch(ctx context.Context, f Fetcher) ([]RawRecord, error) {
	body, err := f.Fetch(ctx, s.URL, s.Headers)
	if err != nil {
		return nil, err
	}
	return s.Extract(body)
}

// ListThenDetail fetches the instrument list, then one detail request per
// instrument, sequentially and paced by Limiter. Only a failed list request
// fails the whole fetch; a failed detail is logged and the instrument skipped.
type ListThenDetail struct {
	ListURL       string
	Headers       map[string]string
	ExtractList   func(body []byte) ([]string, error)
	DetailURL     func(id string) string
	ExtractDetail func(id string, body []byte) (RawRecord, error)
	Limiter       *rate.Limiter
	Logger        *slog.Logger
}

func (s *ListThenDetail) Fetch(ctx context.Context, f Fetcher) ([]RawRecord, error) {
	body, err := f.Fetch(ctx, s.ListURL, s.Headers)
	if err != nil {
		return nil, fmt.Errorf("instrument list request failed: %w", err)
	}
	ids, err := s.ExtractList(body)
	if err != nil {
		return nil, err
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	records := make([]RawRecord, 0, len(ids))
	for _, id := range ids {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		detail, err := f.Fetch(ctx, s.DetailURL(id), s.Headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Skipping instrument after failed detail request",
				"instrument", id,
				"error", err.Error(),
			)
			continue
		}

		rec, err := s.ExtractDetail(id, detail)
		if err != nil {
			logger.Warn("Skipping instrument with unreadable detail response",
				"instrument", id,
				"error", err.Error(),
			)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}
