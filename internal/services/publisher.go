package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/irfndi/funding-monitor-go/internal/models"
)

// UpdateEventType is the only event the publisher emits.
const UpdateEventType = "funding-rates-update"

// UpdateEvent carries the global latest snapshot after a successful cycle.
type UpdateEvent struct {
	Type      string                           `json:"type"`
	Data      []models.FundingRateWithExchange `json:"data"`
	Timestamp time.Time                        `json:"timestamp"`
}

// UpdateHandler receives published events. It runs on the publishing goroutine.
type UpdateHandler func(ctx context.Context, event UpdateEvent)

type subscription struct {
	id      uint64
	name    string
	handler UpdateHandler
}

// Publisher fans update events out to subscribers in registration order.
type Publisher struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Publisher{
		logger: logger.With("component", "publisher"),
		now:    time.Now,
	}
}

// Subscribe registers handler and returns a func that removes it.
func (p *Publisher) Subscribe(name string, handler UpdateHandler) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.subs = append(p.subs, subscription{id: id, name: name, handler: handler})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

func (p *Publisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Publish delivers one event to every subscriber. A panicking subscriber is
// logged and does not stop delivery to the rest.
func (p *Publisher) Publish(ctx context.Context, snapshot []models.FundingRateWithExchange) UpdateEvent {
	event := UpdateEvent{
		Type:      UpdateEventType,
		Data:      snapshot,
		Timestamp: p.now().UTC(),
	}

	p.mu.RLock()
	subs := make([]subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()

	for _, s := range subs {
		p.deliver(ctx, s, event)
	}
	return event
}

func (p *Publisher) deliver(ctx context.Context, s subscription, event UpdateEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Subscriber panicked",
				"subscriber", s.name,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.handler(ctx, event)
}
