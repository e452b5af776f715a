package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/funding-monitor-go/internal/exchange"
	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/irfndi/funding-monitor-go/internal/telemetry"
)

const DefaultCollectionInterval = 60 * time.Second

// Storage is what the collector needs from persistence.
type Storage interface {
	PairStore
	UpsertExchange(ctx context.Context, ex models.NewExchange) (models.Exchange, error)
	InsertFundingRates(ctx context.Context, rates []models.NewFundingRate) (int64, error)
	GetLatestFundingRates(ctx context.Context) ([]models.FundingRateWithExchange, error)
}

// CollectorConfig holds configuration for the collector service
type CollectorConfig struct {
	Interval time.Duration
}

// WorkerState is the phase of an exchange's current cycle.
type WorkerState string

const (
	StateIdle       WorkerState = "idle"
	StateFetching   WorkerState = "fetching"
	StateParsing    WorkerState = "parsing"
	StatePersisting WorkerState = "persisting"
	StateStopped    WorkerState = "stopped"
)

// Worker is the per-exchange collection loop and its last-known status.
type Worker struct {
	Exchange    string        `json:"exchange"`
	ExchangeID  int           `json:"exchange_id"`
	Interval    time.Duration `json:"interval"`
	State       WorkerState   `json:"state"`
	IsRunning   bool          `json:"is_running"`
	LastRun     time.Time     `json:"last_run"`
	LastSuccess time.Time     `json:"last_success"`
	LastError   string        `json:"last_error,omitempty"`
	LastCount   int           `json:"last_count"`
	Cycles      int           `json:"cycles"`
	Failures    int           `json:"failures"`
}

// CycleResult summarizes one fetch-parse-persist pass for one exchange.
type CycleResult struct {
	Exchange  string
	CycleID   string
	Fetched   int
	Parsed    int
	Skipped   int
	Persisted int
	Published bool
	Err       error
}

// CollectorService polls every registered exchange on its own ticker.
type CollectorService struct {
	registry  *exchange.Registry
	storage   Storage
	resolver  *PairResolver
	publisher *Publisher
	interval  time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer

	workers     map[string]*Worker
	exchangeIDs map[string]int
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	now         func() time.Time
}

// NewCollectorService wires the collector. A nil resolver resolves pairs
// straight against storage; a nil publisher drops updates.
func NewCollectorService(registry *exchange.Registry, storage Storage, resolver *PairResolver, publisher *Publisher, cfg CollectorConfig, logger *slog.Logger) *CollectorService {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCollectionInterval
	}
	if resolver == nil {
		resolver = NewPairResolver(storage, nil, logger)
	}
	if publisher == nil {
		publisher = NewPublisher(logger)
	}
	return &CollectorService{
		registry:    registry,
		storage:     storage,
		resolver:    resolver,
		publisher:   publisher,
		interval:    cfg.Interval,
		logger:      logger.With("component", "collector"),
		tracer:      telemetry.Tracer("github.com/irfndi/funding-monitor-go/internal/services"),
		workers:     make(map[string]*Worker),
		exchangeIDs: make(map[string]int),
		now:         time.Now,
	}
}

// InitializeExchanges upserts one exchanges row per adapter. Adapters whose
// upsert fails are logged and left out; it fails only if none succeed.
func (c *CollectorService) InitializeExchanges(ctx context.Context) error {
	initialized := 0
	for _, adapter := range c.registry.All() {
		if _, err := c.ensureExchange(ctx, adapter); err != nil {
			c.logger.Error("Failed to initialize exchange",
				"exchange", adapter.Name(),
				"error", err.Error(),
			)
			continue
		}
		initialized++
	}
	if initialized == 0 && c.registry.Len() > 0 {
		return errors.New("no exchanges could be initialized")
	}
	return nil
}

func (c *CollectorService) ensureExchange(ctx context.Context, adapter exchange.Adapter) (int, error) {
	c.mu.RLock()
	id, ok := c.exchangeIDs[adapter.Name()]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	ex, err := c.storage.UpsertExchange(ctx, exchange.ToNewExchange(adapter))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert exchange %s: %w", adapter.Name(), err)
	}

	c.mu.Lock()
	c.exchangeIDs[adapter.Name()] = ex.ID
	c.mu.Unlock()
	return ex.ID, nil
}

// Start initializes exchanges and launches one worker per exchange. Each
// worker runs a cycle immediately, then once per interval.
func (c *CollectorService) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("collector already running")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.logger.Info("Starting funding rate collector",
		"exchanges", c.registry.Len(),
		"interval", c.interval.String(),
	)

	if err := c.InitializeExchanges(ctx); err != nil {
		c.Stop()
		return err
	}

	for _, adapter := range c.registry.All() {
		c.mu.RLock()
		id, ok := c.exchangeIDs[adapter.Name()]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		c.createWorker(adapter, id)
	}

	c.logger.Info("Started collection workers", "workers", len(c.GetWorkerStatus()))
	return nil
}

// Stop cancels all workers and waits for them. A cycle already in flight
// finishes; no new cycle starts.
func (c *CollectorService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	c.logger.Info("Stopping funding rate collector")
	cancel()
	c.wg.Wait()

	c.mu.Lock()
	for _, w := range c.workers {
		w.IsRunning = false
		w.State = StateStopped
	}
	c.mu.Unlock()
	c.logger.Info("Funding rate collector stopped")
}

func (c *CollectorService) createWorker(adapter exchange.Adapter, exchangeID int) {
	worker := &Worker{
		Exchange:   adapter.Name(),
		ExchangeID: exchangeID,
		Interval:   c.interval,
		State:      StateIdle,
		IsRunning:  true,
	}

	c.mu.Lock()
	c.workers[adapter.Name()] = worker
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runWorker(c.ctx, adapter, exchangeID)
}

// runWorker runs the collection loop for a specific exchange. Ticks that
// arrive while a cycle is running are dropped by the ticker.
func (c *CollectorService) runWorker(ctx context.Context, adapter exchange.Adapter, exchangeID int) {
	defer c.wg.Done()

	// In-flight cycles outlive the stop signal; fetch timeouts bound them.
	cycleCtx := context.WithoutCancel(ctx)

	if ctx.Err() == nil {
		c.runCycle(cycleCtx, adapter, exchangeID)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Worker stopping", "exchange", adapter.Name())
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.runCycle(cycleCtx, adapter, exchangeID)
		}
	}
}

// RunCycle runs one cycle for the named exchange outside the ticker.
func (c *CollectorService) RunCycle(ctx context.Context, name string) (CycleResult, error) {
	adapter, ok := c.registry.Get(name)
	if !ok {
		return CycleResult{}, fmt.Errorf("%w: %s", exchange.ErrUnknownExchange, name)
	}
	exchangeID, err := c.ensureExchange(ctx, adapter)
	if err != nil {
		return CycleResult{Exchange: name, Err: err}, err
	}
	result := c.runCycle(ctx, adapter, exchangeID)
	return result, result.Err
}

// runCycle fetches, parses and persists one batch. A panicking adapter is
// recorded as a failed cycle.
func (c *CollectorService) runCycle(ctx context.Context, adapter exchange.Adapter, exchangeID int) (result CycleResult) {
	name := adapter.Name()
	result = CycleResult{Exchange: name, CycleID: uuid.NewString()}
	logger := c.logger.With("exchange", name, "cycle_id", result.CycleID)

	ctx, span := c.tracer.Start(ctx, "collector.cycle", trace.WithAttributes(
		attribute.String("exchange.name", name),
		attribute.Int("exchange.id", exchangeID),
		attribute.String("cycle.id", result.CycleID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("cycle panicked: %v", r)
			logger.Error("Recovered from panic in collection cycle", "error", result.Err.Error())
		}
		span.SetAttributes(
			attribute.Int("records.fetched", result.Fetched),
			attribute.Int("records.skipped", result.Skipped),
			attribute.Int("records.persisted", result.Persisted),
		)
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		c.recordResult(result)
	}()

	c.setState(name, StateFetching)
	raws, err := adapter.FetchRaw(ctx)
	if err != nil {
		result.Err = fmt.Errorf("fetch failed: %w", err)
		logger.Error("Funding rate fetch failed", "error", err.Error())
		return result
	}
	result.Fetched = len(raws)

	c.setState(name, StateParsing)
	batch := make([]models.NewFundingRate, 0, len(raws))
	for _, raw := range raws {
		rec, err := adapter.Parse(raw)
		if err != nil {
			result.Skipped++
			logger.Debug("Skipping unparseable record", "error", err.Error())
			continue
		}
		result.Parsed++

		row, err := c.resolver.Resolve(ctx, rec, exchangeID)
		if err != nil {
			result.Skipped++
			logger.Warn("Skipping record after pair resolution failed",
				"symbol", rec.Symbol,
				"error", err.Error(),
			)
			continue
		}
		batch = append(batch, row)
	}

	if len(batch) == 0 {
		logger.Info("Collection cycle produced no records",
			"fetched", result.Fetched,
			"skipped", result.Skipped,
		)
		return result
	}

	c.setState(name, StatePersisting)
	inserted, err := c.storage.InsertFundingRates(ctx, batch)
	if err != nil {
		result.Err = fmt.Errorf("persist failed: %w", err)
		logger.Error("Failed to store funding rates", "records", len(batch), "error", err.Error())
		return result
	}
	result.Persisted = int(inserted)

	snapshot, err := c.storage.GetLatestFundingRates(ctx)
	if err != nil {
		result.Err = fmt.Errorf("failed to load latest snapshot: %w", err)
		logger.Error("Failed to load latest funding rates", "error", err.Error())
		return result
	}
	c.publisher.Publish(ctx, snapshot)
	result.Published = true

	logger.Info("Collection cycle completed",
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"persisted", result.Persisted,
	)
	return result
}

func (c *CollectorService) setState(name string, state WorkerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.workers[name]; ok {
		w.State = state
	}
}

func (c *CollectorService) recordResult(result CycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.workers[result.Exchange]
	if !ok {
		return
	}
	now := c.now()
	w.State = StateIdle
	w.LastRun = now
	w.Cycles++
	if result.Err != nil {
		w.Failures++
		w.LastError = result.Err.Error()
		return
	}
	w.LastSuccess = now
	w.LastError = ""
	w.LastCount = result.Persisted
}

// GetWorkerStatus returns a copy of every worker's status keyed by exchange.
func (c *CollectorService) GetWorkerStatus() map[string]Worker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make(map[string]Worker, len(c.workers))
	for name, w := range c.workers {
		status[name] = *w
	}
	return status
}

// IsHealthy reports whether at least half the workers succeeded within the
// last three intervals.
func (c *CollectorService) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.workers) == 0 {
		return false
	}

	cutoff := c.now().Add(-3 * c.interval)
	healthy := 0
	for _, w := range c.workers {
		if w.IsRunning && !w.LastSuccess.IsZero() && w.LastSuccess.After(cutoff) {
			healthy++
		}
	}
	return float64(healthy)/float64(len(c.workers)) >= 0.5
}
