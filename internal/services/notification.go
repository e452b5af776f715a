package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultDigestInterval = time.Hour
	DefaultAlertCooldown  = time.Hour
	digestTopN            = 10
)

// DefaultHotThreshold is 0.2% per funding period.
var DefaultHotThreshold = decimal.RequireFromString("0.002")

// AlertStore supplies alert rules, recipients and the hot-rate view.
type AlertStore interface {
	GetActiveCustomAlerts(ctx context.Context) ([]models.CustomAlert, error)
	GetAlertSubscribers(ctx context.Context) ([]models.AlertSubscriber, error)
	GetHotFundingRates(ctx context.Context, threshold decimal.Decimal) ([]models.FundingRateWithExchange, error)
}

type NotificationConfig struct {
	HotThreshold   decimal.Decimal
	DigestInterval time.Duration
	AlertCooldown  time.Duration
}

// NotificationService evaluates custom alerts on published snapshots and sends
// a periodic digest of hot rates. Delivery is at-most-once per cooldown
// window; failed sends are not retried. Alerts are evaluated on the service's
// own goroutine; while one evaluation runs only the newest snapshot is kept.
type NotificationService struct {
	store    AlertStore
	notifier Notifier
	cfg      NotificationConfig
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time

	pending chan []models.FundingRateWithExchange

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotificationService(store AlertStore, notifier Notifier, cfg NotificationConfig, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.HotThreshold.LessThanOrEqual(decimal.Zero) {
		cfg.HotThreshold = DefaultHotThreshold
	}
	if cfg.DigestInterval <= 0 {
		cfg.DigestInterval = DefaultDigestInterval
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = DefaultAlertCooldown
	}
	return &NotificationService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With("component", "notification"),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
		pending:  make(chan []models.FundingRateWithExchange, 1),
	}
}

// HandleUpdate is the publisher subscription. It never blocks: the snapshot
// is queued for the alert loop, replacing one that is still waiting.
func (s *NotificationService) HandleUpdate(_ context.Context, event UpdateEvent) {
	for {
		select {
		case s.pending <- event.Data:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

// EvaluateAlerts checks every active alert against snapshot and returns how
// many notifications were sent.
func (s *NotificationService) EvaluateAlerts(ctx context.Context, snapshot []models.FundingRateWithExchange) (int, error) {
	if len(snapshot) == 0 {
		return 0, nil
	}
	alerts, err := s.store.GetActiveCustomAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load custom alerts: %w", err)
	}

	s.pruneCooldowns()

	sent := 0
	for _, alert := range alerts {
		if alert.TelegramChatID == "" {
			continue
		}
		for _, rate := range snapshot {
			if !alert.Applies(rate.ExchangeID, rate.Symbol) {
				continue
			}
			if !alert.Condition.Matches(rate.FundingRate.FundingRate, alert.Threshold) {
				continue
			}

			key := fmt.Sprintf("%d:%d:%s", alert.ID, rate.ExchangeID, rate.Symbol)
			if !s.claim(key) {
				continue
			}

			if err := s.notifier.Send(ctx, alert.TelegramChatID, formatAlertMessage(alert, rate)); err != nil {
				s.release(key)
				s.logger.Warn("Failed to send custom alert",
					"alert_id", alert.ID,
					"user_id", alert.UserID,
					"error", err.Error(),
				)
				continue
			}
			sent++
		}
	}
	return sent, nil
}

// claim reserves key for the cooldown window; false means still cooling down.
func (s *NotificationService) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < s.cfg.AlertCooldown {
		return false
	}
	s.lastSent[key] = now
	return true
}

func (s *NotificationService) release(key string) {
	s.mu.Lock()
	delete(s.lastSent, key)
	s.mu.Unlock()
}

func (s *NotificationService) pruneCooldowns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, last := range s.lastSent {
		if now.Sub(last) >= s.cfg.AlertCooldown {
			delete(s.lastSent, key)
		}
	}
}

// SendHotDigest sends the top hot rates to every subscriber. Nothing is sent
// when no rate is hot.
func (s *NotificationService) SendHotDigest(ctx context.Context) (int, error) {
	hot, err := s.store.GetHotFundingRates(ctx, s.cfg.HotThreshold)
	if err != nil {
		return 0, fmt.Errorf("failed to load hot funding rates: %w", err)
	}
	if len(hot) == 0 {
		return 0, nil
	}

	subscribers, err := s.store.GetAlertSubscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load subscribers: %w", err)
	}

	message := FormatHotDigest(hot, s.now())
	sent := 0
	for _, sub := range subscribers {
		if sub.TelegramChatID == "" {
			continue
		}
		if err := s.notifier.Send(ctx, sub.TelegramChatID, message); err != nil {
			s.logger.Warn("Failed to send digest", "user_id", sub.UserID, "error", err.Error())
			continue
		}
		sent++
	}

	s.logger.Info("Sent hot funding digest", "hot_rates", len(hot), "recipients", sent)
	return sent, nil
}

// Start runs the alert loop and sends the digest every DigestInterval until
// Stop.
func (s *NotificationService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-s.pending:
				if _, err := s.EvaluateAlerts(ctx, snapshot); err != nil {
					s.logger.Error("Failed to evaluate custom alerts", "error", err.Error())
				}
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.DigestInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SendHotDigest(ctx); err != nil {
					s.logger.Error("Hourly digest failed", "error", err.Error())
				}
			}
		}
	}()
	s.logger.Info("Notification service started", "digest_interval", s.cfg.DigestInterval.String())
}

func (s *NotificationService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// FormatHotDigest renders the top rates as a Markdown message.
func FormatHotDigest(hot []models.FundingRateWithExchange, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *Funding Alert* %s UTC\n\n", at.UTC().Format("2006-01-02 15:04"))

	top := hot
	if len(top) > digestTopN {
		top = top[:digestTopN]
	}
	for _, rate := range top {
		emoji := "❄️"
		if rate.FundingRate.FundingRate.IsPositive() {
			emoji = "🔥"
		}
		fmt.Fprintf(&b, "%s *%s* %s: %s\n", emoji, exchangeLabel(rate.Exchange), rate.Symbol, FormatRatePercent(rate.FundingRate.FundingRate))
	}

	if len(hot) > digestTopN {
		fmt.Fprintf(&b, "\n...and %d more\n", len(hot)-digestTopN)
	}
	fmt.Fprintf(&b, "\n📊 Hot rates: %d", len(hot))
	return b.String()
}

// FormatRatePercent renders 0.0025 as "+0.250%".
func FormatRatePercent(rate decimal.Decimal) string {
	pct := rate.Mul(decimal.NewFromInt(100)).StringFixed(3)
	if rate.IsPositive() {
		return "+" + pct + "%"
	}
	return pct + "%"
}

func formatAlertMessage(alert models.CustomAlert, rate models.FundingRateWithExchange) string {
	return fmt.Sprintf("🚨 *Custom Alert*\n\n*%s* %s: %s\nCondition: rate %s %s\nNext funding: %s UTC",
		exchangeLabel(rate.Exchange),
		rate.Symbol,
		FormatRatePercent(rate.FundingRate.FundingRate),
		alert.Condition.Symbol(),
		FormatRatePercent(alert.Threshold),
		rate.NextFundingTime.UTC().Format("2006-01-02 15:04"),
	)
}

func exchangeLabel(ex models.Exchange) string {
	if ex.DisplayName != "" {
		return ex.DisplayName
	}
	return ex.Name
}
