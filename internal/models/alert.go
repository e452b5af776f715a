package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AlertCondition compares an observed rate against an alert threshold.
type AlertCondition string

const (
	ConditionGreaterThan      AlertCondition = "gt"
	ConditionLessThan         AlertCondition = "lt"
	ConditionGreaterThanEqual AlertCondition = "gte"
	ConditionLessThanEqual    AlertCondition = "lte"
)

// ParseAlertCondition accepts the stored short form, case-insensitively.
func ParseAlertCondition(s string) (AlertCondition, error) {
	c := AlertCondition(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionGreaterThanEqual, ConditionLessThanEqual:
		return c, nil
	}
	return "", fmt.Errorf("unknown alert condition %q", s)
}

// Matches evaluates rate <cond> threshold. Unknown conditions never match.
func (c AlertCondition) Matches(rate, threshold decimal.Decimal) bool {
	switch c {
	case ConditionGreaterThan:
		return rate.GreaterThan(threshold)
	case ConditionLessThan:
		return rate.LessThan(threshold)
	case ConditionGreaterThanEqual:
		return rate.GreaterThanOrEqual(threshold)
	case ConditionLessThanEqual:
		return rate.LessThanOrEqual(threshold)
	default:
		return false
	}
}

func (c AlertCondition) Symbol() string {
	switch c {
	case ConditionGreaterThan:
		return ">"
	case ConditionLessThan:
		return "<"
	case ConditionGreaterThanEqual:
		return ">="
	case ConditionLessThanEqual:
		return "<="
	default:
		return string(c)
	}
}

// CustomAlert is a per-user rule. A nil ExchangeID or Symbol matches any.
type CustomAlert struct {
	ID             int             `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	TelegramChatID string          `json:"-" db:"telegram_chat_id"`
	ExchangeID     *int            `json:"exchange_id,omitempty" db:"exchange_id"`
	Symbol         *string         `json:"symbol,omitempty" db:"symbol"`
	Condition      AlertCondition  `json:"condition" db:"condition"`
	Threshold      decimal.Decimal `json:"threshold" db:"threshold"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Applies reports whether the alert targets this observation's exchange and symbol.
func (a CustomAlert) Applies(exchangeID int, symbol string) bool {
	if a.ExchangeID != nil && *a.ExchangeID != exchangeID {
		return false
	}
	if a.Symbol != nil && !strings.EqualFold(*a.Symbol, symbol) {
		return false
	}
	return true
}

// AlertSubscriber is a user with Telegram delivery enabled.
type AlertSubscriber struct {
	UserID         string          `json:"user_id" db:"user_id"`
	TelegramChatID string          `json:"telegram_chat_id" db:"telegram_chat_id"`
	Threshold      decimal.Decimal `json:"threshold" db:"threshold"`
}
