package models

import "time"

// Side is the direction of a proposed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TriggerType describes how a signal's entry is specified.
type TriggerType string

const (
	TriggerMarket TriggerType = "MARKET"
	TriggerLimit  TriggerType = "LIMIT"
	TriggerZone   TriggerType = "ZONE"
)

// SignalStatus is the lifecycle state of a trade signal.
type SignalStatus string

const (
	StatusPending   SignalStatus = "PENDING"
	StatusSnoozed   SignalStatus = "SNOOZED"
	StatusAcked     SignalStatus = "ACKED"
	StatusDismissed SignalStatus = "DISMISSED"
	StatusExpired   SignalStatus = "EXPIRED"
	StatusExecuted  SignalStatus = "EXECUTED"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s SignalStatus) IsTerminal() bool {
	switch s {
	case StatusAcked, StatusDismissed, StatusExpired, StatusExecuted:
		return true
	}
	return false
}

// AckAction is a human response to a delivered signal.
type AckAction string

const (
	ActionAck     AckAction = "ACK"
	ActionSnooze  AckAction = "SNOOZE"
	ActionDismiss AckAction = "DISMISS"
	ActionExecute AckAction = "EXECUTE"
)

// StatusFor maps an acknowledgement action to its resulting status.
func (a AckAction) StatusFor() (SignalStatus, bool) {
	switch a {
	case ActionAck:
		return StatusAcked, true
	case ActionSnooze:
		return StatusSnoozed, true
	case ActionDismiss:
		return StatusDismissed, true
	case ActionExecute:
		return StatusExecuted, true
	}
	return "", false
}

// TradeSignal is one proposed trade action with a bounded lifetime. Signals are
// mutated only by acknowledgement or the expiry sweep, and never deleted.
type TradeSignal struct {
	ID             string       `json:"id"`
	PortfolioID    string       `json:"portfolio_id"`
	Symbol         string       `json:"symbol"`
	Exchange       string       `json:"exchange"`
	Side           Side         `json:"side"`
	Quantity       int          `json:"quantity"`
	TriggerType    TriggerType  `json:"trigger_type"`
	TriggerPrice   float64      `json:"trigger_price,omitempty"`
	TriggerLow     float64      `json:"trigger_low,omitempty"`
	TriggerHigh    float64      `json:"trigger_high,omitempty"`
	Confidence     int          `json:"confidence"`
	Rationale      string       `json:"rationale,omitempty"`
	Status         SignalStatus `json:"status"`
	ExpiresAt      time.Time    `json:"expires_at"`
	LastNotifiedAt *time.Time   `json:"last_notified_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ReferencePrice returns the price a win/loss classification compares against.
// ZONE signals use the zone midpoint; MARKET signals have none (ok=false).
func (s *TradeSignal) ReferencePrice() (float64, bool) {
	switch s.TriggerType {
	case TriggerLimit:
		return s.TriggerPrice, true
	case TriggerZone:
		return (s.TriggerLow + s.TriggerHigh) / 2, true
	}
	return 0, false
}

// SignalAudit is one append-only acknowledgement trail entry.
type SignalAudit struct {
	ID        string       `json:"id"`
	SignalID  string       `json:"signal_id"`
	Action    AckAction    `json:"action"`
	Actor     string       `json:"actor"`
	Status    SignalStatus `json:"status"` // resulting status
	CreatedAt time.Time    `json:"created_at"`
}

// SignalCandidate is an untrusted oracle proposal. Admission validates it and
// converts it into a persisted TradeSignal.
type SignalCandidate struct {
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	Side         string  `json:"side"`
	Quantity     int     `json:"quantity"`
	TriggerType  string  `json:"trigger_type"`
	TriggerPrice float64 `json:"trigger_price"`
	TriggerLow   float64 `json:"trigger_low"`
	TriggerHigh  float64 `json:"trigger_high"`
	Confidence   int     `json:"confidence"`
	Rationale    string  `json:"rationale"`
}

// Holding is the slice of portfolio state the engine needs: SELL admission
// checks and scorecard P&L sizing. Portfolio management itself lives elsewhere.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Quantity int     `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// Portfolio is the minimal holdings snapshot stored for a portfolio id.
type Portfolio struct {
	ID        string    `json:"id"`
	Holdings  []Holding `json:"holdings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasHolding reports whether the portfolio currently holds the symbol.
func (p *Portfolio) HasHolding(symbol string) bool {
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return true
		}
	}
	return false
}
