// Package models defines the core data structures for Pacer
package models

import "time"

// DailyTarget is the ledger row for one (portfolio, civil date) pair. It holds
// the oracle-proposed earnings goal, an optional human override, and the
// human-reported actual. Rows are created lazily and never deleted.
type DailyTarget struct {
	PortfolioID  string    `json:"portfolio_id"`
	Date         string    `json:"date"` // civil date key, YYYY-MM-DD
	AITarget     float64   `json:"ai_target"`
	UserTarget   *float64  `json:"user_target,omitempty"`
	EarnedActual float64   `json:"earned_actual"`
	AIRationale  string    `json:"ai_rationale,omitempty"`
	AIConfidence int       `json:"ai_confidence"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EffectiveTarget returns the user override when set, else the AI target.
func (t *DailyTarget) EffectiveTarget() float64 {
	if t.UserTarget != nil {
		return *t.UserTarget
	}
	return t.AITarget
}

// TargetProposal carries the oracle-sourced fields of a daily target refresh.
type TargetProposal struct {
	Target     float64 `json:"target"`
	Rationale  string  `json:"rationale"`
	Confidence int     `json:"confidence"`
}

// Carryover summarizes the most recent prior trading day's target outcome
// inside the bounded lookback window.
type Carryover struct {
	Found           bool    `json:"found"`
	Date            string  `json:"date,omitempty"`
	EffectiveTarget float64 `json:"effective_target"`
	EarnedActual    float64 `json:"earned_actual"`
	Deficit         float64 `json:"deficit"` // effective - earned; positive means missed
	Met             bool    `json:"met"`
}
