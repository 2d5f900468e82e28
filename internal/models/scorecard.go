package models

import (
	"fmt"
	"strings"
)

// Outcome is the win/loss classification of a single signal.
type Outcome string

const (
	OutcomeWin          Outcome = "WIN"
	OutcomeLoss         Outcome = "LOSS"
	OutcomeUnclassified Outcome = "UNCLASSIFIED"
)

// SignalOutcome pairs a signal with its classification and estimated P&L.
type SignalOutcome struct {
	SignalID  string       `json:"signal_id"`
	Symbol    string       `json:"symbol"`
	Side      Side         `json:"side"`
	Status    SignalStatus `json:"status"`
	Outcome   Outcome      `json:"outcome"`
	PriceUsed float64      `json:"price_used,omitempty"`
	PnL       float64      `json:"pnl"` // estimated, EXECUTED signals only
}

// Scorecard is the accountability summary fed back into the next generation
// cycle. Unused opportunities are reported apart from win/loss.
type Scorecard struct {
	PortfolioID  string          `json:"portfolio_id"`
	WindowDays   int             `json:"window_days"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	WinRate      float64         `json:"win_rate"` // 0 when no classified signals
	EstimatedPnL float64         `json:"estimated_pnl"`
	Unused       int             `json:"unused"` // PENDING or EXPIRED, never acted on
	Unclassified int             `json:"unclassified"`
	Outcomes     []SignalOutcome `json:"outcomes,omitempty"`
	Carryover    Carryover       `json:"carryover"`
}

// Render produces the fixed-shape text block consumed by the oracle prompt.
func (s *Scorecard) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Signal performance (last %d days):\n", s.WindowDays)
	fmt.Fprintf(&sb, "- Wins: %d, Losses: %d, Win rate: %.0f%%\n", s.Wins, s.Losses, s.WinRate*100)
	fmt.Fprintf(&sb, "- Estimated P&L from executed signals: %.2f\n", s.EstimatedPnL)
	fmt.Fprintf(&sb, "- Signals never acted on (unused opportunities): %d\n", s.Unused)
	if s.Unclassified > 0 {
		fmt.Fprintf(&sb, "- Unclassified (no price available): %d\n", s.Unclassified)
	}

	switch {
	case !s.Carryover.Found:
		sb.WriteString("Previous target: no prior record in window\n")
	case s.Carryover.Met:
		fmt.Fprintf(&sb, "Previous target (%s): MET, target %.2f, earned %.2f\n",
			s.Carryover.Date, s.Carryover.EffectiveTarget, s.Carryover.EarnedActual)
	default:
		fmt.Fprintf(&sb, "Previous target (%s): MISSED by %.2f, target %.2f, earned %.2f\n",
			s.Carryover.Date, s.Carryover.Deficit, s.Carryover.EffectiveTarget, s.Carryover.EarnedActual)
	}

	return sb.String()
}
