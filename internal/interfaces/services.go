package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/pacer/internal/models"
)

// TargetService manages the daily target ledger.
type TargetService interface {
	// GetOrCreate resolves the instant to a civil date and returns the ledger
	// row, creating it lazily.
	GetOrCreate(ctx context.Context, portfolioID string, at time.Time) (*models.DailyTarget, error)

	// RecordEarned overwrites the human-reported actual for the day.
	RecordEarned(ctx context.Context, portfolioID string, at time.Time, amount float64) (*models.DailyTarget, error)

	// SetUserTarget sets or clears (nil) the human override for the day.
	SetUserTarget(ctx context.Context, portfolioID string, at time.Time, amount *float64) (*models.DailyTarget, error)

	// RefreshAITarget upserts the oracle-sourced fields for the day.
	RefreshAITarget(ctx context.Context, portfolioID string, at time.Time, proposal models.TargetProposal) error

	// Carryover scans back over prior trading days for the most recent row with
	// a non-zero effective target and reports its deficit or surplus.
	Carryover(ctx context.Context, portfolioID string, asOf time.Time) (models.Carryover, error)
}

// AckResult reports the outcome of an acknowledgement.
type AckResult struct {
	Signal  *models.TradeSignal `json:"signal"`
	Changed bool                `json:"changed"` // false when the signal was already terminal
}

// SignalService manages the trade signal lifecycle.
type SignalService interface {
	// Admit validates oracle candidates and persists the survivors as PENDING
	// signals. Invalid candidates are skipped, not fatal. Admission is capped
	// per batch. Returns the admitted signals.
	Admit(ctx context.Context, portfolioID string, candidates []models.SignalCandidate) ([]*models.TradeSignal, error)

	// Acknowledge applies a human action to a signal. Acting on an already
	// terminal signal is a no-op that reports the current status.
	Acknowledge(ctx context.Context, signalID string, action models.AckAction, actor string) (*AckResult, error)

	// SweepExpired expires overdue PENDING/SNOOZED signals. Idempotent.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	Get(ctx context.Context, signalID string) (*models.TradeSignal, error)
	List(ctx context.Context, portfolioID string, status models.SignalStatus) ([]*models.TradeSignal, error)
	ListAudits(ctx context.Context, signalID string) ([]*models.SignalAudit, error)
}

// ScorecardService summarizes recent signal and target outcomes.
type ScorecardService interface {
	Build(ctx context.Context, portfolioID string, asOf time.Time) (*models.Scorecard, error)
}

// CycleResult reports one generation cycle.
type CycleResult struct {
	PortfolioID     string                `json:"portfolio_id"`
	TargetRefreshed bool                  `json:"target_refreshed"`
	Admitted        []*models.TradeSignal `json:"admitted"`
	Rejected        int                   `json:"rejected"`
	Degraded        bool                  `json:"degraded"` // oracle unavailable or unparseable
}

// AdvisorService runs the closed generation loop: scorecard + carryover in,
// validated targets and signals out.
type AdvisorService interface {
	RunCycle(ctx context.Context, portfolioID string) (*CycleResult, error)
}
