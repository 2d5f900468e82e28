// Package interfaces defines service contracts for Pacer
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/pacer/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	TargetStore() TargetStore
	SignalStore() SignalStore
	PortfolioStore() PortfolioStore

	// Lifecycle
	Close() error
}

// TargetStore persists the daily target ledger. All writes are field-scoped
// upserts so a human edit and a scheduled AI refresh never clobber each other.
type TargetStore interface {
	// GetOrCreate returns the row for (portfolioID, dateKey), creating a zeroed
	// row if absent. Idempotent under concurrent calls for the same key.
	GetOrCreate(ctx context.Context, portfolioID, dateKey string) (*models.DailyTarget, error)

	// Get returns the row or nil when absent.
	Get(ctx context.Context, portfolioID, dateKey string) (*models.DailyTarget, error)

	// SetEarned overwrites earned_actual only.
	SetEarned(ctx context.Context, portfolioID, dateKey string, amount float64) error

	// SetUserTarget sets or clears (nil) the user override only.
	SetUserTarget(ctx context.Context, portfolioID, dateKey string, amount *float64) error

	// SetAITarget upserts the oracle-sourced fields only.
	SetAITarget(ctx context.Context, portfolioID, dateKey string, proposal models.TargetProposal) error
}

// SignalStore persists trade signals and their append-only audit trail.
type SignalStore interface {
	Create(ctx context.Context, signal *models.TradeSignal) error
	Get(ctx context.Context, id string) (*models.TradeSignal, error)
	List(ctx context.Context, portfolioID string, status models.SignalStatus) ([]*models.TradeSignal, error)

	// ListCreatedSince returns signals for a portfolio created at or after the
	// given instant (scorecard lookback).
	ListCreatedSince(ctx context.Context, portfolioID string, since time.Time) ([]*models.TradeSignal, error)

	// ListAwaiting returns all PENDING and SNOOZED signals across portfolios.
	ListAwaiting(ctx context.Context) ([]*models.TradeSignal, error)

	// TransitionIf atomically sets the status when the current status is still
	// PENDING or SNOOZED. Returns the updated signal and changed=true on
	// success; the unchanged signal and changed=false when the row was already
	// terminal (or already SNOOZED for a SNOOZE transition).
	TransitionIf(ctx context.Context, id string, to models.SignalStatus) (*models.TradeSignal, bool, error)

	// MarkNotified records a successful delivery instant.
	MarkNotified(ctx context.Context, id string, at time.Time) error

	// SweepExpired bulk-transitions PENDING/SNOOZED rows with expires_at < now
	// to EXPIRED. Idempotent. Returns the number of rows changed.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// AppendAudit adds an acknowledgement trail entry.
	AppendAudit(ctx context.Context, audit *models.SignalAudit) error

	// ListAudits returns the trail for a signal, oldest first.
	ListAudits(ctx context.Context, signalID string) ([]*models.SignalAudit, error)
}

// PortfolioStore persists the minimal holdings snapshot the engine reads.
type PortfolioStore interface {
	Get(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	Save(ctx context.Context, portfolio *models.Portfolio) error
}
