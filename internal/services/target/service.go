// Package target manages the daily target ledger
package target

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bobmcallan/pacer/internal/calendar"
	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
)

// Service implements TargetService
type Service struct {
	storage       interfaces.StorageManager
	cal           *calendar.Calendar
	carryoverDays int
	logger        *common.Logger
}

// NewService creates a new target service
func NewService(storage interfaces.StorageManager, cal *calendar.Calendar, carryoverDays int, logger *common.Logger) *Service {
	if carryoverDays <= 0 {
		carryoverDays = 5
	}
	return &Service{
		storage:       storage,
		cal:           cal,
		carryoverDays: carryoverDays,
		logger:        logger,
	}
}

// GetOrCreate returns the ledger row for the civil date of at, creating it lazily.
func (s *Service) GetOrCreate(ctx context.Context, portfolioID string, at time.Time) (*models.DailyTarget, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}

	row, err := s.storage.TargetStore().GetOrCreate(ctx, portfolioID, s.cal.DateKey(at))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create daily target: %w", err)
	}
	return row, nil
}

// RecordEarned overwrites the human-reported actual for the day. The reported
// figure is authoritative; it replaces, never accumulates.
func (s *Service) RecordEarned(ctx context.Context, portfolioID string, at time.Time, amount float64) (*models.DailyTarget, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: earned amount must be a finite number", common.ErrInvalidInput)
	}

	dateKey := s.cal.DateKey(at)
	if err := s.storage.TargetStore().SetEarned(ctx, portfolioID, dateKey, amount); err != nil {
		return nil, fmt.Errorf("failed to record earned: %w", err)
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("date", dateKey).Float64("earned", amount).Msg("Earned actual recorded")
	return s.storage.TargetStore().Get(ctx, portfolioID, dateKey)
}

// SetUserTarget sets or clears (nil) the human override for the day.
func (s *Service) SetUserTarget(ctx context.Context, portfolioID string, at time.Time, amount *float64) (*models.DailyTarget, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}
	if amount != nil && (math.IsNaN(*amount) || math.IsInf(*amount, 0) || *amount < 0) {
		return nil, fmt.Errorf("%w: user target must be a non-negative number", common.ErrInvalidInput)
	}

	dateKey := s.cal.DateKey(at)
	if err := s.storage.TargetStore().SetUserTarget(ctx, portfolioID, dateKey, amount); err != nil {
		return nil, fmt.Errorf("failed to set user target: %w", err)
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("date", dateKey).Bool("cleared", amount == nil).Msg("User target updated")
	return s.storage.TargetStore().Get(ctx, portfolioID, dateKey)
}

// RefreshAITarget upserts the oracle-sourced fields for the day without
// touching earned_actual or the user override.
func (s *Service) RefreshAITarget(ctx context.Context, portfolioID string, at time.Time, proposal models.TargetProposal) error {
	if portfolioID == "" {
		return fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}
	if proposal.Target < 0 || math.IsNaN(proposal.Target) || math.IsInf(proposal.Target, 0) {
		return fmt.Errorf("%w: AI target must be a non-negative number", common.ErrInvalidInput)
	}
	if proposal.Confidence < 0 || proposal.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d outside [0,100]", common.ErrInvalidInput, proposal.Confidence)
	}

	dateKey := s.cal.DateKey(at)
	if err := s.storage.TargetStore().SetAITarget(ctx, portfolioID, dateKey, proposal); err != nil {
		return fmt.Errorf("failed to refresh AI target: %w", err)
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("date", dateKey).Float64("target", proposal.Target).Msg("AI target refreshed")
	return nil
}

// Carryover scans backward over prior trading days (bounded window) for the
// most recent row with a non-zero effective target and reports its outcome.
func (s *Service) Carryover(ctx context.Context, portfolioID string, asOf time.Time) (models.Carryover, error) {
	day := s.cal.CivilDate(asOf)
	for i := 0; i < s.carryoverDays; i++ {
		day = s.cal.PrevTradingDay(day)

		row, err := s.storage.TargetStore().Get(ctx, portfolioID, s.cal.DateKey(day))
		if err != nil {
			return models.Carryover{}, fmt.Errorf("failed to scan carryover: %w", err)
		}
		if row == nil {
			continue
		}

		effective := row.EffectiveTarget()
		if effective == 0 {
			continue
		}

		deficit := effective - row.EarnedActual
		return models.Carryover{
			Found:           true,
			Date:            row.Date,
			EffectiveTarget: effective,
			EarnedActual:    row.EarnedActual,
			Deficit:         deficit,
			Met:             deficit <= 0,
		}, nil
	}

	return models.Carryover{Found: false}, nil
}

// Ensure Service implements TargetService
var _ interfaces.TargetService = (*Service)(nil)
