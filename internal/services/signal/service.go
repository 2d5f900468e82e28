// Package signal manages the trade signal lifecycle: admission of oracle
// candidates, human acknowledgement, and expiry.
package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/pacer/internal/calendar"
	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
)

// Service implements SignalService
type Service struct {
	storage     interfaces.StorageManager
	cal         *calendar.Calendar
	clock       calendar.Clock
	maxAdmitted int
	logger      *common.Logger
}

// NewService creates a new signal service
func NewService(storage interfaces.StorageManager, cal *calendar.Calendar, clock calendar.Clock, maxAdmitted int, logger *common.Logger) *Service {
	if maxAdmitted <= 0 {
		maxAdmitted = 5
	}
	return &Service{
		storage:     storage,
		cal:         cal,
		clock:       clock,
		maxAdmitted: maxAdmitted,
		logger:      logger,
	}
}

// Admit validates oracle candidates and persists the survivors as PENDING
// signals expiring at the next market close. Invalid candidates are logged and
// skipped; only a storage failure aborts the batch.
func (s *Service) Admit(ctx context.Context, portfolioID string, candidates []models.SignalCandidate) ([]*models.TradeSignal, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}

	now := s.clock.Now()
	expiresAt := s.cal.NextCloseAfter(now)
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: computed expiry %s is not after now %s",
			common.ErrClockInconsistency, expiresAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	portfolio, err := s.storage.PortfolioStore().Get(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio for admission: %w", err)
	}

	admitted := make([]*models.TradeSignal, 0, len(candidates))
	for i, candidate := range candidates {
		if len(admitted) >= s.maxAdmitted {
			s.logger.Warn().
				Str("portfolio", portfolioID).
				Int("cap", s.maxAdmitted).
				Int("remaining", len(candidates)-i).
				Msg("Admission cap reached, dropping remaining candidates")
			break
		}

		if err := validateCandidate(candidate, portfolio); err != nil {
			s.logger.Warn().
				Str("portfolio", portfolioID).
				Str("symbol", candidate.Symbol).
				Err(err).
				Msg("Rejected signal candidate")
			continue
		}

		sig := &models.TradeSignal{
			PortfolioID:  portfolioID,
			Symbol:       strings.ToUpper(strings.TrimSpace(candidate.Symbol)),
			Exchange:     strings.ToUpper(strings.TrimSpace(candidate.Exchange)),
			Side:         models.Side(candidate.Side),
			Quantity:     candidate.Quantity,
			TriggerType:  models.TriggerType(candidate.TriggerType),
			TriggerPrice: candidate.TriggerPrice,
			TriggerLow:   candidate.TriggerLow,
			TriggerHigh:  candidate.TriggerHigh,
			Confidence:   candidate.Confidence,
			Rationale:    candidate.Rationale,
			Status:       models.StatusPending,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
		}

		if err := s.storage.SignalStore().Create(ctx, sig); err != nil {
			return admitted, fmt.Errorf("failed to persist signal for %s: %w", sig.Symbol, err)
		}

		s.logger.Info().
			Str("portfolio", portfolioID).
			Str("signal", sig.ID).
			Str("symbol", sig.Symbol).
			Str("side", string(sig.Side)).
			Time("expires_at", expiresAt).
			Msg("Signal admitted")
		admitted = append(admitted, sig)
	}

	return admitted, nil
}

// validateCandidate enforces the admission rules for one untrusted candidate.
func validateCandidate(c models.SignalCandidate, portfolio *models.Portfolio) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", common.ErrInvalidInput)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", common.ErrInvalidInput, c.Quantity)
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d outside [0,100]", common.ErrInvalidInput, c.Confidence)
	}

	side := models.Side(c.Side)
	switch side {
	case models.SideBuy:
	case models.SideSell:
		if portfolio == nil || !portfolio.HasHolding(symbol) {
			return fmt.Errorf("%w: SELL signal for %s without a holding", common.ErrInvalidInput, symbol)
		}
	default:
		return fmt.Errorf("%w: unknown side %q", common.ErrInvalidInput, c.Side)
	}

	switch models.TriggerType(c.TriggerType) {
	case models.TriggerMarket:
	case models.TriggerLimit:
		if c.TriggerPrice <= 0 {
			return fmt.Errorf("%w: LIMIT trigger needs a positive price", common.ErrInvalidInput)
		}
	case models.TriggerZone:
		if c.TriggerLow <= 0 || c.TriggerHigh <= c.TriggerLow {
			return fmt.Errorf("%w: ZONE trigger needs 0 < low < high", common.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown trigger type %q", common.ErrInvalidInput, c.TriggerType)
	}

	return nil
}

// Acknowledge applies a human action to a signal. The status transition is a
// compare-and-set in storage; when two actors race, exactly one observes
// Changed=true and only that path appends an audit entry. Acting on an already
// terminal signal is a successful no-op reporting the current status.
func (s *Service) Acknowledge(ctx context.Context, signalID string, action models.AckAction, actor string) (*interfaces.AckResult, error) {
	if signalID == "" {
		return nil, fmt.Errorf("%w: signal id is required", common.ErrInvalidInput)
	}
	to, ok := action.StatusFor()
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", common.ErrInvalidInput, action)
	}

	updated, changed, err := s.storage.SignalStore().TransitionIf(ctx, signalID, to)
	if err != nil {
		return nil, err
	}

	if !changed {
		s.logger.Debug().
			Str("signal", signalID).
			Str("action", string(action)).
			Str("status", string(updated.Status)).
			Msg("Acknowledgement no-op, signal already settled")
		return &interfaces.AckResult{Signal: updated, Changed: false}, nil
	}

	audit := &models.SignalAudit{
		SignalID: signalID,
		Action:   action,
		Actor:    actor,
		Status:   updated.Status,
	}
	if err := s.storage.SignalStore().AppendAudit(ctx, audit); err != nil {
		// The transition committed; surface the audit failure rather than
		// pretend the acknowledgement failed.
		s.logger.Error().Str("signal", signalID).Err(err).Msg("Failed to append acknowledgement audit")
	}

	s.logger.Info().
		Str("signal", signalID).
		Str("action", string(action)).
		Str("actor", actor).
		Str("status", string(updated.Status)).
		Msg("Signal acknowledged")
	return &interfaces.AckResult{Signal: updated, Changed: true}, nil
}

// SweepExpired expires every PENDING or SNOOZED signal whose deadline has
// passed. Running twice over the same instant is harmless.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	count, err := s.storage.SignalStore().SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired signals: %w", err)
	}
	if count > 0 {
		s.logger.Info().Int("count", count).Time("now", now).Msg("Expired overdue signals")
	}
	return count, nil
}

func (s *Service) Get(ctx context.Context, signalID string) (*models.TradeSignal, error) {
	sig, err := s.storage.SignalStore().Get(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, fmt.Errorf("%w: signal %s", common.ErrNotFound, signalID)
	}
	return sig, nil
}

func (s *Service) List(ctx context.Context, portfolioID string, status models.SignalStatus) ([]*models.TradeSignal, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}
	return s.storage.SignalStore().List(ctx, portfolioID, status)
}

func (s *Service) ListAudits(ctx context.Context, signalID string) ([]*models.SignalAudit, error) {
	if _, err := s.Get(ctx, signalID); err != nil {
		return nil, err
	}
	return s.storage.SignalStore().ListAudits(ctx, signalID)
}

// Ensure Service implements SignalService
var _ interfaces.SignalService = (*Service)(nil)
