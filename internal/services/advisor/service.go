// Package advisor runs the closed generation loop: holdings and recent
// accountability go to the oracle, validated targets and signals come back.
package advisor

import (
	"context"
	"fmt"

	"github.com/bobmcallan/pacer/internal/calendar"
	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
)

// Service implements AdvisorService
type Service struct {
	storage    interfaces.StorageManager
	targets    interfaces.TargetService
	signals    interfaces.SignalService
	scorecards interfaces.ScorecardService
	gemini     interfaces.GeminiClient
	cal        *calendar.Calendar
	clock      calendar.Clock
	logger     *common.Logger
}

// NewService creates a new advisor service
func NewService(
	storage interfaces.StorageManager,
	targets interfaces.TargetService,
	signals interfaces.SignalService,
	scorecards interfaces.ScorecardService,
	gemini interfaces.GeminiClient,
	cal *calendar.Calendar,
	clock calendar.Clock,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:    storage,
		targets:    targets,
		signals:    signals,
		scorecards: scorecards,
		gemini:     gemini,
		cal:        cal,
		clock:      clock,
		logger:     logger,
	}
}

// RunCycle executes one generation cycle for a portfolio. Oracle failure or an
// unparseable response degrades the cycle: the day's ledger row still exists,
// no signals are admitted, and the result is marked Degraded.
func (s *Service) RunCycle(ctx context.Context, portfolioID string) (*interfaces.CycleResult, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}

	now := s.clock.Now()
	result := &interfaces.CycleResult{PortfolioID: portfolioID}

	// Ensure today's ledger row exists before anything can fail.
	if _, err := s.targets.GetOrCreate(ctx, portfolioID, now); err != nil {
		return nil, err
	}

	card, err := s.scorecards.Build(ctx, portfolioID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build scorecard for cycle: %w", err)
	}

	portfolio, err := s.storage.PortfolioStore().Get(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio for cycle: %w", err)
	}

	if s.gemini == nil {
		s.logger.Warn().Str("portfolio", portfolioID).Msg("No oracle configured, cycle degraded")
		result.Degraded = true
		return result, nil
	}

	prompt := buildPrompt(portfolio, card, s.cal.DateKey(now))
	raw, err := s.gemini.GenerateContent(ctx, prompt)
	if err != nil {
		s.logger.Error().Str("portfolio", portfolioID).Err(err).Msg("Oracle call failed, cycle degraded")
		result.Degraded = true
		return result, fmt.Errorf("%w: oracle call failed: %v", common.ErrUpstreamUnavailable, err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		s.logger.Error().Str("portfolio", portfolioID).Err(err).Msg("Oracle response unparseable, cycle degraded")
		result.Degraded = true
		return result, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}

	if err := s.targets.RefreshAITarget(ctx, portfolioID, now, resp.Target); err != nil {
		s.logger.Error().Str("portfolio", portfolioID).Err(err).Msg("Proposed target rejected")
		result.Degraded = true
	} else {
		result.TargetRefreshed = true
	}

	admitted, err := s.signals.Admit(ctx, portfolioID, resp.Signals)
	if err != nil {
		return result, fmt.Errorf("failed to admit cycle signals: %w", err)
	}
	result.Admitted = admitted
	result.Rejected = len(resp.Signals) - len(admitted)

	s.logger.Info().
		Str("portfolio", portfolioID).
		Bool("target_refreshed", result.TargetRefreshed).
		Int("admitted", len(result.Admitted)).
		Int("rejected", result.Rejected).
		Msg("Generation cycle complete")
	return result, nil
}

// Ensure Service implements AdvisorService
var _ interfaces.AdvisorService = (*Service)(nil)
