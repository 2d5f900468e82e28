// Package scorecard builds the accountability summary fed back into the
// generation cycle.
package scorecard

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
)

// Service implements ScorecardService
type Service struct {
	storage      interfaces.StorageManager
	targets      interfaces.TargetService
	quotes       interfaces.QuoteClient
	lookbackDays int
	logger       *common.Logger
}

// NewService creates a new scorecard service. quotes may be nil, in which case
// every LIMIT/ZONE signal degrades to unclassified.
func NewService(storage interfaces.StorageManager, targets interfaces.TargetService, quotes interfaces.QuoteClient, lookbackDays int, logger *common.Logger) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	return &Service{
		storage:      storage,
		targets:      targets,
		quotes:       quotes,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// Build assembles the scorecard over the lookback window ending at asOf.
func (s *Service) Build(ctx context.Context, portfolioID string, asOf time.Time) (*models.Scorecard, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", common.ErrInvalidInput)
	}

	since := asOf.AddDate(0, 0, -s.lookbackDays)
	signals, err := s.storage.SignalStore().ListCreatedSince(ctx, portfolioID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals for scorecard: %w", err)
	}

	card := &models.Scorecard{
		PortfolioID: portfolioID,
		WindowDays:  s.lookbackDays,
		Outcomes:    make([]models.SignalOutcome, 0, len(signals)),
	}

	prices := make(map[string]float64)
	for _, sig := range signals {
		outcome := s.classify(ctx, sig, prices)
		card.Outcomes = append(card.Outcomes, outcome)

		switch outcome.Outcome {
		case models.OutcomeWin:
			card.Wins++
		case models.OutcomeLoss:
			card.Losses++
		default:
			card.Unclassified++
		}
		if sig.Status == models.StatusPending || sig.Status == models.StatusExpired {
			card.Unused++
		}
		card.EstimatedPnL += outcome.PnL
	}

	if classified := card.Wins + card.Losses; classified > 0 {
		card.WinRate = float64(card.Wins) / float64(classified)
	}

	carryover, err := s.targets.Carryover(ctx, portfolioID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve carryover: %w", err)
	}
	card.Carryover = carryover

	return card, nil
}

// classify grades one signal against the current market price. prices caches
// quotes per symbol so a batch costs one lookup per distinct instrument.
func (s *Service) classify(ctx context.Context, sig *models.TradeSignal, prices map[string]float64) models.SignalOutcome {
	out := models.SignalOutcome{
		SignalID: sig.ID,
		Symbol:   sig.Symbol,
		Side:     sig.Side,
		Status:   sig.Status,
		Outcome:  models.OutcomeUnclassified,
	}

	ref, ok := sig.ReferencePrice()
	if !ok {
		return out
	}

	price, ok := s.lookup(ctx, sig, prices)
	if !ok {
		return out
	}
	out.PriceUsed = price

	// A BUY wins when the price is at or above the entry; a SELL wins when it
	// is at or below. Non-negative P&L counts as a win, so an execution at the
	// exact trigger price grades as one.
	delta := price - ref
	if sig.Side == models.SideSell {
		delta = -delta
	}
	if delta >= 0 {
		out.Outcome = models.OutcomeWin
	} else {
		out.Outcome = models.OutcomeLoss
	}

	if sig.Status == models.StatusExecuted {
		out.PnL = delta * float64(sig.Quantity)
	}
	return out
}

func (s *Service) lookup(ctx context.Context, sig *models.TradeSignal, prices map[string]float64) (float64, bool) {
	key := sig.Symbol + "." + sig.Exchange
	if price, ok := prices[key]; ok {
		return price, price > 0
	}

	if s.quotes == nil {
		prices[key] = 0
		return 0, false
	}

	price, err := s.quotes.GetQuote(ctx, sig.Symbol, sig.Exchange)
	if err != nil {
		s.logger.Warn().
			Str("signal", sig.ID).
			Str("symbol", sig.Symbol).
			Err(err).
			Msg("Quote unavailable, signal left unclassified")
		prices[key] = 0
		return 0, false
	}

	prices[key] = price
	return price, price > 0
}

// Ensure Service implements ScorecardService
var _ interfaces.ScorecardService = (*Service)(nil)
