package app

import (
	"context"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/models"
)

// Scheduler drives the periodic work: expiry sweeps every tick, plus signal
// delivery and the daily generation cycle during trading hours. One goroutine,
// one ticker.
type Scheduler struct {
	app    *App
	logger *common.Logger

	// lastCycleDate records the civil date a generation cycle last ran for a
	// portfolio, so each trading day gets exactly one automatic cycle even
	// when that cycle degrades.
	lastCycleDate map[string]string
}

// NewScheduler creates a new scheduler bound to the application.
func NewScheduler(a *App) *Scheduler {
	return &Scheduler{
		app:           a,
		logger:        a.Logger,
		lastCycleDate: make(map[string]string),
	}
}

// Run blocks, ticking until ctx is cancelled. The first tick fires immediately
// so a restart mid-session resumes sweeps and deliveries without waiting.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.app.Config.Engine.GetTickInterval()
	s.logger.Info().Dur("interval", interval).Msg("Scheduler started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.app.Clock.Now()

	if _, err := s.app.SignalService.SweepExpired(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("Expiry sweep failed")
	}

	if !s.app.Calendar.WithinTradingHours(now) {
		return
	}

	s.runDailyCycles(ctx, now)
	s.deliverNotifications(ctx, now)
}

// runDailyCycles fires the automatic generation cycle for each configured
// portfolio on its first eligible tick of the trading day.
func (s *Scheduler) runDailyCycles(ctx context.Context, now time.Time) {
	today := s.app.Calendar.DateKey(now)
	for _, portfolioID := range s.app.Config.Portfolios {
		if s.lastCycleDate[portfolioID] == today {
			continue
		}
		s.lastCycleDate[portfolioID] = today

		result, err := s.app.AdvisorService.RunCycle(ctx, portfolioID)
		if err != nil {
			s.logger.Error().Str("portfolio", portfolioID).Err(err).Msg("Automatic generation cycle failed")
			continue
		}
		s.logger.Info().
			Str("portfolio", portfolioID).
			Int("admitted", len(result.Admitted)).
			Bool("degraded", result.Degraded).
			Msg("Automatic generation cycle ran")
	}
}

// deliverNotifications sends due signal summaries. Each delivery gets its own
// timeout and a failure only skips that one signal.
func (s *Scheduler) deliverNotifications(ctx context.Context, now time.Time) {
	if s.app.Notifier == nil {
		return
	}

	awaiting, err := s.app.Storage.SignalStore().ListAwaiting(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list awaiting signals")
		return
	}

	repeat := s.app.Config.Engine.GetRepeatInterval()
	timeout := s.app.Config.Engine.GetDeliveryTimeout()

	for _, sig := range awaiting {
		if !shouldNotify(sig, now, repeat) {
			continue
		}

		deliveryCtx, cancel := context.WithTimeout(ctx, timeout)
		err := s.app.Notifier.NotifySignal(deliveryCtx, sig)
		cancel()

		if err != nil {
			s.logger.Warn().Str("signal", sig.ID).Err(err).Msg("Signal delivery failed")
			continue
		}
		if err := s.app.Storage.SignalStore().MarkNotified(ctx, sig.ID, now); err != nil {
			s.logger.Error().Str("signal", sig.ID).Err(err).Msg("Failed to record delivery")
		}
	}
}

// shouldNotify reports whether an awaiting signal is due for (re)delivery.
// Overdue signals are left to the expiry sweep rather than re-announced.
func shouldNotify(sig *models.TradeSignal, now time.Time, repeat time.Duration) bool {
	if sig.Status != models.StatusPending && sig.Status != models.StatusSnoozed {
		return false
	}
	if !sig.ExpiresAt.After(now) {
		return false
	}
	if sig.LastNotifiedAt == nil {
		return true
	}
	return now.Sub(*sig.LastNotifiedAt) >= repeat
}
