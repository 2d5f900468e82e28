// Package app wires configuration, storage, clients and services into a
// running Pacer instance.
package app

import (
	"context"
	"fmt"

	"github.com/bobmcallan/pacer/internal/calendar"
	"github.com/bobmcallan/pacer/internal/clients/eodhd"
	"github.com/bobmcallan/pacer/internal/clients/gemini"
	"github.com/bobmcallan/pacer/internal/clients/telegram"
	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/services/advisor"
	"github.com/bobmcallan/pacer/internal/services/scorecard"
	"github.com/bobmcallan/pacer/internal/services/signal"
	"github.com/bobmcallan/pacer/internal/services/target"
	"github.com/bobmcallan/pacer/internal/storage/surrealdb"
)

// App holds all application dependencies
type App struct {
	Config   *common.Config
	Logger   *common.Logger
	Storage  interfaces.StorageManager
	Calendar *calendar.Calendar
	Clock    calendar.Clock

	TargetService    interfaces.TargetService
	SignalService    interfaces.SignalService
	ScorecardService interfaces.ScorecardService
	AdvisorService   interfaces.AdvisorService

	Notifier interfaces.Notifier

	Scheduler *Scheduler
}

// NewApp creates a new application with all dependencies wired
func NewApp(configPaths ...string) (*App, error) {
	config, err := common.LoadConfig(configPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	cal, err := calendar.New(config.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar: %w", err)
	}
	clock := calendar.SystemClock{}

	storage, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Optional clients. A missing key degrades the feature, not the process.
	var geminiClient interfaces.GeminiClient
	if config.Clients.Gemini.APIKey != "" {
		gc, err := gemini.NewClient(context.Background(), config.Clients.Gemini.APIKey,
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		geminiClient = gc
	} else {
		logger.Warn().Msg("Gemini API key not configured, generation cycles will be degraded")
	}

	var notifier interfaces.Notifier
	if config.Clients.Telegram.BotToken != "" && config.Clients.Telegram.ChatID != "" {
		notifier = telegram.NewClient(config.Clients.Telegram.BotToken, config.Clients.Telegram.ChatID,
			telegram.WithRateLimit(config.Clients.Telegram.RateLimit),
			telegram.WithTimeout(config.Clients.Telegram.GetTimeout()),
			telegram.WithLogger(logger))
	} else {
		logger.Warn().Msg("Telegram not configured, signal notifications disabled")
	}

	var quotes interfaces.QuoteClient
	if config.Clients.EODHD.APIKey != "" {
		quotes = eodhd.NewClient(config.Clients.EODHD.APIKey,
			eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
			eodhd.WithLogger(logger))
	} else {
		logger.Warn().Msg("EODHD API key not configured, scorecard signals will be unclassified")
	}

	targetService := target.NewService(storage, cal, config.Engine.CarryoverDays, logger)
	signalService := signal.NewService(storage, cal, clock, config.Engine.MaxAdmitted, logger)
	scorecardService := scorecard.NewService(storage, targetService, quotes, config.Engine.LookbackDays, logger)
	advisorService := advisor.NewService(storage, targetService, signalService, scorecardService, geminiClient, cal, clock, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storage,
		Calendar:         cal,
		Clock:            clock,
		TargetService:    targetService,
		SignalService:    signalService,
		ScorecardService: scorecardService,
		AdvisorService:   advisorService,
		Notifier:         notifier,
	}
	a.Scheduler = NewScheduler(a)

	return a, nil
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application shutdown complete")
}
