package interfaces

import (
	"context"

	"github.com/bobmcallan/pacer/internal/models"
)

// GeminiClient provides access to the recommendation oracle.
type GeminiClient interface {
	// GenerateContent generates AI content from a prompt
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Notifier delivers a signal summary through an external messaging channel and
// offers the three response actions. Failure is an expected, retriable
// condition; callers isolate it per signal.
type Notifier interface {
	NotifySignal(ctx context.Context, signal *models.TradeSignal) error
}

// QuoteClient returns current market prices for scorecard classification.
// A missing price degrades that one signal to unclassified.
type QuoteClient interface {
	GetQuote(ctx context.Context, symbol, exchange string) (float64, error)
}
