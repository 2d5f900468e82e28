// Package telegram delivers trade signals through the Telegram Bot API with an
// inline keyboard carrying the three response actions.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
)

const (
	DefaultBaseURL   = "https://api.telegram.org"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 1 // requests per second; Telegram throttles bots hard
)

// Client implements the Notifier interface over the Telegram Bot API.
type Client struct {
	baseURL    string
	botToken   string
	chatID     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		botToken: botToken,
		chatID:   chatID,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NotifySignal sends a signal summary with ACK/SNOOZE/DISMISS buttons.
// The callback data carries the signal id so the acknowledgement webhook can
// route the tap back to the engine.
func (c *Client) NotifySignal(ctx context.Context, signal *models.TradeSignal) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", common.ErrUpstreamUnavailable, err)
	}

	req := sendMessageRequest{
		ChatID: c.chatID,
		Text:   formatSignal(signal),
		ReplyMarkup: &inlineKeyboard{
			InlineKeyboard: [][]inlineButton{{
				{Text: "Accept", CallbackData: fmt.Sprintf("ack:%s", signal.ID)},
				{Text: "Snooze", CallbackData: fmt.Sprintf("snooze:%s", signal.ID)},
				{Text: "Dismiss", CallbackData: fmt.Sprintf("dismiss:%s", signal.ID)},
			}},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: send message: %v", common.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil || !apiResp.OK {
		return fmt.Errorf("%w: telegram status %d: %s", common.ErrUpstreamUnavailable, resp.StatusCode, apiResp.Description)
	}

	c.logger.Debug().Str("signal", signal.ID).Msg("Signal notification delivered")
	return nil
}

// formatSignal renders the human-readable summary for one signal.
func formatSignal(s *models.TradeSignal) string {
	var trigger string
	switch s.TriggerType {
	case models.TriggerLimit:
		trigger = fmt.Sprintf("limit %.2f", s.TriggerPrice)
	case models.TriggerZone:
		trigger = fmt.Sprintf("zone %.2f-%.2f", s.TriggerLow, s.TriggerHigh)
	default:
		trigger = "at market"
	}

	return fmt.Sprintf("%s %d %s.%s (%s)\nConfidence: %d%%\nExpires: %s\n%s",
		s.Side, s.Quantity, s.Symbol, s.Exchange, trigger,
		s.Confidence,
		s.ExpiresAt.Format("2006-01-02 15:04 MST"),
		s.Rationale)
}

// Ensure Client implements Notifier
var _ interfaces.Notifier = (*Client)(nil)
