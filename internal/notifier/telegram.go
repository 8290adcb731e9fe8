package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// DefaultTelegramBaseURL is the Telegram Bot API host.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramOptions configures a TelegramNotifier.
type TelegramOptions struct {
	BotToken   string
	ChatID     string
	Proxy      string
	BaseURL    string
	MaxElapsed time.Duration // total retry budget, 0 uses one minute
}

// TelegramNotifier sends run summaries via the Telegram Bot API.
type TelegramNotifier struct {
	chatID     string
	client     *resty.Client
	maxElapsed time.Duration
	log        zerolog.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(opts TelegramOptions) *TelegramNotifier {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTelegramBaseURL
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = time.Minute
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL+"/bot"+opts.BotToken).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	return &TelegramNotifier{
		chatID:     opts.ChatID,
		client:     client,
		maxElapsed: opts.MaxElapsed,
		log:        logger.Component("telegram"),
	}
}

// Close releases the underlying HTTP client.
func (t *TelegramNotifier) Close() error {
	return t.client.Close()
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return &apiError{status: resp.StatusCode(), body: resp.String()}
	}
	return nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram API error: status %d, body: %s", e.status, e.body)
}

// SendWithRetry sends a message with exponential backoff. Client errors other
// than 429 are not retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		var ae *apiError
		if errors.As(err, &ae) && ae.status < 500 && ae.status != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		t.log.Warn().Err(err).Int("attempt", attempt).Msg("telegram send failed, retrying")
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = t.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return nil
}

// NotifyRun sends the formatted summary of a finished run.
func (t *TelegramNotifier) NotifyRun(ctx context.Context, summary *model.RunSummary) error {
	return t.SendWithRetry(ctx, FormatRunSummary(summary))
}
