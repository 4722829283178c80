package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const smsRequestTimeout = 30 * time.Second

// TelnyxSMS sends text messages through the Telnyx messaging API. A circuit
// breaker sheds calls while the carrier is failing so a provider outage does
// not stall every workflow run behind timeouts.
type TelnyxSMS struct {
	baseURL    string
	apiKey     string
	fromNumber string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// TelnyxConfig configures the SMS relay.
type TelnyxConfig struct {
	BaseURL    string
	APIKey     string
	FromNumber string
}

// NewTelnyxSMS creates the SMS dispatcher.
func NewTelnyxSMS(config TelnyxConfig, logger *slog.Logger) *TelnyxSMS {
	return &TelnyxSMS{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		fromNumber: config.FromNumber,
		client: &http.Client{
			Timeout: smsRequestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "telnyx-sms",
			MaxRequests: 3,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: logger.With("module", "sms_dispatcher"),
	}
}

// SendSMS posts one message to the carrier. Delivery failures are returned to
// the caller; the step executor decides whether the run continues.
func (t *TelnyxSMS) SendSMS(ctx context.Context, msg SMSMessage) error {
	if msg.To == "" {
		return fmt.Errorf("sms to empty recipient: %w", ErrMissingRecipient)
	}

	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.post(ctx, msg)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("sms to %s rejected: %w", msg.To, ErrCircuitOpen)
	}

	return err
}

func (t *TelnyxSMS) post(ctx context.Context, msg SMSMessage) error {
	payload, err := json.Marshal(map[string]string{
		"from": t.fromNumber,
		"to":   msg.To,
		"text": msg.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v2/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("sms provider returned status %d: %s", resp.StatusCode, string(body))
	}

	t.logger.InfoContext(ctx, "SMS dispatched", "to", msg.To, "user_id", msg.UserID)

	return nil
}
