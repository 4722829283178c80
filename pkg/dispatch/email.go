package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const emailRequestTimeout = 30 * time.Second

// MailgunEmail sends transactional email through the Mailgun messages API.
type MailgunEmail struct {
	baseURL string
	domain  string
	apiKey  string
	from    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// MailgunConfig configures the email relay.
type MailgunConfig struct {
	BaseURL string
	Domain  string
	APIKey  string
	From    string
}

// NewMailgunEmail creates the email dispatcher.
func NewMailgunEmail(config MailgunConfig, logger *slog.Logger) *MailgunEmail {
	return &MailgunEmail{
		baseURL: config.BaseURL,
		domain:  config.Domain,
		apiKey:  config.APIKey,
		from:    config.From,
		client: &http.Client{
			Timeout: emailRequestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mailgun-email",
			MaxRequests: 3,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: logger.With("module", "email_dispatcher"),
	}
}

// SendEmail posts one message to the email provider.
func (m *MailgunEmail) SendEmail(ctx context.Context, msg EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("email to empty recipient: %w", ErrMissingRecipient)
	}

	_, err := m.breaker.Execute(func() (any, error) {
		return nil, m.post(ctx, msg)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("email to %s rejected: %w", msg.To, ErrCircuitOpen)
	}

	return err
}

func (m *MailgunEmail) post(ctx context.Context, msg EmailMessage) error {
	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.HTML)
	form.Set("text", msg.Text)

	endpoint := fmt.Sprintf("%s/v3/%s/messages", m.baseURL, m.domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			m.logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("email provider returned status %d: %s", resp.StatusCode, string(body))
	}

	m.logger.InfoContext(ctx, "Email dispatched", "to", msg.To, "user_id", msg.UserID)

	return nil
}
