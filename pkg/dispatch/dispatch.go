// Package dispatch delivers rendered messages through the carrier and email
// relays and the in-app notification store. The remote providers are opaque
// collaborators; this package only knows their HTTP shapes.
package dispatch

import (
	"context"
	"errors"
)

var (
	// ErrMissingRecipient is returned when the resolved entity has no usable
	// contact detail for the channel.
	ErrMissingRecipient = errors.New("recipient contact information is missing")
	// ErrCircuitOpen is returned when the provider circuit breaker rejects
	// the call without attempting delivery.
	ErrCircuitOpen = errors.New("dispatch circuit breaker is open")
)

// SMSMessage is one outbound text message.
type SMSMessage struct {
	To      string
	Message string
	UserID  string
}

// EmailMessage is one outbound transactional email.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
	UserID  string
}

// SMSDispatcher delivers text messages through a carrier API.
type SMSDispatcher interface {
	SendSMS(ctx context.Context, msg SMSMessage) error
}

// EmailDispatcher delivers email through a transactional-email API.
type EmailDispatcher interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}
