package cmd

import (
	"log/slog"

	"github.com/fixlify/fixflow/pkg/dispatch"
	"github.com/fixlify/fixflow/pkg/eventbus"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/suspend"
	"github.com/fixlify/fixflow/pkg/variables"
	"github.com/fixlify/fixflow/pkg/workflow"
)

const (
	defaultTelnyxBaseURL  = "https://api.telnyx.com"
	defaultMailgunBaseURL = "https://api.mailgun.net"
)

// DispatchConfig carries the delivery provider credentials shared by every
// process that executes steps.
type DispatchConfig struct {
	TelnyxAPIKey     string
	TelnyxFromNumber string
	MailgunDomain    string
	MailgunAPIKey    string
	MailgunFrom      string
	PortalBaseURL    string
}

// Engine bundles the matching and execution pipeline shared by the API,
// worker, and scheduler processes.
type Engine struct {
	Repository *workflow.Repository
	Matcher    *workflow.Matcher
	Executor   *workflow.Executor
}

// NewEngine wires the trigger pipeline on top of a storage backend, a
// suspension queue, and an optional event publisher.
func NewEngine(
	p persistence.Persistence,
	queue suspend.Queue,
	publisher eventbus.EventPublisher,
	config DispatchConfig,
	logger *slog.Logger,
) *Engine {
	repository := workflow.NewRepository(p)

	resolver := variables.NewResolver(
		p.EntityRepository(),
		variables.Links{BaseURL: config.PortalBaseURL},
		logger,
	)

	sms := dispatch.NewTelnyxSMS(dispatch.TelnyxConfig{
		BaseURL:    defaultTelnyxBaseURL,
		APIKey:     config.TelnyxAPIKey,
		FromNumber: config.TelnyxFromNumber,
	}, logger)

	email := dispatch.NewMailgunEmail(dispatch.MailgunConfig{
		BaseURL: defaultMailgunBaseURL,
		Domain:  config.MailgunDomain,
		APIKey:  config.MailgunAPIKey,
		From:    config.MailgunFrom,
	}, logger)

	notifications := dispatch.NewNotificationWriter(p.NotificationRepository())

	executor := workflow.NewExecutor(
		repository,
		p.ExecutionLogRepository(),
		resolver,
		sms,
		email,
		notifications,
		queue,
		publisher,
		logger,
	)

	return &Engine{
		Repository: repository,
		Matcher:    workflow.NewMatcher(logger),
		Executor:   executor,
	}
}
