package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixlify/fixflow/pkg/cmd"
	"github.com/fixlify/fixflow/pkg/eventbus"
	"github.com/fixlify/fixflow/pkg/events"
	"github.com/fixlify/fixflow/pkg/otelhelper"
	"github.com/fixlify/fixflow/pkg/services"
	"github.com/fixlify/fixflow/pkg/suspend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// claimBatchSize caps how many due continuations one tick resumes.
const claimBatchSize = 50

// WorkerManager consumes trigger events from the bus and resumes delay
// continuations when they come due.
type WorkerManager struct {
	id             string
	logger         *slog.Logger
	engine         *cmd.Engine
	automation     *services.Automation
	eventBus       eventbus.EventBus
	queue          suspend.Queue
	resumeInterval time.Duration
	tracer         trace.Tracer
}

func NewWorkerManager(
	id string,
	engine *cmd.Engine,
	eventBus eventbus.EventBus,
	queue suspend.Queue,
	resumeInterval time.Duration,
	tracer trace.Tracer,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:             id,
		logger:         logger.With("module", "fixflow-worker", "worker_id", id),
		engine:         engine,
		automation:     services.NewAutomation(engine.Repository, engine.Matcher, engine.Executor, logger),
		eventBus:       eventBus,
		queue:          queue,
		resumeInterval: resumeInterval,
		tracer:         tracer,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.TriggerReceivedEvent, w.handleTriggerReceived)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	resumeCtx, cancelResume := context.WithCancel(ctx)
	defer cancelResume()

	go w.resumeLoop(resumeCtx)

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleTriggerReceived(ctx context.Context, event any) error {
	triggerEvent, ok := event.(*events.TriggerReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerReceived")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "handleTriggerReceived",
		attribute.String(otelhelper.TriggerTypeKey, string(triggerEvent.Trigger.TriggerType)),
		attribute.String(otelhelper.EntityTypeKey, string(triggerEvent.Trigger.EntityType)),
		attribute.String(otelhelper.EntityIDKey, triggerEvent.Trigger.EntityID),
	)
	defer span.End()

	logger := w.logger.With(
		"trigger_type", triggerEvent.Trigger.TriggerType,
		"entity_id", triggerEvent.Trigger.EntityID,
		"event_id", triggerEvent.ID,
	)
	logger.InfoContext(ctx, "Processing trigger event")

	result, err := w.automation.HandleEvent(ctx, triggerEvent.Trigger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to handle trigger event", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Trigger event handled",
		"matched", result.Matched,
		"runs", len(result.Runs),
	)

	return nil
}

// resumeLoop claims due continuations on a fixed cadence. Resume failures are
// logged, not retried here: the run itself records the failure.
func (w *WorkerManager) resumeLoop(ctx context.Context) {
	ticker := time.NewTicker(w.resumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resumeDue(ctx)
		}
	}
}

func (w *WorkerManager) resumeDue(ctx context.Context) {
	continuations, err := w.queue.ClaimDue(ctx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to claim due continuations", "error", err)

		return
	}

	for _, continuation := range continuations {
		logger := w.logger.With(
			"execution_id", continuation.ExecutionID,
			"workflow_id", continuation.WorkflowID,
		)
		logger.InfoContext(ctx, "Resuming suspended run")

		spanCtx, span := otelhelper.StartSpan(ctx, w.tracer, "resumeRun",
			attribute.String(otelhelper.ExecutionIDKey, continuation.ExecutionID),
			attribute.String(otelhelper.WorkflowIDKey, continuation.WorkflowID),
		)

		_, err := w.engine.Executor.Resume(spanCtx, continuation)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to resume run", "error", err)
		}

		span.End()
	}
}
