// Package worker provides async assessment processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/openjustice-uk/kestrel/internal/assess"
	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Worker processes assessment requests asynchronously from the EventBus.
// The orchestrator persists and publishes the outcome; the worker's job is
// decoding, running the pipeline and surfacing failures in the logs.
type Worker struct {
	bus          domain.EventBus
	orchestrator *assess.Orchestrator

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, orchestrator *assess.Orchestrator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		orchestrator: orchestrator,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to the assessment request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicAssessmentRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicAssessmentRequested,
	)

	return nil
}

// RequestMessage is the message payload for async assessment processing.
// Session identity travels alongside the request because the request's
// session field is never serialized.
type RequestMessage struct {
	Request   domain.AssessmentRequest `json:"request"`
	UserName  string                   `json:"userName"`
	SessionID string                   `json:"sessionId"`
	TraceID   string                   `json:"traceId,omitempty"`
}

// handleMessage runs one assessment request through the pipeline.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var reqMsg RequestMessage
	if err := json.Unmarshal(msg.Payload, &reqMsg); err != nil {
		slog.Error("failed to parse assessment request message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	req := reqMsg.Request
	req.Session = domain.UserSession{
		UserName:  reqMsg.UserName,
		SessionID: reqMsg.SessionID,
	}

	traceID := reqMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing assessment request",
		"case_reference_id", req.CaseReferenceID,
		"type", req.AssessmentType,
		"trace_id", traceID,
	)

	assessment, err := w.orchestrator.CreateOrUpdate(ctx, &req)
	if err != nil {
		slog.Error("assessment failed",
			"case_reference_id", req.CaseReferenceID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	slog.Info("assessment processed",
		"assessment_id", assessment.ID,
		"case_reference_id", assessment.CaseReferenceID,
		"result", assessment.Result.Code,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
