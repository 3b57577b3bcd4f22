// SPDX-License-Identifier: MIT

// Package worker consumes upload-completed push messages and turns them
// into ack/nack verdicts for the delivery substrate.
package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/streamforge/provisiond/internal/alert"
	"github.com/streamforge/provisiond/internal/config"
	"github.com/streamforge/provisiond/internal/event"
	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/metrics"
	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/notify"
	"github.com/streamforge/provisiond/internal/telemetry"
)

// Verdict actions. Ack removes the message from the subscription, nack
// schedules a redelivery after RetryInSeconds.
const (
	ActionAck  = "ack"
	ActionNack = "nack"
)

// Verdict is the worker's decision for one delivered message.
type Verdict struct {
	Action         string
	RetryInSeconds int
}

// Provisioner is the slice of the provisioning pipeline the worker drives.
type Provisioner interface {
	ProvisionFromUpload(ctx context.Context, ev *event.UploadCompleted) (*model.ChannelMetadata, error)
}

// Worker handles one message at a time. It owns no state of its own, so a
// single instance may be shared across concurrent deliveries.
type Worker struct {
	provisioner Provisioner
	publisher   notify.Publisher
	alerts      alert.Sink
	cfg         *config.Config
	now         func() time.Time
}

func New(p Provisioner, pub notify.Publisher, alerts alert.Sink, cfg *config.Config) *Worker {
	return &Worker{provisioner: p, publisher: pub, alerts: alerts, cfg: cfg, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// HandleMessage runs the full pipeline for one delivery: decode, provision,
// notify. Any failure funnels into a single verdict policy: alert, then nack
// for redelivery until the delivery attempt budget is spent, after which the
// message is acked and dropped as poison.
func (w *Worker) HandleMessage(ctx context.Context, msg event.PushMessage) Verdict {
	ctx = log.ContextWithMessageID(ctx, msg.MessageID)

	ev, err := event.Decode(msg)
	if err != nil {
		return w.fail(ctx, msg, peekContentID(msg), err)
	}
	ctx = log.ContextWithContentID(ctx, ev.Data.ContentID)
	logger := log.WithComponentFromContext(ctx, "worker")
	logger.Info().
		Str(log.FieldEventID, ev.EventID).
		Int(log.FieldAttempt, msg.Attempt()).
		Msg("processing upload event")

	rec, err := w.processWithDeadline(ctx, ev)
	if err != nil {
		return w.fail(ctx, msg, ev.Data.ContentID, err)
	}

	metrics.RecordVerdict(ActionAck)
	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.MessageAttributes(msg.MessageID, ev.EventID, ActionAck, msg.Attempt())...)
	logger.Info().
		Str(log.FieldChannelID, rec.ChannelID).
		Str(log.FieldNewStatus, string(rec.Status)).
		Msg("message acknowledged")
	return Verdict{Action: ActionAck}
}

// processWithDeadline bounds one delivery by the subscription's ack deadline.
// A verdict that arrives after the deadline is useless: the substrate has
// already redelivered the message, so the worker nacks preemptively instead
// of racing it.
func (w *Worker) processWithDeadline(ctx context.Context, ev *event.UploadCompleted) (*model.ChannelMetadata, error) {
	deadline := time.Duration(w.cfg.AckDeadlineSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type outcome struct {
		rec *model.ChannelMetadata
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := w.ProcessUpload(ctx, ev)
		done <- outcome{rec: rec, err: err}
	}()

	select {
	case out := <-done:
		return out.rec, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("processing %s exceeded ack deadline of %s: %w", ev.Data.ContentID, deadline, ctx.Err())
	}
}

// ProcessUpload provisions the event's content and publishes the
// playback-ready notification. The notification is re-published even when
// provisioning short-circuited on an already-ready record: a redelivered
// message may mean the previous publish never happened.
func (w *Worker) ProcessUpload(ctx context.Context, ev *event.UploadCompleted) (*model.ChannelMetadata, error) {
	rec, err := w.provisioner.ProvisionFromUpload(ctx, ev)
	if err != nil {
		return nil, err
	}

	expiresAt := model.Timestamp(w.now().Add(time.Duration(w.cfg.ManifestTTLSeconds) * time.Second))
	n := notify.PlaybackReady{
		Metadata:    *rec,
		ManifestURL: rec.PlaybackURL,
		ExpiresAt:   expiresAt,
	}
	if err := w.publisher.PublishPlaybackReady(ctx, n); err != nil {
		metrics.RecordNotifyPublish(false)
		return nil, fmt.Errorf("publish playback-ready for %s: %w", ev.Data.ContentID, err)
	}
	metrics.RecordNotifyPublish(true)
	return rec, nil
}

func (w *Worker) fail(ctx context.Context, msg event.PushMessage, contentID string, cause error) Verdict {
	alert.Emit(ctx, w.alerts, contentID, cause)

	logger := log.WithComponentFromContext(ctx, "worker")
	attempt := msg.Attempt()
	span := trace.SpanFromContext(ctx)
	errorType := "transient"
	if event.Permanent(cause) {
		errorType = "permanent"
	}
	span.SetAttributes(telemetry.ErrorAttributes(cause, errorType)...)
	if attempt >= w.cfg.MaxDeliveryAttempts {
		metrics.PoisonDropsTotal.Inc()
		metrics.RecordVerdict("poison")
		span.SetAttributes(telemetry.MessageAttributes(msg.MessageID, "", "poison", attempt)...)
		logger.Error().
			Err(cause).
			Str(log.FieldContentID, contentID).
			Int(log.FieldAttempt, attempt).
			Bool("permanent", event.Permanent(cause)).
			Msg("delivery budget exhausted, dropping message")
		return Verdict{Action: ActionAck}
	}

	metrics.RecordVerdict(ActionNack)
	span.SetAttributes(telemetry.MessageAttributes(msg.MessageID, "", ActionNack, attempt)...)
	logger.Warn().
		Err(cause).
		Str(log.FieldContentID, contentID).
		Int(log.FieldAttempt, attempt).
		Msg("nacking message for redelivery")
	return Verdict{Action: ActionNack, RetryInSeconds: w.cfg.AckDeadlineSeconds}
}

// peekContentID makes a best-effort attempt to extract the content ID from a
// message that failed strict decoding, so alerts can name the content when
// the bytes allow it.
func peekContentID(msg event.PushMessage) string {
	raw, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return ""
	}
	var ev event.UploadCompleted
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ""
	}
	return ev.Data.ContentID
}
