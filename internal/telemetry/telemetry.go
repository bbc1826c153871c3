// Package telemetry records OpenTelemetry metrics for turns, dialog starts
// and prompt retries.
package telemetry

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/events"
)

const instrumentationName = "github.com/voicetyped/botkit"

// Recorder implements bot.TurnObserver and counts dialog events read from a
// local publisher subscription.
type Recorder struct {
	turns        metric.Int64Counter
	turnDuration metric.Float64Histogram
	dialogBegins metric.Int64Counter
	dialogEnds   metric.Int64Counter
	retries      metric.Int64Counter
}

var _ bot.TurnObserver = (*Recorder)(nil)

// NewRecorder creates the instruments on mp, or on the global provider when
// mp is nil.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	r := &Recorder{}
	var err error
	if r.turns, err = meter.Int64Counter("botkit.turns",
		metric.WithDescription("Processed turns by channel and outcome.")); err != nil {
		return nil, err
	}
	if r.turnDuration, err = meter.Float64Histogram("botkit.turn.duration",
		metric.WithDescription("Turn processing time."),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if r.dialogBegins, err = meter.Int64Counter("botkit.dialog.begins",
		metric.WithDescription("Dialogs pushed onto a stack.")); err != nil {
		return nil, err
	}
	if r.dialogEnds, err = meter.Int64Counter("botkit.dialog.ends",
		metric.WithDescription("Dialogs popped from a stack by reason.")); err != nil {
		return nil, err
	}
	if r.retries, err = meter.Int64Counter("botkit.prompt.retries",
		metric.WithDescription("Prompt inputs rejected by recognition or validation.")); err != nil {
		return nil, err
	}
	return r, nil
}

// TurnProcessed records one turn.
func (r *Recorder) TurnProcessed(ctx context.Context, tc *bot.TurnContext, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("channel_id", tc.Activity().ChannelID),
		attribute.String("outcome", outcome),
	)
	r.turns.Add(ctx, 1, attrs)
	r.turnDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// Observe counts dialog events from ch until it is closed or ctx is done.
func (r *Recorder) Observe(ctx context.Context, ch <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			r.record(ctx, env)
		}
	}
}

func (r *Recorder) record(ctx context.Context, env events.Envelope) {
	switch env.Type {
	case events.DialogStarted:
		var d events.DialogStartedData
		if sonic.Unmarshal(env.Data, &d) == nil {
			r.dialogBegins.Add(ctx, 1, metric.WithAttributes(attribute.String("dialog_id", d.DialogID)))
		}
	case events.DialogEnded:
		var d events.DialogEndedData
		if sonic.Unmarshal(env.Data, &d) == nil {
			r.dialogEnds.Add(ctx, 1, metric.WithAttributes(
				attribute.String("dialog_id", d.DialogID),
				attribute.String("reason", d.Reason)))
		}
	case events.PromptRetry:
		var d events.PromptRetryData
		if sonic.Unmarshal(env.Data, &d) == nil {
			r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("dialog_id", d.DialogID)))
		}
	}
}
