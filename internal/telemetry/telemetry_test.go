package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/events"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(t.Context(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation is %T", data)
	}
	var n int64
	for _, dp := range s.DataPoints {
		n += dp.Value
	}
	return n
}

func envelope(t *testing.T, et events.EventType, data any) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return events.Envelope{Type: et, Data: raw}
}

func TestRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	rec, err := NewRecorder(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	tc := bot.NewTurnContext(activity.Activity{Type: activity.TypeMessage, ChannelID: "test"})
	rec.TurnProcessed(t.Context(), tc, 12*time.Millisecond, nil)
	rec.TurnProcessed(t.Context(), tc, 3*time.Millisecond, errors.New("boom"))

	ch := make(chan events.Envelope, 4)
	ch <- envelope(t, events.DialogStarted, events.DialogStartedData{DialogID: "reserve", Depth: 1})
	ch <- envelope(t, events.PromptRetry, events.PromptRetryData{DialogID: "number", Attempts: 1})
	ch <- envelope(t, events.DialogEnded, events.DialogEndedData{DialogID: "reserve", Reason: "endCalled"})
	ch <- envelope(t, events.TurnCompleted, events.TurnData{})
	close(ch)
	rec.Observe(context.Background(), ch)

	got := collect(t, reader)
	if n := sum(t, got["botkit.turns"]); n != 2 {
		t.Errorf("turns = %d, want 2", n)
	}
	if n := sum(t, got["botkit.dialog.begins"]); n != 1 {
		t.Errorf("dialog begins = %d, want 1", n)
	}
	if n := sum(t, got["botkit.dialog.ends"]); n != 1 {
		t.Errorf("dialog ends = %d, want 1", n)
	}
	if n := sum(t, got["botkit.prompt.retries"]); n != 1 {
		t.Errorf("prompt retries = %d, want 1", n)
	}
	h, ok := got["botkit.turn.duration"].(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) != 2 {
		t.Fatalf("turn duration = %#v", got["botkit.turn.duration"])
	}
}

func TestObserveStopsOnContext(t *testing.T) {
	rec, err := NewRecorder(nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		rec.Observe(ctx, make(chan events.Envelope))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe did not return after cancel")
	}
}
