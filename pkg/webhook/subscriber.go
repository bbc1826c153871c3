package webhook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	"github.com/voicetyped/botkit/pkg/events"
)

// Subscriber routes events to the endpoints subscribed to them. It
// implements frame's queue.SubscribeWorker.
type Subscriber struct {
	Endpoints []Endpoint
	Deliverer *Deliverer
	Pool      workerpool.WorkerPool
}

// Handle is called by frame's pub/sub for each event message.
func (ws *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("webhook subscriber: unmarshal envelope")
		return err
	}
	ws.Dispatch(ctx, env)
	return nil
}

// Dispatch starts one delivery per matching endpoint.
func (ws *Subscriber) Dispatch(ctx context.Context, env events.Envelope) {
	for _, ep := range ws.Endpoints {
		if !ep.Matches(env.Type) {
			continue
		}
		deliver := func() {
			if err := ws.Deliverer.Deliver(ctx, ep, env); err != nil {
				util.Log(ctx).WithError(err).
					WithField("endpoint_id", ep.ID).
					WithField("event_id", env.ID).
					Warn("webhook delivery failed")
			}
		}
		if ws.Pool != nil {
			if err := ws.Pool.Submit(ctx, deliver); err != nil {
				slog.WarnContext(ctx, "webhook pool full", slog.String("endpoint_id", ep.ID))
			}
		} else {
			go deliver()
		}
	}
}

// Forward dispatches events from a local publisher subscription until ctx is
// done or the channel closes. It serves deployments without a queue.
func (ws *Subscriber) Forward(ctx context.Context, ch <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			ws.Dispatch(ctx, env)
		}
	}
}
