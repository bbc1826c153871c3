package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/events"
)

// ApologyText is sent when a turn fails with an unexpected error.
const ApologyText = "Sorry, it looks like something went wrong."

var tracer = otel.Tracer("github.com/voicetyped/botkit/pkg/bot")

// Handler reacts to one turn.
type Handler interface {
	OnTurn(ctx context.Context, tc *TurnContext) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tc *TurnContext) error

func (f HandlerFunc) OnTurn(ctx context.Context, tc *TurnContext) error { return f(ctx, tc) }

// Next runs the remainder of the pipeline.
type Next func(ctx context.Context) error

// Middleware wraps the turn pipeline.
type Middleware interface {
	OnTurn(ctx context.Context, tc *TurnContext, next Next) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, tc *TurnContext, next Next) error

func (f MiddlewareFunc) OnTurn(ctx context.Context, tc *TurnContext, next Next) error {
	return f(ctx, tc, next)
}

// TurnErrorHandler is called with the error of a failed turn.
type TurnErrorHandler func(ctx context.Context, tc *TurnContext, err error)

// TurnObserver is notified about every processed turn.
type TurnObserver interface {
	TurnProcessed(ctx context.Context, tc *TurnContext, elapsed time.Duration, err error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTurnErrorHandler replaces the default log-and-apologise handler. A nil
// handler makes ProcessActivity return turn errors to the caller.
func WithTurnErrorHandler(h TurnErrorHandler) Option {
	return func(a *Adapter) { a.onTurnError = h }
}

// WithPublisher emits turn events.
func WithPublisher(p *events.Publisher) Option {
	return func(a *Adapter) { a.publisher = p }
}

// WithObserver registers a turn observer such as a metrics recorder.
func WithObserver(o TurnObserver) Option {
	return func(a *Adapter) { a.observers = append(a.observers, o) }
}

// Adapter runs turns: it serialises turns per conversation, runs the
// middleware chain and the handler, and reports failures.
type Adapter struct {
	middleware  []Middleware
	onTurnError TurnErrorHandler
	publisher   *events.Publisher
	observers   []TurnObserver
	locks       *keyedMutex
}

// NewAdapter creates an adapter with the default error handler.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		onTurnError: DefaultTurnErrorHandler,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Use appends middleware. Middleware runs in registration order.
func (a *Adapter) Use(mw ...Middleware) *Adapter {
	a.middleware = append(a.middleware, mw...)
	return a
}

// ProcessActivity runs one turn for in and returns the replies it produced.
// Invalid activities are rejected before any processing. Turn errors are
// handed to the error handler and only returned when none is configured.
func (a *Adapter) ProcessActivity(ctx context.Context, in activity.Activity, h Handler) ([]activity.Activity, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	unlock := a.locks.Lock(in.ChannelID + "/" + in.Conversation.ID)
	defer unlock()

	ctx, span := tracer.Start(ctx, "bot.turn", trace.WithAttributes(
		attribute.String("bot.channel_id", in.ChannelID),
		attribute.String("bot.conversation_id", in.Conversation.ID),
		attribute.String("bot.activity_type", string(in.Type)),
	))
	defer span.End()

	tc := NewTurnContext(in)
	start := time.Now()
	err := a.run(ctx, tc, 0, h)
	elapsed := time.Since(start)

	for _, o := range a.observers {
		o.TurnProcessed(ctx, tc, elapsed, err)
	}

	data := &events.TurnData{
		ChannelID:  in.ChannelID,
		ActivityID: in.ID,
		DurationMs: elapsed.Milliseconds(),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		data.Error = err.Error()

		if a.onTurnError == nil {
			data.Replies = len(tc.Responses())
			a.publisher.EmitAsync(ctx, events.TurnFailed, in.Conversation.ID, data)
			return tc.Responses(), err
		}
		a.onTurnError(ctx, tc, err)
		data.Replies = len(tc.Responses())
		a.publisher.EmitAsync(ctx, events.TurnFailed, in.Conversation.ID, data)
		return tc.Responses(), nil
	}

	data.Replies = len(tc.Responses())
	a.publisher.EmitAsync(ctx, events.TurnCompleted, in.Conversation.ID, data)
	return tc.Responses(), nil
}

func (a *Adapter) run(ctx context.Context, tc *TurnContext, i int, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in turn: %v", r)
		}
	}()

	if i == len(a.middleware) {
		if h == nil {
			return nil
		}
		return h.OnTurn(ctx, tc)
	}
	return a.middleware[i].OnTurn(ctx, tc, func(ctx context.Context) error {
		return a.run(ctx, tc, i+1, h)
	})
}

// DefaultTurnErrorHandler logs the error and sends a generic apology.
func DefaultTurnErrorHandler(ctx context.Context, tc *TurnContext, err error) {
	slog.ErrorContext(ctx, "turn failed",
		slog.String("conversation_id", tc.ConversationID()),
		slog.String("activity_id", tc.Activity().ID),
		slog.String("error", err.Error()))

	if sendErr := tc.SendText(ctx, ApologyText); sendErr != nil {
		slog.ErrorContext(ctx, "send apology failed", slog.String("error", sendErr.Error()))
	}
}
