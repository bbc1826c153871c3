package recognizer

import (
	"context"
	"log/slog"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
)

const resultKey = "recognizer.result"

// DefaultMinScore is the score an intent needs before it is dispatched.
const DefaultMinScore = 0.5

// FromTurn returns the result the dispatcher recognized for this turn.
func FromTurn(tc *bot.TurnContext) (Result, bool) {
	v, ok := tc.Get(resultKey)
	if !ok {
		return Result{}, false
	}
	r, ok := v.(Result)
	return r, ok
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMinScore sets the score an intent needs to be dispatched.
func WithMinScore(score float64) DispatcherOption {
	return func(d *Dispatcher) { d.minScore = score }
}

// WithFallback sets the message sent when no route wins.
func WithFallback(text string) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = text }
}

// Dispatcher runs every recognizer, merges their scores and begins the
// dialog routed to the highest scoring intent.
type Dispatcher struct {
	recognizers []Recognizer
	routes      map[string]string
	minScore    float64
	fallback    string
}

// NewDispatcher creates a dispatcher over the given recognizers.
func NewDispatcher(recognizers []Recognizer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		recognizers: recognizers,
		routes:      make(map[string]string),
		minScore:    DefaultMinScore,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Route sends intent to dialogID.
func (d *Dispatcher) Route(intent, dialogID string) *Dispatcher {
	d.routes[intent] = dialogID
	return d
}

// Recognize merges the results of all recognizers, keeping the highest
// score per intent. A failing recognizer is logged and skipped.
func (d *Dispatcher) Recognize(ctx context.Context, text string) Result {
	res := Result{Text: text, Intents: map[string]float64{}}
	for _, r := range d.recognizers {
		got, err := r.Recognize(ctx, text)
		if err != nil {
			slog.WarnContext(ctx, "recognizer failed", slog.String("error", err.Error()))
			continue
		}
		merge(&res, got)
	}
	return res
}

// Dispatch recognizes the turn's text and begins the routed dialog with the
// recognized entities as options. Without a winning route it sends the
// fallback message and reports an empty stack.
func (d *Dispatcher) Dispatch(ctx context.Context, dc *dialog.DialogContext) (dialog.DialogTurnResult, error) {
	tc := dc.TurnContext()
	res := d.Recognize(ctx, tc.Activity().Text)
	tc.Set(resultKey, res)

	if id, ok := d.pick(res); ok {
		var opts any
		if len(res.Entities) > 0 {
			opts = res.Entities
		}
		return dc.BeginDialog(ctx, id, opts)
	}

	if d.fallback != "" {
		if err := tc.SendText(ctx, d.fallback); err != nil {
			return dialog.DialogTurnResult{}, err
		}
	}
	return dialog.DialogTurnResult{Status: dialog.StatusEmpty}, nil
}

// pick returns the route of the best scoring routed intent.
func (d *Dispatcher) pick(res Result) (string, bool) {
	routed := Result{Intents: make(map[string]float64, len(res.Intents))}
	for name, s := range res.Intents {
		if _, ok := d.routes[name]; ok {
			routed.Intents[name] = s
		}
	}
	intent, _, ok := routed.TopIntent(d.minScore)
	if !ok {
		return "", false
	}
	return d.routes[intent], true
}
