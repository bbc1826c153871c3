package dialog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voicetyped/botkit/pkg/bot"
)

// Step is one step of a waterfall over values of type S.
type Step[S any] func(ctx context.Context, sc *StepContext[S]) (DialogTurnResult, error)

// waterfallState is the persisted state of a waterfall instance. Step is the
// index of the step that ran last; the next resume runs Step+1.
type waterfallState[S any] struct {
	Step    int             `json:"step"`
	Values  S               `json:"values"`
	Options json.RawMessage `json:"options,omitempty"`
}

// Waterfall runs an ordered list of steps, one or more per turn, threading
// typed values between them.
type Waterfall[S any] struct {
	Base
	steps []Step[S]
}

// NewWaterfall creates a waterfall dialog.
func NewWaterfall[S any](id string, steps ...Step[S]) *Waterfall[S] {
	return &Waterfall[S]{Base: NewBase(id), steps: steps}
}

// AddStep appends a step. Only call it before the dialog is registered.
func (w *Waterfall[S]) AddStep(step Step[S]) *Waterfall[S] {
	w.steps = append(w.steps, step)
	return w
}

// Len returns the number of steps.
func (w *Waterfall[S]) Len() int { return len(w.steps) }

func (w *Waterfall[S]) BeginDialog(ctx context.Context, dc *DialogContext, options any) (DialogTurnResult, error) {
	raw, err := encodeOptions(options)
	if err != nil {
		return DialogTurnResult{}, fmt.Errorf("waterfall %q options: %w", w.ID(), err)
	}
	st := &waterfallState[S]{Step: -1, Options: raw}
	return w.runStep(ctx, dc, st, 0, ReasonBeginCalled, nil)
}

// ContinueDialog resumes a waterfall that suspended with EndOfTurn. The raw
// text of the message becomes the next step's result.
func (w *Waterfall[S]) ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error) {
	in := dc.TurnContext().Activity()
	if !in.IsMessage() {
		return EndOfTurn, nil
	}
	return w.ResumeDialog(ctx, dc, ReasonContinueCalled, in.Text)
}

// ResumeDialog runs the step after the one that suspended.
func (w *Waterfall[S]) ResumeDialog(ctx context.Context, dc *DialogContext, reason DialogReason, result any) (DialogTurnResult, error) {
	st, err := LoadState[*waterfallState[S]](dc.ActiveDialog())
	if err != nil {
		return DialogTurnResult{}, err
	}
	if st == nil {
		st = &waterfallState[S]{Step: -1}
	}
	return w.runStep(ctx, dc, st, st.Step+1, reason, result)
}

func (w *Waterfall[S]) runStep(ctx context.Context, dc *DialogContext, st *waterfallState[S], index int, reason DialogReason, result any) (DialogTurnResult, error) {
	if index >= len(w.steps) {
		return dc.EndDialog(ctx, result)
	}

	st.Step = index
	if err := SaveState(dc.ActiveDialog(), st); err != nil {
		return DialogTurnResult{}, err
	}

	sc := &StepContext[S]{
		Index:  index,
		Reason: reason,
		Result: result,
		Values: &st.Values,
		dc:     dc,
		w:      w,
		state:  st,
	}

	res, err := w.steps[index](ctx, sc)
	if err != nil {
		return DialogTurnResult{}, err
	}
	if !sc.detached {
		if err := sc.commit(); err != nil {
			return DialogTurnResult{}, err
		}
	}
	return res, nil
}

// StepContext is handed to each step. Values changes are persisted before
// control leaves the waterfall.
type StepContext[S any] struct {
	// Index is the position of the running step.
	Index int
	// Reason says how the step was reached.
	Reason DialogReason
	// Result is the previous step's result, the value a prompt recognized or
	// a child dialog returned.
	Result any
	// Values is the waterfall's typed state.
	Values *S

	dc       *DialogContext
	w        *Waterfall[S]
	state    *waterfallState[S]
	detached bool
}

// Context returns the dialog context.
func (sc *StepContext[S]) Context() *DialogContext { return sc.dc }

// TurnContext returns the current turn.
func (sc *StepContext[S]) TurnContext() *bot.TurnContext { return sc.dc.TurnContext() }

// Options decodes the options the waterfall was begun with into v.
func (sc *StepContext[S]) Options(v any) error {
	if len(sc.state.Options) == 0 {
		return nil
	}
	return codec.Unmarshal(sc.state.Options, v)
}

// SendText sends a message to the user.
func (sc *StepContext[S]) SendText(ctx context.Context, text string) error {
	return sc.dc.TurnContext().SendText(ctx, text)
}

// Sendf sends a formatted message to the user.
func (sc *StepContext[S]) Sendf(ctx context.Context, format string, args ...any) error {
	return sc.dc.TurnContext().Sendf(ctx, format, args...)
}

// commit writes the step state into the waterfall's instance, which must be
// on top of the stack.
func (sc *StepContext[S]) commit() error {
	inst := sc.dc.ActiveDialog()
	if inst == nil || inst.ID != sc.w.ID() {
		return nil
	}
	return SaveState(inst, sc.state)
}

func (sc *StepContext[S]) detach() error {
	if sc.detached {
		return fmt.Errorf("waterfall %q step %d: control already transferred", sc.w.ID(), sc.Index)
	}
	if err := sc.commit(); err != nil {
		return err
	}
	sc.detached = true
	return nil
}

// Next skips to the following step within the same turn.
func (sc *StepContext[S]) Next(ctx context.Context, result any) (DialogTurnResult, error) {
	if err := sc.detach(); err != nil {
		return DialogTurnResult{}, err
	}
	return sc.w.runStep(ctx, sc.dc, sc.state, sc.Index+1, ReasonNextCalled, result)
}

// Prompt begins a prompt. Its recognized value becomes the next step's Result.
func (sc *StepContext[S]) Prompt(ctx context.Context, id string, options PromptOptions) (DialogTurnResult, error) {
	return sc.BeginDialog(ctx, id, options)
}

// BeginDialog begins a child. Its result becomes the next step's Result.
func (sc *StepContext[S]) BeginDialog(ctx context.Context, id string, options any) (DialogTurnResult, error) {
	if err := sc.detach(); err != nil {
		return DialogTurnResult{}, err
	}
	return sc.dc.BeginDialog(ctx, id, options)
}

// ReplaceDialog ends the waterfall and begins id in its place.
func (sc *StepContext[S]) ReplaceDialog(ctx context.Context, id string, options any) (DialogTurnResult, error) {
	if err := sc.detach(); err != nil {
		return DialogTurnResult{}, err
	}
	return sc.dc.ReplaceDialog(ctx, id, options)
}

// EndDialog ends the waterfall with result.
func (sc *StepContext[S]) EndDialog(ctx context.Context, result any) (DialogTurnResult, error) {
	if err := sc.detach(); err != nil {
		return DialogTurnResult{}, err
	}
	return sc.dc.EndDialog(ctx, result)
}

// EndOfTurn suspends the waterfall without a prompt. The next message's text
// becomes the following step's Result.
func (sc *StepContext[S]) EndOfTurn() (DialogTurnResult, error) {
	return EndOfTurn, nil
}
