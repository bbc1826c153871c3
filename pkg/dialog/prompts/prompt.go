// Package prompts provides single-turn input collectors: each asks a
// question, recognizes the reply as a typed value, optionally validates it
// and re-asks until a value is accepted.
package prompts

import (
	"context"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/events"
)

// Recognized is the outcome of parsing one reply.
type Recognized[T any] struct {
	Succeeded bool
	Value     T
}

// Recognizer parses the turn's input.
type Recognizer[T any] func(ctx context.Context, tc *bot.TurnContext, opts dialog.PromptOptions) (Recognized[T], error)

// ValidatorContext is handed to validators.
type ValidatorContext[T any] struct {
	TurnContext *bot.TurnContext
	Recognized  Recognized[T]
	Options     dialog.PromptOptions
	// AttemptCount counts replies received by this prompt, including the
	// current one.
	AttemptCount int
}

// Validator accepts or rejects a reply. It runs whether or not recognition
// succeeded. A validator that sends its own message suppresses the retry
// prompt.
type Validator[T any] func(ctx context.Context, pc *ValidatorContext[T]) (bool, error)

type promptState struct {
	Options  dialog.PromptOptions `json:"options"`
	Attempts int                  `json:"attempts"`
}

// Prompt is a dialog that collects one value of type T. Rejected replies are
// answered with the retry prompt and the prompt keeps waiting; there is no
// retry limit.
type Prompt[T any] struct {
	dialog.Base
	recognize Recognizer[T]
	validator Validator[T]
	style     dialog.ListStyle
	choices   []dialog.Choice
}

// New creates a prompt from a recognizer and an optional validator.
func New[T any](id string, recognize Recognizer[T], validator Validator[T]) *Prompt[T] {
	return &Prompt[T]{
		Base:      dialog.NewBase(id),
		recognize: recognize,
		validator: validator,
	}
}

// WithStyle sets how choices are rendered when the options do not say.
func (p *Prompt[T]) WithStyle(style dialog.ListStyle) *Prompt[T] {
	p.style = style
	return p
}

func (p *Prompt[T]) BeginDialog(ctx context.Context, dc *dialog.DialogContext, options any) (dialog.DialogTurnResult, error) {
	opts, err := dialog.ToPromptOptions(options)
	if err != nil {
		return dialog.DialogTurnResult{}, err
	}
	if err := dialog.SaveState(dc.ActiveDialog(), promptState{Options: opts}); err != nil {
		return dialog.DialogTurnResult{}, err
	}
	if err := p.send(ctx, dc.TurnContext(), opts, false); err != nil {
		return dialog.DialogTurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *Prompt[T]) ContinueDialog(ctx context.Context, dc *dialog.DialogContext) (dialog.DialogTurnResult, error) {
	tc := dc.TurnContext()
	if !tc.Activity().IsMessage() {
		return dialog.EndOfTurn, nil
	}

	inst := dc.ActiveDialog()
	st, err := dialog.LoadState[promptState](inst)
	if err != nil {
		return dialog.DialogTurnResult{}, err
	}

	rec, err := p.recognize(ctx, tc, st.Options)
	if err != nil {
		return dialog.DialogTurnResult{}, err
	}
	st.Attempts++

	accepted := rec.Succeeded
	sent := len(tc.Responses())
	if p.validator != nil {
		accepted, err = p.validator(ctx, &ValidatorContext[T]{
			TurnContext:  tc,
			Recognized:   rec,
			Options:      st.Options,
			AttemptCount: st.Attempts,
		})
		if err != nil {
			return dialog.DialogTurnResult{}, err
		}
	}

	if accepted {
		return dc.EndDialog(ctx, rec.Value)
	}

	if err := dialog.SaveState(inst, st); err != nil {
		return dialog.DialogTurnResult{}, err
	}
	dc.Publisher().EmitAsync(ctx, events.PromptRetry, tc.ConversationID(), &events.PromptRetryData{
		DialogID: p.ID(),
		Attempts: st.Attempts,
		Input:    tc.Activity().Text,
	})
	// A validator that replied has already explained the rejection.
	if len(tc.Responses()) == sent {
		if err := p.send(ctx, tc, st.Options, true); err != nil {
			return dialog.DialogTurnResult{}, err
		}
	}
	return dialog.EndOfTurn, nil
}

// ResumeDialog re-asks the question; prompts never begin children, so a
// resume means something else was stacked on top of them.
func (p *Prompt[T]) ResumeDialog(ctx context.Context, dc *dialog.DialogContext, _ dialog.DialogReason, _ any) (dialog.DialogTurnResult, error) {
	if err := p.RepromptDialog(ctx, dc.TurnContext(), dc.ActiveDialog()); err != nil {
		return dialog.DialogTurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *Prompt[T]) RepromptDialog(ctx context.Context, tc *bot.TurnContext, inst *dialog.DialogInstance) error {
	st, err := dialog.LoadState[promptState](inst)
	if err != nil {
		return err
	}
	return p.send(ctx, tc, st.Options, false)
}

func (p *Prompt[T]) send(ctx context.Context, tc *bot.TurnContext, opts dialog.PromptOptions, retry bool) error {
	text := opts.Prompt
	if retry && opts.RetryPrompt != "" {
		text = opts.RetryPrompt
	}

	choices := opts.Choices
	if len(choices) == 0 {
		choices = p.choices
	}
	style := opts.Style
	if style == "" {
		style = p.style
	}

	if text == "" && len(choices) == 0 {
		return nil
	}
	return tc.SendActivity(ctx, renderChoices(text, choices, style))
}
