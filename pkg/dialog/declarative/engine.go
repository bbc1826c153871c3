package declarative

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/prompts"
	"github.com/voicetyped/botkit/pkg/hooks"
)

// HookCaller executes call_hook steps.
type HookCaller interface {
	Execute(ctx context.Context, cfg hooks.HookConfig, req hooks.HookRequest) (*hooks.HookResponse, error)
}

// BuildOption configures how definitions are turned into dialogs.
type BuildOption func(*builder)

// WithHooks sets the executor for call_hook steps. Without one those steps
// are skipped.
func WithHooks(h HookCaller) BuildOption {
	return func(b *builder) { b.hooks = h }
}

type builder struct {
	def   *Definition
	hooks HookCaller
}

// PromptID returns the id of the shared prompt dialog for a prompt kind.
func PromptID(kind string) string { return "declarative." + kind + "_prompt" }

// Build registers d as a waterfall on set, together with the prompt dialogs
// its steps use. Each step stores the result of the step before it under
// that step's save_as name.
func (d *Definition) Build(set *dialog.DialogSet, opts ...BuildOption) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b := &builder{def: d}
	for _, opt := range opts {
		opt(b)
	}

	for _, s := range d.Steps {
		if s.Type != StepPrompt {
			continue
		}
		if err := ensurePrompt(set, s.Prompt); err != nil {
			return err
		}
	}

	steps := make([]dialog.Step[Values], 0, len(d.Steps)+1)
	for i := range d.Steps {
		steps = append(steps, b.step(i))
	}
	steps = append(steps, b.finish)

	if err := set.TryAdd(dialog.NewWaterfall(d.Name, steps...)); err != nil {
		return fmt.Errorf("register dialog %q: %w", d.Name, err)
	}
	return nil
}

func ensurePrompt(set *dialog.DialogSet, kind string) error {
	id := PromptID(kind)
	if _, ok := set.Find(id); ok {
		return nil
	}

	var p dialog.Dialog
	switch kind {
	case PromptText:
		p = prompts.NewTextPrompt(id, nil)
	case PromptNumber:
		p = prompts.NewNumberPrompt(id, prompts.RangeValidator[float64]())
	case PromptChoice:
		p = prompts.NewChoicePrompt(id, nil)
	case PromptConfirm:
		p = prompts.NewConfirmPrompt(id, nil)
	case PromptDateTime:
		p = prompts.NewDateTimePrompt(id, nil)
	default:
		return fmt.Errorf("unknown prompt kind %q", kind)
	}
	return set.TryAdd(p)
}

// absorb prepares the values for step i: the first step seeds them from the
// definition defaults and the begin options, later steps store the previous
// step's result.
func (b *builder) absorb(sc *dialog.StepContext[Values], i int) error {
	if *sc.Values == nil {
		*sc.Values = make(Values, len(b.def.Values))
	}
	if i == 0 {
		maps.Copy(*sc.Values, b.def.Values)
		var opts map[string]any
		if err := sc.Options(&opts); err != nil {
			return fmt.Errorf("dialog %q options: %w", b.def.Name, err)
		}
		maps.Copy(*sc.Values, opts)
		return nil
	}
	if prev := b.def.Steps[i-1]; prev.SaveAs != "" && sc.Result != nil {
		(*sc.Values)[prev.SaveAs] = plainResult(sc.Result)
	}
	return nil
}

// plainResult turns prompt results into template friendly values.
func plainResult(v any) any {
	switch r := v.(type) {
	case prompts.FoundChoice:
		return r.Value
	case []prompts.DateTimeResolution:
		if len(r) == 0 {
			return nil
		}
		return r[0].ISO
	default:
		return v
	}
}

func (b *builder) data(sc *dialog.StepContext[Values]) templateData {
	return templateData{
		Values: *sc.Values,
		Result: sc.Result,
		Text:   sc.TurnContext().Activity().Text,
	}
}

func (b *builder) step(i int) dialog.Step[Values] {
	s := b.def.Steps[i]
	return func(ctx context.Context, sc *dialog.StepContext[Values]) (dialog.DialogTurnResult, error) {
		if err := b.absorb(sc, i); err != nil {
			return dialog.DialogTurnResult{}, err
		}
		data := b.data(sc)

		run, err := evalCondition(s.When, data)
		if err != nil {
			return dialog.DialogTurnResult{}, b.stepErr(i, "when", err)
		}
		if !run {
			return sc.Next(ctx, nil)
		}

		switch s.Type {
		case StepPrompt:
			opts, err := b.promptOptions(s, data)
			if err != nil {
				return dialog.DialogTurnResult{}, b.stepErr(i, "prompt", err)
			}
			return sc.Prompt(ctx, PromptID(s.Prompt), opts)

		case StepSend:
			text, err := render(s.Text, data)
			if err != nil {
				return dialog.DialogTurnResult{}, b.stepErr(i, "text", err)
			}
			if err := sc.SendText(ctx, text); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.Next(ctx, nil)

		case StepBeginDialog, StepReplaceDialog:
			rendered, err := renderOptions(s.Options, data)
			if err != nil {
				return dialog.DialogTurnResult{}, b.stepErr(i, "options", err)
			}
			var opts any
			if rendered != nil {
				opts = rendered
			}
			if s.Type == StepReplaceDialog {
				return sc.ReplaceDialog(ctx, s.Dialog, opts)
			}
			return sc.BeginDialog(ctx, s.Dialog, opts)

		case StepCallHook:
			return b.callHook(ctx, sc, i)

		case StepSet:
			for k, tmpl := range s.Set {
				v, err := render(tmpl, data)
				if err != nil {
					return dialog.DialogTurnResult{}, b.stepErr(i, "set "+k, err)
				}
				(*sc.Values)[k] = v
			}
			return sc.Next(ctx, nil)

		case StepEnd:
			if s.Result == "" {
				return sc.EndDialog(ctx, maps.Clone(*sc.Values))
			}
			result, err := render(s.Result, data)
			if err != nil {
				return dialog.DialogTurnResult{}, b.stepErr(i, "result", err)
			}
			return sc.EndDialog(ctx, result)
		}
		return dialog.DialogTurnResult{}, b.stepErr(i, "type", fmt.Errorf("unknown step type %q", s.Type))
	}
}

// finish stores the last step's result and ends with the values.
func (b *builder) finish(ctx context.Context, sc *dialog.StepContext[Values]) (dialog.DialogTurnResult, error) {
	if err := b.absorb(sc, len(b.def.Steps)); err != nil {
		return dialog.DialogTurnResult{}, err
	}
	return sc.EndDialog(ctx, maps.Clone(*sc.Values))
}

func (b *builder) promptOptions(s Step, data templateData) (dialog.PromptOptions, error) {
	text, err := render(s.Text, data)
	if err != nil {
		return dialog.PromptOptions{}, err
	}
	retry, err := render(s.Retry, data)
	if err != nil {
		return dialog.PromptOptions{}, err
	}
	opts := dialog.PromptOptions{
		Prompt:      text,
		RetryPrompt: retry,
		Style:       dialog.ListStyle(s.Style),
	}
	if len(s.Choices) > 0 {
		opts.Choices = dialog.Choices(s.Choices...)
	}
	if s.Min != nil || s.Max != nil {
		opts = opts.WithValidations(prompts.NumberRange{Min: s.Min, Max: s.Max})
	}
	return opts, nil
}

func renderOptions(options map[string]any, data templateData) (map[string]any, error) {
	if len(options) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(options))
	for k, v := range options {
		str, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		rendered, err := render(str, data)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}

// callHook runs a call_hook step. Hook failures are logged and the dialog
// moves on without a result.
func (b *builder) callHook(ctx context.Context, sc *dialog.StepContext[Values], i int) (dialog.DialogTurnResult, error) {
	s := b.def.Steps[i]
	if b.hooks == nil {
		slog.WarnContext(ctx, "call_hook skipped: no hook executor configured",
			slog.String("dialog", b.def.Name), slog.Int("step", i))
		return sc.Next(ctx, nil)
	}

	in := sc.TurnContext().Activity()
	req := hooks.HookRequest{
		ConversationID: in.Conversation.ID,
		ChannelID:      in.ChannelID,
		UserID:         in.From.ID,
		DialogID:       b.def.Name,
		Step:           i,
		Text:           in.Text,
		Values:         maps.Clone(*sc.Values),
	}
	resp, err := b.hooks.Execute(ctx, *s.Hook, req)
	if err != nil {
		slog.WarnContext(ctx, "call_hook failed",
			slog.String("dialog", b.def.Name),
			slog.Int("step", i),
			slog.String("error", err.Error()))
		return sc.Next(ctx, nil)
	}

	maps.Copy(*sc.Values, resp.Values)
	if resp.Reply != "" {
		if err := sc.SendText(ctx, resp.Reply); err != nil {
			return dialog.DialogTurnResult{}, err
		}
	}
	if resp.Data == nil {
		return sc.Next(ctx, nil)
	}
	return sc.Next(ctx, resp.Data)
}

func (b *builder) stepErr(i int, field string, err error) error {
	return fmt.Errorf("dialog %q step %d %s: %w", b.def.Name, i, field, err)
}
