package declarative

import (
	"errors"
	"fmt"

	"github.com/voicetyped/botkit/pkg/dialog"
)

// ErrInvalidDefinition wraps every validation failure.
var ErrInvalidDefinition = errors.New("invalid dialog definition")

func invalid(d *Definition, i int, format string, args ...any) error {
	return fmt.Errorf("%w: dialog %q step %d: %s", ErrInvalidDefinition, d.Name, i, fmt.Sprintf(format, args...))
}

// Validate checks the definition for consistency and parses its templates.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: dialog %q has no steps", ErrInvalidDefinition, d.Name)
	}

	for i, s := range d.Steps {
		if err := s.validate(d, i); err != nil {
			return err
		}
		for _, tmpl := range s.templates() {
			if err := checkTemplate(tmpl); err != nil {
				return invalid(d, i, "template %q: %v", tmpl, err)
			}
		}
	}
	return nil
}

func (s Step) validate(d *Definition, i int) error {
	switch s.Type {
	case StepPrompt:
		switch s.Prompt {
		case PromptText, PromptNumber, PromptConfirm, PromptDateTime:
		case PromptChoice:
			if len(s.Choices) == 0 {
				return invalid(d, i, "choice prompt needs choices")
			}
		default:
			return invalid(d, i, "unknown prompt kind %q", s.Prompt)
		}
		if s.Text == "" {
			return invalid(d, i, "prompt text is required")
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return invalid(d, i, "min %v exceeds max %v", *s.Min, *s.Max)
		}
		switch dialog.ListStyle(s.Style) {
		case "", dialog.ListStyleNone, dialog.ListStyleInline, dialog.ListStyleList, dialog.ListStyleSuggestedActions:
		default:
			return invalid(d, i, "unknown list style %q", s.Style)
		}
	case StepSend:
		if s.Text == "" {
			return invalid(d, i, "send needs text")
		}
	case StepBeginDialog, StepReplaceDialog:
		if s.Dialog == "" {
			return invalid(d, i, "%s needs a dialog", s.Type)
		}
	case StepCallHook:
		if s.Hook == nil || s.Hook.URL == "" {
			return invalid(d, i, "call_hook needs hook.url")
		}
	case StepSet:
		if len(s.Set) == 0 {
			return invalid(d, i, "set needs at least one value")
		}
	case StepEnd:
	default:
		return invalid(d, i, "unknown step type %q", s.Type)
	}
	return nil
}

// templates lists the template strings of a step.
func (s Step) templates() []string {
	out := []string{s.When, s.Text, s.Retry, s.Result}
	for _, v := range s.Set {
		out = append(out, v)
	}
	for _, v := range s.Options {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out
}
