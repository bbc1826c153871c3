package dialog

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

var codec = sonic.ConfigStd

// ListStyle selects how choices are rendered.
type ListStyle string

const (
	ListStyleNone             ListStyle = "none"
	ListStyleInline           ListStyle = "inline"
	ListStyleList             ListStyle = "list"
	ListStyleSuggestedActions ListStyle = "suggested_actions"
)

// Choice is one option of a choice prompt.
type Choice struct {
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Choices builds choices from plain values.
func Choices(values ...string) []Choice {
	out := make([]Choice, len(values))
	for i, v := range values {
		out[i] = Choice{Value: v}
	}
	return out
}

// PromptOptions configures one prompt invocation. It is persisted with the
// prompt instance.
type PromptOptions struct {
	Prompt      string          `json:"prompt,omitempty"`
	RetryPrompt string          `json:"retry_prompt,omitempty"`
	Choices     []Choice        `json:"choices,omitempty"`
	Style       ListStyle       `json:"style,omitempty"`
	Validations json.RawMessage `json:"validations,omitempty"`
}

// WithValidations returns a copy of o carrying v as validation settings.
func (o PromptOptions) WithValidations(v any) PromptOptions {
	raw, err := codec.Marshal(v)
	if err == nil {
		o.Validations = raw
	}
	return o
}

// DecodeValidations decodes the validation settings into v.
func (o PromptOptions) DecodeValidations(v any) error {
	if len(o.Validations) == 0 {
		return nil
	}
	return codec.Unmarshal(o.Validations, v)
}

// ToPromptOptions accepts the forms prompt options are passed in.
func ToPromptOptions(options any) (PromptOptions, error) {
	switch o := options.(type) {
	case nil:
		return PromptOptions{}, nil
	case PromptOptions:
		return o, nil
	case *PromptOptions:
		if o == nil {
			return PromptOptions{}, nil
		}
		return *o, nil
	case string:
		return PromptOptions{Prompt: o}, nil
	default:
		return PromptOptions{}, fmt.Errorf("unsupported prompt options %T", options)
	}
}

// LoadState decodes the private state of an instance.
func LoadState[T any](inst *DialogInstance) (T, error) {
	var v T
	if inst == nil || len(inst.State) == 0 {
		return v, nil
	}
	if err := codec.Unmarshal(inst.State, &v); err != nil {
		return v, fmt.Errorf("decode state of %q: %w", inst.ID, err)
	}
	return v, nil
}

// SaveState encodes v as the private state of an instance.
func SaveState(inst *DialogInstance, v any) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state of %q: %w", inst.ID, err)
	}
	inst.State = raw
	return nil
}

func encodeOptions(options any) (json.RawMessage, error) {
	if options == nil {
		return nil, nil
	}
	if raw, ok := options.(json.RawMessage); ok {
		return raw, nil
	}
	return codec.Marshal(options)
}
