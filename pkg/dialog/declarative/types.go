// Package declarative builds waterfall dialogs from YAML definitions and
// reloads them when the files change.
package declarative

import "github.com/voicetyped/botkit/pkg/hooks"

// Step types.
const (
	StepPrompt        = "prompt"
	StepSend          = "send"
	StepBeginDialog   = "begin_dialog"
	StepReplaceDialog = "replace_dialog"
	StepCallHook      = "call_hook"
	StepSet           = "set"
	StepEnd           = "end"
)

// Prompt kinds.
const (
	PromptText     = "text"
	PromptNumber   = "number"
	PromptChoice   = "choice"
	PromptConfirm  = "confirm"
	PromptDateTime = "datetime"
)

// Definition is a YAML-mappable waterfall dialog.
type Definition struct {
	Name        string         `yaml:"name"        json:"name"`
	Version     string         `yaml:"version"     json:"version,omitempty"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Values      map[string]any `yaml:"values"      json:"values,omitempty"`
	Steps       []Step         `yaml:"steps"       json:"steps"`
}

// Step is one step of a declarative waterfall. Which fields apply depends
// on Type.
type Step struct {
	Type string `yaml:"type" json:"type"`
	// When is a template; the step is skipped if it renders empty or false.
	When string `yaml:"when" json:"when,omitempty"`

	// prompt
	Prompt  string   `yaml:"prompt"  json:"prompt,omitempty"`
	Text    string   `yaml:"text"    json:"text,omitempty"`
	Retry   string   `yaml:"retry"   json:"retry,omitempty"`
	Choices []string `yaml:"choices" json:"choices,omitempty"`
	Style   string   `yaml:"style"   json:"style,omitempty"`
	Min     *float64 `yaml:"min"     json:"min,omitempty"`
	Max     *float64 `yaml:"max"     json:"max,omitempty"`

	// SaveAs names the value that receives the step's result: the
	// recognized prompt value, the child dialog result or the hook data.
	SaveAs string `yaml:"save_as" json:"save_as,omitempty"`

	// begin_dialog, replace_dialog
	Dialog  string         `yaml:"dialog"  json:"dialog,omitempty"`
	Options map[string]any `yaml:"options" json:"options,omitempty"`

	// call_hook
	Hook *hooks.HookConfig `yaml:"hook" json:"hook,omitempty"`

	// set
	Set map[string]string `yaml:"set" json:"set,omitempty"`

	// end
	Result string `yaml:"result" json:"result,omitempty"`
}

// Values is the typed state of a declarative waterfall.
type Values map[string]any
