package prompts

import (
	"context"
	"strings"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
)

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "sure": true,
		"ok": true, "okay": true, "true": true, "correct": true, "right": true,
		"affirmative": true, "absolutely": true, "definitely": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "false": true,
		"negative": true, "never": true, "cancel": true, "wrong": true,
	}
)

// confirmChoices are offered with the question and map "1" and "2".
var confirmChoices = dialog.Choices("Yes", "No")

// ParseConfirm interprets a yes or no answer.
func ParseConfirm(text string) (value, ok bool) {
	text = normalize(text)
	switch text {
	case "1":
		return true, true
	case "2":
		return false, true
	}
	if yesWords[text] {
		return true, true
	}
	if noWords[text] {
		return false, true
	}

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!'
	})
	if len(fields) == 0 {
		return false, false
	}
	switch first := fields[0]; {
	case yesWords[first]:
		return true, true
	case noWords[first]:
		return false, true
	}
	return false, false
}

// NewConfirmPrompt asks a yes or no question.
func NewConfirmPrompt(id string, validator Validator[bool]) *Prompt[bool] {
	p := New(id, recognizeConfirm, validator)
	p.choices = confirmChoices
	return p
}

func recognizeConfirm(_ context.Context, tc *bot.TurnContext, _ dialog.PromptOptions) (Recognized[bool], error) {
	v, ok := ParseConfirm(tc.Activity().Text)
	return Recognized[bool]{Succeeded: ok, Value: v}, nil
}
