package prompts

import (
	"context"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
)

// NewTextPrompt accepts any non-empty message.
func NewTextPrompt(id string, validator Validator[string]) *Prompt[string] {
	return New(id, recognizeText, validator)
}

func recognizeText(_ context.Context, tc *bot.TurnContext, _ dialog.PromptOptions) (Recognized[string], error) {
	text := tc.Activity().TrimmedText()
	return Recognized[string]{Succeeded: text != "", Value: text}, nil
}
