package samples

import (
	"context"
	"strings"

	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/prompts"
)

const doneChoice = "done"

var menuChoices = []string{"pizza", "salad", "soup", doneChoice}

// Order is the result of the menu dialog.
type Order struct {
	Items []string `json:"items"`
}

// menuDialog loops by replacing itself so the stack never grows, carrying
// the order so far in its options.
func menuDialog() *dialog.Waterfall[Order] {
	return dialog.NewWaterfall(MenuID,
		func(ctx context.Context, sc *dialog.StepContext[Order]) (dialog.DialogTurnResult, error) {
			if err := sc.Options(sc.Values); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			text := "What would you like?"
			if len(sc.Values.Items) > 0 {
				text = "Anything else?"
			}
			return sc.Prompt(ctx, menuPrompt, dialog.PromptOptions{Prompt: text})
		},
		func(ctx context.Context, sc *dialog.StepContext[Order]) (dialog.DialogTurnResult, error) {
			choice, _ := dialog.As[prompts.FoundChoice](sc.Result)
			if choice.Value != doneChoice {
				sc.Values.Items = append(sc.Values.Items, choice.Value)
				return sc.ReplaceDialog(ctx, MenuID, *sc.Values)
			}
			if len(sc.Values.Items) == 0 {
				if err := sc.SendText(ctx, "Nothing ordered."); err != nil {
					return dialog.DialogTurnResult{}, err
				}
				return sc.EndDialog(ctx, nil)
			}
			if err := sc.Sendf(ctx, "Your order: %s.", strings.Join(sc.Values.Items, ", ")); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, *sc.Values)
		},
	)
}
