package samples

import (
	"context"
	"strconv"

	"github.com/voicetyped/botkit/pkg/dialog"
)

// CheckIn is the result of the check-in dialog.
type CheckIn struct {
	Room int `json:"room"`
}

func checkInDialog() *dialog.Waterfall[CheckIn] {
	return dialog.NewWaterfall(CheckInID,
		func(ctx context.Context, sc *dialog.StepContext[CheckIn]) (dialog.DialogTurnResult, error) {
			var e entities
			if err := sc.Options(&e); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			if n, err := strconv.Atoi(e.Room); err == nil && n > 0 {
				return sc.Next(ctx, n)
			}
			return sc.Prompt(ctx, roomPrompt, dialog.PromptOptions{
				Prompt:      "What is your room number?",
				RetryPrompt: "Please enter your room number as digits.",
			})
		},
		func(ctx context.Context, sc *dialog.StepContext[CheckIn]) (dialog.DialogTurnResult, error) {
			sc.Values.Room, _ = dialog.As[int](sc.Result)
			return sc.Prompt(ctx, confirmPrompt, dialog.PromptOptions{
				Prompt:      "Room " + strconv.Itoa(sc.Values.Room) + ", is that right?",
				RetryPrompt: "Please answer yes or no.",
			})
		},
		func(ctx context.Context, sc *dialog.StepContext[CheckIn]) (dialog.DialogTurnResult, error) {
			if ok, _ := dialog.As[bool](sc.Result); !ok {
				return sc.ReplaceDialog(ctx, CheckInID, nil)
			}
			if err := sc.Sendf(ctx, "You are checked in to room %d.", sc.Values.Room); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, *sc.Values)
		},
	)
}
