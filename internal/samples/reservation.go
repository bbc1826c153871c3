package samples

import (
	"context"
	"strconv"
	"time"

	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/prompts"
)

const (
	minPartySize = 6
	maxPartySize = 20
)

// Reservation is the result of the reserve table dialog.
type Reservation struct {
	Size int       `json:"size"`
	Time time.Time `json:"time"`
}

// entities are the options the dispatcher hands to routed dialogs.
type entities struct {
	Size  string `json:"size,omitempty"`
	Room  string `json:"room,omitempty"`
	Topic string `json:"topic,omitempty"`
}

func validatePartySize(ctx context.Context, pc *prompts.ValidatorContext[int]) (bool, error) {
	if !pc.Recognized.Succeeded {
		return false, nil
	}
	if n := pc.Recognized.Value; n < minPartySize || n > maxPartySize {
		return false, pc.TurnContext.Sendf(ctx, "We seat parties of %d to %d people.", minPartySize, maxPartySize)
	}
	return true, nil
}

func reserveTableDialog() *dialog.Waterfall[Reservation] {
	return dialog.NewWaterfall(ReserveTableID,
		func(ctx context.Context, sc *dialog.StepContext[Reservation]) (dialog.DialogTurnResult, error) {
			var e entities
			if err := sc.Options(&e); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			if n, err := strconv.Atoi(e.Size); err == nil && n >= minPartySize && n <= maxPartySize {
				return sc.Next(ctx, n)
			}
			return sc.Prompt(ctx, partySizePrompt, dialog.PromptOptions{
				Prompt:      "How many people?",
				RetryPrompt: "How many people are in your party?",
			})
		},
		func(ctx context.Context, sc *dialog.StepContext[Reservation]) (dialog.DialogTurnResult, error) {
			sc.Values.Size, _ = dialog.As[int](sc.Result)
			return sc.Prompt(ctx, timePrompt, dialog.PromptOptions{
				Prompt:      "What time?",
				RetryPrompt: "Please tell me a time, for example 7pm.",
			})
		},
		func(ctx context.Context, sc *dialog.StepContext[Reservation]) (dialog.DialogTurnResult, error) {
			res, _ := dialog.As[[]prompts.DateTimeResolution](sc.Result)
			if len(res) > 0 {
				sc.Values.Time = res[len(res)-1].Value
			}
			return sc.Prompt(ctx, confirmPrompt, dialog.PromptOptions{
				Prompt: "A table for " + strconv.Itoa(sc.Values.Size) + " at " + sc.Values.Time.Format(time.Kitchen) + ". Shall I book it?",
			})
		},
		func(ctx context.Context, sc *dialog.StepContext[Reservation]) (dialog.DialogTurnResult, error) {
			if ok, _ := dialog.As[bool](sc.Result); !ok {
				if err := sc.SendText(ctx, "OK, I have not booked anything."); err != nil {
					return dialog.DialogTurnResult{}, err
				}
				return sc.EndDialog(ctx, nil)
			}
			if err := sc.Sendf(ctx, "Table for %d at %s is reserved.", sc.Values.Size, sc.Values.Time.Format(time.Kitchen)); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, *sc.Values)
		},
	)
}
