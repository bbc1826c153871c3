package dialog_test

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/prompts"
)

type reservation struct {
	Size int    `json:"size"`
	Time string `json:"time"`
}

func TestScenario_ReserveTable(t *testing.T) {
	h := newHarness(t, "reserveTable")
	h.set.Add(prompts.NewNumberPrompt[int]("size", nil))
	h.set.Add(prompts.NewTextPrompt("time", nil))
	h.set.Add(dialog.NewWaterfall("reserveTable",
		func(ctx context.Context, sc *dialog.StepContext[reservation]) (dialog.DialogTurnResult, error) {
			return sc.Prompt(ctx, "size", dialog.PromptOptions{Prompt: "How many people?"})
		},
		func(ctx context.Context, sc *dialog.StepContext[reservation]) (dialog.DialogTurnResult, error) {
			sc.Values.Size = sc.Result.(int)
			return sc.Prompt(ctx, "time", dialog.PromptOptions{Prompt: "What time?"})
		},
		func(ctx context.Context, sc *dialog.StepContext[reservation]) (dialog.DialogTurnResult, error) {
			sc.Values.Time = sc.Result.(string)
			if err := sc.Sendf(ctx, "Table for %d at %s is reserved.", sc.Values.Size, sc.Values.Time); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, *sc.Values)
		},
	))

	var all []string
	for _, text := range []string{"hi", "12", "7pm"} {
		all = append(all, h.say(text)...)
	}

	want := []string{"How many people?", "What time?", "Table for 12 at 7pm is reserved."}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("conversation (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(reservation{Size: 12, Time: "7pm"}, h.last.Result); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if h.last.Status != dialog.StatusComplete || h.depth != 0 {
		t.Errorf("status %v depth %d, want complete and empty", h.last.Status, h.depth)
	}
}

func TestScenario_CheckInRetry(t *testing.T) {
	h := newHarness(t, "checkIn")
	h.set.Add(prompts.NewNumberPrompt[int]("room", nil))
	h.set.Add(dialog.NewWaterfall("checkIn",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.Prompt(ctx, "room", dialog.PromptOptions{
				Prompt:      "What is your room number?",
				RetryPrompt: "Please enter your room number as digits.",
			})
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.EndDialog(ctx, sc.Result)
		},
	))

	expectReplies(t, h.say("check in"), "What is your room number?")
	depth := h.depth

	expectReplies(t, h.say("yess"), "Please enter your room number as digits.")
	if h.depth != depth {
		t.Errorf("depth = %d, want %d", h.depth, depth)
	}
	if h.last.Status != dialog.StatusWaiting {
		t.Errorf("status = %v, want waiting", h.last.Status)
	}
}

type order struct {
	Items []string `json:"items"`
}

func menuDialog() *dialog.Waterfall[order] {
	menu := []string{"pizza", "salad", "soup"}
	return dialog.NewWaterfall("menu",
		func(ctx context.Context, sc *dialog.StepContext[order]) (dialog.DialogTurnResult, error) {
			if err := sc.Options(sc.Values); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.Prompt(ctx, "item", dialog.PromptOptions{Prompt: "What would you like? (pizza, salad, soup or done)"})
		},
		func(ctx context.Context, sc *dialog.StepContext[order]) (dialog.DialogTurnResult, error) {
			choice := strings.ToLower(sc.Result.(string))
			switch {
			case choice == "done":
				return sc.EndDialog(ctx, *sc.Values)
			case slices.Contains(menu, choice):
				sc.Values.Items = append(sc.Values.Items, choice)
			default:
				if err := sc.SendText(ctx, "Sorry, that is not on the menu."); err != nil {
					return dialog.DialogTurnResult{}, err
				}
			}
			return sc.ReplaceDialog(ctx, "menu", *sc.Values)
		},
	)
}

func TestScenario_MenuReplacesItself(t *testing.T) {
	h := newHarness(t, "menu")
	h.set.Add(prompts.NewTextPrompt("item", nil))
	h.set.Add(menuDialog())

	const ask = "What would you like? (pizza, salad, soup or done)"
	expectReplies(t, h.say("menu"), ask)
	depth := h.depth

	expectReplies(t, h.say("pizza"), ask)
	expectReplies(t, h.say("burger"), "Sorry, that is not on the menu.", ask)
	for i := 0; i < 5; i++ {
		h.say("nonsense")
		if h.depth != depth {
			t.Fatalf("depth grew to %d, want %d", h.depth, depth)
		}
	}
	expectReplies(t, h.say("soup"), ask)

	h.say("done")
	if diff := cmp.Diff(order{Items: []string{"pizza", "soup"}}, h.last.Result); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestComponentDialog(t *testing.T) {
	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	component := dialog.NewComponentDialog("profile", "profileSteps").
		AddDialog(prompts.NewTextPrompt("name", nil)).
		AddDialog(prompts.NewNumberPrompt[int]("age", nil)).
		AddDialog(dialog.NewWaterfall("profileSteps",
			func(ctx context.Context, sc *dialog.StepContext[profile]) (dialog.DialogTurnResult, error) {
				return sc.Prompt(ctx, "name", dialog.PromptOptions{Prompt: "Name?"})
			},
			func(ctx context.Context, sc *dialog.StepContext[profile]) (dialog.DialogTurnResult, error) {
				sc.Values.Name = sc.Result.(string)
				return sc.Prompt(ctx, "age", dialog.PromptOptions{Prompt: "Age?"})
			},
			func(ctx context.Context, sc *dialog.StepContext[profile]) (dialog.DialogTurnResult, error) {
				sc.Values.Age = sc.Result.(int)
				return sc.EndDialog(ctx, *sc.Values)
			},
		))

	h := newHarness(t, "main")
	h.set.Add(component)
	h.set.Add(dialog.NewWaterfall("main",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.BeginDialog(ctx, "profile", nil)
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			p := sc.Result.(profile)
			if err := sc.Sendf(ctx, "%s is %d.", p.Name, p.Age); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, nil)
		},
	))

	expectReplies(t, h.say("hi"), "Name?")
	if h.depth != 2 {
		t.Errorf("outer depth = %d, want 2 (main, profile)", h.depth)
	}
	expectReplies(t, h.say("Ada"), "Age?")
	expectReplies(t, h.say("thirty"), "Ada is 30.")
	if h.last.Status != dialog.StatusComplete {
		t.Errorf("status = %v, want complete", h.last.Status)
	}
}

func TestComponentDialog_Cancel(t *testing.T) {
	var log []string
	component := dialog.NewComponentDialog("wrapper", "").AddDialog(newRecorder("inner", &log))
	set := dialog.NewDialogSet(nil).Add(component)
	ds := dialog.NewDialogState()

	if _, err := dialog.NewDialogContext(set, bot.NewTurnContext(message("start")), ds).BeginDialog(t.Context(), "wrapper", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := dialog.NewDialogContext(set, bot.NewTurnContext(message("next")), ds).ContinueDialog(t.Context()); err != nil {
		t.Fatal(err)
	}
	res, err := dialog.NewDialogContext(set, bot.NewTurnContext(message("stop")), ds).CancelAllDialogs(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if res.Status != dialog.StatusCancelled || ds.Depth() != 0 {
		t.Errorf("result = %+v depth %d, want cancelled and empty", res, ds.Depth())
	}
	want := []string{"begin inner", "continue inner", "end inner cancel"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}
