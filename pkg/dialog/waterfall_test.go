package dialog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/prompts"
	"github.com/voicetyped/botkit/pkg/state"
)

type stepCall struct {
	Index  int
	Reason string
	Result any
}

func TestWaterfall_StepAdvancement(t *testing.T) {
	var calls []stepCall
	step := func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
		calls = append(calls, stepCall{sc.Index, sc.Reason.String(), sc.Result})
		if sc.Index == 2 {
			return sc.EndDialog(ctx, "done")
		}
		return sc.Prompt(ctx, "text", dialog.PromptOptions{Prompt: fmt.Sprintf("question %d", sc.Index)})
	}

	h := newHarness(t, "steps")
	h.set.Add(prompts.NewTextPrompt("text", nil))
	h.set.Add(dialog.NewWaterfall("steps", step, step, step))

	expectReplies(t, h.say("start"), "question 0")
	expectReplies(t, h.say("first"), "question 1")
	h.say("second")

	want := []stepCall{
		{0, "begin", nil},
		{1, "end", "first"},
		{2, "end", "second"},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("step calls (-want +got):\n%s", diff)
	}
	if h.last.Status != dialog.StatusComplete || h.last.Result != "done" {
		t.Errorf("last = %+v, want complete with done", h.last)
	}
}

func TestWaterfall_NestedResume(t *testing.T) {
	var trace []string
	h := newHarness(t, "outer")
	h.set.Add(prompts.NewTextPrompt("text", nil))
	h.set.Add(dialog.NewWaterfall("outer",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.BeginDialog(ctx, "middle", nil)
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			trace = append(trace, fmt.Sprintf("outer %d got %v", sc.Index, sc.Result))
			return sc.EndDialog(ctx, "outer:"+sc.Result.(string))
		},
	))
	h.set.Add(dialog.NewWaterfall("middle",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.BeginDialog(ctx, "inner", nil)
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			trace = append(trace, fmt.Sprintf("middle %d got %v", sc.Index, sc.Result))
			return sc.EndDialog(ctx, "middle:"+sc.Result.(string))
		},
	))
	h.set.Add(dialog.NewWaterfall("inner",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.Prompt(ctx, "text", dialog.PromptOptions{Prompt: "Say something"})
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			trace = append(trace, fmt.Sprintf("inner %d got %v", sc.Index, sc.Result))
			return sc.EndDialog(ctx, sc.Result)
		},
	))

	expectReplies(t, h.say("go"), "Say something")
	if h.depth != 4 {
		t.Fatalf("depth = %d, want 4", h.depth)
	}

	h.say("x")
	want := []string{"inner 1 got x", "middle 1 got x", "outer 1 got middle:x"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Errorf("resume trace (-want +got):\n%s", diff)
	}
	if h.last.Status != dialog.StatusComplete || h.last.Result != "outer:middle:x" || h.depth != 0 {
		t.Errorf("last = %+v depth %d, want complete outer:middle:x and empty stack", h.last, h.depth)
	}
}

type counter struct {
	Count int      `json:"count"`
	Seen  []string `json:"seen"`
}

func TestWaterfall_ValuesSurvivePersistence(t *testing.T) {
	h := newHarness(t, "count")
	h.set.Add(dialog.NewWaterfall("count",
		func(ctx context.Context, sc *dialog.StepContext[counter]) (dialog.DialogTurnResult, error) {
			sc.Values.Count = 1
			return sc.Next(ctx, nil)
		},
		func(ctx context.Context, sc *dialog.StepContext[counter]) (dialog.DialogTurnResult, error) {
			sc.Values.Count++
			if err := sc.SendText(ctx, "tell me more"); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndOfTurn()
		},
		func(ctx context.Context, sc *dialog.StepContext[counter]) (dialog.DialogTurnResult, error) {
			sc.Values.Count++
			sc.Values.Seen = append(sc.Values.Seen, sc.Result.(string))
			return sc.Next(ctx, *sc.Values)
		},
	))

	expectReplies(t, h.say("start"), "tell me more")
	h.say("more")

	want := counter{Count: 3, Seen: []string{"more"}}
	if diff := cmp.Diff(want, h.last.Result); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
}

type greetOptions struct {
	Name string `json:"name"`
}

func TestWaterfall_Options(t *testing.T) {
	greet := dialog.NewWaterfall("greet", func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
		var opts greetOptions
		if err := sc.Options(&opts); err != nil {
			return dialog.DialogTurnResult{}, err
		}
		return sc.EndDialog(ctx, "hello "+opts.Name)
	})
	dc := dialog.NewDialogContext(dialog.NewDialogSet(nil).Add(greet), bot.NewTurnContext(message("x")), nil)

	res, err := dc.BeginDialog(t.Context(), "greet", greetOptions{Name: "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Result != "hello Ada" {
		t.Errorf("result = %v, want hello Ada", res.Result)
	}
}

func TestWaterfall_ControlTransferredTwice(t *testing.T) {
	w := dialog.NewWaterfall("twice",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			if _, err := sc.Next(ctx, nil); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.Next(ctx, nil)
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.EndOfTurn()
		},
	)
	dc := dialog.NewDialogContext(dialog.NewDialogSet(nil).Add(w), bot.NewTurnContext(message("x")), nil)

	if _, err := dc.BeginDialog(t.Context(), "twice", nil); err == nil {
		t.Fatal("want error when a step transfers control twice")
	}
}

func TestWaterfall_LastStepNextEnds(t *testing.T) {
	w := dialog.NewWaterfall("one", func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
		return sc.Next(ctx, "finished")
	})
	dc := dialog.NewDialogContext(dialog.NewDialogSet(nil).Add(w), bot.NewTurnContext(message("x")), nil)

	res, err := dc.BeginDialog(t.Context(), "one", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != dialog.StatusComplete || res.Result != "finished" || dc.State().Depth() != 0 {
		t.Errorf("result = %+v, want complete with finished", res)
	}
}

// TestPersistenceRoundTrip runs the same conversation twice, once keeping the
// stack in memory and once through JSON, and expects identical behaviour.
func TestPersistenceRoundTrip(t *testing.T) {
	set := dialog.NewDialogSet(nil)
	set.Add(prompts.NewNumberPrompt[int]("age", nil))
	set.Add(dialog.NewWaterfall("profile",
		func(ctx context.Context, sc *dialog.StepContext[counter]) (dialog.DialogTurnResult, error) {
			sc.Values.Seen = append(sc.Values.Seen, "asked")
			return sc.Prompt(ctx, "age", dialog.PromptOptions{Prompt: "How old are you?", RetryPrompt: "A number please."})
		},
		func(ctx context.Context, sc *dialog.StepContext[counter]) (dialog.DialogTurnResult, error) {
			sc.Values.Count = sc.Result.(int)
			if err := sc.Sendf(ctx, "%v after %v", sc.Values.Count, sc.Values.Seen); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, sc.Values.Count)
		},
	))

	run := func(ds *dialog.DialogState, text string) ([]string, dialog.DialogTurnResult) {
		t.Helper()
		tc := bot.NewTurnContext(message(text))
		res, err := dialog.NewDialogContext(set, tc, ds).ContinueDialog(t.Context())
		if err != nil {
			t.Fatalf("ContinueDialog(%q): %v", text, err)
		}
		var texts []string
		for _, a := range tc.Responses() {
			texts = append(texts, a.Text)
		}
		return texts, res
	}

	live := dialog.NewDialogState()
	if _, err := dialog.NewDialogContext(set, bot.NewTurnContext(message("go")), live).BeginDialog(t.Context(), "profile", nil); err != nil {
		t.Fatal(err)
	}
	if live.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", live.Depth())
	}

	raw, err := json.Marshal(live)
	if err != nil {
		t.Fatal(err)
	}
	var restored dialog.DialogState
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(live, &restored); diff != "" {
		t.Fatalf("restored stack differs (-live +restored):\n%s", diff)
	}

	for _, text := range []string{"old", "36"} {
		wantTexts, wantRes := run(live, text)
		gotTexts, gotRes := run(&restored, text)
		if diff := cmp.Diff(wantTexts, gotTexts); diff != "" {
			t.Errorf("%q replies (-live +restored):\n%s", text, diff)
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Errorf("%q result (-live +restored):\n%s", text, diff)
		}
	}
	if restored.Depth() != 0 {
		t.Errorf("restored depth = %d, want 0", restored.Depth())
	}
}

func TestStepError_LeavesPreviousStateIntact(t *testing.T) {
	h := newHarness(t, "fragile")
	h.adapter = bot.NewAdapter().Use(state.AutoSave(h.conv))
	h.set.Add(prompts.NewTextPrompt("text", nil))
	h.set.Add(dialog.NewWaterfall("fragile",
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			return sc.Prompt(ctx, "text", dialog.PromptOptions{Prompt: "Say it"})
		},
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			if sc.Result == "boom" {
				return dialog.DialogTurnResult{}, errors.New("step exploded")
			}
			return sc.EndDialog(ctx, sc.Result)
		},
	))

	expectReplies(t, h.say("start"), "Say it")
	before := h.stored()

	expectReplies(t, h.say("boom"), bot.ApologyText)
	if diff := cmp.Diff(string(before.Value), string(h.stored().Value)); diff != "" {
		t.Fatalf("stored state changed by failed turn (-before +after):\n%s", diff)
	}

	h.say("fine")
	if h.last.Status != dialog.StatusComplete || h.last.Result != "fine" {
		t.Errorf("last = %+v, want complete with fine", h.last)
	}
}
