package prompts

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
)

// FoundChoice is the value produced by a choice prompt.
type FoundChoice struct {
	Value string  `json:"value"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
	// Synonym is the choice text or synonym that matched.
	Synonym string `json:"synonym,omitempty"`
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"last": -1,
}

// NewChoicePrompt asks the user to pick one of a fixed set of choices. The
// choices passed in the options of a call take precedence over these.
func NewChoicePrompt(id string, validator Validator[FoundChoice], choices ...dialog.Choice) *Prompt[FoundChoice] {
	p := New(id, recognizeChoice(choices), validator)
	p.choices = choices
	return p
}

func recognizeChoice(defaults []dialog.Choice) Recognizer[FoundChoice] {
	return func(_ context.Context, tc *bot.TurnContext, opts dialog.PromptOptions) (Recognized[FoundChoice], error) {
		choices := opts.Choices
		if len(choices) == 0 {
			choices = defaults
		}
		found, ok := FindChoice(tc.Activity().Text, choices)
		return Recognized[FoundChoice]{Succeeded: ok, Value: found}, nil
	}
}

// FindChoice matches an utterance against choices. It accepts the choice's
// position as a number or ordinal word, an exact match of the value or a
// synonym, an utterance containing a value or synonym as whole words, and
// finally a unique partial match.
func FindChoice(utterance string, choices []dialog.Choice) (FoundChoice, bool) {
	text := normalize(utterance)
	if text == "" || len(choices) == 0 {
		return FoundChoice{}, false
	}

	if i, ok := choiceIndex(text, len(choices)); ok {
		return FoundChoice{Value: choices[i].Value, Index: i, Score: 1, Synonym: text}, true
	}

	for i, c := range choices {
		for _, s := range candidates(c) {
			if normalize(s) == text {
				return FoundChoice{Value: c.Value, Index: i, Score: 1, Synonym: s}, true
			}
		}
	}

	words := " " + text + " "
	for i, c := range choices {
		for _, s := range candidates(c) {
			if n := normalize(s); n != "" && strings.Contains(words, " "+n+" ") {
				return FoundChoice{Value: c.Value, Index: i, Score: 0.9, Synonym: s}, true
			}
		}
	}

	match, count := FoundChoice{}, 0
	for i, c := range choices {
		for _, s := range candidates(c) {
			if n := normalize(s); n != "" && (strings.Contains(n, text) || strings.Contains(text, n)) {
				count++
				match = FoundChoice{Value: c.Value, Index: i, Score: 0.6, Synonym: s}
				break
			}
		}
	}
	if count == 1 {
		return match, true
	}
	return FoundChoice{}, false
}

func choiceIndex(text string, n int) (int, bool) {
	if v, ok := ordinals[text]; ok {
		if v < 0 {
			return n - 1, true
		}
		if v <= n {
			return v - 1, true
		}
		return 0, false
	}
	i, err := strconv.Atoi(text)
	if err != nil {
		w, ok := numberWords[text]
		if !ok {
			return 0, false
		}
		i = int(w)
	}
	if i >= 1 && i <= n {
		return i - 1, true
	}
	return 0, false
}

func candidates(c dialog.Choice) []string {
	return append([]string{c.Value}, c.Synonyms...)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRightFunc(s, unicode.IsPunct)
	return strings.Join(strings.Fields(s), " ")
}
