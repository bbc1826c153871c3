package prompts

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
)

// Number is the set of types a number prompt can produce.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

var digitPattern = regexp.MustCompile(`[-+]?\d{1,3}(?:,\d{3})+(?:\.\d+)?|[-+]?\d+(?:\.\d+)?`)

var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90, "dozen": 12,
}

// ExtractNumber finds the first number in text, written with digits or as an
// English word up to ninety. Compound words such as "twenty-one" are summed.
func ExtractNumber(text string) (float64, bool) {
	if m := digitPattern.FindString(text); m != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err == nil {
			return v, true
		}
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '-')
	})
	for _, f := range fields {
		total, found := 0.0, false
		for _, part := range strings.Split(f, "-") {
			v, ok := numberWords[part]
			if !ok {
				found = false
				break
			}
			total += v
			found = true
		}
		if found {
			return total, true
		}
	}
	return 0, false
}

// NumberRecognizer recognizes the first number in the reply. Integer prompts
// reject fractional numbers.
func NumberRecognizer[T Number]() Recognizer[T] {
	return func(_ context.Context, tc *bot.TurnContext, _ dialog.PromptOptions) (Recognized[T], error) {
		v, ok := ExtractNumber(tc.Activity().Text)
		if !ok {
			return Recognized[T]{}, nil
		}
		n := T(v)
		if float64(n) != v {
			return Recognized[T]{}, nil
		}
		return Recognized[T]{Succeeded: true, Value: n}, nil
	}
}

// NewNumberPrompt asks for a number.
func NewNumberPrompt[T Number](id string, validator Validator[T]) *Prompt[T] {
	return New(id, NumberRecognizer[T](), validator)
}

// NumberRange is the validation setting understood by RangeValidator.
type NumberRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// RangeValidator accepts recognized numbers within the NumberRange found in
// the prompt options' validations. Without a range it accepts any number.
func RangeValidator[T Number]() Validator[T] {
	return func(_ context.Context, pc *ValidatorContext[T]) (bool, error) {
		if !pc.Recognized.Succeeded {
			return false, nil
		}
		var r NumberRange
		if err := pc.Options.DecodeValidations(&r); err != nil {
			return false, err
		}
		v := float64(pc.Recognized.Value)
		if r.Min != nil && v < *r.Min {
			return false, nil
		}
		if r.Max != nil && v > *r.Max {
			return false, nil
		}
		return true, nil
	}
}
