package prompts

import (
	"context"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
)

// DateTimeResolution is one interpretation of a date or time expression.
type DateTimeResolution struct {
	Value time.Time `json:"value"`
	// Text is the part of the message that was recognized.
	Text string `json:"text"`
	// ISO is Value formatted as RFC 3339.
	ISO string `json:"iso"`
}

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// DateTimeRecognizer resolves English date and time expressions relative to
// now. When the expression names a time of day that has already passed, the
// same time tomorrow is offered as a second resolution.
func DateTimeRecognizer(now func() time.Time) Recognizer[[]DateTimeResolution] {
	if now == nil {
		now = time.Now
	}
	parser := newParser()
	return func(_ context.Context, tc *bot.TurnContext, _ dialog.PromptOptions) (Recognized[[]DateTimeResolution], error) {
		ref := now()
		res, err := parser.Parse(tc.Activity().Text, ref)
		if err != nil || res == nil {
			return Recognized[[]DateTimeResolution]{}, nil
		}

		out := []DateTimeResolution{resolution(res.Time, res.Text)}
		if res.Time.Before(ref) && ref.Sub(res.Time) < 24*time.Hour {
			out = append(out, resolution(res.Time.Add(24*time.Hour), res.Text))
		}
		return Recognized[[]DateTimeResolution]{Succeeded: true, Value: out}, nil
	}
}

func resolution(t time.Time, text string) DateTimeResolution {
	return DateTimeResolution{Value: t, Text: text, ISO: t.Format(time.RFC3339)}
}

// NewDateTimePrompt asks for a date or time.
func NewDateTimePrompt(id string, validator Validator[[]DateTimeResolution]) *Prompt[[]DateTimeResolution] {
	return New(id, DateTimeRecognizer(nil), validator)
}
