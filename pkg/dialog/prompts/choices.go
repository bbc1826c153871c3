package prompts

import (
	"strconv"
	"strings"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/dialog"
)

// inlineLimit is the largest choice count rendered inline by default.
const inlineLimit = 3

// renderChoices builds the prompt message for text and choices.
func renderChoices(text string, choices []dialog.Choice, style dialog.ListStyle) activity.Activity {
	msg := activity.NewMessage(text)
	msg.InputHint = activity.InputHintExpecting
	if len(choices) == 0 {
		return msg
	}

	if style == "" {
		style = dialog.ListStyleInline
		if len(choices) > inlineLimit {
			style = dialog.ListStyleList
		}
	}

	switch style {
	case dialog.ListStyleInline:
		msg.Text = inlineChoices(text, choices)
	case dialog.ListStyleList:
		msg.Text = listChoices(text, choices)
	case dialog.ListStyleSuggestedActions:
		actions := make([]activity.CardAction, len(choices))
		for i, c := range choices {
			actions[i] = activity.CardAction{Type: "imBack", Title: c.Value, Value: c.Value}
		}
		msg.SuggestedActions = &activity.SuggestedActions{Actions: actions}
	}
	return msg
}

// inlineChoices renders "text (1) a, (2) b, or (3) c".
func inlineChoices(text string, choices []dialog.Choice) string {
	var b strings.Builder
	b.WriteString(text)
	for i, c := range choices {
		switch {
		case i == 0:
			if text != "" {
				b.WriteByte(' ')
			}
		case len(choices) == 2:
			b.WriteString(" or ")
		case i == len(choices)-1:
			b.WriteString(", or ")
		default:
			b.WriteString(", ")
		}
		b.WriteString("(" + strconv.Itoa(i+1) + ") " + c.Value)
	}
	return b.String()
}

func listChoices(text string, choices []dialog.Choice) string {
	lines := make([]string, 0, len(choices)+1)
	if text != "" {
		lines = append(lines, text)
	}
	for i, c := range choices {
		lines = append(lines, "   "+strconv.Itoa(i+1)+". "+c.Value)
	}
	return strings.Join(lines, "\n")
}
