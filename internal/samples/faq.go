package samples

import (
	"context"
	"strings"

	"github.com/voicetyped/botkit/pkg/dialog"
)

var answers = map[string]string{
	"hours":   "We are open from 8am to 11pm every day.",
	"parking": "Guests park free of charge in the garage on Main Street.",
	"wifi":    "The wifi network is \"Guest\" and needs no password.",
}

var topicAliases = map[string]string{
	"open":     "hours",
	"park":     "parking",
	"wi-fi":    "wifi",
	"internet": "wifi",
}

func faqDialog() *dialog.Waterfall[struct{}] {
	return dialog.NewWaterfall(FAQID,
		func(ctx context.Context, sc *dialog.StepContext[struct{}]) (dialog.DialogTurnResult, error) {
			var e entities
			if err := sc.Options(&e); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			topic := strings.ToLower(e.Topic)
			if alias, ok := topicAliases[topic]; ok {
				topic = alias
			}
			answer, ok := answers[topic]
			if !ok {
				answer = "I can answer questions about hours, parking and wifi."
			}
			if err := sc.SendText(ctx, answer); err != nil {
				return dialog.DialogTurnResult{}, err
			}
			return sc.EndDialog(ctx, topic)
		},
	)
}
