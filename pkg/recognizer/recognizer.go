// Package recognizer turns user utterances into scored intents and routes
// them to dialogs.
package recognizer

import (
	"context"
	"maps"
	"slices"
)

// None is the intent reported when nothing matched. It never wins
// TopIntent.
const None = "None"

// Result is the outcome of recognizing one utterance.
type Result struct {
	Text     string             `json:"text"`
	Intents  map[string]float64 `json:"intents"`
	Entities map[string]any     `json:"entities,omitempty"`
}

// TopIntent returns the highest scoring intent at or above threshold. Ties go to
// the intent that sorts first.
func (r Result) TopIntent(threshold float64) (string, float64, bool) {
	best, score := "", -1.0
	for _, name := range slices.Sorted(maps.Keys(r.Intents)) {
		if name == None {
			continue
		}
		if s := r.Intents[name]; s > score {
			best, score = name, s
		}
	}
	if best == "" || score < threshold {
		return None, 0, false
	}
	return best, score, true
}

// Recognizer scores an utterance.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (Result, error)
}

// Func adapts a function to the Recognizer interface.
type Func func(ctx context.Context, text string) (Result, error)

func (f Func) Recognize(ctx context.Context, text string) (Result, error) { return f(ctx, text) }

// merge folds src into dst keeping the higher score per intent. Entities
// already present in dst win.
func merge(dst *Result, src Result) {
	if dst.Intents == nil {
		dst.Intents = make(map[string]float64, len(src.Intents))
	}
	for name, s := range src.Intents {
		if cur, ok := dst.Intents[name]; !ok || s > cur {
			dst.Intents[name] = s
		}
	}
	for k, v := range src.Entities {
		if dst.Entities == nil {
			dst.Entities = make(map[string]any, len(src.Entities))
		}
		if _, ok := dst.Entities[k]; !ok {
			dst.Entities[k] = v
		}
	}
}
