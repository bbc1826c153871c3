package recognizer

import (
	"context"
	"fmt"
	"regexp"
)

type pattern struct {
	intent string
	re     *regexp.Regexp
}

// RegexRecognizer matches utterances against ordered patterns. The first
// matching pattern wins with a score of 1 and its named groups become
// entities.
type RegexRecognizer struct {
	patterns []pattern
}

// NewRegexRecognizer creates an empty recognizer.
func NewRegexRecognizer() *RegexRecognizer {
	return &RegexRecognizer{}
}

// Add registers patterns for intent. Patterns are matched case-insensitively.
func (r *RegexRecognizer) Add(intent string, patterns ...string) error {
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("intent %q pattern %q: %w", intent, p, err)
		}
		r.patterns = append(r.patterns, pattern{intent: intent, re: re})
	}
	return nil
}

// MustAdd is Add that panics on an invalid pattern.
func (r *RegexRecognizer) MustAdd(intent string, patterns ...string) *RegexRecognizer {
	if err := r.Add(intent, patterns...); err != nil {
		panic(err)
	}
	return r
}

func (r *RegexRecognizer) Recognize(_ context.Context, text string) (Result, error) {
	res := Result{Text: text, Intents: map[string]float64{}}
	for _, p := range r.patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		res.Intents[p.intent] = 1
		for i, name := range p.re.SubexpNames() {
			if name == "" || m[i] == "" {
				continue
			}
			if res.Entities == nil {
				res.Entities = map[string]any{}
			}
			res.Entities[name] = m[i]
		}
		return res, nil
	}
	return res, nil
}
