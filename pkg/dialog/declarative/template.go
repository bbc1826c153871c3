package declarative

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

const maxRenderedBytes = 64 << 10

var errRenderTooLarge = fmt.Errorf("rendered template exceeds %d bytes", maxRenderedBytes)

// templateData is what step templates see: {{.Values.x}}, {{.Result}} and
// {{.Text}} (the text of the current activity).
type templateData struct {
	Values Values
	Result any
	Text   string
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
	"join": func(sep string, items []any) string {
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = fmt.Sprint(it)
		}
		return strings.Join(parts, sep)
	},
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
}

var (
	parsedMu sync.RWMutex
	parsed   = map[string]*template.Template{}
)

func hasActions(s string) bool { return strings.Contains(s, "{{") }

func compile(src string) (*template.Template, error) {
	parsedMu.RLock()
	t, ok := parsed[src]
	parsedMu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("step").Funcs(funcs).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, err
	}
	parsedMu.Lock()
	parsed[src] = t
	parsedMu.Unlock()
	return t, nil
}

func checkTemplate(src string) error {
	if !hasActions(src) {
		return nil
	}
	_, err := compile(src)
	return err
}

// render executes src against data. Plain strings come back unchanged.
func render(src string, data templateData) (string, error) {
	if !hasActions(src) {
		return src, nil
	}
	t, err := compile(src)
	if err != nil {
		return "", err
	}
	out := &cappedBuffer{max: maxRenderedBytes}
	if err := t.Execute(out, data); err != nil {
		if errors.Is(err, errRenderTooLarge) {
			return "", errRenderTooLarge
		}
		return "", err
	}
	return out.String(), nil
}

// evalCondition renders a `when` template. Empty output, "false", "0" and
// "<no value>" are false; an empty condition is true.
func evalCondition(cond string, data templateData) (bool, error) {
	if cond == "" {
		return true, nil
	}
	out, err := render(cond, data)
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(out) {
	case "", "false", "0", "<no value>":
		return false, nil
	}
	return true, nil
}

type cappedBuffer struct {
	bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > b.max {
		return 0, errRenderTooLarge
	}
	return b.Buffer.Write(p)
}
