package varsub

import (
	"strings"

	"the-dev-tools/apiconsole/pkg/model/mvar"
)

// Tracker wraps a VarMap and records which variables a preparation pass
// actually read, so the UI can show what fed into a sent request.
type Tracker struct {
	vars     VarMap
	ReadVars map[string]string
}

func NewTracker(vars VarMap) *Tracker {
	return &Tracker{
		vars:     vars,
		ReadVars: make(map[string]string),
	}
}

func (t *Tracker) Get(key string) (mvar.Var, bool) {
	v, ok := t.vars.Get(key)
	if ok {
		t.ReadVars[key] = v.Value
	}
	return v, ok
}

// Substitute behaves exactly like Substitute on the wrapped map while
// recording every name the template resolved.
func (t *Tracker) Substitute(template string) string {
	if !HasAnyKey(template) {
		return template
	}
	out := Substitute(template, t.vars)
	for k, v := range t.vars {
		if strings.Contains(template, string(PrefixChar)+k+string(SuffixChar)) {
			t.ReadVars[k] = v.Value
		}
	}
	return out
}

func (t *Tracker) GetReadVars() map[string]string {
	return t.ReadVars
}
