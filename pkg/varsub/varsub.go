// Package varsub resolves {name} placeholders in templated strings against a
// session variable map. Substitution is pure and total: a missing name leaves
// its placeholder untouched (braces included) and unbalanced delimiters pass
// through literally, so callers must not assume a returned string is fully
// resolved.
package varsub

import (
	"strings"

	"the-dev-tools/apiconsole/pkg/model/mvar"
)

const (
	PrefixChar = '{'
	SuffixChar = '}'
)

// VarMap is a name -> Var lookup. Keys are matched verbatim, case-sensitive,
// no trimming.
type VarMap map[string]mvar.Var

// NewVarMap builds a map from a var slice, skipping disabled entries. Later
// entries win on duplicate keys.
func NewVarMap(vars []mvar.Var) VarMap {
	m := make(VarMap, len(vars))
	for _, v := range vars {
		if !v.Enabled {
			continue
		}
		m[v.VarKey] = v
	}
	return m
}

// NewVarMapFromStringMap wraps plain key/value pairs; handy for tests and for
// bindings that never came from an environment.
func NewVarMapFromStringMap(kv map[string]string) VarMap {
	m := make(VarMap, len(kv))
	for k, v := range kv {
		m[k] = mvar.Var{VarKey: k, Value: v, Enabled: true}
	}
	return m
}

func (m VarMap) Get(key string) (mvar.Var, bool) {
	v, ok := m[key]
	return v, ok
}

// MergeVars overlays b on top of a, preserving a's order for kept keys.
func MergeVars(a, b []mvar.Var) []mvar.Var {
	out := make([]mvar.Var, 0, len(a)+len(b))
	override := make(map[string]int, len(b))
	for i, v := range b {
		override[v.VarKey] = i
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		if i, ok := override[v.VarKey]; ok {
			v = b[i]
		}
		out = append(out, v)
		seen[v.VarKey] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v.VarKey]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// MergeVarMap overlays b on top of a.
func MergeVarMap(a, b VarMap) VarMap {
	out := make(VarMap, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// HasAnyKey is a cheap pre-check so hot paths can skip the scan entirely.
func HasAnyKey(s string) bool {
	open := strings.IndexByte(s, PrefixChar)
	if open < 0 {
		return false
	}
	return strings.IndexByte(s[open:], SuffixChar) > 0
}

// Substitute resolves every {name} placeholder in template against m in a
// single left-to-right scan. Multiple occurrences of the same name all
// resolve to the same value. Never fails.
func Substitute(template string, m VarMap) string {
	if !HasAnyKey(template) {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	i := 0
	for i < len(template) {
		if template[i] != PrefixChar {
			b.WriteByte(template[i])
			i++
			continue
		}
		// Scan for the matching close brace. A second open brace restarts the
		// pair; the earlier one was literal.
		j := i + 1
		for j < len(template) && template[j] != SuffixChar && template[j] != PrefixChar {
			j++
		}
		if j >= len(template) {
			// No close brace left; the rest is literal.
			b.WriteString(template[i:])
			break
		}
		if template[j] == PrefixChar {
			b.WriteString(template[i:j])
			i = j
			continue
		}
		name := template[i+1 : j]
		if v, ok := m[name]; ok {
			b.WriteString(v.Value)
		} else {
			// Unknown name: keep the placeholder, delimiters included.
			b.WriteString(template[i : j+1])
		}
		i = j + 1
	}
	return b.String()
}

// Substitute resolves placeholders against the map itself.
func (m VarMap) Substitute(template string) string {
	return Substitute(template, m)
}
