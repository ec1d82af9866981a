package varsub_test

import (
	"fmt"
	"testing"

	"the-dev-tools/apiconsole/pkg/idwrap"
	"the-dev-tools/apiconsole/pkg/model/mvar"
	"the-dev-tools/apiconsole/pkg/varsub"

	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	vars := varsub.NewVarMapFromStringMap(map[string]string{
		"baseUrl": "example.com",
		"token":   "abc123",
		"empty":   "",
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "single placeholder",
			template: "http://{baseUrl}/foobar",
			expected: "http://example.com/foobar",
		},
		{
			name:     "multiple occurrences of the same name",
			template: "{baseUrl}/{baseUrl}",
			expected: "example.com/example.com",
		},
		{
			name:     "multiple names",
			template: "https://{baseUrl}/items?token={token}",
			expected: "https://example.com/items?token=abc123",
		},
		{
			name:     "unknown name passes through",
			template: "{missing}/x",
			expected: "{missing}/x",
		},
		{
			name:     "empty value still substitutes",
			template: "a{empty}b",
			expected: "ab",
		},
		{
			name:     "no placeholders",
			template: "plain string",
			expected: "plain string",
		},
		{
			name:     "unbalanced open brace is literal",
			template: "foo{bar",
			expected: "foo{bar",
		},
		{
			name:     "unbalanced close brace is literal",
			template: "foo}bar",
			expected: "foo}bar",
		},
		{
			name:     "nested open brace restarts the pair",
			template: "{{token}",
			expected: "{abc123",
		},
		{
			name:     "empty braces are literal",
			template: "a{}b",
			expected: "a{}b",
		},
		{
			name:     "lookup is case-sensitive",
			template: "{BaseUrl}",
			expected: "{BaseUrl}",
		},
		{
			name:     "no trimming on names",
			template: "{ baseUrl }",
			expected: "{ baseUrl }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := varsub.Substitute(tt.template, vars)
			if got != tt.expected {
				t.Errorf("Substitute(%q) = %q, want %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestSubstituteIdempotent(t *testing.T) {
	vars := varsub.NewVarMapFromStringMap(map[string]string{
		"host": "api.example.com",
	})

	templates := []string{
		"https://{host}/v1/{id}",
		"{missing}",
		"no placeholders at all",
		"{host}{host}",
	}
	for _, template := range templates {
		once := varsub.Substitute(template, vars)
		twice := varsub.Substitute(once, vars)
		if once != twice {
			t.Errorf("substitution not idempotent for %q: %q != %q", template, once, twice)
		}
	}
}

func TestSubstituteLongTemplate(t *testing.T) {
	const totalKeys = 10
	const baseURL = "https://www.example.com/search?q="

	expected := baseURL
	template := baseURL
	vars := make([]mvar.Var, totalKeys)
	for i := 0; i < totalKeys; i++ {
		expected += fmt.Sprintf("val_%d", i)
		template += fmt.Sprintf("{key_%d}", i)
		vars[i] = mvar.Var{
			ID:      idwrap.NewNow(),
			VarKey:  fmt.Sprintf("key_%d", i),
			Value:   fmt.Sprintf("val_%d", i),
			Enabled: true,
		}
	}

	got := varsub.Substitute(template, varsub.NewVarMap(vars))
	require.Equal(t, expected, got)
}

func TestNewVarMapSkipsDisabled(t *testing.T) {
	vars := varsub.NewVarMap([]mvar.Var{
		{ID: idwrap.NewNow(), VarKey: "on", Value: "1", Enabled: true},
		{ID: idwrap.NewNow(), VarKey: "off", Value: "2", Enabled: false},
	})

	_, ok := vars.Get("on")
	require.True(t, ok)
	_, ok = vars.Get("off")
	require.False(t, ok)
	require.Equal(t, "x{off}y", varsub.Substitute("x{off}y", vars))
}

func TestMergeVars(t *testing.T) {
	a := []mvar.Var{
		{VarKey: "shared", Value: "from_a", Enabled: true},
		{VarKey: "only_a", Value: "a", Enabled: true},
	}
	b := []mvar.Var{
		{VarKey: "shared", Value: "from_b", Enabled: true},
		{VarKey: "only_b", Value: "b", Enabled: true},
	}

	merged := varsub.MergeVars(a, b)
	require.Len(t, merged, 3)
	require.Equal(t, "shared", merged[0].VarKey)
	require.Equal(t, "from_b", merged[0].Value)
	require.Equal(t, "only_a", merged[1].VarKey)
	require.Equal(t, "only_b", merged[2].VarKey)
}

func TestMergeVarMapLaterWins(t *testing.T) {
	a := varsub.NewVarMapFromStringMap(map[string]string{"k": "old", "keep": "yes"})
	b := varsub.NewVarMapFromStringMap(map[string]string{"k": "new"})

	merged := varsub.MergeVarMap(a, b)
	v, ok := merged.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", v.Value)
	_, ok = merged.Get("keep")
	require.True(t, ok)
}

func TestHasAnyKey(t *testing.T) {
	require.True(t, varsub.HasAnyKey("{a}"))
	require.True(t, varsub.HasAnyKey("x{a}y"))
	require.False(t, varsub.HasAnyKey("plain"))
	require.False(t, varsub.HasAnyKey("open only {"))
	require.False(t, varsub.HasAnyKey("} wrong order {"))
}

func TestTrackerRecordsReads(t *testing.T) {
	vars := varsub.NewVarMapFromStringMap(map[string]string{
		"host":   "example.com",
		"unused": "never",
	})
	tracker := varsub.NewTracker(vars)

	got := tracker.Substitute("https://{host}/path/{missing}")
	require.Equal(t, "https://example.com/path/{missing}", got)

	reads := tracker.GetReadVars()
	require.Equal(t, map[string]string{"host": "example.com"}, reads)
}
