// Package assertion evaluates user-written expressions against an executed
// response, e.g. `response.status == 200` or
// `response.headers["Content-Type"] == "application/json"`.
package assertion

import (
	"fmt"
	"sort"
	"strings"

	"the-dev-tools/apiconsole/pkg/model/mexec"

	"github.com/expr-lang/expr"
	"github.com/goccy/go-json"
)

type Result struct {
	Expression string
	Passed     bool
}

// BuildEnv exposes a response to the expression language. A JSON body is
// decoded into maps and slices so expressions can reach into it; anything
// else stays a string.
func BuildEnv(resp mexec.ProxyResponse) map[string]any {
	headers := make(map[string]string, len(resp.Headers))
	for _, h := range resp.Headers {
		headers[h.Key] = h.Value
	}

	var body any
	if json.Valid(resp.Body) {
		var decoded any
		if err := json.Unmarshal(resp.Body, &decoded); err == nil {
			body = decoded
		} else {
			body = string(resp.Body)
		}
	} else {
		body = string(resp.Body)
	}

	return map[string]any{
		"response": map[string]any{
			"status":   resp.Status,
			"body":     body,
			"headers":  headers,
			"duration": resp.TimingMs,
		},
	}
}

// Eval compiles and runs one boolean expression against env.
func Eval(env map[string]any, expression string) (bool, error) {
	program, err := expr.Compile(strings.TrimSpace(expression), expr.Env(env), expr.AsBool())
	if err != nil {
		return false, annotateUnknownNameError(fmt.Errorf("expression %q failed: %w", expression, err), env)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, annotateUnknownNameError(fmt.Errorf("expression %q failed: %w", expression, err), env)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("expression %q did not evaluate to a bool", expression)
	}
	return ok, nil
}

// EvalAll runs every expression against the same response; the first
// expression error aborts the pass.
func EvalAll(resp mexec.ProxyResponse, expressions []string) ([]Result, error) {
	env := BuildEnv(resp)
	results := make([]Result, 0, len(expressions))
	for _, e := range expressions {
		ok, err := Eval(env, e)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Expression: e, Passed: ok})
	}
	return results, nil
}

func annotateUnknownNameError(err error, env map[string]any) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "unknown name") {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("%w (available variables: %s)", err, strings.Join(keys, ", "))
	}
	return err
}
