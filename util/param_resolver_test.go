package util

import (
	"testing"

	"github.com/automaton-io/automaton/model"
	"github.com/stretchr/testify/require"
)

func TestResolveParams(t *testing.T) {
	context := map[string]any{
		"name": "Ann",
		"pr": map[string]any{
			"number": 42,
			"repo":   "automaton-io/automaton",
		},
		"step0": map[string]any{
			"response": "looks good",
		},
	}

	for scenario, fn := range map[string]func(t *testing.T){
		"plain string passes through": func(t *testing.T) {
			out, err := ResolveParams(context, map[string]any{"message": "hello world"})
			require.NoError(t, err)
			require.Equal(t, "hello world", out["message"])
		},
		"token inside string renders value": func(t *testing.T) {
			out, err := ResolveParams(context, map[string]any{"message": "hello {name}"})
			require.NoError(t, err)
			require.Equal(t, "hello Ann", out["message"])
		},
		"dotted path traverses nested maps": func(t *testing.T) {
			out, err := ResolveParams(context, map[string]any{"message": "pr #{pr.number} on {pr.repo}"})
			require.NoError(t, err)
			require.Equal(t, "pr #42 on automaton-io/automaton", out["message"])
		},
		"whole token keeps raw type": func(t *testing.T) {
			out, err := ResolveParams(context, map[string]any{"number": "{pr.number}"})
			require.NoError(t, err)
			require.Equal(t, 42, out["number"])
		},
		"jsonpath token resolves": func(t *testing.T) {
			out, err := ResolveParams(context, map[string]any{"comment": "{$.step0.response}"})
			require.NoError(t, err)
			require.Equal(t, "looks good", out["comment"])
		},
		"nested maps and lists resolve": func(t *testing.T) {
			out, err := ResolveParams(context, map[string]any{
				"outer": map[string]any{"greeting": "hi {name}"},
				"list":  []any{"{name}", "static", 7},
			})
			require.NoError(t, err)
			require.Equal(t, "hi Ann", out["outer"].(map[string]any)["greeting"])
			require.Equal(t, []any{"Ann", "static", 7}, out["list"])
		},
		"unresolved token is a templating error": func(t *testing.T) {
			_, err := ResolveParams(context, map[string]any{"message": "hello {missing}"})
			require.Error(t, err)
			require.IsType(t, model.TemplatingError{}, err)
		},
		"unresolved nested path is a templating error": func(t *testing.T) {
			_, err := ResolveParams(context, map[string]any{"message": "{pr.missing.field}"})
			require.Error(t, err)
			require.IsType(t, model.TemplatingError{}, err)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestDeepCopyMap(t *testing.T) {
	original := map[string]any{
		"scalar": "value",
		"nested": map[string]any{"k": "v"},
		"list":   []any{map[string]any{"x": 1}},
	}
	copied := DeepCopyMap(original)
	copied["nested"].(map[string]any)["k"] = "changed"
	copied["list"].([]any)[0].(map[string]any)["x"] = 2

	require.Equal(t, "v", original["nested"].(map[string]any)["k"])
	require.Equal(t, 1, original["list"].([]any)[0].(map[string]any)["x"])
}
