package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/automaton-io/automaton/model"
	"github.com/oliveagle/jsonpath"
)

var tokenRegex = regexp.MustCompile(`\{(.*?)\}`)

// ResolveParams substitutes every {path.to.value} and {$.jsonpath} token in
// params against the run context. A string that is exactly one token resolves
// to the raw context value; tokens embedded in a longer string are rendered
// with %v. An unresolved token fails with model.TemplatingError.
func ResolveParams(context map[string]any, params map[string]any) (map[string]any, error) {
	output := make(map[string]any)
	if err := resolveParams(context, params, output); err != nil {
		return nil, err
	}
	return output, nil
}

func resolveParams(context map[string]any, params map[string]any, output map[string]any) error {
	for k, v := range params {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			if err := resolveParams(context, tv, out); err != nil {
				return err
			}
			output[k] = out
		case string:
			resolved, err := ResolveString(context, tv)
			if err != nil {
				return err
			}
			output[k] = resolved
		case []any:
			out, err := resolveList(context, tv)
			if err != nil {
				return err
			}
			output[k] = out
		default:
			output[k] = v
		}
	}
	return nil
}

func resolveList(context map[string]any, list []any) ([]any, error) {
	var output []any
	for _, v := range list {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			if err := resolveParams(context, tv, out); err != nil {
				return nil, err
			}
			output = append(output, out)
		case string:
			resolved, err := ResolveString(context, tv)
			if err != nil {
				return nil, err
			}
			output = append(output, resolved)
		case []any:
			out, err := resolveList(context, tv)
			if err != nil {
				return nil, err
			}
			output = append(output, out)
		default:
			output = append(output, v)
		}
	}
	return output, nil
}

// ResolveString substitutes tokens in a single string.
func ResolveString(context map[string]any, s string) (any, error) {
	tokens := tokenRegex.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s, nil
	}
	if len(tokens) == 1 && tokens[0] == s {
		return lookup(context, tokenPath(s))
	}
	newStr := s
	for _, token := range tokens {
		value, err := lookup(context, tokenPath(token))
		if err != nil {
			return nil, err
		}
		newStr = strings.ReplaceAll(newStr, token, fmt.Sprintf("%v", value))
	}
	return newStr, nil
}

func tokenPath(token string) string {
	path := strings.TrimPrefix(token, "{")
	return strings.TrimSuffix(path, "}")
}

func lookup(context map[string]any, path string) (any, error) {
	if strings.HasPrefix(path, "$") {
		value, err := jsonpath.JsonPathLookup(context, path)
		if err != nil {
			return nil, model.TemplatingError{Token: "{" + path + "}"}
		}
		return value, nil
	}
	var current any = context
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, model.TemplatingError{Token: "{" + path + "}"}
		}
		current, ok = m[part]
		if !ok {
			return nil, model.TemplatingError{Token: "{" + path + "}"}
		}
	}
	return current, nil
}
