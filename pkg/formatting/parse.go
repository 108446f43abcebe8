package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when model output holds no JSON value that
// decodes into the requested type.
var ErrParseFailed = errors.New("failed to parse response")

var (
	jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")
	thinkRegex     = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// Parse decodes model output into T. It tries, in order: the whole
// content, the first markdown code fence, and the first balanced JSON
// object or array embedded in surrounding prose. Reasoning blocks wrapped
// in <think> tags are discarded first.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(thinkRegex.ReplaceAllString(content, ""))

	for _, candidate := range candidates(content) {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, content)
}

func candidates(content string) []string {
	out := []string{content}
	if m := jsonBlockRegex.FindStringSubmatch(content); len(m) >= 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if s, ok := Extract(content); ok {
		out = append(out, s)
	}
	return out
}

// Extract returns the first balanced JSON object or array in s. String
// literals are honored so braces inside them do not count.
func Extract(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
