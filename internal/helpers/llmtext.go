// Package helpers holds small shared utilities: pulling structured payloads
// out of model replies and canonicalising URLs for cache keys and dedupe.
package helpers

import (
	"errors"
	"strings"
)

// ExtractJSON returns the first balanced JSON object or array in s. Model
// replies wrap payloads in code fences or prose; both are handled, and
// braces inside JSON strings do not confuse the scan.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF")

	if inner, ok := unwrapFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := balancedFrom(s, i); ok {
				return out, nil
			}
		}
	}
	return "", errors.New("no balanced JSON object or array found")
}

// unwrapFence strips the leading ``` or ~~~ fenced block when the reply opens
// with one, dropping the optional language tag line.
func unwrapFence(s string) (string, bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	var fence string
	switch {
	case strings.HasPrefix(trim, "```"):
		fence = "```"
	case strings.HasPrefix(trim, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}
	rest := trim[len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	if end := strings.Index(rest, fence); end != -1 {
		return rest[:end], true
	}
	return "", false
}

// balancedFrom extracts a balanced JSON value starting at start, tracking
// string literals and escapes so embedded braces are skipped.
func balancedFrom(s string, start int) (string, bool) {
	if s[start] != '{' && s[start] != '[' {
		return "", false
	}
	var (
		stack    []byte
		inString bool
		escape   bool
	)
	stack = append(stack, s[start])
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
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
