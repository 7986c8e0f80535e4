package schema

import (
	"strings"
)

// StripCodeFence removes a Markdown code fence (```json ... ```) wrapping the text.
// A missing closing fence is tolerated since truncated completions lose it first.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Drop the opening line, which may carry a language tag
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimLeft(s[3:], "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RepairTruncated closes a single top-level array or object that was cut off.
//
// The repair only applies when the text starts with '[' or '{', every closer
// seen so far matches its opener, the text is not cut inside a string, and the
// top-level value has not already been closed. In every other case the input is
// returned unchanged and the parser decides.
func RepairTruncated(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '[' && s[0] != '{') {
		return s
	}

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 || !matches(stack[len(stack)-1], c) {
				return s
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 && i != len(s)-1 {
				// Top-level value closed before the end: not a single truncated value
				return s
			}
		}
	}

	if inString || len(stack) == 0 {
		return s
	}

	repaired := strings.TrimRight(s, " \t\r\n")
	repaired = strings.TrimSuffix(repaired, ",")

	var b strings.Builder
	b.Grow(len(repaired) + len(stack))
	b.WriteString(repaired)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String()
}

func matches(open, close byte) bool {
	return (open == '[' && close == ']') || (open == '{' && close == '}')
}
