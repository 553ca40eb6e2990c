package extract

import (
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// RepairJSON applies heuristic fixes to near-JSON model output: code
// fences are stripped, text outside the outermost object or array is
// discarded, trailing commas are removed and unclosed braces and
// brackets are balanced. The result is a best effort, not guaranteed
// to parse.
func RepairJSON(text string) string {
	s := strings.TrimSpace(text)

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	s = clampToPayload(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = balance(s)

	return strings.TrimSpace(s)
}

// clampToPayload cuts leading and trailing prose around the first
// object or array opener.
func clampToPayload(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	end := strings.LastIndexAny(s, "}]")
	if end >= 0 && end < len(s)-1 {
		// Keep a truncated tail: balance() closes it below.
		tail := strings.TrimSpace(s[end+1:])
		if tail == "" || !strings.ContainsAny(tail, "\"{[") {
			s = s[:end+1]
		}
	}
	return s
}

// balance appends closers for every unclosed brace or bracket, in
// nesting order, ignoring structure inside string literals.
func balance(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += "\""
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}
