package simplify

import "strings"

// splitTop splits s on sep at bracket depth zero. A single linear scan
// tracks bracket depth and quote state so delimiters inside nested values
// or quoted strings never split an element.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	escaped := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start <= len(s) {
		parts = append(parts, s[start:])
	}

	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// cutKeyValue splits "key: value" at the first top-level colon. Colons
// inside nested brackets or quotes (URLs, times, maps) are skipped.
func cutKeyValue(s string) (key, value string, ok bool) {
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case ':':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

// rawField is one unparsed struct field or map entry.
type rawField struct {
	name  string
	value string
	order int // original position, used as the sort tiebreak
}

// parseFields extracts top-level "key: value" pairs from a struct body.
// Entries without a top-level colon are kept as positional fields so a
// malformed body still degrades to something visible.
func parseFields(body string) []rawField {
	parts := splitTop(body, ',')
	fields := make([]rawField, 0, len(parts))
	for i, part := range parts {
		if k, v, ok := cutKeyValue(part); ok {
			fields = append(fields, rawField{name: trimQuotes(k), value: v, order: i})
		} else {
			fields = append(fields, rawField{name: "", value: part, order: i})
		}
	}
	return fields
}

// trimQuotes strips one layer of surrounding quotes from a field key, as
// produced by JSON-ish struct renderings.
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
