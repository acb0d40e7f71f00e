package simplify

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the tagged classification of a raw value string. Classification
// happens once per recursive step; the dispatch in the walker is a single
// switch over Kind rather than scattered pattern checks.
type Kind int

const (
	KindNil Kind = iota
	KindPointer
	KindCollection
	KindStruct
	KindPrimitive
)

// Shape is the parsed classification of one raw (value, type) pair.
type Shape struct {
	Kind     Kind
	TypeName string // unwrapped element/struct type where known

	// Pointer fields
	Address string // "0x..." token, empty for address-less pointers
	Inner   string // payload to recurse on after one dereference

	// Collection fields
	Length   int // -1 when unknown
	Capacity int // -1 when unknown
	Body     string // bracketed element text, "" when only length is known
	IsMap    bool
}

var (
	// <Type>(0xADDR) — pointer with address tag, payload elsewhere. The
	// type may not contain angle brackets so the match never crosses a
	// nested tag.
	addrTaggedRe = regexp.MustCompile(`^<([^<>]+)>\((0x[0-9a-fA-F]+)\)(.*)$`)

	// <Type>(length: n, cap: m) — collection with known size only.
	lenTaggedRe = regexp.MustCompile(`^<([^<>]+)>\(length:\s*(\d+),\s*cap:\s*(\d+)\)$`)

	// Bare address token anywhere in the value.
	addrTokenRe = regexp.MustCompile(`0x[0-9a-fA-F]{2,}`)

	// Fixed-size array type prefix like [4]int.
	arrayTypeRe = regexp.MustCompile(`^\[\d*\]`)
)

var nilSentinels = map[string]bool{
	"nil":       true,
	"<nil>":     true,
	"null":      true,
	"undefined": true,
	"0x0":       true,
}

// classify decides how a raw value should be handled. First match wins, in
// the order: nil, address-tagged, bare pointer, collection, struct,
// primitive. JSON fallback is applied later, inside primitive handling.
func classify(raw, typeName string) Shape {
	trimmed := strings.TrimSpace(raw)

	// 1. Nil sentinel.
	if nilSentinels[trimmed] || nilSentinels[strings.ToLower(trimmed)] {
		return Shape{Kind: KindNil, TypeName: typeName}
	}

	// 2. Address-tagged formats.
	if m := lenTaggedRe.FindStringSubmatch(trimmed); m != nil {
		length, _ := strconv.Atoi(m[2])
		capacity, _ := strconv.Atoi(m[3])
		return Shape{
			Kind:     KindCollection,
			TypeName: m[1],
			Length:   length,
			Capacity: capacity,
		}
	}
	if m := addrTaggedRe.FindStringSubmatch(trimmed); m != nil {
		return Shape{
			Kind:     KindPointer,
			TypeName: m[1],
			Address:  m[2],
			Inner:    strings.TrimSpace(m[3]),
		}
	}

	// 3. Bare pointer syntax: sigil on the type, or an address token the
	// tagged formats did not consume.
	if strings.HasPrefix(typeName, "*") || strings.HasPrefix(trimmed, "&") {
		inner := strings.TrimPrefix(trimmed, "&")
		addr := ""
		if m := addrTokenRe.FindString(inner); m != "" && !strings.ContainsAny(inner, "{[") {
			addr = m
			inner = ""
		} else if i := strings.IndexAny(inner, "{["); i > 0 {
			if m := addrTokenRe.FindString(inner[:i]); m != "" {
				addr = m
			}
			inner = strings.TrimSpace(inner[i:])
		}
		return Shape{
			Kind:     KindPointer,
			TypeName: strings.TrimPrefix(typeName, "*"),
			Address:  addr,
			Inner:    inner,
		}
	}

	// 4. Collection shape.
	if strings.HasPrefix(typeName, "[]") || strings.HasPrefix(typeName, "map[") ||
		arrayTypeRe.MatchString(typeName) {
		return collectionShape(trimmed, typeName)
	}
	if strings.HasPrefix(trimmed, "map[") && strings.HasSuffix(trimmed, "]") {
		return Shape{
			Kind:     KindCollection,
			TypeName: typeName,
			Length:   -1,
			Capacity: -1,
			Body:     trimmed[len("map[") : len(trimmed)-1],
			IsMap:    true,
		}
	}
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") && balanced(trimmed) {
		return Shape{
			Kind:     KindCollection,
			TypeName: typeName,
			Length:   -1,
			Capacity: -1,
			Body:     trimmed[1 : len(trimmed)-1],
		}
	}

	// 5. Struct/record shape: balanced braces.
	if i := strings.Index(trimmed, "{"); i >= 0 && strings.HasSuffix(trimmed, "}") && balanced(trimmed[i:]) {
		return Shape{
			Kind:     KindStruct,
			TypeName: firstNonEmpty(strings.TrimSpace(trimmed[:i]), typeName),
			Body:     trimmed[i+1 : len(trimmed)-1],
		}
	}

	// 6. Primitive.
	return Shape{Kind: KindPrimitive, TypeName: typeName}
}

// collectionShape parses a value whose type says array/slice/map.
func collectionShape(trimmed, typeName string) Shape {
	s := Shape{
		Kind:     KindCollection,
		TypeName: typeName,
		Length:   -1,
		Capacity: -1,
		IsMap:    strings.HasPrefix(typeName, "map["),
	}
	body := trimmed
	// Delve-style prefix: "len: 3, cap: 3, [...]".
	if i := strings.Index(body, "["); i >= 0 {
		header := body[:i]
		if m := regexp.MustCompile(`len:\s*(\d+)`).FindStringSubmatch(header); m != nil {
			s.Length, _ = strconv.Atoi(m[1])
		}
		if m := regexp.MustCompile(`cap:\s*(\d+)`).FindStringSubmatch(header); m != nil {
			s.Capacity, _ = strconv.Atoi(m[1])
		}
		body = body[i:]
	}
	if strings.HasPrefix(body, "map[") && strings.HasSuffix(body, "]") {
		s.Body = body[len("map[") : len(body)-1]
		s.IsMap = true
	} else if strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]") {
		s.Body = body[1 : len(body)-1]
	}
	return s
}

// balanced reports whether brackets in s balance out, ignoring quoted runs.
func balanced(s string) bool {
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
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && quote == 0
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
