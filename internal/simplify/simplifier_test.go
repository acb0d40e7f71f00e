package simplify

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.MemoryLimitBytes = 1 << 20
	return opts
}

func TestSimplifyNilSentinels(t *testing.T) {
	s := New(testOptions())

	for _, raw := range []string{"nil", "<nil>", "null", "undefined", "0x0"} {
		node := s.Simplify(raw, "*main.User")
		if !node.Metadata.IsNil {
			t.Errorf("Simplify(%q) should be flagged nil", raw)
		}
		if len(node.Children) != 0 {
			t.Errorf("nil node for %q should be terminal", raw)
		}
	}
}

func TestSimplifyPrimitive(t *testing.T) {
	s := New(testOptions())

	node := s.Simplify(`"hello world"`, "string")
	assert.Equal(t, "hello world", node.DisplayValue)
	assert.True(t, node.IsExpanded)
	assert.False(t, node.HasMore)
}

func TestSimplifyStringTruncation(t *testing.T) {
	opts := testOptions()
	opts.MaxStringLength = 10
	s := New(opts)

	node := s.Simplify(`"`+strings.Repeat("x", 50)+`"`, "string")
	require.True(t, node.HasMore)
	assert.Equal(t, "max string length", node.Metadata.TruncatedAt)
	assert.Len(t, node.DisplayValue, 13) // 10 chars + "..."
}

func TestSimplifyCollection(t *testing.T) {
	s := New(testOptions())

	node := s.Simplify("[1, 2, 3]", "[]int")
	require.Len(t, node.Children, 3)
	assert.Equal(t, "2", node.Child("[1]").DisplayValue)
	require.NotNil(t, node.Metadata.ArrayLength)
	assert.Equal(t, 3, *node.Metadata.ArrayLength)
}

func TestSimplifyCollectionTruncation(t *testing.T) {
	opts := testOptions()
	opts.MaxArrayLength = 2
	s := New(opts)

	node := s.Simplify("[1, 2, 3, 4, 5]", "[]int")
	assert.Len(t, node.Children, 2)
	assert.True(t, node.HasMore)
	assert.Equal(t, "max array length", node.Metadata.TruncatedAt)
}

func TestSimplifyNestedCollectionBoundaries(t *testing.T) {
	s := New(testOptions())

	// Commas inside nested brackets and quoted strings must not split.
	node := s.Simplify(`[{a: 1, b: 2}, "x, y", [3, 4]]`, "")
	require.Len(t, node.Children, 3)
	assert.Equal(t, "x, y", node.Child("[1]").DisplayValue)
	assert.Len(t, node.Child("[0]").Children, 2)
}

func TestSimplifyLengthTaggedCollection(t *testing.T) {
	s := New(testOptions())

	node := s.Simplify("<[]main.User>(length: 12, cap: 16)", "[]main.User")
	require.NotNil(t, node.Metadata.ArrayLength)
	assert.Equal(t, 12, *node.Metadata.ArrayLength)
	assert.True(t, node.HasMore)
	assert.False(t, node.IsExpanded)
}

func TestSimplifyMap(t *testing.T) {
	s := New(testOptions())

	node := s.Simplify(`map[status: "ok", retries: 2]`, "map[string]interface{}")
	require.Len(t, node.Children, 2)
	assert.Equal(t, "ok", node.Child("status").DisplayValue)
	assert.Equal(t, "2", node.Child("retries").DisplayValue)
}

func TestFieldPrioritization(t *testing.T) {
	s := New(testOptions())

	node := s.Simplify(`{internal_cache: "x", id: "42", name: "bob"}`, "main.Thing")
	require.Len(t, node.Children, 3)

	order := []string{node.Children[0].Name, node.Children[1].Name, node.Children[2].Name}
	assert.Equal(t, []string{"id", "name", "internal_cache"}, order,
		"business fields must come before low-priority internals")
}

func TestSimplifyStructTruncation(t *testing.T) {
	opts := testOptions()
	opts.MaxObjectKeys = 3
	s := New(opts)

	var fields []string
	for i := 0; i < 10; i++ {
		fields = append(fields, fmt.Sprintf("field%d: %d", i, i))
	}
	node := s.Simplify("{"+strings.Join(fields, ", ")+"}", "main.Wide")

	assert.Len(t, node.Children, 3)
	assert.True(t, node.HasMore)
	require.NotNil(t, node.Metadata.ObjectKeyCount)
	assert.Equal(t, 10, *node.Metadata.ObjectKeyCount)
}

func TestCircularReference(t *testing.T) {
	s := New(testOptions())

	// Concrete scenario: a self-referential pointer value.
	raw := `<*User>(0xAB) {name: "bob", friend: <*User>(0xAB)}`
	node := s.Simplify(raw, "*main.User")

	assert.Equal(t, "0xAB", node.Metadata.MemoryAddress)
	assert.True(t, node.Metadata.IsPointer)

	markers := collectCircular(node)
	require.NotEmpty(t, markers, "expected at least one circular-reference marker")
	for _, m := range markers {
		assert.Equal(t, "0xAB", m.Metadata.CircularRefID)
	}

	// Exactly one fully expanded User subtree.
	expanded := 0
	visit(node, func(v *SimplifiedValue) {
		if v.Metadata.MemoryAddress == "0xAB" && len(v.Children) > 0 {
			expanded++
		}
	})
	assert.Equal(t, 1, expanded)
}

func TestMutualCycleBrokenSharingPreserved(t *testing.T) {
	s := New(testOptions())

	// A.next = B, B.next = A.
	raw := `<*Node>(0xA) {id: 1, next: <*Node>(0xB) {id: 2, next: <*Node>(0xA)}}`
	node := s.Simplify(raw, "*main.Node")

	next := node.Child("next")
	require.NotNil(t, next)
	backRef := next.Child("next")
	require.NotNil(t, backRef)
	assert.Equal(t, "0xA", backRef.Metadata.CircularRefID,
		"A.next.next must be a circular marker referencing A's address")
	assert.Empty(t, backRef.Children)
}

func TestSiblingSharingReusesSubtree(t *testing.T) {
	s := New(testOptions())

	// Both fields point at the same address; the second occurrence must
	// reuse the resolved subtree, not re-parse it.
	raw := `{left: <*Node>(0xCC) {id: 7}, right: <*Node>(0xCC)}`
	node := s.Simplify(raw, "main.Pair")

	left := node.Child("left")
	right := node.Child("right")
	require.NotNil(t, left)
	require.NotNil(t, right)
	assert.Same(t, left, right, "shared address should resolve to the shared subtree")
}

func TestDepthBound(t *testing.T) {
	opts := testOptions()
	opts.MaxDepth = 3
	s := New(opts)

	raw := `{a: {b: {c: {d: {e: 1}}}}}`
	node := s.Simplify(raw, "")

	visit(node, func(v *SimplifiedValue) {
		if v.Metadata.RecursionDepth > opts.MaxDepth {
			t.Errorf("node %q exceeds depth bound: %d", v.DisplayValue, v.Metadata.RecursionDepth)
		}
	})

	truncs := 0
	visit(node, func(v *SimplifiedValue) {
		if v.Metadata.TruncatedAt == "max depth reached" {
			truncs++
		}
	})
	assert.Positive(t, truncs, "deep input must produce a depth-truncated node")
}

func TestMemoryBound(t *testing.T) {
	opts := testOptions()
	opts.MemoryLimitBytes = 256
	s := New(opts)

	var fields []string
	for i := 0; i < 100; i++ {
		fields = append(fields, fmt.Sprintf("field%03d: %q", i, strings.Repeat("v", 40)))
	}
	node := s.Simplify("{"+strings.Join(fields, ", ")+"}", "main.Big")

	hit := false
	visit(node, func(v *SimplifiedValue) {
		if v.Metadata.TruncatedAt == "memory limit reached" {
			hit = true
		}
	})
	assert.True(t, hit, "tiny memory budget must trigger truncation")
}

func TestPointerChainBounded(t *testing.T) {
	opts := testOptions()
	opts.MaxDepth = 100 // generous depth; the pointer ceiling must still hold
	s := New(opts)

	raw := strings.Repeat("&", 20) + "1"
	node := s.Simplify(raw, "*int")

	hit := false
	visit(node, func(v *SimplifiedValue) {
		if v.Metadata.TruncatedAt == "pointer chain limit reached" {
			hit = true
		}
	})
	assert.True(t, hit)
}

func TestJSONFallback(t *testing.T) {
	s := New(testOptions())

	node := s.Simplify(`"{\"b\": 1, \"a\": {\"c\": 2}}"`, "string")
	require.NotNil(t, node.Child("a"))
	require.NotNil(t, node.Child("b"))
	assert.Equal(t, "2", node.Child("a").Child("c").DisplayValue)
}

func TestDeterminism(t *testing.T) {
	s := New(testOptions())

	inputs := []struct{ raw, typ string }{
		{`{id: 1, name: "x", tags: [1, 2, 3]}`, "main.T"},
		{`<*Node>(0xA) {next: <*Node>(0xA)}`, "*main.Node"},
		{`"{\"z\": 1, \"a\": 2}"`, "string"},
		{`map[b: 2, a: 1]`, "map[string]int"},
	}
	for _, in := range inputs {
		first := s.Simplify(in.raw, in.typ)
		second := s.Simplify(in.raw, in.typ)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Simplify(%q) not deterministic (-first +second):\n%s", in.raw, diff)
		}
	}
}

func TestTerminationOnCyclicInput(t *testing.T) {
	s := New(testOptions())

	// A three-node cycle; must terminate with markers, not recurse forever.
	raw := `<*N>(0x1) {n: <*N>(0x2) {n: <*N>(0x3) {n: <*N>(0x1)}}}`
	node := s.Simplify(raw, "*main.N")
	require.NotNil(t, node)
	assert.NotEmpty(t, collectCircular(node))
}

// visit walks the tree, following shared subtrees once.
func visit(v *SimplifiedValue, fn func(*SimplifiedValue)) {
	seen := make(map[*SimplifiedValue]bool)
	var rec func(*SimplifiedValue)
	rec = func(n *SimplifiedValue) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		fn(n)
		for _, c := range n.Children {
			rec(c.Value)
		}
	}
	rec(v)
}

func collectCircular(v *SimplifiedValue) []*SimplifiedValue {
	var out []*SimplifiedValue
	visit(v, func(n *SimplifiedValue) {
		if n.Metadata.CircularRefID != "" {
			out = append(out, n)
		}
	})
	return out
}
