package constraint

import (
	"fmt"
	"strconv"
	"strings"
)

// maxPathDepth bounds path resolution. Paths deeper than this collapse to a
// single not-found cursor rather than being walked segment by segment.
const maxPathDepth = 10

type segmentKind int

const (
	segField segmentKind = iota
	segWildcard
	segIndex
)

type segment struct {
	kind  segmentKind
	field string
	index int
}

// ParsePath splits a dotted, bracket-annotated field path into segments.
// "orders[*].items[0].sku" yields field(orders), wildcard, field(items),
// index(0), field(sku). A bracket group that never closes within its
// component (e.g. "a[b") is treated as a literal final field segment,
// brackets included, rather than an error.
func ParsePath(path string) []segment {
	if path == "" {
		return nil
	}
	components := strings.Split(path, ".")
	segs := make([]segment, 0, len(components))
	for _, comp := range components {
		segs = append(segs, parseComponent(comp)...)
	}
	return segs
}

func parseComponent(comp string) []segment {
	bracketIdx := strings.IndexByte(comp, '[')
	if bracketIdx == -1 {
		return []segment{{kind: segField, field: comp}}
	}

	field := comp[:bracketIdx]
	rest := comp[bracketIdx:]

	var groups []string
	j := 0
	for j < len(rest) {
		if rest[j] != '[' {
			return []segment{{kind: segField, field: comp}}
		}
		end := strings.IndexByte(rest[j:], ']')
		if end == -1 {
			// Unterminated bracket: the remainder is a literal segment name.
			return []segment{{kind: segField, field: comp}}
		}
		end += j
		groups = append(groups, rest[j+1:end])
		j = end + 1
	}

	segs := make([]segment, 0, len(groups)+1)
	segs = append(segs, segment{kind: segField, field: field})
	for _, g := range groups {
		if g == "*" {
			segs = append(segs, segment{kind: segWildcard})
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			// Not a recognized bracket form; fall back to treating the
			// whole original component as one literal field segment.
			return []segment{{kind: segField, field: comp}}
		}
		segs = append(segs, segment{kind: segIndex, index: n})
	}
	return segs
}

func hasWildcard(segs []segment) bool {
	for _, s := range segs {
		if s.kind == segWildcard {
			return true
		}
	}
	return false
}

// notFoundReason classifies why a cursor failed to resolve.
type notFoundReason string

const (
	reasonNone               notFoundReason = ""
	reasonMissing            notFoundReason = "missing"
	reasonWildcardNonArray   notFoundReason = "wildcard_on_non_array"
	reasonDepthExceeded      notFoundReason = "depth_exceeded"
	reasonArrayBounds        notFoundReason = "array_bounds"
)

// cursor carries one candidate location in the argument tree as path
// resolution is walked segment by segment. found distinguishes "the
// property exists (even with a null value)" from "the property is absent".
type cursor struct {
	value          any
	resolvedPath   string
	found          bool
	notFoundReason notFoundReason
}

func appendField(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

// resolve walks segs against args, producing the working list of cursors
// described above. Resolution is iterative: one segment extends
// the whole cursor list at a time.
func resolve(args map[string]any, segs []segment) []cursor {
	if len(segs) > maxPathDepth {
		return []cursor{{found: false, notFoundReason: reasonDepthExceeded}}
	}

	cursors := []cursor{{value: any(args), found: true}}
	for _, seg := range segs {
		next := make([]cursor, 0, len(cursors))
		for _, c := range cursors {
			switch seg.kind {
			case segField:
				next = append(next, stepField(c, seg.field))
			case segIndex:
				next = append(next, stepIndex(c, seg.index))
			case segWildcard:
				next = append(next, stepWildcard(c)...)
			}
		}
		cursors = next
	}
	return cursors
}

func stepField(c cursor, field string) cursor {
	if !c.found {
		return c
	}
	obj, ok := c.value.(map[string]any)
	if !ok {
		return cursor{found: false, notFoundReason: reasonMissing, resolvedPath: appendField(c.resolvedPath, field)}
	}
	val, exists := obj[field]
	if !exists {
		return cursor{found: false, notFoundReason: reasonMissing, resolvedPath: appendField(c.resolvedPath, field)}
	}
	return cursor{value: val, found: true, resolvedPath: appendField(c.resolvedPath, field)}
}

func stepIndex(c cursor, idx int) cursor {
	if !c.found {
		return c
	}
	arr, ok := c.value.([]any)
	path := fmt.Sprintf("%s[%d]", c.resolvedPath, idx)
	if !ok {
		return cursor{found: false, notFoundReason: reasonMissing, resolvedPath: path}
	}
	if idx < 0 || idx >= len(arr) {
		return cursor{found: false, notFoundReason: reasonArrayBounds, resolvedPath: path}
	}
	return cursor{value: arr[idx], found: true, resolvedPath: path}
}

func stepWildcard(c cursor) []cursor {
	if !c.found {
		return []cursor{c}
	}
	arr, ok := c.value.([]any)
	if !ok {
		return []cursor{{found: false, notFoundReason: reasonWildcardNonArray, resolvedPath: c.resolvedPath + "[*]"}}
	}
	if len(arr) == 0 {
		return nil
	}
	out := make([]cursor, 0, len(arr))
	for i, elem := range arr {
		out = append(out, cursor{value: elem, found: true, resolvedPath: fmt.Sprintf("%s[%d]", c.resolvedPath, i)})
	}
	return out
}
