// Package cfi parses EPUB canonical fragment identifiers far enough to
// order two positions within the same publication. Only point identifiers
// are handled; range identifiers are stored by callers as start/end pairs
// of points.
package cfi

import (
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

var Error = errs.Class("cfi")

// Pointer is a parsed position: the integer step path through the package
// document and content documents, plus an optional character offset.
// Indirections ("!") and assertions ("[...]") carry no ordering information
// and are dropped during parsing.
type Pointer struct {
	Steps  []int
	Offset int
}

// Parse accepts either a wrapped identifier ("epubcfi(/6/4!/4/10/2:35)") or
// a bare path ("/6/4!/4/10/2:35").
func Parse(s string) (Pointer, error) {
	raw := strings.TrimSpace(s)
	if strings.HasPrefix(raw, "epubcfi(") {
		if !strings.HasSuffix(raw, ")") {
			return Pointer{}, Error.New("unterminated wrapper in %q", s)
		}
		raw = raw[len("epubcfi(") : len(raw)-1]
	}
	if raw == "" {
		return Pointer{}, Error.New("empty fragment identifier")
	}

	var p Pointer
	seenOffset := false
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case '/':
			if seenOffset {
				return Pointer{}, Error.New("step after offset in %q", s)
			}
			i++
			start := i
			for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
				i++
			}
			if i == start {
				return Pointer{}, Error.New("step without index in %q", s)
			}
			n, err := strconv.Atoi(raw[start:i])
			if err != nil {
				return Pointer{}, Error.Wrap(err)
			}
			p.Steps = append(p.Steps, n)
		case '!':
			// Indirection into the referenced content document. The step
			// sequence keeps its spine order across it.
			i++
		case '[':
			end := strings.IndexByte(raw[i:], ']')
			if end < 0 {
				return Pointer{}, Error.New("unterminated assertion in %q", s)
			}
			i += end + 1
		case ':':
			if seenOffset {
				return Pointer{}, Error.New("duplicate offset in %q", s)
			}
			i++
			start := i
			for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
				i++
			}
			if i == start {
				return Pointer{}, Error.New("offset without value in %q", s)
			}
			n, err := strconv.Atoi(raw[start:i])
			if err != nil {
				return Pointer{}, Error.Wrap(err)
			}
			p.Offset = n
			seenOffset = true
		default:
			return Pointer{}, Error.New("unexpected character %q in %q", raw[i], s)
		}
	}
	if len(p.Steps) == 0 {
		return Pointer{}, Error.New("no steps in %q", s)
	}
	return p, nil
}

// Compare orders two pointers in document order: step paths are compared
// element-wise, a parent sorts before anything beneath it, and character
// offsets break ties between identical paths.
func Compare(a, b Pointer) int {
	n := len(a.Steps)
	if len(b.Steps) < n {
		n = len(b.Steps)
	}
	for i := 0; i < n; i++ {
		if a.Steps[i] != b.Steps[i] {
			if a.Steps[i] < b.Steps[i] {
				return -1
			}
			return 1
		}
	}
	if len(a.Steps) != len(b.Steps) {
		if len(a.Steps) < len(b.Steps) {
			return -1
		}
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// CompareStrings parses both identifiers and compares them. Either side
// failing to parse yields an error; callers decide whether that aborts or
// degrades.
func CompareStrings(a, b string) (int, error) {
	pa, err := Parse(a)
	if err != nil {
		return 0, err
	}
	pb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return Compare(pa, pb), nil
}

// Valid reports whether s parses as a point identifier.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
