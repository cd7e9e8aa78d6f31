// Package normalize turns opaque IRIs into space-separated text that the
// n-gram analyzer can index.
package normalize

import (
	"net/url"
	"strings"
	"unicode"
)

// IRI converts an identifier into searchable text.
//
// HTTP(S) IRIs are reduced to their last path segment; anything else is used
// as-is. Separators (-, _, #) become spaces and camel-case humps are split
// while runs of capitals stay together:
//   - "http://example.org/MyEntityName" -> "My Entity Name"
//   - "foo_bar-BAZ" -> "foo bar BAZ"
//
// IRI never fails. An HTTP IRI that cannot be parsed yields "".
func IRI(iri string) string {
	text := iri
	if trimmed := strip(iri); strings.HasPrefix(trimmed, "http") {
		text = lastSegment(trimmed)
	}
	return splitHumps(replaceSeparators(text))
}

// IsURL reports whether the IRI is an HTTP(S) identifier.
func IsURL(iri string) bool {
	return strings.HasPrefix(strings.TrimPrefix(iri, "<"), "http")
}

// strip removes one pair of angle brackets.
func strip(iri string) string {
	return strings.TrimSuffix(strings.TrimPrefix(iri, "<"), ">")
}

func lastSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := u.Path
	if path == "" {
		return ""
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

func replaceSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '#':
			return ' '
		}
		return r
	}, s)
}

// splitHumps inserts a space before an uppercase rune that follows a rune
// which is neither uppercase nor whitespace.
func splitHumps(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)

	// prev tracks the class of the previous rune: 0 none/space, 1 upper, 2 other.
	prev := 0
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prev == 2 {
				b.WriteByte(' ')
			}
			prev = 1
		case unicode.IsSpace(r):
			prev = 0
		default:
			prev = 2
		}
		b.WriteRune(r)
	}
	return b.String()
}
