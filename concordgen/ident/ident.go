// Package ident mangles schema definition names into safe identifiers.
//
// Front ends name instantiated generics after their source syntax, e.g.
// "Page<User>" or "Pair<string, [number, Date]>". Sanitize rewrites those
// names deterministically and is applied identically wherever a definition is
// declared or referenced, so cross references always resolve.
package ident

import (
	"strings"
	"unicode"
)

// DefinitionsPrefix is the JSON pointer prefix of local definition references.
const DefinitionsPrefix = "#/definitions/"

// Sanitize rewrites template syntax in name, scanning left to right:
//
//	"[]" -> "_array"
//	"<"  -> "_of_"
//	"["  -> "tuple_of_"
//	">"  -> "_end"
//	"]"  -> "_end"
//	","  -> "_" (whitespace around the comma is dropped)
func Sanitize(name string) string {
	if !strings.ContainsAny(name, "<>[],") {
		return name
	}
	var b strings.Builder
	b.Grow(len(name) + 16)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '[' && i+1 < len(name) && name[i+1] == ']':
			b.WriteString("_array")
			i++
		case c == '<':
			b.WriteString("_of_")
		case c == '[':
			b.WriteString("tuple_of_")
		case c == '>', c == ']':
			b.WriteString("_end")
		case c == ',':
			trimTrailingSpace(&b)
			b.WriteByte('_')
			for i+1 < len(name) && isSpace(name[i+1]) {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)
	if len(trimmed) != len(s) {
		b.Reset()
		b.WriteString(trimmed)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Deref strips the local definitions prefix from a reference.
func Deref(ref string) string {
	return strings.TrimPrefix(ref, DefinitionsPrefix)
}

// FromRef returns the sanitized definition name a reference points to.
func FromRef(ref string) string {
	return Sanitize(Deref(ref))
}
