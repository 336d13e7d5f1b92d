// Package escape implements the whitespace-safe encoding shared by the WAL
// and snapshot on-disk formats, so that arbitrary key/value bytes can be
// stored in a line-oriented, space-delimited file without ambiguity.
package escape

import "strings"

// Encode replaces the five bytes that would otherwise break line-oriented,
// space-delimited framing: space, tab, LF, CR, and backslash itself.
func Encode(s string) string {
	if !strings.ContainsAny(s, " \t\n\r\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			b.WriteString(`\s`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Decode reverses Encode. An unrecognized escape sequence (a backslash not
// followed by one of s, t, n, r, \) is passed through literally rather than
// rejected — callers never see a parse error from this package.
func Decode(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 's':
				b.WriteByte(' ')
				i++
				continue
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
