package utils

import (
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"
)

// Converts a "file://" URI to a filesystem path.
func UriToPath(u string) string {
	if strings.HasPrefix(u, "file://") {
		uu, err := url.Parse(u)
		if err == nil {
			return uu.Path
		}
	}
	return u
}

// Converts a filesystem path to a "file://" URI.
func PathToURI(p string) string {
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// Appends a string to a slice only if it's not already present.
func AppendUnique(slice []string, v string) []string {
	if slices.Contains(slice, v) {
		return slice
	}
	return append(slice, v)
}

// LineAndUTF16Column converts a byte offset in text into a zero-based line
// and a column counted in UTF-16 code units, as editors expect.
func LineAndUTF16Column(text string, offset int) (line, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\n':
			line++
			col = 0
		case r >= 0x10000:
			col += 2
		default:
			col++
		}
		i += size
	}
	return line, col
}
