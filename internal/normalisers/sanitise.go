package normalisers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	horizontalRuns = regexp.MustCompile(`[ \t]+`)
	blankLineRuns  = regexp.MustCompile(`\n{3,}`)
)

// Sanitise cleans raw text for storage and embedding: line endings are
// normalised to \n, NUL bytes, control characters (other than tab and
// newline), unpaired surrogates and invalid UTF-8 sequences are
// removed, runs of horizontal whitespace collapse to a single space,
// runs of three or more newlines collapse to two, and leading and
// trailing whitespace is trimmed.
func Sanitise(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		if r < 0x20 && r != '\t' && r != '\n' {
			continue
		}
		if r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}

	out := horizontalRuns.ReplaceAllString(b.String(), " ")
	out = blankLineRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
