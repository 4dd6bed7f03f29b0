package normalisers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitise(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"nul bytes removed", "a\x00b", "ab"},
		{"control chars removed", "a\x01\x02\x08b", "ab"},
		{"tab kept as space run", "a\t\tb", "a b"},
		{"newlines kept", "a\nb", "a\nb"},
		{"crlf normalised", "a\r\nb\rc", "a\nb\nc"},
		{"space runs collapse", "a     b", "a b"},
		{"three newlines collapse to two", "a\n\n\n\nb", "a\n\nb"},
		{"two newlines kept", "a\n\nb", "a\n\nb"},
		{"invalid utf8 removed", "a\xffb", "ab"},
		{"trimmed", "  \n hello \n\n ", "hello"},
		{"delete char removed", "a\x7fb", "ab"},
		{"unicode preserved", "naïve — résumé", "naïve — résumé"},
		{"empty stays empty", "", ""},
		{"whitespace only becomes empty", " \n\t \n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitise(tt.in))
		})
	}
}
