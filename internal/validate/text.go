package validate

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxChatLength caps a single chat line, in runes.
const MaxChatLength = 200

// form feed followed by a digit switches colors in some terminals and clients
var colorCodes = regexp.MustCompile(`\f\d`)

// SanitizeChat returns s cleared of color codes and control characters,
// trimmed and cut to MaxChatLength runes.
func SanitizeChat(s string) string {
	s = colorCodes.ReplaceAllLiteralString(s, "")

	var b strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if n == MaxChatLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
