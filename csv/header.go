package csv

import (
	"strings"
	"unicode"
)

// NormalizeHeader turns raw column names into contract names: characters
// other than ASCII letters, digits and whitespace are removed (including a
// byte order mark), runs of whitespace and underscores become a single
// underscore and the result is upper cased. "Trip  Duration" and
// "trip _duration" both become TRIP_DURATION.
func NormalizeHeader(header []string) []string {
	ret := make([]string, len(header))
	for i, h := range header {
		ret[i] = normalize(h)
	}
	return ret
}

func normalize(h string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(h) {
		switch {
		case unicode.IsSpace(r) || r == '_':
			space = true
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		default:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte('_')
		}
		space = false
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
