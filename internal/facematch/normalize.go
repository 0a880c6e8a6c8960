package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// ASCIILabel prepares a name for the bitmap overlay font: diacritics are removed,
// remaining non-ASCII or control runes become '?', and whitespace is collapsed.
func ASCIILabel(name string) string {
	name = RemoveDiacritics(name)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case r > unicode.MaxASCII || unicode.IsControl(r):
			return '?'
		}
		return r
	}, name)
	return strings.Join(strings.Fields(mapped), " ")
}
