package docs

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Everything outside the storage-safe alphabet becomes an underscore.
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)
	manyUnders  = regexp.MustCompile(`_{2,}`)
	stripMarks  = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SanitizeFilename normalizes a user-supplied filename to the safe alphabet
// [a-zA-Z0-9_.-]: Unicode is decomposed and diacritics dropped ("Été" ->
// "Ete"), whitespace and specials collapse to single underscores.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if out, _, err := transform.String(stripMarks, name); err == nil {
		name = out
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = manyUnders.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "document"
	}
	return name
}
