package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	valid    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

	// Letters that do not decompose into base + combining mark.
	special = strings.NewReplacer(
		"ß", "ss", "æ", "ae", "ø", "o", "đ", "d", "ł", "l", "ı", "i", "œ", "oe",
	)
)

// Generate creates a URL-friendly slug from name. Diacritics are folded to
// their base letter; anything else non-alphanumeric becomes a single hyphen.
//
//	"Da Hong Pao (大红袍)" → "da-hong-pao"
//	"Crème Brûlée Sticker" → "creme-brulee-sticker"
//	"  Hello   World! " → "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Normalize returns s unchanged when it is already a valid slug and
// regenerates it otherwise.
func Normalize(s string) string {
	if IsValid(s) {
		return s
	}
	return Generate(s)
}

// IsValid reports whether s is lower-case alphanumerics joined by single hyphens.
func IsValid(s string) bool {
	return valid.MatchString(s)
}
