package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// French accents are the common case for Montréal instructor and
// department names.
var fold = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a", "á", "a",
	"ç", "c",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i", "í", "i",
	"ô", "o", "ö", "o", "ó", "o",
	"ù", "u", "û", "u", "ü", "u", "ú", "u",
	"ÿ", "y", "œ", "oe", "æ", "ae",
)

func normalize(s string) string {
	return fold.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Generate creates a URL-friendly slug, used as the default instructor id.
//
//   - "Élise Côté"        → "elise-cote"
//   - "Jean-François  Roy" → "jean-francois-roy"
func Generate(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(normalize(name), "-"), "-")
}

// Key reduces s to lowercase ASCII letters and digits only. Two labels with
// equal keys are considered the same, so "TOUGH_GRADER" and "Tough Grader"
// both yield "toughgrader".
func Key(s string) string {
	return nonAlnum.ReplaceAllString(normalize(s), "")
}
