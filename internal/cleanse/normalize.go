// Package cleanse normalizes candidate title text. Cleanse is idempotent:
// Cleanse(Cleanse(s)) == Cleanse(s) for every s.
package cleanse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

var quotes = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`,
)

// invisible matches control and format runes that are not whitespace.
var invisible = runes.Predicate(func(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
})

// Cleanse strips control characters, folds typographic quotes to ASCII,
// collapses whitespace runs into one space, trims, and applies NFC.
// NFC runs last so removals cannot leave a decomposed sequence behind.
func Cleanse(s string) string {
	if s == "" {
		return s
	}
	stripped, _, err := transform.String(runes.Remove(invisible), s)
	if err != nil {
		stripped = s
	}
	stripped = quotes.Replace(stripped)
	collapsed := strings.Join(strings.FieldsFunc(stripped, unicode.IsSpace), " ")
	return norm.NFC.String(collapsed)
}

// CleanseCandidate rewrites c.TitleText in place. RawText is never touched.
// It reports whether the title changed.
func CleanseCandidate(c *entity.Candidate) bool {
	next := Cleanse(c.TitleText)
	if next == c.TitleText {
		return false
	}
	c.TitleText = next
	return true
}
