package results

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold returns the case-folded form used for substring matching. Unlike SQL
// LIKE it folds non-ASCII letters too (Ș/ș, Ă/ă).
func fold(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

// likePattern builds a contains pattern with LIKE metacharacters escaped
// using '\'.
func likePattern(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('%')
	for _, r := range fold(value) {
		switch r {
		case '%', '_', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('%')
	return b.String()
}
