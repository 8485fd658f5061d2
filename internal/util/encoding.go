package util

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// FoldIdentity returns the canonical lower-case form of a user-supplied
// identity string for use in counter keys. Lookups never use it; account
// matching stays exact.
func FoldIdentity(s string) string {
	// cases.Caser is stateful and not safe for concurrent use.
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}
