package account

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier trims, applies NFKC and case folds s. Usernames and emails are
// indexed and looked up in this form.
func NormalizeIdentifier(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return cases.Fold().String(s)
}
