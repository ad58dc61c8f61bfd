package extract

import "strings"

// Behavioral categories assigned to a contact's domain.
const (
	CategoryProvider   = "Email provider"
	CategoryDisposable = "Disposable email"
	CategoryCustom     = "Custom domain"
)

// IsNoReply reports whether an address or display name carries a
// no-reply indicator and should not be treated as a person. Matching
// is case-insensitive over both the address and the name.
func IsNoReply(email, name string) bool {
	haystack := strings.ToLower(email + " " + name)
	for _, indicator := range noReplyIndicators {
		if strings.Contains(haystack, indicator) {
			return true
		}
	}
	return false
}

// Classify assigns the three-way domain category for an address.
// MX reachability is advisory and never overrides this result.
func Classify(email string) string {
	domain := DomainOf(email)
	switch {
	case freeProviders[domain]:
		return CategoryProvider
	case disposableDomains[domain]:
		return CategoryDisposable
	default:
		return CategoryCustom
	}
}
