package capture

import "strings"

// DefaultDenylist holds the URL fragments excluded from capture out of the
// box: cloud metadata endpoints, certificate-enrollment retries and
// identity-provider housekeeping. None of it is user traffic worth keeping.
var DefaultDenylist = []string{
	"metadata.google.internal",
	"/computeMetadata/",
	"169.254.169.254",
	"privateca.googleapis.com",
	"/certificates:enroll",
	"accounts.google.com/ListAccounts",
	"sts.googleapis.com/v1/token",
	"safebrowsing.googleapis.com",
}

// Filter decides whether a URL is noise that should never be recorded. It is
// a pure substring match over a configurable denylist and runs before any
// record is built, so excluded events never leave the process.
type Filter struct {
	patterns []string
}

// NewFilter creates a filter over the given patterns. A nil or empty slice
// falls back to DefaultDenylist.
func NewFilter(patterns []string) *Filter {
	if len(patterns) == 0 {
		patterns = DefaultDenylist
	}
	return &Filter{patterns: patterns}
}

// ShouldExclude reports whether the URL matches any denylist pattern.
func (f *Filter) ShouldExclude(url string) bool {
	for _, p := range f.patterns {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}

// Patterns returns the active denylist.
func (f *Filter) Patterns() []string {
	out := make([]string, len(f.patterns))
	copy(out, f.patterns)
	return out
}
