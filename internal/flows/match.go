package flows

import (
	"strings"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

// Match returns the first flow whose keyword is a substring of the
// normalized input. First entry wins; sheet row order is the precedence.
func Match(entries []domain.Flow, normalizedInput string) (domain.Flow, bool) {
	for _, f := range entries {
		keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(normalizedInput, keyword) {
			return f, true
		}
	}
	return domain.Flow{}, false
}

// FindNamed returns the flow whose keyword equals name, ignoring case.
// Used by the admin flow triggers (register, samples).
func FindNamed(entries []domain.Flow, name string) (domain.Flow, bool) {
	for _, f := range entries {
		if strings.EqualFold(strings.TrimSpace(f.Keyword), strings.TrimSpace(name)) {
			return f, true
		}
	}
	return domain.Flow{}, false
}
