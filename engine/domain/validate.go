package domain

import (
	"fmt"
	"strings"
)

// ValidateJob rejects input that cannot produce any extraction work.
// Recognition-time problems (unreadable pages, rate limits) degrade to
// warnings later; only missing input is fatal up front.
func ValidateJob(j Job) error {
	if len(j.Pages) == 0 {
		return NewValidationError("pages", "", ErrNoInput)
	}
	for i, p := range j.Pages {
		if len(p.Image) == 0 && strings.TrimSpace(p.RawText) == "" {
			return NewValidationError(fmt.Sprintf("pages[%d]", i), fmt.Sprintf("index %d", p.Index), ErrEmptyPage)
		}
	}
	return nil
}

// NormalizePanelLabel canonicalizes a printed panel/location label for
// comparison: leading `+`/`-` markers and surrounding whitespace go, case is
// folded. "+A1", "A1" and " +a1 " all compare equal.
func NormalizePanelLabel(label string) string {
	s := strings.TrimSpace(label)
	for len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = strings.TrimSpace(s[1:])
	}
	return strings.ToUpper(s)
}

// SamePanel reports whether two printed panel labels name the same cabinet.
func SamePanel(a, b string) bool {
	return NormalizePanelLabel(a) == NormalizePanelLabel(b)
}
