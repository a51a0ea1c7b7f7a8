package compliance

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFooterWindow is how long a footer stays fresh for a contact.
const DefaultFooterWindow = 30 * 24 * time.Hour

const DefaultFooterText = "Reply STOP to opt out, HELP for help."

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the common SQL timestamp renderings.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, s)
}

type FooterPolicy struct {
	Window time.Duration
	Text   string
}

func DefaultFooterPolicy() FooterPolicy {
	return FooterPolicy{Window: DefaultFooterWindow, Text: DefaultFooterText}
}

// Required reports whether the next message needs the footer. An empty
// lastFooterAt, or either value failing to parse, requires it.
func (f FooterPolicy) Required(lastFooterAt, now string) bool {
	if strings.TrimSpace(lastFooterAt) == "" {
		return true
	}
	last, err := ParseTimestamp(lastFooterAt)
	if err != nil {
		return true
	}
	n, err := ParseTimestamp(now)
	if err != nil {
		return true
	}
	return f.RequiredAt(&last, n)
}

// RequiredAt is Required for already parsed times; nil means no footer was ever sent.
func (f FooterPolicy) RequiredAt(lastFooterAt *time.Time, now time.Time) bool {
	if lastFooterAt == nil || lastFooterAt.IsZero() || now.IsZero() {
		return true
	}
	return now.Sub(*lastFooterAt) > f.Window
}

// Apply appends the footer text to body when required.
func (f FooterPolicy) Apply(body string, required bool) string {
	if !required || f.Text == "" {
		return body
	}
	if body == "" {
		return f.Text
	}
	return body + " " + f.Text
}
