package compliance

import "strings"

// NormalizePhone returns the canonical contact key for raw phone input:
// a leading "+" followed by digits only. It returns "" when no digits remain.
//
// Ten digit input is assumed to be a US number, eleven digits starting with 1
// already carry the US country code.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(raw, "+") {
		return "+" + digits
	}

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	default:
		return "+" + digits
	}
}

// CanonicalPhone is NormalizePhone with the empty result mapped to ErrInvalidPhone.
func CanonicalPhone(raw string) (string, error) {
	key := NormalizePhone(raw)
	if key == "" {
		return "", ErrInvalidPhone
	}
	return key, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
