package compliance

import "strings"

type Classification string

const (
	ClassOptOut Classification = "opt-out"
	ClassHelp   Classification = "help"
	ClassNone   Classification = "none"
)

// Substring matches, so "endless" counts as an opt-out. Keep it that way
// unless product signs off on whole-word matching.
var optOutKeywords = []string{
	"pause",
	"stopall",
	"stop",
	"unsubscribe",
	"cancel",
	"end",
	"quit",
	"remove",
}

const helpKeyword = "help"

// Classify maps inbound text to opt-out, help or none. Opt-out wins when both match.
func Classify(body string) Classification {
	text := lettersOnly(body)
	if text == "" {
		return ClassNone
	}

	for _, kw := range optOutKeywords {
		if strings.Contains(text, kw) {
			return ClassOptOut
		}
	}
	if strings.Contains(text, helpKeyword) {
		return ClassHelp
	}
	return ClassNone
}

// lettersOnly lower-cases s and drops everything outside a-z, so "S T O P"
// collapses before matching. A zero is read as the letter o ("St0p").
func lettersOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '0':
			c = 'o'
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		}
		if c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
