// Package compliance holds the outbound-message policy decisions: phone
// normalization, inbound consent classification, quiet hours, footer
// freshness and template rendering. Every function here is pure; callers
// pass the Policy explicitly so tenants can override it.
package compliance

import "time"

const (
	DefaultHelpReply   = "Reply STOP to unsubscribe. Msg & data rates may apply."
	DefaultOptOutReply = "You have been unsubscribed and will receive no further messages."
)

type Policy struct {
	QuietHours QuietHours
	Footer     FooterPolicy
	Template   TemplateConfig

	HelpReply   string
	OptOutReply string
}

func DefaultPolicy() Policy {
	return Policy{
		QuietHours:  DefaultQuietHours(),
		Footer:      DefaultFooterPolicy(),
		Template:    DefaultTemplateConfig(),
		HelpReply:   DefaultHelpReply,
		OptOutReply: DefaultOptOutReply,
	}
}

// OutboundRequest is what a send orchestrator knows before sending.
// LastFooterAt is "" when no footer was ever sent.
type OutboundRequest struct {
	LocalTime    string
	Jurisdiction string
	LastFooterAt string
	Now          string
}

type OutboundDecision struct {
	BlockedByQuietHours bool `json:"blockedByQuietHours"`
	FooterRequired      bool `json:"footerRequired"`
}

func (p Policy) Evaluate(req OutboundRequest) OutboundDecision {
	return OutboundDecision{
		BlockedByQuietHours: p.QuietHours.Blocked(req.LocalTime, req.Jurisdiction),
		FooterRequired:      p.Footer.Required(req.LastFooterAt, req.Now),
	}
}

// EvaluateAt builds the request from now in the contact's location.
func (p Policy) EvaluateAt(now time.Time, loc *time.Location, jurisdiction string, lastFooterAt *time.Time) OutboundDecision {
	if loc == nil {
		loc = time.UTC
	}
	req := OutboundRequest{
		LocalTime:    ClockOf(now.In(loc)).String(),
		Jurisdiction: jurisdiction,
		Now:          now.UTC().Format(time.RFC3339Nano),
	}
	if lastFooterAt != nil {
		req.LastFooterAt = lastFooterAt.UTC().Format(time.RFC3339Nano)
	}
	return p.Evaluate(req)
}

// Compose renders tmpl, appends the footer when required and validates the
// final length, footer included.
func (p Policy) Compose(tmpl string, vars map[string]string, footerRequired bool) (string, error) {
	body, err := p.Template.Render(tmpl, vars)
	if err != nil {
		return "", err
	}
	out := p.Footer.Apply(body, footerRequired)
	if err := p.Template.CheckLength(out); err != nil {
		return "", err
	}
	return out, nil
}
