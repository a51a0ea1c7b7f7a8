package compliance

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the single-segment SMS limit.
const DefaultMaxLength = 160

const (
	DefaultAppointmentType = "appointment"
	DefaultTemplate        = "Hi {{first_name}}, it's {{brand_name}}. Would {{slot_a}} or {{slot_b}} work for your {{appointment_type}}?"
)

// Placeholder tokens recognized by Render.
const (
	VarFirstName       = "first_name"
	VarBrandName       = "brand_name"
	VarSlotA           = "slot_a"
	VarSlotB           = "slot_b"
	VarAppointmentType = "appointment_type"
)

var knownVars = []string{
	VarFirstName,
	VarBrandName,
	VarSlotA,
	VarSlotB,
	VarAppointmentType,
}

type TemplateConfig struct {
	Default                string
	DefaultAppointmentType string
	MaxLength              int
}

func DefaultTemplateConfig() TemplateConfig {
	return TemplateConfig{
		Default:                DefaultTemplate,
		DefaultAppointmentType: DefaultAppointmentType,
		MaxLength:              DefaultMaxLength,
	}
}

// Render substitutes every recognized {{token}} in tmpl (or the default when
// tmpl is blank) and rejects results longer than the max length. Missing
// values render as "", except appointment_type which falls back to its default.
func (c TemplateConfig) Render(tmpl string, vars map[string]string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = c.Default
	}

	pairs := make([]string, 0, len(knownVars)*2)
	for _, name := range knownVars {
		val := vars[name]
		if name == VarAppointmentType && strings.TrimSpace(val) == "" {
			val = c.DefaultAppointmentType
		}
		pairs = append(pairs, "{{"+name+"}}", val)
	}
	out := strings.NewReplacer(pairs...).Replace(tmpl)

	if err := c.CheckLength(out); err != nil {
		return "", err
	}
	return out, nil
}

// CheckLength fails with *TemplateTooLongError when text exceeds the max.
// A non-positive max means DefaultMaxLength.
func (c TemplateConfig) CheckLength(text string) error {
	limit := c.MaxLength
	if limit <= 0 {
		limit = DefaultMaxLength
	}
	if n := utf8.RuneCountInString(text); n > limit {
		return &TemplateTooLongError{Length: n, Max: limit}
	}
	return nil
}
