package compliance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhone means normalization left no digits; the contact is unaddressable.
	ErrInvalidPhone = errors.New("invalid phone input")

	// ErrUnparseableTimestamp is only surfaced by the parse helpers. Decision
	// functions treat it as "block" or "footer required".
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")

	ErrTemplateTooLong = errors.New("template too long")
)

type TemplateTooLongError struct {
	Length int
	Max    int
}

func (e *TemplateTooLongError) Error() string {
	return fmt.Sprintf("rendered message is %d chars, max %d", e.Length, e.Max)
}

func (e *TemplateTooLongError) Is(target error) bool {
	return target == ErrTemplateTooLong
}
