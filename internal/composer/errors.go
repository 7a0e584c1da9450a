package composer

import (
	"errors"
	"fmt"
)

var (
	ErrNoDefault     = errors.New("template set has no default template")
	ErrInvalid       = errors.New("invalid template")
	ErrGenericOutput = errors.New("rendered message lacks customer or classification detail")
	ErrRender        = errors.New("template render failed")
)

// Error is returned when no template can produce a message.
type Error struct {
	Template string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compose with template %q: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
