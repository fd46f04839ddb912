package model

import (
	"errors"
	"fmt"
)

// FieldNotFoundError is returned when a field reference does not resolve to a
// declared field of the view.
type FieldNotFoundError struct {
	View  string
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found on %s", e.Field, e.View)
}

// IsFieldNotFound reports whether err is a FieldNotFoundError.
func IsFieldNotFound(err error) bool {
	var fe *FieldNotFoundError
	return errors.As(err, &fe)
}
