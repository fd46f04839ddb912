package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ConstructionError reports malformed expressions.
type ConstructionError struct {
	Problems []string
}

func newConstructionError(format string, args ...any) *ConstructionError {
	return &ConstructionError{Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *ConstructionError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid expression: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid expression: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// IsConstructionError reports whether err is a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}
