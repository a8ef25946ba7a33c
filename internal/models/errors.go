package models

import "fmt"

// ValidationError is a locally detected bad parameter. It never reaches
// the transport; the caller's state is unaffected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
