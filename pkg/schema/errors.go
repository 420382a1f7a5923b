package schema

import "fmt"

// ValidationError describes a single slot value that failed validation.
type ValidationError struct {
	Slot   string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("slot %s: %s", e.Slot, e.Reason)
}
