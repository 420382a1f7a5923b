// Package schema validates slot values before they are committed to
// dialogue state. A Schema maps slot names to types; slots without an
// entry are accepted as-is.
package schema

import (
	"github.com/tellerflow/tellerflow/pkg/domain"
)

// Schema maps slot names to their value types.
type Schema map[string]Type

// Validate checks a single slot value against the schema.
// Slots the schema does not know about pass without inspection.
func (s Schema) Validate(slot string, value any) error {
	typ, ok := s[slot]
	if !ok || typ == nil {
		return nil
	}
	if err := typ.Validate(value); err != nil {
		return &ValidationError{Slot: slot, Reason: err.Error(), Value: value}
	}
	return nil
}

// DefaultSlots returns the validation schema for the built-in banking slots.
func DefaultSlots() Schema {
	return Schema{
		domain.SlotAmount:         Amount(),
		domain.SlotFromAccount:    String(),
		domain.SlotToAccount:      String(),
		domain.SlotBiller:         String(),
		domain.SlotAccountType:    Enum("checking", "savings", "credit"),
		domain.SlotInitialDeposit: NonNegativeAmount(),
	}
}
