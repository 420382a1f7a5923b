package schema

import (
	"fmt"
	"math"
	"strings"
)

// Type validates a single slot value.
type Type interface {
	// Name returns the human-readable type name used in error messages.
	Name() string
	// Validate checks a value against the type's constraints.
	Validate(value any) error
}

// AmountType accepts positive, finite numeric values.
type AmountType struct {
	allowZero bool
}

// Amount returns a type that accepts strictly positive amounts.
func Amount() Type { return AmountType{} }

// NonNegativeAmount returns a type that also accepts zero.
func NonNegativeAmount() Type { return AmountType{allowZero: true} }

func (t AmountType) Name() string {
	if t.allowZero {
		return "non-negative amount"
	}
	return "amount"
}

func (t AmountType) Validate(value any) error {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("expected a number, got %T", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("amount must be a finite number")
	}
	if t.allowZero {
		if f < 0 {
			return fmt.Errorf("amount must not be negative, got %v", f)
		}
		return nil
	}
	if f <= 0 {
		return fmt.Errorf("amount must be positive, got %v", f)
	}
	return nil
}

// StringType accepts non-empty strings.
type StringType struct{}

// String returns a type that accepts non-empty strings.
func String() Type { return StringType{} }

func (StringType) Name() string { return "string" }

func (StringType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %T", value)
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

// EnumType accepts one of a fixed set of strings.
type EnumType struct {
	allowed []string
}

// Enum returns a type that accepts only the listed values.
func Enum(allowed ...string) Type { return EnumType{allowed: allowed} }

func (t EnumType) Name() string {
	return fmt.Sprintf("one of [%s]", strings.Join(t.allowed, ", "))
}

func (t EnumType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %T", value)
	}
	for _, a := range t.allowed {
		if strings.EqualFold(s, a) {
			return nil
		}
	}
	return fmt.Errorf("%q is not %s", s, t.Name())
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
