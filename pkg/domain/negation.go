package domain

// NegationScope is the category of entity a detected negation applies to.
type NegationScope string

const (
	ScopeAccountType NegationScope = "account_type"
	ScopeAmount      NegationScope = "amount"
	ScopeAction      NegationScope = "action"
	ScopeBroad       NegationScope = "broad"
)

// Negation is the structured result of negation detection over an utterance.
// It is consumed by slot filling to shrink the candidate domain for a slot
// (e.g. exclude an account type the user ruled out).
type Negation struct {
	Present bool          `json:"present"`
	Scope   NegationScope `json:"scope,omitempty"`
	Target  string        `json:"target,omitempty"`
}

// ImplicitAmount is a symbolic amount request pending numeric resolution
// against a reference value (e.g. an account balance).
type ImplicitAmount string

const (
	AmountAll       ImplicitAmount = "all"
	AmountRemaining ImplicitAmount = "remaining"
	AmountMax       ImplicitAmount = "max"
	AmountHalf      ImplicitAmount = "half"
	AmountNone      ImplicitAmount = "none"
)
