package domain

import "sort"

// Built-in banking intents.
const (
	IntentTransferMoney      = "transfer_money"
	IntentPayBill            = "pay_bill"
	IntentCreateAccount      = "create_account"
	IntentCheckBalance       = "check_balance"
	IntentTransactionHistory = "transaction_history"
)

// Well-known slot names shared by the built-in intents.
const (
	SlotAmount         = "amount"
	SlotFromAccount    = "from_account"
	SlotToAccount      = "to_account"
	SlotBiller         = "biller"
	SlotAccountType    = "account_type"
	SlotInitialDeposit = "initial_deposit"
)

// IntentSchema is the static configuration for one intent: the ordered slot
// names it requires and whether executing it causes a side effect (and
// therefore needs confirmation).
type IntentSchema struct {
	Slots         []string `json:"slots" yaml:"slots"`
	SideEffecting bool     `json:"side_effecting" yaml:"side_effecting"`
}

// SchemaRegistry maps intent names to their slot schemas. It is configuration
// loaded at process start, not runtime state, and is safe for concurrent reads
// after construction.
type SchemaRegistry struct {
	schemas map[string]IntentSchema
}

// NewSchemaRegistry returns a registry pre-populated with the built-in
// banking intents.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas: map[string]IntentSchema{
			IntentTransferMoney: {
				Slots:         []string{SlotAmount, SlotFromAccount, SlotToAccount},
				SideEffecting: true,
			},
			IntentPayBill: {
				Slots:         []string{SlotBiller, SlotAmount, SlotFromAccount},
				SideEffecting: true,
			},
			IntentCreateAccount: {
				Slots:         []string{SlotAccountType, SlotInitialDeposit},
				SideEffecting: true,
			},
			IntentCheckBalance: {
				Slots:         []string{SlotAccountType},
				SideEffecting: false,
			},
			IntentTransactionHistory: {
				Slots:         []string{SlotAccountType},
				SideEffecting: false,
			},
		},
	}
}

// Register adds or replaces the schema for an intent. The slot slice is copied.
func (r *SchemaRegistry) Register(name string, schema IntentSchema) {
	schema.Slots = append([]string(nil), schema.Slots...)
	r.schemas[name] = schema
}

// Lookup returns the schema for an intent, with a copy of the slot order.
func (r *SchemaRegistry) Lookup(name string) (IntentSchema, bool) {
	schema, ok := r.schemas[name]
	if !ok {
		return IntentSchema{}, false
	}
	schema.Slots = append([]string(nil), schema.Slots...)
	return schema, true
}

// Intents returns the registered intent names, sorted for determinism.
func (r *SchemaRegistry) Intents() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
