package domain

import "time"

// RecordStatus is the lifecycle status of an action attempt.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusSuccess    RecordStatus = "success"
	StatusFailure    RecordStatus = "failure"
	StatusRolledBack RecordStatus = "rolled_back"
)

// Terminal reports whether the status is a completed outcome that a duplicate
// lookup may replay.
func (s RecordStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusRolledBack
}

// IdempotencyRecord is the durable, append-only description of one logical
// action attempt. The only permitted mutation after Append is the single
// status/output transition at completion (and Success -> RolledBack).
//
// Key is the deterministic content digest used for duplicate lookup; it must
// never contain a random component. RefID is a per-attempt random identifier
// for log correlation only and plays no part in deduplication.
type IdempotencyRecord struct {
	Key       string `json:"key"`
	RefID     string `json:"ref_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`

	Status         RecordStatus   `json:"status"`
	InputSnapshot  map[string]any `json:"input_snapshot,omitempty"`
	OutputSnapshot any            `json:"output_snapshot,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CloneRecord returns a deep-enough copy for cache/store isolation. The
// output snapshot is shared; callers treat it as immutable.
func (r *IdempotencyRecord) CloneRecord() *IdempotencyRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.InputSnapshot = make(map[string]any, len(r.InputSnapshot))
	for k, v := range r.InputSnapshot {
		out.InputSnapshot[k] = v
	}
	return &out
}
