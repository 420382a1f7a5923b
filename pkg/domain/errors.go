package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRecordNotFound is returned when an idempotency key has no audit record.
var ErrRecordNotFound = errors.New("audit record not found")

// ErrDuplicateRecord is returned when appending a record whose key already exists.
var ErrDuplicateRecord = errors.New("audit record already exists")

// ErrAuditUnavailable is returned when the durable audit store cannot be
// reached. The coordinator fails closed on it: no executor runs unaudited.
var ErrAuditUnavailable = errors.New("audit store unavailable")

// ErrRequestInFlight is returned when a duplicate request arrives while a
// prior attempt with the same key is still pending.
var ErrRequestInFlight = errors.New("request already in flight")
