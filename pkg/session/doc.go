/*
Package session orchestrates access to per-session dialogue state.

Turns for one session must be applied strictly in submission order; the
Manager provides that serialization with reference-counted per-session locks,
optionally backed by a distributed locker when multiple replicas share a
store.
*/
package session
