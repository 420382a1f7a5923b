/*
Package gate is the request gate: message validation and sliding-window rate
limiting applied before any intent processing.

Gate failures short-circuit the turn; they never reach the dialogue machine or
the transaction coordinator.
*/
package gate
