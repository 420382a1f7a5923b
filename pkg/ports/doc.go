/*
Package ports defines the interfaces (contracts) between the tellerflow core
and the outside world, following Hexagonal Architecture.

The core depends only on these interfaces; concrete adapters (memory, redis,
sqlite) live in pkg/adapters, and business-logic executors are injected by the
host. Contract test suites for the store interfaces are provided so every
adapter is verified against the same semantics.
*/
package ports
