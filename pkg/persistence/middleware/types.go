// Package middleware provides composable wrappers around a SessionStore.
// Middlewares transform dialogue state on its way to and from the backend,
// leaving the store implementation itself untouched.
package middleware

import "github.com/tellerflow/tellerflow/pkg/ports"

// Middleware wraps a SessionStore with additional behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares to a store in order. The first middleware in the
// list becomes the outermost wrapper.
func Chain(store ports.SessionStore, middlewares ...Middleware) ports.SessionStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}
