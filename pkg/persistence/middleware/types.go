// Package middleware wraps run stores with behavior applied at rest, such
// as encryption and masking of sensitive dataset columns.
package middleware

import "github.com/aretw0/dsflow/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies middlewares so the first one sees calls first.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
