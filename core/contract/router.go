package contract

import (
	"fmt"

	"smartwallet/core/types"
)

// Handler implements one entry point.
type Handler func(ctx Context, calldata *Reader) ([]types.Word, error)

type route struct {
	name    string
	handler Handler
}

// Router maps selectors to handlers by entry-point name.
type Router struct {
	routes map[types.Selector]route
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[types.Selector]route)}
}

// Handle registers h under the selector derived from name. Registering the
// same name twice panics.
func (r *Router) Handle(name string, h Handler) {
	sel := types.SelectorFromName(name)
	if existing, ok := r.routes[sel]; ok {
		panic(fmt.Sprintf("contract: entry point %q collides with %q", name, existing.name))
	}
	r.routes[sel] = route{name: name, handler: h}
}

// Has reports whether the selector is routed.
func (r *Router) Has(sel types.Selector) bool {
	_, ok := r.routes[sel]
	return ok
}

// Name returns the entry-point name of sel.
func (r *Router) Name(sel types.Selector) string {
	return r.routes[sel].name
}

// Dispatch runs the handler for sel. Handlers read their arguments and then
// check calldata.Err once.
func (r *Router) Dispatch(ctx Context, sel types.Selector, calldata []types.Word) ([]types.Word, error) {
	rt, ok := r.routes[sel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, sel)
	}
	return rt.handler(ctx, NewReader(calldata))
}
