// Package registry implements the task registry: a closed mapping from
// wire.Kind to a stateless handler function. Handlers stand in for opaque
// execute(Request) -> Response collaborators with the same shape real
// cryptographic/consensus work would have, not real cryptography.
package registry

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ironforge/workerpool/internal/wire"
)

// Handler maps a decoded request to a response, or fails. Handlers that
// honor cancellation (Sleep, DecryptNotes on large note sets) select on
// ctx.Done(): the worker cancels ctx when it receives a JobAborted control
// message for this job, so a handler that checks ctx stops promptly
// instead of running to completion.
type Handler func(ctx context.Context, req wire.Request) (wire.Response, error)

// ErrUnknownKind is returned by Dispatch for a kind with no registered
// handler.
var ErrUnknownKind = errors.New("registry: unknown kind")

// Registry is the closed kind -> handler mapping. There is no dynamic
// dispatch over user code — every entry is registered at construction time
// by NewDefault or a test's bespoke registry.
type Registry struct {
	handlers map[wire.Kind]Handler
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[wire.Kind]Handler)}
}

// Register binds kind to fn. Re-registering the same kind is a caller bug
// and panics at setup time (this never happens once Start()ed).
func (r *Registry) Register(kind wire.Kind, fn Handler) {
	if _, exists := r.handlers[kind]; exists {
		panic(errors.Errorf("registry: kind %s already registered", kind))
	}
	r.handlers[kind] = fn
}

// Dispatch looks up and runs the handler for kind.
func (r *Registry) Dispatch(ctx context.Context, kind wire.Kind, req wire.Request) (wire.Response, error) {
	fn, ok := r.handlers[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%s", kind)
	}
	return fn(ctx, req)
}

// Has reports whether kind has a registered handler (used by the pool to
// validate a request's kind before allocating a job).
func (r *Registry) Has(kind wire.Kind) bool {
	_, ok := r.handlers[kind]
	return ok
}
