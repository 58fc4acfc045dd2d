package registry

import (
	"context"
	"time"

	"github.com/ironforge/workerpool/internal/wire"
)

// Sleep is a test/diagnostic handler with no real cryptographic work: it
// blocks for DurationMs, returning early with Aborted=true if ctx is
// canceled first, and fails with the request's Error string when one is
// set — useful for exercising the handler-error path on demand.
func Sleep(ctx context.Context, req wire.Request) (wire.Response, error) {
	r := req.(*wire.SleepRequest)
	if r.HasError {
		return nil, &HandlerError{Message: r.Error}
	}

	timer := time.NewTimer(time.Duration(r.DurationMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return &wire.SleepResponse{Aborted: false}, nil
	case <-ctx.Done():
		return &wire.SleepResponse{Aborted: true}, nil
	}
}
