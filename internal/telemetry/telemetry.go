// Package telemetry is the stand-in for the real Iron Fish telemetry
// client the SubmitTelemetry handler dispatches to: batching is the
// pool's concern, the upload itself is an opaque collaborator. It models
// the collaborator's real shape — a graffiti-tagged batch upload,
// rate-limited so a burst of points doesn't hammer the ingest host.
package telemetry

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Point mirrors wire.TelemetryPoint without importing the wire package
// (handlers decide how to map one onto the other).
type Point struct {
	Name        string
	TimestampMs int64
	Fields      map[string]float64
}

// Batch is one graffiti-tagged group of points bound for ApiHost.
type Batch struct {
	Points   []Point
	Graffiti string
	ApiHost  string
}

// Uploader is the external collaborator's interface: submit one batch, or
// fail. Production wires this to an HTTP client; tests wire it to a stub.
type Uploader interface {
	Upload(ctx context.Context, batch Batch) error
}

// UploaderFunc adapts a function to an Uploader.
type UploaderFunc func(ctx context.Context, batch Batch) error

func (f UploaderFunc) Upload(ctx context.Context, batch Batch) error { return f(ctx, batch) }

// Client rate-limits outgoing batches so the telemetry path degrades
// gracefully under load instead of either blocking the caller or
// overwhelming the ingest host.
type Client struct {
	uploader Uploader
	limiter  *rate.Limiter

	dropped uint64
}

// NewClient builds a Client allowing up to burst batches immediately and
// ratePerSecond thereafter. ratePerSecond <= 0 disables limiting.
func NewClient(uploader Uploader, ratePerSecond float64, burst int) *Client {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Client{uploader: uploader, limiter: limiter}
}

// Submit uploads batch if the rate limiter currently allows it; otherwise
// it increments Dropped and returns nil — telemetry is best-effort, and a
// dropped batch is never surfaced as a handler error.
func (c *Client) Submit(ctx context.Context, batch Batch) error {
	if c.limiter != nil && !c.limiter.Allow() {
		atomic.AddUint64(&c.dropped, uint64(len(batch.Points)))
		return nil
	}
	return c.uploader.Upload(ctx, batch)
}

// Dropped returns the cumulative count of points shed by the rate limiter.
func (c *Client) Dropped() uint64 { return atomic.LoadUint64(&c.dropped) }
