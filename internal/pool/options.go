package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ironforge/workerpool/internal/registry"
	"github.com/ironforge/workerpool/internal/worker"
)

// Policy selects how queued jobs are drained onto available workers.
type Policy int

const (
	// FIFO drains the queue in submission order regardless of kind. Default.
	FIFO Policy = iota
	// RoundRobinByKind considers one job per kind in a rotating order, so a
	// high-frequency kind cannot starve a rarer one. Within a kind, order is
	// still FIFO.
	RoundRobinByKind
)

// Options configures a WorkerPool. The zero value is valid: NumWorkers=0
// means every job runs inline on the caller's goroutine.
type Options struct {
	NumWorkers int
	MaxJobs    int // per worker; <=0 defaults to 1
	MaxQueue   int // advisory soft limit for Saturated(); 0 means "always saturated once non-empty" is NOT implied — 0 disables the check (never saturated)

	Policy Policy

	// EnableJobAbortError controls every job's abort-rejection behavior —
	// see job.New.
	EnableJobAbortError bool

	// NoRespawn disables the worker-respawn-on-death behavior.
	NoRespawn bool

	// ExpectedProtocolVersion, if non-zero, must match wire.ProtocolVersion
	// or Start returns an error.
	ExpectedProtocolVersion uint32

	// Registry supplies the kind -> handler mapping. Nil builds
	// registry.NewDefault with fresh keytable/telemetry state.
	Registry *registry.Registry

	// Warmup is passed to every spawned worker. Nil is a no-op.
	Warmup worker.Warmup

	// Registerer, if non-nil, receives the pool's per-kind counters as
	// prometheus collectors. Nil skips metrics registration entirely — the
	// pool never owns an HTTP listener regardless.
	Registerer prometheus.Registerer

	Logger *logrus.Logger
}

func (o Options) maxJobs() int {
	if o.MaxJobs <= 0 {
		return 1
	}
	return o.MaxJobs
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}
