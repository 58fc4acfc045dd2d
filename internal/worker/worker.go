// Package worker implements one pool worker: a dedicated goroutine with a
// bounded set of in-flight jobs and a bidirectional message port to the
// orchestrator. Frames crossing the port are real wire.Marshal-encoded
// bytes, not bare Go structs — even though pool and worker share an
// address space, this keeps the frame format load-bearing rather than
// decorative.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironforge/workerpool/internal/registry"
	"github.com/ironforge/workerpool/internal/wire"
)

// inflight tracks one job currently assigned to this worker.
type inflight struct {
	cancel  context.CancelFunc
	aborted bool
}

// Warmup performs whatever one-time expensive setup a worker needs before
// it is "ready" (e.g. loading proving parameters). The pool never gates on
// it — Start runs it as the first thing the worker's goroutine does, so
// any job already queued on the inbox simply waits behind it: first-job
// latency absorbs the readiness cost instead of blocking the pool.
type Warmup func(ctx context.Context) error

// Worker owns one goroutine and one bidirectional port (outbox/inbox are
// its two ends). MaxJobs bounds len(jobs) — the pool is responsible for
// never handing it more, but Submit double-checks.
type Worker struct {
	id       int
	maxJobs  int
	registry *registry.Registry
	warmup   Warmup
	log      *logrus.Entry

	inbox  chan []byte // pool -> worker: request frames, JobAborted control frames
	outbox chan []byte // worker -> pool: response / JobError frames

	ready chan struct{}
	done  chan struct{}
	stop  chan struct{}

	mu      sync.Mutex
	jobs    map[uint64]*inflight
	crashed bool
}

// New constructs a Worker. It does not start its goroutine — call Start.
func New(id, maxJobs int, reg *registry.Registry, warmup Warmup, log *logrus.Entry) *Worker {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if warmup == nil {
		warmup = func(context.Context) error { return nil }
	}
	return &Worker{
		id:       id,
		maxJobs:  maxJobs,
		registry: reg,
		warmup:   warmup,
		log:      log.WithField("worker", id),
		inbox:    make(chan []byte, maxJobs*4),
		outbox:   make(chan []byte, maxJobs*4),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
		jobs:     make(map[uint64]*inflight),
	}
}

func (w *Worker) WorkerID() int { return w.id }

// Ready is closed once warmup has completed.
func (w *Worker) Ready() <-chan struct{} { return w.ready }

// Outbox is read by the pool's per-worker receive loop.
func (w *Worker) Outbox() <-chan []byte { return w.outbox }

// Done is closed when the worker's run loop has exited, whether via a
// clean Stop or an abnormal Kill/panic. The pool watches it to notice
// worker death.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Crashed reports whether the run loop exited abnormally (Kill, or a
// recovered panic) rather than via Stop.
func (w *Worker) Crashed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.crashed
}

// Kill simulates a fatal worker failure: it cancels every in-flight job's
// context (the way an unexpected thread death would end any work it was
// mid-way through) and ends the run loop, without the orderly frame-level
// abort protocol Stop uses. Exposed for the pool's respawn path and its
// tests.
func (w *Worker) Kill() {
	w.mu.Lock()
	w.crashed = true
	w.mu.Unlock()
	w.cancelAssigned()
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// cancelAssigned cancels every currently-assigned job's context, marks it
// aborted and releases its slot, so its execute goroutine finds it
// unassigned and its eventual output is dropped rather than written to an
// outbox nobody is draining any more.
func (w *Worker) cancelAssigned() {
	w.mu.Lock()
	for id, ij := range w.jobs {
		ij.aborted = true
		ij.cancel()
		delete(w.jobs, id)
	}
	w.mu.Unlock()
}

// CanTakeJobs reports whether this worker's assigned-job count is still
// under its configured maximum.
func (w *Worker) CanTakeJobs() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.jobs) < w.maxJobs
}

func (w *Worker) JobCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.jobs)
}

// Start spawns the worker's goroutine.
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	defer func() {
		if r := recover(); r != nil {
			w.mu.Lock()
			w.crashed = true
			w.mu.Unlock()
			w.log.WithField("panic", r).Error("worker run loop panicked")
		}
		close(w.done)
	}()

	if err := w.warmup(context.Background()); err != nil {
		w.log.WithError(err).Warn("worker warmup failed; continuing degraded")
	}
	close(w.ready)

	for {
		select {
		case <-w.stop:
			return
		case frame, ok := <-w.inbox:
			if !ok {
				return
			}
			w.handleFrame(frame)
		}
	}
}

func (w *Worker) handleFrame(frame []byte) {
	jobID, kind, payload, err := wire.DecodeHeader(frame)
	if err != nil {
		w.log.WithError(err).Error("malformed frame")
		w.sendError(jobID, "DispatchError", err.Error(), "malformed_frame")
		return
	}

	if kind == wire.KindJobAborted {
		w.handleAbort(jobID)
		return
	}

	req, err := wire.DecodeRequest(kind, payload)
	if err != nil {
		w.sendError(jobID, "DispatchError", err.Error(), "malformed_frame")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.jobs[jobID] = &inflight{cancel: cancel}
	w.mu.Unlock()

	go w.execute(ctx, jobID, kind, req)
}

func (w *Worker) execute(ctx context.Context, jobID uint64, kind wire.Kind, req wire.Request) {
	resp, err := func() (resp wire.Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &registry.HandlerError{Message: panicMessage(r), Code: "panic"}
			}
		}()
		return w.registry.Dispatch(ctx, kind, req)
	}()

	w.mu.Lock()
	ij, assigned := w.jobs[jobID]
	delete(w.jobs, jobID)
	w.mu.Unlock()

	if !assigned || ij.aborted {
		// Job was aborted while executing: the handler's output, success
		// or error, is silently dropped.
		return
	}

	if err != nil {
		w.sendError(jobID, errorType(err), err.Error(), errorCode(err))
		return
	}
	if resp.Kind() != kind {
		w.sendError(jobID, "DispatchError", "handler returned mismatched kind", "kind_mismatch")
		return
	}
	w.outbox <- wire.Marshal(jobID, resp)
}

func (w *Worker) handleAbort(jobID uint64) {
	w.mu.Lock()
	ij, ok := w.jobs[jobID]
	if ok {
		ij.aborted = true
		ij.cancel()
	}
	w.mu.Unlock()
	if !ok {
		w.log.WithField("job_id", jobID).Debug("abort for unknown/already-finished job")
	}
}

func (w *Worker) sendError(jobID uint64, typ, message, code string) {
	payload := &wire.JobErrorPayload{Type: typ, Message: message, Code: code}
	select {
	case w.outbox <- wire.Marshal(jobID, payload):
	case <-w.stop:
	}
}

// Submit hands one request frame to the worker. Callers (the pool) must
// only call this on a worker where CanTakeJobs() is true; Submit still
// defends the invariant itself since the check-then-act is not atomic
// across the pool/worker boundary otherwise.
func (w *Worker) Submit(jobID uint64, req wire.Request) bool {
	w.mu.Lock()
	if len(w.jobs) >= w.maxJobs {
		w.mu.Unlock()
		return false
	}
	w.mu.Unlock()

	select {
	case w.inbox <- wire.Marshal(jobID, req):
		return true
	case <-w.stop:
		return false
	}
}

// SendAbort implements job.WorkerRef: the orchestrator calls this when a
// Job executing on this worker is aborted.
func (w *Worker) SendAbort(jobID uint64) {
	payload := &wire.JobAbortedPayload{}
	select {
	case w.inbox <- wire.Marshal(jobID, payload):
	case <-w.stop:
	}
}

// Stop aborts every assigned job and joins the goroutine. Idempotent. It
// closes only the stop channel; the inbox and outbox channels stay open.
func (w *Worker) Stop() {
	w.cancelAssigned()

	select {
	case <-w.stop:
		// already stopped
	default:
		close(w.stop)
	}
	<-w.done
}

func panicMessage(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic in handler"
}

func errorType(err error) string {
	if errors.Is(err, registry.ErrUnknownKind) {
		return "DispatchError"
	}
	return "HandlerError"
}

func errorCode(err error) string {
	var he *registry.HandlerError
	if errors.As(err, &he) {
		return he.Code
	}
	if errors.Is(err, registry.ErrUnknownKind) {
		return "unknown_kind"
	}
	return ""
}
