// Package pool implements the WorkerPool: it owns every worker, the
// submission queue, and the per-kind statistics, and routes each
// submitted job to an idle worker, the queue, or inline execution.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironforge/workerpool/internal/job"
	"github.com/ironforge/workerpool/internal/keytable"
	"github.com/ironforge/workerpool/internal/registry"
	"github.com/ironforge/workerpool/internal/telemetry"
	"github.com/ironforge/workerpool/internal/wire"
	"github.com/ironforge/workerpool/internal/worker"
)

// ErrNotStarted is returned by Execute before Start has run.
var ErrNotStarted = pkgerrors.New("pool: not started")

// WorkerPool is the single entry point the rest of the application submits
// work through.
type WorkerPool struct {
	opts     Options
	registry *registry.Registry
	log      *logrus.Entry

	lastJobID atomic.Uint64

	mu             sync.Mutex
	started        bool
	stopped        bool
	workers        []*worker.Worker
	queue          scheduler
	inflight       map[uint64]*job.Job
	queuedCount    int
	executingCount int
	completedCount uint64
	totalSubmitted uint64

	stats *statsTable
}

// New constructs a WorkerPool. It does not spawn any workers — call Start.
func New(opts Options) *WorkerPool {
	reg := opts.Registry
	if reg == nil {
		noop := telemetry.UploaderFunc(func(context.Context, telemetry.Batch) error { return nil })
		reg = registry.NewDefault(keytable.NewRegistry(), telemetry.NewClient(noop, 0, 0))
	}
	return &WorkerPool{
		opts:     opts,
		registry: reg,
		queue:    newScheduler(opts.Policy),
		inflight: make(map[uint64]*job.Job),
		stats:    newStatsTable(opts.Registerer),
		log:      logrus.NewEntry(opts.logger()).WithField("component", "pool"),
	}
}

// Start spawns num_workers workers. Idempotent.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if p.opts.ExpectedProtocolVersion != 0 && p.opts.ExpectedProtocolVersion != wire.ProtocolVersion {
		return pkgerrors.Errorf("pool: protocol version mismatch: pool built for %d, binary is %d",
			p.opts.ExpectedProtocolVersion, wire.ProtocolVersion)
	}

	p.workers = make([]*worker.Worker, p.opts.NumWorkers)
	for i := range p.workers {
		w := worker.New(i, p.opts.maxJobs(), p.registry, p.opts.Warmup, p.log)
		w.Start()
		p.workers[i] = w
		go p.pump(i, w)
	}
	p.started = true
	return nil
}

// Stop stops all workers and aborts everything queued. Idempotent; blocks
// until every worker has joined.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true

	var queued []*job.Job
	for {
		j, ok := p.queue.pop()
		if !ok {
			break
		}
		queued = append(queued, j)
	}
	var executing []*job.Job
	for _, j := range p.inflight {
		if j.Status() == job.StatusExecuting {
			executing = append(executing, j)
		}
	}
	workers := append([]*worker.Worker(nil), p.workers...)
	p.mu.Unlock()

	// Queued jobs abort with no IPC; executing jobs get a JobAborted frame
	// sent to their owning worker.
	for _, j := range queued {
		j.Abort()
	}
	for _, j := range executing {
		j.Abort()
	}

	var g errgroup.Group
	for _, w := range workers {
		if w == nil {
			continue
		}
		w := w
		g.Go(func() error {
			w.Stop()
			return nil
		})
	}
	_ = g.Wait()
}

// Execute assigns a fresh job id, constructs a Job, and routes it: inline
// when there are no workers, handed directly to the first worker with
// capacity when the queue is empty, or appended to the queue otherwise.
func (p *WorkerPool) Execute(req wire.Request) (*job.Job, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, ErrNotStarted
	}
	if !p.registry.Has(req.Kind()) {
		p.mu.Unlock()
		return nil, pkgerrors.Errorf("pool: no handler registered for kind %s", req.Kind())
	}
	p.mu.Unlock()

	id := p.lastJobID.Add(1)
	j := job.New(id, req, job.Hooks{OnChange: p.onChange, OnEnded: p.onEnded}, p.opts.EnableJobAbortError)

	p.mu.Lock()
	p.inflight[id] = j
	p.totalSubmitted++
	numWorkers := len(p.workers)
	p.mu.Unlock()

	j.Submit()

	if numWorkers == 0 {
		p.runInline(j)
		return j, nil
	}

	p.mu.Lock()
	var w *worker.Worker
	if p.queue.len() == 0 {
		w = p.firstAvailableWorkerLocked()
	}
	if w == nil {
		p.queue.push(j)
		p.mu.Unlock()
		return j, nil
	}
	p.mu.Unlock()

	p.handoff(j, w)
	return j, nil
}

// Saturated reports the advisory back-pressure signal: queue.length >=
// max_queue. A MaxQueue of 0 disables the check (never saturated).
func (p *WorkerPool) Saturated() bool {
	if p.opts.MaxQueue <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len() >= p.opts.MaxQueue
}

func (p *WorkerPool) Stats() map[wire.Kind]KindStats { return p.stats.Snapshot() }

func (p *WorkerPool) Completed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completedCount
}

func (p *WorkerPool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queuedCount
}

func (p *WorkerPool) Executing() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executingCount
}

// TotalSubmitted is the lifetime count of jobs Execute has accepted.
// queued + executing + completed always equals TotalSubmitted at every
// observation point.
func (p *WorkerPool) TotalSubmitted() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalSubmitted
}

func (p *WorkerPool) NumWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// WaitReady blocks until every worker has finished its warmup step, or ctx
// is done. Start itself never gates on readiness — this is for callers,
// like a benchmark harness, that want warmup excluded from a timing
// measurement.
func (p *WorkerPool) WaitReady(ctx context.Context) error {
	p.mu.Lock()
	workers := append([]*worker.Worker(nil), p.workers...)
	p.mu.Unlock()

	for _, w := range workers {
		select {
		case <-w.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// WorkerJobCount reports worker i's current in-flight job count, which
// never exceeds its configured maximum.
func (p *WorkerPool) WorkerJobCount(i int) int {
	p.mu.Lock()
	w := p.workers[i]
	p.mu.Unlock()
	if w == nil {
		return 0
	}
	return w.JobCount()
}

// --- internals ---------------------------------------------------------

// firstAvailableWorkerLocked requires p.mu held.
func (p *WorkerPool) firstAvailableWorkerLocked() *worker.Worker {
	for _, w := range p.workers {
		if w != nil && w.CanTakeJobs() {
			return w
		}
	}
	return nil
}

// inlineRef lets an inline (no-worker) job participate in the same
// Abort -> SendAbort path an ordinary worker-backed job uses: Abort calls
// SendAbort on the executing job's WorkerRef regardless of whether that
// ref is a real worker or, here, just a context cancellation.
type inlineRef struct{ cancel context.CancelFunc }

func (r *inlineRef) WorkerID() int    { return -1 }
func (r *inlineRef) SendAbort(uint64) { r.cancel() }

func (p *WorkerPool) runInline(j *job.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j.Dispatch(&inlineRef{cancel: cancel})

	resp, err := p.registry.Dispatch(ctx, j.Kind(), j.Request())
	if err != nil {
		j.Reject(toJobError(err))
		return
	}
	j.Resolve(resp)
}

// handoff assigns j to w. If the worker has raced past capacity (or is
// mid-shutdown) the job fails over to a connection-lost error instead of
// hanging in StatusExecuting forever.
func (p *WorkerPool) handoff(j *job.Job, w *worker.Worker) {
	if !j.Dispatch(w) {
		return // job left StatusQueued concurrently (e.g. aborted)
	}
	if !w.Submit(j.ID(), j.Request()) {
		j.Reject(&job.ConnectionLostError{JobID: j.ID()})
	}
}

func (p *WorkerPool) drainQueue() {
	for {
		p.mu.Lock()
		if p.queue.len() == 0 {
			p.mu.Unlock()
			return
		}
		w := p.firstAvailableWorkerLocked()
		if w == nil {
			p.mu.Unlock()
			return
		}
		j, ok := p.queue.pop()
		p.mu.Unlock()
		if !ok {
			return
		}
		p.handoff(j, w)
	}
}

func (p *WorkerPool) onChange(j *job.Job, old, newStatus job.Status) {
	p.mu.Lock()
	switch {
	case old == job.StatusInit && newStatus == job.StatusQueued:
		p.queuedCount++
	case old == job.StatusQueued && newStatus == job.StatusExecuting:
		p.queuedCount--
		p.executingCount++
	case old == job.StatusQueued && newStatus == job.StatusAborted:
		p.queuedCount--
	case old == job.StatusExecuting && newStatus.Terminal():
		p.executingCount--
	}
	p.mu.Unlock()

	switch newStatus {
	case job.StatusQueued:
		p.stats.onQueued(j.Kind())
	case job.StatusExecuting:
		p.stats.onExecuting(j.Kind())
	}
}

// onEnded handles a job reaching a terminal status: the pool-wide queued/
// executing counts were already decremented via onChange, so this
// increments completed, bumps the per-kind Complete or Error counter, and
// then drains the queue onto whatever capacity just freed up.
func (p *WorkerPool) onEnded(j *job.Job) {
	p.mu.Lock()
	p.completedCount++
	delete(p.inflight, j.ID())
	p.mu.Unlock()

	switch j.Status() {
	case job.StatusSuccess, job.StatusAborted:
		p.stats.onCompleted(j.Kind())
	case job.StatusError:
		p.stats.onError(j.Kind())
	}

	p.drainQueue()
}

func (p *WorkerPool) pump(idx int, w *worker.Worker) {
	for {
		select {
		case frame, ok := <-w.Outbox():
			if !ok {
				return
			}
			p.handleResponse(frame)
		case <-w.Done():
			p.drainOutbox(w)
			p.onWorkerExit(idx, w)
			return
		}
	}
}

func (p *WorkerPool) drainOutbox(w *worker.Worker) {
	for {
		select {
		case frame := <-w.Outbox():
			p.handleResponse(frame)
		default:
			return
		}
	}
}

func (p *WorkerPool) handleResponse(frame []byte) {
	jobID, kind, payload, err := wire.DecodeHeader(frame)
	if err != nil {
		p.log.WithError(err).Error("malformed response frame")
		return
	}

	p.mu.Lock()
	j, ok := p.inflight[jobID]
	p.mu.Unlock()
	if !ok {
		return // late frame for an already-terminal/drained job: dropped
	}

	if kind == wire.KindJobError {
		errPayload, derr := wire.DecodeJobErrorPayload(payload)
		if derr != nil {
			p.log.WithError(derr).Error("malformed JobError payload")
			return
		}
		j.Reject(&job.Error{
			Type: errPayload.Type, Message: errPayload.Message,
			Stack: errPayload.Stack, Code: errPayload.Code,
		})
		return
	}

	resp, derr := wire.DecodeResponse(kind, payload)
	if derr != nil {
		j.Reject(&job.Error{Type: "DispatchError", Message: derr.Error(), Code: "malformed_frame"})
		return
	}
	if resp.Kind() != j.Kind() {
		j.Reject(&job.Error{Type: "DispatchError", Message: "response kind does not match request kind", Code: "kind_mismatch"})
		return
	}
	j.Resolve(resp)
}

// onWorkerExit handles a worker's run loop exiting abnormally: every job
// the dead worker still held rejects with ConnectionLostError, and unless
// NoRespawn is set a replacement is spawned in its place.
func (p *WorkerPool) onWorkerExit(idx int, w *worker.Worker) {
	if !w.Crashed() {
		return // clean Stop(), nothing to recover
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	var affected []*job.Job
	for _, j := range p.inflight {
		if wr, ok := j.Worker(); ok && wr.WorkerID() == idx {
			affected = append(affected, j)
		}
	}
	noRespawn := p.opts.NoRespawn
	p.mu.Unlock()

	for _, j := range affected {
		j.Reject(&job.ConnectionLostError{JobID: j.ID()})
	}

	if noRespawn {
		p.log.WithField("worker", idx).Warn("worker died; respawn disabled")
		return
	}

	p.log.WithField("worker", idx).Warn("worker died; respawning")
	nw := worker.New(idx, p.opts.maxJobs(), p.registry, p.opts.Warmup, p.log)
	nw.Start()

	p.mu.Lock()
	p.workers[idx] = nw
	p.mu.Unlock()

	go p.pump(idx, nw)
	p.drainQueue()
}

func toJobError(err error) *job.Error {
	var he *registry.HandlerError
	if errors.As(err, &he) {
		return &job.Error{Type: "HandlerError", Message: he.Message, Code: he.Code}
	}
	if errors.Is(err, registry.ErrUnknownKind) {
		return &job.Error{Type: "DispatchError", Message: err.Error(), Code: "unknown_kind"}
	}
	return &job.Error{Type: "HandlerError", Message: err.Error()}
}
