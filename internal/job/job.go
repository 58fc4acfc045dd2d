package job

import (
	"context"
	"sync"

	"github.com/ironforge/workerpool/internal/wire"
)

// WorkerRef is the minimal shape a Job needs from whatever owns it while
// executing — just enough to correlate for abort delivery without job
// importing the worker package (which in turn imports job).
type WorkerRef interface {
	WorkerID() int
	SendAbort(jobID uint64)
}

// Hooks are the two events a Job exposes to whatever owns it: OnChange
// fires for every legal status transition, OnEnded fires once when a job
// reaches a terminal status. Both are invoked synchronously on the
// orchestrator goroutine that drove the transition — never concurrently
// with each other for the same Job.
type Hooks struct {
	OnChange func(job *Job, old, new Status)
	OnEnded  func(job *Job)
}

// Job is the pool-side handle for one unit of work.
type Job struct {
	id      uint64
	request wire.Request
	hooks   Hooks

	mu     sync.Mutex
	status Status
	worker WorkerRef // nil unless status == executing

	enableAbortError bool
	done             chan struct{}
	response         wire.Response
	err              error
}

// New constructs a Job in StatusInit. enableAbortError controls whether
// Result() rejects with *AbortedError once the job is aborted, or simply
// never resolves (the zero-value default) — an opt-in for callers that
// want abort surfaced as an error rather than left pending forever.
func New(id uint64, request wire.Request, hooks Hooks, enableAbortError bool) *Job {
	return &Job{
		id:               id,
		request:          request,
		hooks:            hooks,
		status:           StatusInit,
		enableAbortError: enableAbortError,
		done:             make(chan struct{}),
	}
}

func (j *Job) ID() uint64            { return j.id }
func (j *Job) Request() wire.Request { return j.request }
func (j *Job) Kind() wire.Kind       { return j.request.Kind() }

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Worker returns the worker currently executing this job, if any.
func (j *Job) Worker() (WorkerRef, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.worker, j.worker != nil
}

// transition enforces the legal DAG and fires hooks. Returns false (no-op)
// if the transition is illegal from the current state — callers use this
// to make repeated terminal-state messages (late responses, re-aborts) a
// silent no-op rather than a panic.
func (j *Job) transition(to Status) bool {
	j.mu.Lock()
	from := j.status
	if from == to {
		j.mu.Unlock()
		return false
	}
	if !canTransition(from, to) {
		j.mu.Unlock()
		return false
	}
	j.status = to
	if to != StatusExecuting {
		j.worker = nil
	}
	terminal := to.Terminal()
	j.mu.Unlock()

	if j.hooks.OnChange != nil {
		j.hooks.OnChange(j, from, to)
	}
	if terminal {
		close(j.done)
		if j.hooks.OnEnded != nil {
			j.hooks.OnEnded(j)
		}
	}
	return true
}

// Submit transitions init -> queued. Called once by the pool when the job
// is created.
func (j *Job) Submit() bool { return j.transition(StatusQueued) }

// Dispatch transitions queued -> executing and records the worker (nil for
// the inline, no-workers-configured path).
func (j *Job) Dispatch(w WorkerRef) bool {
	j.mu.Lock()
	if j.status != StatusQueued {
		j.mu.Unlock()
		return false
	}
	j.mu.Unlock()
	ok := j.transition(StatusExecuting)
	if ok {
		j.mu.Lock()
		j.worker = w
		j.mu.Unlock()
	}
	return ok
}

// Resolve transitions executing -> success and delivers resp to Result().
// A resolve arriving after the job has already reached a terminal state
// (e.g. it was aborted) is silently dropped.
func (j *Job) Resolve(resp wire.Response) {
	j.mu.Lock()
	already := j.status.Terminal()
	j.mu.Unlock()
	if already {
		return
	}
	j.response = resp
	j.transition(StatusSuccess)
}

// Reject transitions executing -> error and delivers err to Result().
func (j *Job) Reject(err error) {
	j.mu.Lock()
	already := j.status.Terminal()
	j.mu.Unlock()
	if already {
		return
	}
	j.err = err
	j.transition(StatusError)
}

// Abort transitions queued|executing -> aborted. Idempotent: a second
// Abort call on an already-terminal job is a no-op.
func (j *Job) Abort() {
	j.mu.Lock()
	status, w := j.status, j.worker
	j.mu.Unlock()

	switch status {
	case StatusQueued:
		j.transition(StatusAborted)
	case StatusExecuting:
		if j.transition(StatusAborted) && w != nil {
			w.SendAbort(j.id)
		}
	default:
		// init or already terminal: no-op.
	}
}

// Result blocks until the job ends or ctx is done, returning its response
// or an error. When the job ended aborted and enableAbortError is false,
// Result returns only once ctx is done, with ctx.Err(); with a context that
// is never done it blocks forever.
func (j *Job) Result(ctx context.Context) (wire.Response, error) {
	select {
	case <-j.done:
		resp, err, unresolved := j.finalResult()
		if !unresolved {
			return resp, err
		}
		// Aborted without the abort-error opt-in: the promise never
		// resolves on its own. The caller only gets an answer if it
		// races this against its own timer/ctx.
		<-ctx.Done()
		return nil, ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finalResult reads the terminal outcome. unresolved is true only for an
// aborted job whose caller did not opt into abort errors.
func (j *Job) finalResult() (resp wire.Response, err error, unresolved bool) {
	j.mu.Lock()
	status := j.status
	resp, err = j.response, j.err
	j.mu.Unlock()

	switch status {
	case StatusSuccess:
		return resp, nil, false
	case StatusError:
		return nil, err, false
	case StatusAborted:
		if j.enableAbortError {
			return nil, &AbortedError{JobID: j.id}, false
		}
		return nil, nil, true
	default:
		return nil, nil, false
	}
}
