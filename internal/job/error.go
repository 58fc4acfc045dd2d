package job

import "fmt"

// Error is the reconstructed form of a wire.JobErrorPayload: a handler (or
// dispatch) failure serialized across the thread boundary and turned back
// into a Go error on the orchestrator side.
type Error struct {
	Type    string
	Message string
	Stack   string
	Code    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AbortedError is returned by Job.Result instead of Error when the caller
// opted into abort errors (EnableJobAbortError) and the job ended in
// StatusAborted. Without that opt-in the future simply never resolves for
// a caller-driven abort — the pool drops it on shutdown.
type AbortedError struct {
	JobID uint64
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("job %d aborted", e.JobID)
}

// ConnectionLostError surfaces on every in-flight job owned by a worker
// that terminated unexpectedly.
type ConnectionLostError struct {
	JobID uint64
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("job %d: worker connection lost", e.JobID)
}
