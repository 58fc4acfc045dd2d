package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironforge/workerpool/internal/wire"
)

type fakeWorker struct {
	id      int
	aborted []uint64
}

func (w *fakeWorker) WorkerID() int { return w.id }
func (w *fakeWorker) SendAbort(jobID uint64) {
	w.aborted = append(w.aborted, jobID)
}

func TestLifecycle_SuccessPath(t *testing.T) {
	var transitions []string
	var ended bool
	hooks := Hooks{
		OnChange: func(_ *Job, old, new Status) {
			transitions = append(transitions, string(old)+"->"+string(new))
		},
		OnEnded: func(*Job) { ended = true },
	}

	j := New(1, &wire.SleepRequest{DurationMs: 0}, hooks, false)
	require.Equal(t, StatusInit, j.Status())

	require.True(t, j.Submit())
	require.Equal(t, StatusQueued, j.Status())

	w := &fakeWorker{id: 1}
	require.True(t, j.Dispatch(w))
	require.Equal(t, StatusExecuting, j.Status())
	gotWorker, ok := j.Worker()
	require.True(t, ok)
	require.Equal(t, w, gotWorker)

	j.Resolve(&wire.SleepResponse{Aborted: false})
	require.Equal(t, StatusSuccess, j.Status())
	require.True(t, ended)
	require.Equal(t, []string{"init->queued", "queued->executing", "executing->success"}, transitions)

	resp, err := j.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, &wire.SleepResponse{Aborted: false}, resp)

	// Worker back-reference clears on terminal transition.
	_, ok = j.Worker()
	require.False(t, ok)
}

func TestLifecycle_ErrorPath(t *testing.T) {
	j := New(2, &wire.SleepRequest{DurationMs: 0, HasError: true, Error: "boom"}, Hooks{}, false)
	j.Submit()
	j.Dispatch(nil)
	j.Reject(&Error{Type: "HandlerError", Message: "boom"})

	require.Equal(t, StatusError, j.Status())
	_, err := j.Result(context.Background())
	require.Error(t, err)
	require.Equal(t, "HandlerError: boom", err.Error())
}

func TestAbort_FromQueued_NeverSignalsWorker(t *testing.T) {
	j := New(3, &wire.SleepRequest{DurationMs: 1 << 30}, Hooks{}, true)
	j.Submit()
	j.Abort()
	require.Equal(t, StatusAborted, j.Status())

	_, err := j.Result(context.Background())
	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)
	require.Equal(t, uint64(3), aborted.JobID)
}

func TestAbort_FromExecuting_SignalsWorkerOnce(t *testing.T) {
	j := New(4, &wire.SleepRequest{DurationMs: 1 << 30}, Hooks{}, true)
	j.Submit()
	w := &fakeWorker{id: 7}
	j.Dispatch(w)

	j.Abort()
	j.Abort() // idempotent: second call is a no-op

	require.Equal(t, StatusAborted, j.Status())
	require.Equal(t, []uint64{4}, w.aborted)
}

func TestAbort_Idempotent_AfterTerminalSuccess(t *testing.T) {
	j := New(5, &wire.SleepRequest{DurationMs: 0}, Hooks{}, true)
	j.Submit()
	j.Dispatch(nil)
	j.Resolve(&wire.SleepResponse{})

	j.Abort() // must not flip a terminal success back to aborted
	require.Equal(t, StatusSuccess, j.Status())
}

func TestLateResponseAfterAbort_IsDropped(t *testing.T) {
	j := New(6, &wire.SleepRequest{DurationMs: 1 << 30}, Hooks{}, true)
	j.Submit()
	j.Dispatch(nil)
	j.Abort()

	j.Resolve(&wire.SleepResponse{Aborted: false}) // late, must be ignored
	require.Equal(t, StatusAborted, j.Status())
}

func TestResult_AbortWithoutOptIn_NeverResolvesUntilCtxDone(t *testing.T) {
	j := New(7, &wire.SleepRequest{DurationMs: 1 << 30}, Hooks{}, false)
	j.Submit()
	j.Dispatch(nil)
	j.Abort()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := j.Result(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIllegalTransition_InitToExecuting_Rejected(t *testing.T) {
	j := New(8, &wire.SleepRequest{DurationMs: 0}, Hooks{}, false)
	require.False(t, j.Dispatch(nil)) // can't dispatch before Submit
	require.Equal(t, StatusInit, j.Status())
}
