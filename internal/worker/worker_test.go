package worker

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ironforge/workerpool/internal/registry"
	"github.com/ironforge/workerpool/internal/wire"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func drainResponse(t *testing.T, w *Worker, timeout time.Duration) (uint64, wire.Kind, []byte) {
	t.Helper()
	select {
	case frame := <-w.Outbox():
		jobID, kind, payload, err := wire.DecodeHeader(frame)
		require.NoError(t, err)
		return jobID, kind, payload
	case <-time.After(timeout):
		t.Fatal("timed out waiting for worker response")
		return 0, 0, nil
	}
}

func TestWorker_ReadyClosesAfterWarmup(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.KindSleep, registry.Sleep)

	started := make(chan struct{})
	w := New(1, 1, reg, func(ctx context.Context) error {
		close(started)
		return nil
	}, testLogger())
	w.Start()
	defer w.Stop()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("warmup never ran")
	}
	select {
	case <-w.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready never closed")
	}
}

func TestWorker_ExecutesSleepAndResponds(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.KindSleep, registry.Sleep)

	w := New(1, 2, reg, nil, testLogger())
	w.Start()
	defer w.Stop()
	<-w.Ready()

	ok := w.Submit(7, &wire.SleepRequest{DurationMs: 0})
	require.True(t, ok)

	jobID, kind, payload := drainResponse(t, w, time.Second)
	require.Equal(t, uint64(7), jobID)
	require.Equal(t, wire.KindSleep, kind)
	resp, err := wire.DecodeSleepResponse(payload)
	require.NoError(t, err)
	require.False(t, resp.Aborted)
}

func TestWorker_HandlerErrorSerializesToJobError(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.KindSleep, registry.Sleep)

	w := New(1, 2, reg, nil, testLogger())
	w.Start()
	defer w.Stop()
	<-w.Ready()

	ok := w.Submit(9, &wire.SleepRequest{DurationMs: 0, HasError: true, Error: "boom"})
	require.True(t, ok)

	jobID, kind, payload := drainResponse(t, w, time.Second)
	require.Equal(t, uint64(9), jobID)
	require.Equal(t, wire.KindJobError, kind)
	errPayload, err := wire.DecodeJobErrorPayload(payload)
	require.NoError(t, err)
	require.Equal(t, "boom", errPayload.Message)
}

func TestWorker_AbortDropsHandlerOutput(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.KindSleep, registry.Sleep)

	w := New(1, 2, reg, nil, testLogger())
	w.Start()
	defer w.Stop()
	<-w.Ready()

	ok := w.Submit(11, &wire.SleepRequest{DurationMs: 1 << 20})
	require.True(t, ok)

	// give the execute goroutine a moment to register itself
	require.Eventually(t, func() bool { return w.JobCount() == 1 }, time.Second, time.Millisecond)

	w.SendAbort(11)

	select {
	case frame := <-w.Outbox():
		t.Fatalf("expected no output for aborted job, got frame %v", frame)
	case <-time.After(150 * time.Millisecond):
	}
	require.Eventually(t, func() bool { return w.JobCount() == 0 }, time.Second, time.Millisecond)
}

func TestWorker_SubmitRejectsAtCapacity(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.KindSleep, registry.Sleep)

	w := New(1, 1, reg, nil, testLogger())
	w.Start()
	defer w.Stop()
	<-w.Ready()

	require.True(t, w.Submit(1, &wire.SleepRequest{DurationMs: 1 << 20}))
	require.Eventually(t, func() bool { return w.JobCount() == 1 }, time.Second, time.Millisecond)
	require.False(t, w.CanTakeJobs())
	require.False(t, w.Submit(2, &wire.SleepRequest{DurationMs: 0}))
}

func TestWorker_StopAbortsAssignedJobsAndJoins(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.KindSleep, registry.Sleep)

	w := New(1, 2, reg, nil, testLogger())
	w.Start()
	<-w.Ready()

	require.True(t, w.Submit(3, &wire.SleepRequest{DurationMs: 1 << 20}))
	require.Eventually(t, func() bool { return w.JobCount() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	require.Equal(t, 0, w.JobCount())
}

func TestWorker_UnknownKindProducesDispatchError(t *testing.T) {
	reg := registry.New() // nothing registered

	w := New(1, 1, reg, nil, testLogger())
	w.Start()
	defer w.Stop()
	<-w.Ready()

	ok := w.Submit(5, &wire.SleepRequest{DurationMs: 0})
	require.True(t, ok)

	_, kind, payload := drainResponse(t, w, time.Second)
	require.Equal(t, wire.KindJobError, kind)
	errPayload, err := wire.DecodeJobErrorPayload(payload)
	require.NoError(t, err)
	require.Equal(t, "DispatchError", errPayload.Type)
}
