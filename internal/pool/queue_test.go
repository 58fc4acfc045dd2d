package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironforge/workerpool/internal/job"
	"github.com/ironforge/workerpool/internal/wire"
)

func newQueueTestJob(id uint64, kind wire.Kind) *job.Job {
	var req wire.Request
	switch kind {
	case wire.KindSleep:
		req = &wire.SleepRequest{}
	case wire.KindCreateMinersFee:
		req = &wire.CreateMinersFeeRequest{}
	case wire.KindPostTransaction:
		req = &wire.PostTransactionRequest{}
	default:
		panic("newQueueTestJob: unhandled kind")
	}
	return job.New(id, req, job.Hooks{}, false)
}

func TestRoundRobinQueue_PreservesFIFOWithinAKind(t *testing.T) {
	q := &roundRobinQueue{buckets: make(map[wire.Kind][]*job.Job)}

	a1 := newQueueTestJob(1, wire.KindSleep)
	a2 := newQueueTestJob(2, wire.KindSleep)
	a3 := newQueueTestJob(3, wire.KindSleep)
	q.push(a1)
	q.push(a2)
	q.push(a3)

	var got []*job.Job
	for {
		j, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, j)
	}
	require.Equal(t, []*job.Job{a1, a2, a3}, got)
}

func TestRoundRobinQueue_InterleavesAcrossKinds(t *testing.T) {
	q := &roundRobinQueue{buckets: make(map[wire.Kind][]*job.Job)}

	sleepJobs := []*job.Job{
		newQueueTestJob(1, wire.KindSleep),
		newQueueTestJob(2, wire.KindSleep),
		newQueueTestJob(3, wire.KindSleep),
	}
	feeJob := newQueueTestJob(4, wire.KindCreateMinersFee)

	for _, j := range sleepJobs {
		q.push(j)
	}
	q.push(feeJob)

	// feeJob arrived behind a backlog of three sleep jobs, but round-robin
	// must still serve it on the second pop rather than after the whole
	// sleep backlog drains.
	first, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, sleepJobs[0], first)

	second, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, feeJob, second)

	// feeJob's bucket is now empty, so the cursor skips straight back to
	// the sleep bucket for the remainder.
	third, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, sleepJobs[1], third)

	fourth, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, sleepJobs[2], fourth)

	_, ok = q.pop()
	require.False(t, ok)
}

func TestRoundRobinQueue_EventuallyServesEveryQueuedJob(t *testing.T) {
	q := &roundRobinQueue{buckets: make(map[wire.Kind][]*job.Job)}

	kinds := []wire.Kind{wire.KindSleep, wire.KindCreateMinersFee, wire.KindPostTransaction}
	pushed := make(map[uint64]bool)
	var id uint64
	for _, k := range kinds {
		for i := 0; i < 4; i++ {
			id++
			q.push(newQueueTestJob(id, k))
			pushed[id] = true
		}
	}
	require.Equal(t, len(pushed), q.len())

	seen := make(map[uint64]bool)
	for {
		j, ok := q.pop()
		if !ok {
			break
		}
		require.False(t, seen[j.ID()], "job %d popped twice", j.ID())
		seen[j.ID()] = true
	}
	require.Equal(t, pushed, seen)
}
