package pool

import (
	"github.com/ironforge/workerpool/internal/job"
	"github.com/ironforge/workerpool/internal/wire"
)

// scheduler orders queued jobs for the drain loop. Both implementations
// must never reorder two jobs of the same kind.
type scheduler interface {
	push(j *job.Job)
	pop() (*job.Job, bool)
	len() int
}

func newScheduler(p Policy) scheduler {
	if p == RoundRobinByKind {
		return &roundRobinQueue{buckets: make(map[wire.Kind][]*job.Job)}
	}
	return &fifoQueue{}
}

// fifoQueue is a single FIFO across all kinds.
type fifoQueue struct {
	items []*job.Job
}

func (q *fifoQueue) push(j *job.Job) { q.items = append(q.items, j) }

func (q *fifoQueue) pop() (*job.Job, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

func (q *fifoQueue) len() int { return len(q.items) }

// roundRobinQueue considers one job per kind in a rotating order, so one
// high-frequency kind cannot starve another. Each per-kind bucket stays
// FIFO.
type roundRobinQueue struct {
	buckets map[wire.Kind][]*job.Job
	order   []wire.Kind
	cursor  int
	n       int
}

func (q *roundRobinQueue) push(j *job.Job) {
	k := j.Kind()
	if _, ok := q.buckets[k]; !ok {
		q.order = append(q.order, k)
	}
	q.buckets[k] = append(q.buckets[k], j)
	q.n++
}

func (q *roundRobinQueue) pop() (*job.Job, bool) {
	if q.n == 0 {
		return nil, false
	}
	for i := 0; i < len(q.order); i++ {
		idx := (q.cursor + i) % len(q.order)
		k := q.order[idx]
		bucket := q.buckets[k]
		if len(bucket) == 0 {
			continue
		}
		j := bucket[0]
		q.buckets[k] = bucket[1:]
		q.n--
		q.cursor = (idx + 1) % len(q.order)
		return j, true
	}
	return nil, false
}

func (q *roundRobinQueue) len() int { return q.n }
