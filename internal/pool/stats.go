package pool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironforge/workerpool/internal/wire"
)

// KindStats is the per-kind counter set {queue, execute, complete,
// error}. Queue and Execute are bumped from the job's onChange event each
// time a job enters that status and are never decremented: they count jobs
// that have ever been queued or dispatched, not jobs currently in that
// status. Complete (success or aborted) and Error are bumped from the
// job's onEnded event.
type KindStats struct {
	Queue    uint64
	Execute  uint64
	Complete uint64
	Error    uint64
}

// statsTable is the pool's stats[kind] map plus the prometheus mirror.
type statsTable struct {
	mu     sync.Mutex
	byKind map[wire.Kind]*KindStats

	metrics *metrics // nil if no Registerer was supplied
}

type metrics struct {
	queue    *prometheus.CounterVec
	execute  *prometheus.CounterVec
	complete *prometheus.CounterVec
	errorC   *prometheus.CounterVec
}

func newStatsTable(reg prometheus.Registerer) *statsTable {
	st := &statsTable{byKind: make(map[wire.Kind]*KindStats)}
	if reg == nil {
		return st
	}
	m := &metrics{
		queue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workerpool", Name: "queue_total", Help: "Jobs that entered the queue, by kind.",
		}, []string{"kind"}),
		execute: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workerpool", Name: "execute_total", Help: "Jobs dispatched to a worker, by kind.",
		}, []string{"kind"}),
		complete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workerpool", Name: "complete_total", Help: "Jobs that ended success or aborted, by kind.",
		}, []string{"kind"}),
		errorC: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workerpool", Name: "error_total", Help: "Jobs that ended in error, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.queue, m.execute, m.complete, m.errorC)
	st.metrics = m
	return st
}

func (st *statsTable) onQueued(k wire.Kind) {
	st.mu.Lock()
	st.entryLocked(k).Queue++
	st.mu.Unlock()
	if st.metrics != nil {
		st.metrics.queue.WithLabelValues(k.String()).Inc()
	}
}

func (st *statsTable) onExecuting(k wire.Kind) {
	st.mu.Lock()
	st.entryLocked(k).Execute++
	st.mu.Unlock()
	if st.metrics != nil {
		st.metrics.execute.WithLabelValues(k.String()).Inc()
	}
}

func (st *statsTable) onCompleted(k wire.Kind) {
	st.mu.Lock()
	st.entryLocked(k).Complete++
	st.mu.Unlock()
	if st.metrics != nil {
		st.metrics.complete.WithLabelValues(k.String()).Inc()
	}
}

func (st *statsTable) onError(k wire.Kind) {
	st.mu.Lock()
	st.entryLocked(k).Error++
	st.mu.Unlock()
	if st.metrics != nil {
		st.metrics.errorC.WithLabelValues(k.String()).Inc()
	}
}

// entryLocked requires st.mu held.
func (st *statsTable) entryLocked(k wire.Kind) *KindStats {
	s, ok := st.byKind[k]
	if !ok {
		s = &KindStats{}
		st.byKind[k] = s
	}
	return s
}

// Snapshot returns a copy of the current per-kind stats.
func (st *statsTable) Snapshot() map[wire.Kind]KindStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[wire.Kind]KindStats, len(st.byKind))
	for k, v := range st.byKind {
		out[k] = *v
	}
	return out
}
