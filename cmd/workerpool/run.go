package main

import (
	"context"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironforge/workerpool/internal/pool"
	"github.com/ironforge/workerpool/internal/wire"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a worker pool and feed it a steady synthetic workload until interrupted",
	RunE:  runRun,
}

func buildPoolOptions(log *logrus.Logger, reg prometheus.Registerer) pool.Options {
	policy := pool.FIFO
	if cfg.Policy == "round-robin" {
		policy = pool.RoundRobinByKind
	}
	return pool.Options{
		NumWorkers: cfg.NumWorkers,
		MaxJobs:    cfg.MaxJobs,
		MaxQueue:   cfg.MaxQueue,
		Policy:     policy,
		Registerer: reg,
		Logger:     log,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()
	reg := prometheus.NewRegistry()

	p := pool.New(buildPoolOptions(log, reg))
	if err := p.Start(); err != nil {
		return err
	}
	defer p.Stop()

	stopMetrics := serveMetrics(log, reg)
	defer stopMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.WithFields(logrus.Fields{
		"num_workers": cfg.NumWorkers,
		"max_jobs":    cfg.MaxJobs,
		"max_queue":   cfg.MaxQueue,
		"policy":      cfg.Policy,
	}).Info("worker pool started")

	feedWorkload(ctx, p, log)

	log.Info("shutting down")
	return nil
}

// feedWorkload submits a steady trickle of Sleep jobs, a diagnostic kind
// that exists purely to exercise timing and cancellation without touching
// real crypto state. Each submission gets its own correlation id so a
// job's log lines can be grepped end to end.
func feedWorkload(ctx context.Context, p *pool.WorkerPool, log *logrus.Logger) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			traceID := uuid.NewString()
			entry := log.WithField("trace_id", traceID)

			j, err := p.Execute(&wire.SleepRequest{DurationMs: int64(rand.Intn(200))})
			if err != nil {
				entry.WithError(err).Warn("submit failed")
				continue
			}
			go func() {
				resCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := j.Result(resCtx); err != nil {
					entry.WithError(err).Debug("job ended in error")
					return
				}
				entry.Debug("job completed")
			}()
		}
	}
}

func serveMetrics(log *logrus.Logger, reg *prometheus.Registry) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
