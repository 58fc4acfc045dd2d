package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ironforge/workerpool/internal/job"
	"github.com/ironforge/workerpool/internal/pool"
	"github.com/ironforge/workerpool/internal/wire"
)

var benchJobs int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Submit a fixed burst of jobs and report wall-clock throughput",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchJobs, "jobs", 5000, "number of Sleep(0) jobs to submit")
}

func runBench(cmd *cobra.Command, args []string) error {
	log := newLogger()
	p := pool.New(buildPoolOptions(log, prometheus.NewRegistry()))
	if err := p.Start(); err != nil {
		return err
	}
	defer p.Stop()

	readyCtx, readyCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := p.WaitReady(readyCtx)
	readyCancel()
	if err != nil {
		return err
	}

	start := time.Now()
	jobs := make([]*jobResult, benchJobs)
	for i := 0; i < benchJobs; i++ {
		j, err := p.Execute(&wire.SleepRequest{DurationMs: 0})
		if err != nil {
			return err
		}
		jobs[i] = &jobResult{job: j}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for _, jr := range jobs {
		_, jr.err = jr.job.Result(ctx)
	}
	elapsed := time.Since(start)

	failed := 0
	for _, jr := range jobs {
		if jr.err != nil {
			failed++
		}
	}

	log.WithFields(map[string]interface{}{
		"jobs":        benchJobs,
		"failed":      failed,
		"elapsed":     elapsed,
		"jobs_per_ms": float64(benchJobs) / float64(elapsed.Milliseconds()+1),
	}).Info("bench complete")
	return nil
}

type jobResult struct {
	job *job.Job
	err error
}
