// Command workerpool hosts a WorkerPool outside of any test harness: it
// wires configuration (flags/env via viper), structured logging (logrus),
// and an optional Prometheus scrape endpoint around the pool, then drives
// it with a synthetic workload. It never becomes an RPC layer itself —
// jobs are submitted in-process by the run/bench subcommands, not decoded
// off a socket.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfg = struct {
	NumWorkers  int
	MaxJobs     int
	MaxQueue    int
	Policy      string
	MetricsAddr string
	Debug       bool
}{}

var rootCmd = &cobra.Command{
	Use:   "workerpool",
	Short: "Run a standalone worker pool host",
}

func init() {
	rootCmd.PersistentFlags().IntVar(&cfg.NumWorkers, "num-workers", 4, "worker goroutines; 0 runs every job inline")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxJobs, "max-jobs", 2, "max concurrent jobs per worker")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxQueue, "max-queue", 64, "advisory queue depth for Saturated(); 0 disables it")
	rootCmd.PersistentFlags().StringVar(&cfg.Policy, "policy", "fifo", "scheduling policy: fifo or round-robin")
	rootCmd.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "address to serve /metrics on; empty disables it")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "enable debug logging")

	viper.SetEnvPrefix("WORKERPOOL")
	viper.AutomaticEnv()
	cobra.OnInitialize(bindEnv)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
}

// bindEnv lets WORKERPOOL_NUM_WORKERS etc. override unset flags, the same
// precedence order (env over default, flag over env) the rest of the
// example fleet uses for its cobra/viper roots.
func bindEnv() {
	if !rootCmd.PersistentFlags().Changed("num-workers") && viper.IsSet("NUM_WORKERS") {
		cfg.NumWorkers = viper.GetInt("NUM_WORKERS")
	}
	if !rootCmd.PersistentFlags().Changed("max-jobs") && viper.IsSet("MAX_JOBS") {
		cfg.MaxJobs = viper.GetInt("MAX_JOBS")
	}
	if !rootCmd.PersistentFlags().Changed("max-queue") && viper.IsSet("MAX_QUEUE") {
		cfg.MaxQueue = viper.GetInt("MAX_QUEUE")
	}
	if !rootCmd.PersistentFlags().Changed("policy") && viper.IsSet("POLICY") {
		cfg.Policy = viper.GetString("POLICY")
	}
	if !rootCmd.PersistentFlags().Changed("metrics-addr") && viper.IsSet("METRICS_ADDR") {
		cfg.MetricsAddr = viper.GetString("METRICS_ADDR")
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
