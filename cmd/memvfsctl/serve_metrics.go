package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/daemonize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/google/memvfs/logging"
	"github.com/google/memvfs/metrics"
)

var daemonizeServeMetrics bool

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics <addr>",
	Short: "Serve the prometheus /metrics endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := args[0]

		if daemonizeServeMetrics && os.Getenv("MEMVFSCTL_DAEMON") != "true" {
			return reexecAsDaemon(addr)
		}

		rec := metrics.NewRecorder()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux}

		logger, _ := logging.New(logging.Options{
			Severity: logging.Severity(mountConfig.Logging.Severity),
			LogFile:  mountConfig.Logging.LogFile,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		if os.Getenv("MEMVFSCTL_DAEMON") == "true" {
			if err := daemonize.SignalOutcome(nil); err != nil {
				logger.Error("signalling daemonize outcome", "error", err)
			}
		}
		logger.Info("serving metrics", "addr", addr)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		select {
		case <-ctx.Done():
			return server.Shutdown(context.Background())
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

// reexecAsDaemon re-executes the current binary in the background and
// waits for it to signal success/failure, mirroring the teacher's
// daemonize.Run/SignalOutcome handshake for backgrounding a long-running
// mount-like process.
func reexecAsDaemon(addr string) error {
	path, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	args := []string{"serve-metrics", addr, "--daemonize"}
	env := append(os.Environ(), "MEMVFSCTL_DAEMON=true")
	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	return nil
}

func init() {
	serveMetricsCmd.Flags().BoolVar(&daemonizeServeMetrics, "daemonize", false, "run the metrics server in the background")
}
