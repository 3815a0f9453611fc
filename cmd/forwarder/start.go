package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/forwarder/internal/config"
	"github.com/obsidianstack/forwarder/internal/emitter"
	"github.com/obsidianstack/forwarder/internal/intake"
	"github.com/obsidianstack/forwarder/internal/metrics"
	"github.com/obsidianstack/forwarder/internal/scheduler"
	"github.com/obsidianstack/forwarder/internal/supervisor"
	"github.com/obsidianstack/forwarder/internal/transaction"
)

const shutdownTimeout = 5 * time.Second

func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the forwarder service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runStart(cmd.Context(), opts.configPath, cfg)
		},
	}
}

// childArgs returns the arguments a check process is started with. A check
// process appends to the same log file as its parent. The supervisor adds
// the first-run flag when needed.
func childArgs(configPath string, port int, logFile string) []string {
	args := []string{"runchecks", "--config", configPath, "--port", strconv.Itoa(port)}
	if logFile != "" {
		args = append(args, "--log", logFile)
	}
	return args
}

func runStart(ctx context.Context, configPath string, cfg *config.Config) error {
	level, closeLog, err := setupLogging(os.Stdout, cfg.Log.File, cfg.Log.SlogLevel())
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	fc := cfg.Forwarder
	slog.Info("forwarder starting",
		"version", version,
		"config", configPath,
		"listen", fc.ListenAddr(),
		"endpoint", fc.IntakeURL(),
		"check_interval", fc.CheckInterval,
		"flush_interval", fc.FlushInterval,
	)

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	sup := supervisor.New(supervisor.Command{Path: exe, Args: childArgs(configPath, fc.ListenPort, cfg.Log.File)})

	m := metrics.New()
	sched := scheduler.New(
		scheduler.Intervals{Check: fc.CheckInterval, Poll: fc.ProcessPollInterval, Flush: fc.FlushInterval},
		transaction.NewQueue(),
		emitter.New(fc),
		sup,
		scheduler.WithMetrics(m),
	)

	lis, err := net.Listen("tcp", fc.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", fc.ListenAddr(), err)
	}
	srv := &http.Server{
		Handler:           intake.New(sched, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("intake listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("intake server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(updated *config.Config) {
			level.Set(updated.Log.SlogLevel())
			slog.Info("log level updated", "level", level.Level().String())
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("forwarder stopped")
	return err
}
