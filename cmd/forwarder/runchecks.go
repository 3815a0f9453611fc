package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/forwarder/internal/checks"
	"github.com/obsidianstack/forwarder/internal/supervisor"
	"github.com/obsidianstack/forwarder/pkg/wire"
)

func newRunChecksCmd(opts *options) *cobra.Command {
	var firstRun bool
	cmd := &cobra.Command{
		Use:   "runchecks",
		Short: "Run one check cycle and post the report to the local forwarder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			_, closeLog, err := setupLogging(os.Stderr, cfg.Log.File, cfg.Log.SlogLevel())
			if err != nil {
				return err
			}
			defer closeLog() //nolint:errcheck
			slog.Debug("check run starting", "pid", os.Getpid(), "first_run", firstRun)

			client := wire.NewClient(cfg.Forwarder.LocalURL(), cfg.Forwarder.SendTimeout)
			runner, err := checks.New(cfg.Checks, client, version)
			if err != nil {
				return err
			}
			if err := runner.Run(cmd.Context(), firstRun); err != nil {
				slog.Error("check run failed", "err", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&firstRun, strings.TrimPrefix(supervisor.FirstRunFlag, "--"), false, "also report one-time host facts")
	return cmd
}
