// Command forwarder runs the local forwarding tier of the host agent.
//
//	forwarder start      run the intake listener, queue and check scheduler
//	forwarder runchecks  run one check cycle and post it to the intake
//	forwarder status     print the running forwarder's queue state
//	forwarder version    print the build version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/forwarder/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// options holds flags shared by every subcommand.
type options struct {
	configPath string
	port       int
	logFile    string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "forwarder:", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "forwarder",
		Short:         "Queue local check payloads and deliver them to a remote collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().IntVar(&opts.port, "port", 0, "intake listen port (overrides forwarder.listen_port)")
	root.PersistentFlags().StringVar(&opts.logFile, "log", "", "append logs to this file (overrides log.file)")

	root.AddCommand(
		newStartCmd(opts),
		newRunChecksCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file and applies command-line overrides.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.port != 0 {
		if o.port < 0 || o.port > 65535 {
			return nil, fmt.Errorf("--port %d out of range", o.port)
		}
		cfg.Forwarder.ListenPort = o.port
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the forwarder version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "forwarder %s\n", version)
		},
	}
}
