package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jobsync/chatgateway/internal/daemon"
	"github.com/spf13/cobra"
)

var noReload bool

var startCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"serve"},
	Short:   "Start the chat gateway",
	Long: `Start the chat gateway in the foreground.
The gateway runs until it receives SIGINT or SIGTERM, then closes websocket
clients, finishes in-flight requests and stops the session reaper.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&noReload, "no-reload", false, "do not watch the config file for changes")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if pid, err := daemon.ReadPID(daemon.PIDFilePath(cfg.DataDir)); err == nil && daemon.ProcessAlive(pid) {
		return fmt.Errorf("daemon is already running (PID %d)", pid)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	var opts []daemon.Option
	if !noReload {
		opts = append(opts, daemon.WithConfigLoader(loader))
	}

	d, err := daemon.New(cfg, log, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}
