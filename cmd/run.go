package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bedrockcron/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler daemon",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := newAppDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	e := engine.New(deps.store, engine.Options{
		Tick:        deps.cfg.Scheduler.TickInterval,
		ExecTimeout: deps.cfg.Scheduler.ExecTimeout,
		Log:         deps.log,
	})

	e.Run(ctx)
	return nil
}
