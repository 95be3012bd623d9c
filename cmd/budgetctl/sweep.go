package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"famledger/internal/logger"
	"famledger/internal/services"
)

var flagDaemonInterval time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Close and advance every scope whose latest period has ended",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sweep on a fixed interval until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().DurationVar(&flagDaemonInterval, "interval", 0, "Sweep interval (default SWEEP_INTERVAL)")

	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	asOf, err := asOfDate()
	if err != nil {
		return err
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := e.Maintenance.Sweep(ctx, asOf)
	if result != nil {
		if perr := printSweep(cmd.OutOrStdout(), result); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d scope(s) failed", len(result.Failures))
	}
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	interval := flagDaemonInterval
	if interval == 0 {
		interval = e.cfg.SweepInterval
	}
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Named("budgetctl").Infow("Sweep daemon started", "interval", interval)
	e.Sweeper.Run(ctx, interval)
	logger.Named("budgetctl").Info("Sweep daemon stopped")
	return nil
}

func printSweep(w io.Writer, r *services.SweepResult) error {
	if flagJSON {
		return printJSON(w, r)
	}
	fmt.Fprintf(w, "as of %s: %d scanned, %d advanced, %d closed, %d created, %d healed in %s\n",
		r.AsOf.Format(time.DateOnly), r.ScopesScanned, r.ScopesAdvanced, r.PeriodsClosed,
		r.PeriodsCreated, r.Healed, r.Duration.Round(time.Millisecond))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  FAILED %s: %s %s\n", f.ScopeKey, f.Code, f.Error)
	}
	return nil
}
