package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"famledger/internal/app"
	"famledger/internal/config"
	"famledger/internal/database"
	"famledger/internal/events"
	"famledger/internal/services"
)

var (
	flagAsOf string
	flagJSON bool
)

var rootCmd = &cobra.Command{
	Use:           "budgetctl",
	Short:         "Budget engine maintenance",
	Long:          "Close ended budget periods, inspect rollover history and repair cached rollover amounts.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "budgetctl: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAsOf, "as-of", "", "Reference date in YYYY-MM-DD form (default today)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print results as JSON")
}

// engine is an opened database plus the services built on it.
type engine struct {
	*app.App
	cfg   *config.Config
	close func()
}

// openEngine connects to the database and, when configured, to the event
// broker so that running API processes drop their cached views.
func openEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, err
	}

	closers := []func(){func() { _ = dbManager.Close() }}
	var observers []services.ScopeObserver
	if cfg.AMQPURL != "" {
		client, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			_ = dbManager.Close()
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		observers = append(observers, client)
		closers = append(closers, func() { _ = client.Close() })
	}

	a := app.New(dbManager.DB(), app.Options{
		SweepConcurrency:   cfg.SweepConcurrency,
		AggregationTimeout: cfg.AggregationTimeout,
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
	}, observers...)

	return &engine{
		App: a,
		cfg: cfg,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func asOfDate() (time.Time, error) {
	if flagAsOf == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, flagAsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", flagAsOf)
	}
	return t, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
