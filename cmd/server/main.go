/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the site payroll server. Running with no
  subcommand starts the HTTP server; the other subcommands run one
  maintenance action against the configured database and exit.

COMMANDS:
  serve        Start the HTTP server (default)
  seed         Insert the trade category table (--reset wipes first)
  recalculate  Recalculate payroll for every active employee in a month
  lock         Lock a month
  unlock       Unlock a month (--reason required)
  trades       Print the trade category table as YAML

GLOBAL FLAGS:
  --config   YAML config file (see config package for keys)
  --db       SQLite database path, ":memory:" for a throwaway database
  --port     HTTP server port

ENVIRONMENT:
  Every config key can be set as PAYROLL_<SECTION>_<KEY>, for example
  PAYROLL_DATABASE_PATH or PAYROLL_SERVER_DEMO_SCENARIOS.

EXAMPLES:
  # Run with file database
  ./server --db ./data/payroll.db

  # Run with a config file on a different port
  ./server serve --config payroll.yaml --port 3000

  # Close April
  ./server recalculate --year 2024 --month 4
  ./server lock --year 2024 --month 4 --by finance

SEE ALSO:
  - serve.go: HTTP server startup and shutdown
  - admin.go: Maintenance commands
  - config/config.go: Configuration keys
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/site-payroll/api"
	"github.com/warp/site-payroll/config"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/store/sqlite"
	"github.com/warp/site-payroll/workforce"
)

var Version = "dev"

func main() {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Site payroll - attendance, payroll and productivity for site workers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("db", "", "SQLite database path (overrides database.path)")
	flags.Int("port", 0, "HTTP server port (overrides server.port)")
	v.BindPFlag("database.path", flags.Lookup("db"))
	v.BindPFlag("server.port", flags.Lookup("port"))

	rootCmd.AddCommand(serveCmd(v))
	rootCmd.AddCommand(seedCmd(v))
	rootCmd.AddCommand(recalculateCmd(v))
	rootCmd.AddCommand(lockCmd(v))
	rootCmd.AddCommand(unlockCmd(v))
	rootCmd.AddCommand(tradesCmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is everything a command needs, opened from configuration.
type app struct {
	cfg     *config.Config
	store   *sqlite.Store
	handler *api.Handler
}

func openApp(cmd *cobra.Command, v *viper.Viper) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	handler := api.NewHandler(store)
	handler.Payroll.DefaultActor = cfg.Payroll.CalculatedBy
	handler.Productivity.DefaultActor = cfg.Payroll.CalculatedBy
	handler.Productivity.EnforceMonthLock = cfg.Productivity.EnforceMonthLock

	if cfg.Seed.TradeTable != "" {
		table, err := loadTradeTable(cfg.Seed.TradeTable)
		if err != nil {
			store.Close()
			return nil, err
		}
		handler.TradeDefaults = table
	}

	return &app{cfg: cfg, store: store, handler: handler}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func loadTradeTable(path string) ([]workforce.TradeCategory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trade table: %w", err)
	}
	table, err := rules.LoadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("trade table %s: %w", path, err)
	}
	return table, nil
}
