package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carcost/internal/cli"
	"carcost/internal/config"
)

var (
	backendName string
	dbPath      string
	appCtx      *cli.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "carcost",
		Short:         "Track what a car costs to run",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
				if backendName != "" {
					c.DataBackend = backendName
				}
				if dbPath != "" {
					c.SQLiteDBPath = dbPath
				}
			})
			if err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg)

			appCtx, err = cli.NewApp(cmd.Context(), cfg, logger, cli.Options{
				Schedules: cmd.Name() == "serve",
				Remote:    true,
			})
			return err
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&backendName, "backend", "", "record store: sqlite or memory (default from DATA_BACKEND)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default from SQLITE_DB_PATH)")

	root.AddCommand(
		serveCmd(),
		metricsCmd(), metricCmd(),
		carsCmd(), segmentsCmd(), costsCmd(),
		occurrencesCmd(), upcomingCmd(),
		addCarCmd(), addFuelTypeCmd(), refuelCmd(), addCostCmd(), importCmd(),
	)

	err := root.ExecuteContext(context.Background())
	if appCtx != nil {
		if closeErr := appCtx.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
