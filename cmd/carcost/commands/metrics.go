package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the available metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable(cmd.OutOrStdout(), "METRIC", "INPUT", "RESULT")
			for _, m := range appCtx.Metrics.Names() {
				t.row(string(m), string(m.Input()), string(m.Result()))
			}
			return t.flush()
		},
	}
}

func metricCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metric <name> <input>",
		Short: "Evaluate a metric for every car",
		Long: `Evaluate a metric for every car.

Volume metrics report one line per car and fuel category. Price metrics
report one line per car and include the other costs of the car.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := appCtx.Metrics.ByName(args[0])
			if err != nil {
				return err
			}
			input, err := strconv.ParseFloat(strings.ReplaceAll(args[1], ",", "."), 64)
			if err != nil {
				return fmt.Errorf("invalid input %q", args[1])
			}

			items, err := c.Calculate(cmd.Context(), input)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No data yet")
				return nil
			}
			m := c.Metric()
			t := newTable(cmd.OutOrStdout(), "CAR", strings.ToUpper(string(m.Result())), "GUESSED")
			for _, it := range items {
				t.row(it.Label, strconv.FormatFloat(it.Result, 'f', 2, 64), yesNo(it.Guessed))
			}
			return t.flush()
		},
	}
}
