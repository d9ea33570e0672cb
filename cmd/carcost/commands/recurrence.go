package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"carcost/internal/core"
	apphttp "carcost/internal/http"
	"carcost/internal/recurrence"
	"carcost/internal/services"
)

func occurrencesCmd() *cobra.Command {
	var (
		interval   string
		multiplier int
	)
	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "List the dates a recurring cost falls on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iv := core.RecurrenceInterval(interval)
			if !iv.Valid() {
				return fmt.Errorf("--interval: %w", core.ErrInvalidInterval)
			}
			if multiplier < 1 {
				return fmt.Errorf("--multiplier: %w", core.ErrInvalidMultiplier)
			}
			start, err := dateFlag(cmd, "start")
			if err != nil {
				return err
			}
			if start == nil {
				return fmt.Errorf("--start is required")
			}
			end, err := dateFlag(cmd, "end")
			if err != nil {
				return err
			}
			rangeEnd := time.Now().UTC()
			if end != nil {
				if end.Before(*start) {
					return fmt.Errorf("--end: %w", core.ErrEndBeforeStart)
				}
				rangeEnd = apphttp.EndOfDay(*end)
			}
			from, to := *start, rangeEnd
			if f, err := dateFlag(cmd, "from"); err != nil {
				return err
			} else if f != nil {
				from = *f
			}
			if v, err := dateFlag(cmd, "to"); err != nil {
				return err
			} else if v != nil {
				to = *v
			}

			dates := recurrence.Dates(iv, multiplier, *start, rangeEnd, from, apphttp.EndOfDay(to))
			out := cmd.OutOrStdout()
			for _, d := range dates {
				fmt.Fprintln(out, formatDate(d))
			}
			fmt.Fprintf(out, "%d occurrence(s)\n", len(dates))
			return nil
		},
	}
	cmd.Flags().StringVar(&interval, "interval", string(core.Month), "once, day, month, quarter or year")
	cmd.Flags().IntVar(&multiplier, "multiplier", 1, "number of intervals between occurrences")
	cmd.Flags().String("start", "", "first occurrence (required)")
	cmd.Flags().String("end", "", "last day the cost recurs (default: still recurring)")
	cmd.Flags().String("from", "", "start of the window (default: --start)")
	cmd.Flags().String("to", "", "end of the window (default: --end or today)")
	return cmd
}

func upcomingCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List the other costs due soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			due, err := services.UpcomingCosts(cmd.Context(), appCtx.Store, time.Now().UTC(), time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			if len(due) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing due in the next %d days\n", days)
				return nil
			}
			t := newTable(cmd.OutOrStdout(), "DUE", "CAR", "COST", "INTERVAL", "PRICE")
			for _, d := range due {
				t.row(formatDate(d.DueDate), d.CarName, d.Cost.Title, strconv.Itoa(d.Cost.Multiplier)+"×"+string(d.Cost.Interval), d.Cost.Price.String())
			}
			return t.flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "look-ahead in days")
	return cmd
}
