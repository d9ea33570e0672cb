package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"carcost/internal/balancer"
	"carcost/internal/core"
	apphttp "carcost/internal/http"
	"carcost/internal/services"
)

func carsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cars",
		Short: "List cars and fuel types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cars, err := appCtx.Store.ListCars(ctx)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "COLOR", "INITIAL MILEAGE", "SUSPENDED SINCE")
			for _, c := range cars {
				suspended := ""
				if c.SuspendedSince != nil {
					suspended = formatDate(*c.SuspendedSince)
				}
				t.row(strconv.FormatInt(c.ID, 10), c.Name, c.Color, strconv.FormatInt(c.InitialMileage, 10), suspended)
			}
			if err := t.flush(); err != nil {
				return err
			}

			fuels, err := appCtx.Store.ListFuelTypes(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			t = newTable(cmd.OutOrStdout(), "FUEL ID", "FUEL", "CATEGORY")
			for _, f := range fuels {
				t.row(strconv.FormatInt(f.ID, 10), f.Name, string(f.Category))
			}
			return t.flush()
		},
	}
}

func segmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segments <car-id>",
		Short: "Show the balanced segments between full fills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "car id")
			if err != nil {
				return err
			}
			segments, err := services.CarSegments(cmd.Context(), appCtx.Store, id)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "CATEGORY", "FROM", "TO", "KM", "LITRES", "PRICE", "L/100KM", "PRICE/L", "PRICE/KM", "GUESSED")
			for _, s := range segments {
				t.row(
					string(s.Category),
					formatDate(s.StartDate),
					formatDate(s.AnchorDate),
					strconv.FormatInt(s.TotalDistance, 10),
					strconv.FormatFloat(s.TotalVolume, 'f', 2, 64),
					s.TotalPrice.String(),
					ratio(balancer.VolumePerDistance, s, 100),
					ratio(balancer.PricePerVolume, s, 1),
					ratio(balancer.PricePerDistance, s, 1),
					yesNo(s.Guessed),
				)
			}
			return t.flush()
		},
	}
}

func costsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs <car-id>",
		Short: "Show the other costs of a car per month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "car id")
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
			to := now
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
			to = apphttp.EndOfDay(to)
			if to.Before(from) {
				return fmt.Errorf("--to must not be before --from")
			}

			rep, err := services.CarCosts(cmd.Context(), appCtx.Store, id, now, from, to)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "MONTH", "OCCURRENCES", "TOTAL")
			for _, m := range rep.Months {
				t.row(fmt.Sprintf("%04d-%02d", m.Year, m.Month), strconv.Itoa(m.Occurrences), m.Total.String())
			}
			t.row("", "", rep.Total.String())
			return t.flush()
		},
	}
	cmd.Flags().String("from", "", "first day of the report (default: January 1 of this year)")
	cmd.Flags().String("to", "", "last day of the report (default: today)")
	return cmd
}

// ratio formats a segment ratio scaled by f; undefined ratios print empty.
func ratio(fn func(core.BalancedSegment) (float64, bool), s core.BalancedSegment, f float64) string {
	v, ok := fn(s)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v*f, 'f', 2, 64)
}
