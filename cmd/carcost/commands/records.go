package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"carcost/internal/core"
	apphttp "carcost/internal/http"
)

func addCarCmd() *cobra.Command {
	var (
		color   string
		mileage int64
	)
	cmd := &cobra.Command{
		Use:   "add-car <name>",
		Short: "Add a car",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			car := core.Car{Name: args[0], Color: color, InitialMileage: mileage}
			suspended, err := dateFlag(cmd, "suspended-since")
			if err != nil {
				return err
			}
			car.SuspendedSince = suspended

			id, err := appCtx.Records.CreateCar(cmd.Context(), car)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Car %d added\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #3366cc")
	cmd.Flags().Int64Var(&mileage, "initial-mileage", 0, "odometer reading when the car was bought")
	cmd.Flags().String("suspended-since", "", "date the car was taken off the road")
	return cmd
}

func addFuelTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-fuel-type <name> <category>",
		Short: "Add a fuel type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := appCtx.Records.CreateFuelType(cmd.Context(), core.FuelType{Name: args[0], Category: core.FuelCategory(args[1])})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fuel type %d added\n", id)
			return nil
		},
	}
}

func refuelCmd() *cobra.Command {
	var (
		partial bool
		note    string
	)
	cmd := &cobra.Command{
		Use:   "refuel <car-id> <fuel-type-id> <date> <mileage> <volume> <price>",
		Short: "Record a refueling",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			carID, err := parseID(args[0], "car id")
			if err != nil {
				return err
			}
			fuelID, err := parseID(args[1], "fuel type id")
			if err != nil {
				return err
			}
			date, err := apphttp.ParseDate(args[2])
			if err != nil {
				return err
			}
			mileage, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid mileage %q", args[3])
			}
			volume, err := core.ParseVolume(args[4])
			if err != nil {
				return err
			}
			cents, err := core.ParseDecimalToCents(args[5])
			if err != nil {
				return err
			}

			id, err := appCtx.Records.AddRefueling(cmd.Context(), core.RefuelingRecord{
				CarID:      carID,
				FuelTypeID: fuelID,
				Date:       date,
				Mileage:    mileage,
				Volume:     volume,
				Price:      core.Money{Cents: cents},
				Partial:    partial,
				Note:       note,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refueling %d recorded\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&partial, "partial", false, "the tank was not filled up")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	return cmd
}

func addCostCmd() *cobra.Command {
	var (
		interval   string
		multiplier int
		mileage    int64
		note       string
	)
	cmd := &cobra.Command{
		Use:   "add-cost <car-id> <title> <date> <price>",
		Short: "Record an other cost, once or recurring",
		Long: `Record an other cost, once or recurring.

A negative price records an income. A recurring cost repeats every
--multiplier intervals from its date until --end, or indefinitely.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			carID, err := parseID(args[0], "car id")
			if err != nil {
				return err
			}
			date, err := apphttp.ParseDate(args[2])
			if err != nil {
				return err
			}
			cents, err := core.ParseDecimalToCents(args[3])
			if err != nil {
				return err
			}
			end, err := dateFlag(cmd, "end")
			if err != nil {
				return err
			}

			rec := core.OtherCostRecord{
				CarID:      carID,
				Title:      args[1],
				Date:       date,
				Price:      core.Money{Cents: cents},
				Interval:   core.RecurrenceInterval(interval),
				Multiplier: multiplier,
				EndDate:    end,
				Note:       note,
			}
			if cmd.Flags().Changed("mileage") {
				rec.Mileage = &mileage
			}
			id, err := appCtx.Records.AddOtherCost(cmd.Context(), rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cost %d recorded\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&interval, "interval", string(core.Once), "once, day, month, quarter or year")
	cmd.Flags().IntVar(&multiplier, "multiplier", 1, "number of intervals between occurrences")
	cmd.Flags().String("end", "", "last day the cost recurs")
	cmd.Flags().Int64Var(&mileage, "mileage", 0, "odometer reading")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import refuelings and other costs from a JSON file",
		Long: `Import refuelings and other costs from a JSON file.

The file holds "refuelings" and "other_costs" arrays in the format of the
API. Either every record is stored or none is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			batch, err := apphttp.DecodeBatch(in)
			if err != nil {
				return err
			}
			if batch.Len() == 0 {
				return fmt.Errorf("nothing to import")
			}
			n, err := appCtx.Records.Import(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records\n", n)
			return nil
		},
	}
}
