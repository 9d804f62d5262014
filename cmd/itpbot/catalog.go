package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/aretw0/itpbot/internal/cli"
	"github.com/aretw0/itpbot/internal/seed"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the regional rate table",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			rendered, err := glamour.Render(rates.RenderMarkdown(), "auto")
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, rendered)
			return err
		}
		_, err := fmt.Fprintln(out, rates.Render())
		return err
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <maker>",
	Short: "Search the vehicle catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var year *int
		if cmd.Flags().Changed("year") {
			y, _ := cmd.Flags().GetInt("year")
			year = &y
		}

		vehicles, err := app.Bot.Search(cmd.Context(), args[0], year)
		if err != nil {
			return err
		}
		if len(vehicles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No vehicles found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tVEHICLE\tFUEL\tFISCAL VALUE")
		for _, v := range vehicles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", v.ID, v.Label(), v.FuelType, v.FiscalValue)
		}
		return tw.Flush()
	},
}

var calculateCmd = &cobra.Command{
	Use:   "calculate <vehicle-id>",
	Short: "Calculate the transfer tax of a catalog vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		region, _ := cmd.Flags().GetString("region")
		resident, _ := cmd.Flags().GetBool("resident")

		result, err := app.Bot.Calculate(cmd.Context(), args[0], region, resident)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [catalog.yaml]",
	Short: "Load vehicles into the catalog",
	Long: `Upserts vehicles into the configured catalog. Without an argument the
built-in reference catalog is loaded. Only the sqlite catalog outlives the command.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vehicles, err := readCatalog(args)
		if err != nil {
			return err
		}

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		stored, err := app.Bot.Seed(cmd.Context(), vehicles)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d vehicles into the %s catalog\n", len(stored), app.Config.Catalog.Backend)
		return nil
	},
}

func readCatalog(args []string) ([]domain.Vehicle, error) {
	if len(args) == 0 {
		return seed.Vehicles()
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return seed.Parse(data)
}

func buildApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.Build(cmd.Context(), cfg, logger)
}

func init() {
	rootCmd.AddCommand(ratesCmd, searchCmd, calculateCmd, seedCmd)
	searchCmd.Flags().Int("year", 0, "Only vehicles of this model year")
	calculateCmd.Flags().String("region", "", "Autonomous community (defaults to Madrid)")
	calculateCmd.Flags().Bool("resident", false, "The buyer resides in the special territory")
}
