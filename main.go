package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"synth-market/models"
	"synth-market/services"
	"synth-market/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "synth-market",
		Short: "Second-hand synthesizer market data",
		Long: `synth-market searches several marketplaces for a used instrument and
summarises current asking prices, or assembles a technical profile of an
instrument from spec databases, price guides and an optional AI fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListingsCommand(), newEnrichCommand())
	return root
}

func newListingsCommand() *cobra.Command {
	var (
		csvPath   string
		asJSON    bool
		saveGuide bool
	)

	cmd := &cobra.Command{
		Use:   "listings <query>",
		Short: "Search all marketplaces and report prices",
		Example: `  synth-market listings korg ms-20
  synth-market listings "roland juno-106" --csv out/juno.csv --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			sources := a.listingSources()
			if len(sources) == 0 {
				return errors.New("no listing sources configured")
			}
			a.logger.Info("=== Searching %d sources for %q ===", len(sources), query)

			agg := services.NewListingAggregator(sources, a.cleaner, a.logger, services.AggregatorOptions{
				MaxWorkers:    a.cfg.MaxConcurrency,
				MinInterval:   a.rateLimit(),
				SourceTimeout: a.cfg.SourceTimeout,
			})
			report := agg.FetchAllListingsReport(ctx, query)

			if csvPath == "" {
				csvPath = a.cfg.CSVOutputPath
			}
			if csvPath != "" {
				if err := writeCSV(csvPath, report.Raw); err != nil {
					a.logger.Error("CSV write failed: %v", err)
				} else {
					a.logger.Info("%d raw listings saved to %s", len(report.Raw), csvPath)
				}
			}

			if saveGuide {
				a.saveGuide(ctx, query, report.Metrics)
			}

			if rl := services.RateLimitedSources(report); len(rl) > 0 {
				a.logger.Warn("Rate limited by %s; try again in a few minutes", strings.Join(rl, ", "))
			}

			if asJSON {
				return printJSON(report)
			}
			services.PrintReport(os.Stdout, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "write every fetched listing, before filtering, to this CSV file (default $CSV_OUTPUT_PATH)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&saveGuide, "save-guide", false, "store the price range in the PostgreSQL price guide")
	return cmd
}

func newEnrichCommand() *cobra.Command {
	var listingURL string

	cmd := &cobra.Command{
		Use:   "enrich <brand> <model>",
		Short: "Build a technical profile of an instrument",
		Example: `  synth-market enrich Korg MS-20
  synth-market enrich Roland "Juno-106" --url https://reverb.com/item/123-roland-juno-106`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			enricher := a.enricher(ctx)
			inst, err := enricher.Enrich(ctx, args[0], strings.Join(args[1:], " "), listingURL)
			if err != nil {
				return err
			}
			return printJSON(inst)
		},
	}

	cmd.Flags().StringVar(&listingURL, "url", "", "marketplace listing to seed the profile from")
	return cmd
}

func writeCSV(path string, listings []*models.Listing) error {
	var w storage.RawListingWriter
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteRaw(listings); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
