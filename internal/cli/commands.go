package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pricelens/backend/internal/app"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/catalog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// withApp loads configuration, builds the application and runs fn against it
func (o *options) withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := o.newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func (o *options) print(out io.Writer, v any, text func(w io.Writer)) error {
	if o.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

// printMatchError reports the near miss carried by a failed resolution
func printMatchError(w io.Writer, err error) {
	var matchErr *domain.MatchError
	if errors.As(err, &matchErr) && matchErr.BestTitle != "" {
		fmt.Fprintf(w, "closest match: %s (confidence %d%%, %s tier)\n", matchErr.BestTitle, matchErr.Confidence, matchErr.Tier)
	}
}

func newRecommendCommand(opts *options) *cobra.Command {
	var (
		productName string
		costPrice   float64
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a selling price for a product",
		Example: `  pricectl recommend --name "Acme X200" --cost 700
  pricectl recommend -n "Samsung Galaxy S23" -c 52000 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				rec, err := a.Service.RecommendPrice(cmd.Context(), productName, costPrice)
				if err != nil {
					printMatchError(cmd.ErrOrStderr(), err)
					return err
				}

				return opts.print(cmd.OutOrStdout(), rec, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "Recommended price:\t%.2f\n", rec.Price)
					fmt.Fprintf(tw, "Best match:\t%s (%d%%, %s)\n", rec.BestTitle, rec.Confidence, rec.Tier)
					fmt.Fprintf(tw, "Model estimate:\t%.2f\n", rec.PredictedPrice)
					fmt.Fprintf(tw, "Competitor median:\t%.2f (%d listings)\n", rec.CompetitorPrice, rec.MatchedCount)
					fmt.Fprintf(tw, "Cost price:\t%.2f\n", rec.CostPrice)
					fmt.Fprintf(tw, "Policy:\t%s\n", rec.Policy)
					tw.Flush()
				})
			})
		},
	}

	cmd.Flags().StringVarP(&productName, "name", "n", "", "product name as the seller lists it (required)")
	cmd.Flags().Float64VarP(&costPrice, "cost", "c", 0, "unit cost price, must be positive (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cost")
	return cmd
}

func newResolveCommand(opts *options) *cobra.Command {
	var productName string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which catalog title a product name resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Service.ResolveProduct(cmd.Context(), productName)
				if err != nil {
					printMatchError(cmd.ErrOrStderr(), err)
					return err
				}

				return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%d%%\t%s\t%d listings\n", result.BestTitle, result.Confidence, result.Tier, len(result.MatchedRecords))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&productName, "name", "n", "", "product name to resolve (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSummaryCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print per-retailer price statistics of the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.Service.Summary(cmd.Context())
				if err != nil {
					return err
				}

				return opts.print(cmd.OutOrStdout(), summary, func(w io.Writer) {
					fmt.Fprintf(w, "catalog %s: %d listings (%d dropped)\n", summary.Version, summary.TotalRecords, summary.DroppedRows)
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "SOURCE\tCOUNT\tMIN\tMEDIAN\tMAX\tRATING")
					for _, s := range summary.Sources {
						fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n", s.Source, s.Count, s.MinPrice, s.MedianPrice, s.MaxPrice, s.MeanRating)
					}
					tw.Flush()
				})
			})
		},
	}
}

func newImportCommand(opts *options) *cobra.Command {
	var (
		csvFile string
		dbPath  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a scraped CSV file into the SQLite catalog",
		Example: `  pricectl import --csv products.csv --db catalog.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.newLogger(cfg)
			if err != nil {
				return err
			}
			if dbPath == "" {
				if cfg.Catalog.Type != "sqlite" {
					return fmt.Errorf("--db is required unless the configured catalog is sqlite")
				}
				dbPath = cfg.Catalog.Path
			}

			f, err := os.Open(csvFile)
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()

			records, err := catalog.DecodeCSV(f)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			logger.Info("parsed listings", zap.Int("rows", len(records)), zap.String("file", csvFile))

			db, err := catalog.OpenSQLite(ctx, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := catalog.NewSQLiteRepository(db, logger).Insert(ctx, records)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d listings into %s\n", n, dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvFile, "csv", "", "CSV file to import (required)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to the configured sqlite catalog)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
