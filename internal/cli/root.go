// Package cli implements the pricectl command line tool.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options are the persistent flags shared by every subcommand
type options struct {
	catalogType string
	catalogPath string
	verbose     bool
	jsonOutput  bool
}

// NewRootCommand builds the pricectl command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pricectl",
		Short: "Resolve products and recommend prices from the scraped catalog",
		Long: `pricectl resolves seller product names against the scraped retail
catalog and recommends a selling price from market signals and unit cost.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to load .env: %v\n", err)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.catalogType, "catalog-type", "", "catalog backend: csv or sqlite (overrides config)")
	flags.StringVar(&opts.catalogPath, "catalog", "", "catalog file path (overrides config)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline details to stderr")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newRecommendCommand(opts),
		newResolveCommand(opts),
		newSummaryCommand(opts),
		newImportCommand(opts),
	)
	return root
}

// Execute runs pricectl with os.Args
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies flag overrides
func (o *options) loadConfig() (*config.Config, error) {
	overrides := make(map[string]any)
	if o.catalogType != "" {
		overrides["catalog.type"] = o.catalogType
	}
	if o.catalogPath != "" {
		overrides["catalog.path"] = o.catalogPath
	}
	return config.LoadWithOverrides(overrides)
}

// newLogger writes to stderr so stdout carries only results
func (o *options) newLogger(cfg *config.Config) (*zap.Logger, error) {
	if !o.verbose {
		return zap.NewNop(), nil
	}
	return logger.New(cfg.Log.Level, "console")
}
