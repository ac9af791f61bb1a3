package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/hh-events/internal/augment"
	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/filter"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/pipeline"
	"github.com/pfrederiksen/hh-events/internal/present"
	"github.com/pfrederiksen/hh-events/internal/scraper"
	"github.com/pfrederiksen/hh-events/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagDate      string
	flagCategory  string
	flagVenues    []string
	flagAfter     string
	flagFormat    string
	flagConfig    string
	flagRefresh   bool
	flagVerbose   bool
	flagMetrics   bool
	flagStorePath string
	flagProvider  string
	flagContact   string
)

// errAnswered marks a failure whose apology has already been printed
var errAnswered = errors.New("request failed")

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hh-events",
		Short: "Find evening events in Hamburg for a given date",
		Long: `A CLI tool that answers "what's on in Hamburg on date X".
Listings are crawled from the Hamburg tourism event calendar on first use,
stored in a local DuckDB file, optionally categorized by a language model,
then filtered and printed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runQuery,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (or env: "+config.ConfigPathEnvVar+")")
	cmd.PersistentFlags().StringVar(&flagStorePath, "db", "", "DuckDB file, overrides store.path")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging and show event IDs")

	cmd.Flags().StringVar(&flagDate, "date", "", "Date to look up, YYYY-MM-DD or DD.MM.YYYY (required)")
	cmd.Flags().StringVar(&flagCategory, "category", "", "Category or genre, e.g. \"rock\" or \"Jazz, Blues, Soul\"")
	cmd.Flags().StringSliceVar(&flagVenues, "venue", nil, "Only show events at these venues (substring match, repeatable)")
	cmd.Flags().StringVar(&flagAfter, "after", "", "Only show events starting at or after HH:MM")
	cmd.Flags().StringVar(&flagFormat, "format", string(present.FormatText), "Output format: "+formatList())
	cmd.Flags().BoolVar(&flagRefresh, "refresh", false, "Crawl the date again even if it is already stored")
	cmd.Flags().BoolVar(&flagMetrics, "metrics", false, "Print a metrics snapshot to stderr after the run")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "Augmentation provider, overrides augment.provider (openai or none)")
	cmd.Flags().StringVar(&flagContact, "contact", "", "Contact address sent in the From header, overrides source.contact_email")

	_ = cmd.MarkFlagRequired("date")

	cmd.AddCommand(newSchemaCmd(), newCategoriesCmd())
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the events table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s ready in %s\n", storage.TableName, store.Path())
			return nil
		},
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the known event categories",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, c := range event.Categories {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
		},
	}
}

// runQuery answers one date query
func runQuery(cmd *cobra.Command, _ []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Store.Path)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), present.Apology(err))
		logger.Error("Opening store failed", logger.Fields{"path": cfg.Store.Path}, err)
		return errAnswered
	}
	defer store.Close()

	provider, err := augment.NewProviderFromConfig(cfg.Augment)
	if err != nil {
		return fmt.Errorf("creating augmentation provider: %w", err)
	}

	logger.Debug("Starting query", logger.Fields{
		"date":     req.Date,
		"store":    store.Path(),
		"provider": provider.Name(),
		"source":   cfg.Source.ListingURL(),
	})

	p := pipeline.New(cfg, store, scraper.New(cfg.Source), provider)
	st, err := p.Run(cmd.Context(), req)
	if flagMetrics {
		defer writeMetrics(cmd.ErrOrStderr())
	}
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), present.Apology(err))
		return errAnswered
	}

	return WriteResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), st, flagVerbose)
}

// buildRequest turns the flags into a pipeline request
func buildRequest() (pipeline.Request, error) {
	date, err := normalizeDate(flagDate)
	if err != nil {
		return pipeline.Request{}, err
	}

	category := ""
	if strings.TrimSpace(flagCategory) != "" {
		if category, err = filter.ParseCategory(flagCategory); err != nil {
			return pipeline.Request{}, err
		}
	}

	format, err := present.ParseFormat(flagFormat)
	if err != nil {
		return pipeline.Request{}, err
	}

	return pipeline.Request{
		Date:     date,
		Category: category,
		Venues:   flagVenues,
		After:    strings.TrimSpace(flagAfter),
		Format:   format,
		Verbose:  flagVerbose,
		Refresh:  flagRefresh,
	}, nil
}

// normalizeDate accepts ISO or day-first dates and returns YYYY-MM-DD
func normalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("--date is required")
	}
	if d, err := event.ParseISODate(s); err == nil {
		return d.Format(event.DateLayout), nil
	}
	if d := event.ParseDate(s); !d.IsZero() {
		return d.Format(event.DateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q (use YYYY-MM-DD or DD.MM.YYYY)", s)
}

// loadConfig reads the config and applies flag overrides and logging setup
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flagStorePath != "" {
		cfg.Store.Path = flagStorePath
	}
	if flagProvider != "" {
		cfg.Augment.Provider = flagProvider
	}
	if flagContact != "" {
		cfg.Source.ContactEmail = flagContact
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetDefault(logger.NewWithFormat(
		logger.ParseLevel(cfg.Logging.Level),
		logger.Format(cfg.Logging.Format),
		os.Stderr,
	))
	return cfg, nil
}

func formatList() string {
	names := make([]string, len(present.Formats))
	for i, f := range present.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, NewRootCmd(), os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errAnswered) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return ExitError
	}
	return ExitSuccess
}
