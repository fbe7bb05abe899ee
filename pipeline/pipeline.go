// Package pipeline runs the stages over their intermediate files: fetch
// writes the raw history, clean writes the normalized copy and upload moves
// it into the configured store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/sfazliddinov385/walmart-stock-analysis/extract"
	"github.com/sfazliddinov385/walmart-stock-analysis/load"
	"github.com/sfazliddinov385/walmart-stock-analysis/prompt"
	"github.com/sfazliddinov385/walmart-stock-analysis/report"
	"github.com/sfazliddinov385/walmart-stock-analysis/template"
	"github.com/sfazliddinov385/walmart-stock-analysis/transform"
)

// ErrMissingInput means a stage's input file does not exist yet.
var ErrMissingInput = errors.New("missing input file")

// StoreOpener connects to the destination store.
type StoreOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (load.Store, error)

type Pipeline struct {
	Config    *config.Config
	Logger    *slog.Logger
	Printer   *report.Printer
	Fetcher   extract.SeriesFetcher
	OpenStore StoreOpener
	Confirm   prompt.ConfirmationPrompt
}

func NewPipeline(cfg *config.Config, logger *slog.Logger, out io.Writer) (*Pipeline, error) {
	mode, err := report.ParseMode(cfg.Report.Render)
	if err != nil {
		return nil, err
	}
	confirm, err := ConfirmationFor(cfg.Store.OnExisting)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Config:    cfg,
		Logger:    logger,
		Printer:   report.NewPrinter(out, mode),
		OpenStore: OpenStore,
		Confirm:   confirm,
	}, nil
}

// ConfirmationFor maps store.on_existing to the prompt that answers the
// overwrite question.
func ConfirmationFor(onExisting string) (prompt.ConfirmationPrompt, error) {
	switch onExisting {
	case "", "ask":
		return prompt.NewTerminal(), nil
	case "truncate":
		return prompt.Static(true), nil
	case "keep":
		return prompt.Static(false), nil
	default:
		return nil, fmt.Errorf("unknown on_existing policy %q", onExisting)
	}
}

// OpenStore connects to the backend named by store.driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (load.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		s, err := load.NewSQLite(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "duckdb":
		db, err := load.NewDuckDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		credentials := prompt.Env{Fallback: prompt.NewTerminal()}
		pg, err := load.NewPostgres(ctx, cfg, credentials, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (p *Pipeline) fetcher() (extract.SeriesFetcher, error) {
	if p.Fetcher == nil {
		f, err := extract.NewSeriesFetcher(p.Config, p.Logger)
		if err != nil {
			return nil, err
		}
		p.Fetcher = f
	}
	return p.Fetcher, nil
}

// readInput reads a stage input, mapping a missing file to ErrMissingInput.
func (p *Pipeline) readInput(path string) (*dataset.Table, error) {
	t, err := dataset.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist, run the previous stage first", ErrMissingInput, path)
	}
	return t, err
}

func (p *Pipeline) openStore(ctx context.Context) (load.Store, error) {
	store, err := p.OpenStore(ctx, p.Config, p.Logger)
	if err != nil {
		if errors.Is(err, load.ErrAuthentication) {
			return nil, err
		}
		return nil, fmt.Errorf("error connecting to %s store: %w", p.Config.Store.Driver, err)
	}
	return store, nil
}

func (p *Pipeline) closeStore(store load.Store) {
	if err := store.Close(); err != nil {
		p.Logger.Error("Error closing store", "error", err)
	}
}

// Extract downloads the full history and writes it to the raw file with
// timestamp-with-offset dates.
func (p *Pipeline) Extract(ctx context.Context) ([]dataset.PriceRecord, error) {
	fetcher, err := p.fetcher()
	if err != nil {
		return nil, fmt.Errorf("error creating %s client: %w", p.Config.Extract.Provider, err)
	}

	ticker := p.Config.Ticker
	p.Logger.Info("Fetching stock history", "ticker", ticker, "provider", p.Config.Extract.Provider)
	records, err := fetcher.FetchHistory(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("error fetching history for %s: %w", ticker, err)
	}

	if err := dataset.WriteFile(p.Config.Files.Raw, dataset.FromRecords(records, dataset.TimestampLayout)); err != nil {
		return nil, fmt.Errorf("error saving history: %w", err)
	}
	p.Logger.Info("Data saved", "file", p.Config.Files.Raw, "rows", len(records))

	if err := p.Printer.PrintReport(report.NewFetchReport(ticker, records, p.Config.Report.SplitThreshold)); err != nil {
		return records, err
	}
	return records, nil
}

// Clean normalizes the Date column of the raw file into the clean file and
// returns the number of rows written.
func (p *Pipeline) Clean(ctx context.Context) (int, error) {
	raw, err := p.readInput(p.Config.Files.Raw)
	if err != nil {
		return 0, err
	}

	strategy, err := transform.ParseStrategy(p.Config.Transform.Strategy)
	if err != nil {
		return 0, err
	}
	clean, err := transform.NormalizeDates(raw, strategy, p.Logger)
	if err != nil {
		return 0, fmt.Errorf("error cleaning %s: %w", p.Config.Files.Raw, err)
	}

	if err := dataset.WriteFile(p.Config.Files.Clean, clean); err != nil {
		return 0, fmt.Errorf("error saving cleaned data: %w", err)
	}
	p.Logger.Info("Data cleaned", "file", p.Config.Files.Clean, "rows", clean.Len(), "strategy", strategy)
	return clean.Len(), nil
}

// Upload loads the clean file into the store and prints the load and
// verification reports. The input is read before any connection is made.
func (p *Pipeline) Upload(ctx context.Context) (load.Result, error) {
	t, err := p.readInput(p.Config.Files.Clean)
	if err != nil {
		return load.Result{}, err
	}

	store, err := p.openStore(ctx)
	if err != nil {
		return load.Result{}, err
	}
	defer p.closeStore(store)

	loader := load.NewLoader(store, p.Confirm, p.Config.Store.BatchSize, p.Logger)
	res, err := loader.Run(ctx, t)
	if printErr := p.Printer.PrintReport(report.NewLoadReport(p.Config.Store.Table, res)); printErr != nil {
		p.Logger.Error("Error printing upload report", "error", printErr)
	}
	if err != nil {
		return res, fmt.Errorf("error uploading %s: %w", p.Config.Files.Clean, err)
	}
	if res.Declined {
		return res, nil
	}

	sum, err := loader.Summarize(ctx, p.Config.Report.RecentRows)
	if err != nil {
		return res, fmt.Errorf("error verifying upload: %w", err)
	}
	return res, p.Printer.PrintReport(report.NewStoreReport(p.Config.Store.Table, sum))
}

// Report prints the verification figures of the stored table. A table that
// was never loaded reports as empty.
func (p *Pipeline) Report(ctx context.Context) error {
	store, err := p.openStore(ctx)
	if err != nil {
		return err
	}
	defer p.closeStore(store)

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("error preparing table %s: %w", p.Config.Store.Table, err)
	}
	sum, err := store.Summarize(ctx, p.Config.Report.RecentRows)
	if err != nil {
		return err
	}
	return p.Printer.PrintReport(report.NewStoreReport(p.Config.Store.Table, sum))
}

// Query runs an ad-hoc query against the store and prints the result.
func (p *Pipeline) Query(ctx context.Context, query string) error {
	store, err := p.openStore(ctx)
	if err != nil {
		return err
	}
	defer p.closeStore(store)

	results, err := store.QueryResults(ctx, query)
	if err != nil {
		return err
	}
	return p.Printer.PrintReport(report.NewQueryReport(results))
}

// QueryFile runs the query stored in path.
func (p *Pipeline) QueryFile(ctx context.Context, path string) error {
	query, err := template.ReadSqlTemplate(path)
	if err != nil {
		return err
	}
	return p.Query(ctx, query)
}

// Run executes fetch, clean and upload in order.
func (p *Pipeline) Run(ctx context.Context) (load.Result, error) {
	if _, err := p.Extract(ctx); err != nil {
		return load.Result{}, err
	}
	if _, err := p.Clean(ctx); err != nil {
		return load.Result{}, err
	}
	return p.Upload(ctx)
}
