package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/load"
	"github.com/sfazliddinov385/walmart-stock-analysis/pipeline"
	"github.com/spf13/cobra"
)

// overwriteFlags override store.on_existing for one invocation.
type overwriteFlags struct {
	yes  bool
	keep bool
}

func (f *overwriteFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "delete existing rows without asking")
	cmd.Flags().BoolVar(&f.keep, "keep", false, "keep existing rows and skip the upload")
	cmd.MarkFlagsMutuallyExclusive("yes", "keep")
}

func (f *overwriteFlags) apply(cfg *config.Config) {
	switch {
	case f.yes:
		cfg.Store.OnExisting = "truncate"
	case f.keep:
		cfg.Store.OnExisting = "keep"
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Downloads the full daily history to the raw file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, err := pipeline.NewPipeline(cfg, log, os.Stdout)
			if err != nil {
				return err
			}

			records, err := p.Extract(cmd.Context())
			if err != nil {
				log.Error(fmt.Sprintf("Error fetching history: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Fetched %d trading days into %s", len(records), cfg.Files.Raw))
			return nil
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Normalizes the Date column of the raw file into the clean file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, err := pipeline.NewPipeline(cfg, log, os.Stdout)
			if err != nil {
				return err
			}

			n, err := p.Clean(cmd.Context())
			if err != nil {
				log.Error(fmt.Sprintf("Error cleaning data: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Cleaned %d rows into %s", n, cfg.Files.Clean))
			return nil
		},
	}
}

// reportUpload logs the outcome of an upload. A declined overwrite is not an
// error.
func reportUpload(log *slog.Logger, res load.Result, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, load.ErrAuthentication):
			log.Error(fmt.Sprintf("Authentication failed: %v", err))
		case errors.Is(err, pipeline.ErrMissingInput):
			log.Error(fmt.Sprintf("Input file not found: %v", err))
		case res.Success > 0:
			log.Error(fmt.Sprintf("Error running pipeline: %v. Committed %d rows before the failure", err, res.Success))
		default:
			log.Error(fmt.Sprintf("Error running pipeline: %v", err))
		}
		return err
	}
	if res.Declined {
		log.Info("Upload cancelled, existing data kept")
		return nil
	}
	log.Info(fmt.Sprintf("Upload completed. Inserted %d rows, %d errors", res.Success, res.Errors))
	return nil
}

func newUploadCmd() *cobra.Command {
	var flags overwriteFlags
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Loads the clean file into the configured database table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			flags.apply(cfg)

			p, err := pipeline.NewPipeline(cfg, log, os.Stdout)
			if err != nil {
				return err
			}

			res, err := p.Upload(cmd.Context())
			return reportUpload(log, res, err)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var flags overwriteFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs fetch, clean and upload in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			flags.apply(cfg)

			p, err := pipeline.NewPipeline(cfg, log, os.Stdout)
			if err != nil {
				return err
			}

			res, err := p.Run(cmd.Context())
			return reportUpload(log, res, err)
		},
	}
	flags.register(cmd)
	return cmd
}
