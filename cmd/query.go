package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sfazliddinov385/walmart-stock-analysis/pipeline"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Prints the verification summary of the stored table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, err := pipeline.NewPipeline(cfg, log, os.Stdout)
			if err != nil {
				return err
			}

			if err := p.Report(cmd.Context()); err != nil {
				log.Error(fmt.Sprintf("Error reading summary: %v", err))
				return err
			}
			return nil
		},
	}
}

func newQueryCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Runs an ad-hoc query against the store and prints the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (file != "") {
				return errors.New("pass either a SQL statement or --file, not both")
			}

			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, err := pipeline.NewPipeline(cfg, log, os.Stdout)
			if err != nil {
				return err
			}

			if file != "" {
				err = p.QueryFile(cmd.Context(), file)
			} else {
				err = p.Query(cmd.Context(), args[0])
			}
			if err != nil {
				log.Error(fmt.Sprintf("Error running query: %v", err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a SQL file")
	return cmd
}
