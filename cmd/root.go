package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stockload",
	Short: "Fetch, clean and load the daily price history of one stock",
	// Errors are logged by the commands and printed once by Execute.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newQueryCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger("info")
	if !isRunningOnGitHubActions() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error(fmt.Sprintf("Error loading .env file: %v", err))
			return nil, nil, err
		}
	}

	// 1. Open the base configuration file
	baseConfigFile, err := os.Open("config.base.yaml")
	if err != nil {
		log.Error(fmt.Sprintf("Error opening base config file: %v", err))
		return nil, nil, err
	}
	defer baseConfigFile.Close()

	// 2. Prepare environment-specific config reader (if needed)
	env := os.Getenv("APP_ENV")
	var envConfigFile *os.File
	envConfigFilename := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(envConfigFilename); err == nil {
		envConfigFile, err = os.Open(envConfigFilename)
		if err != nil {
			log.Error(fmt.Sprintf("Error opening environment config file: %v", err))
			return nil, nil, err
		}
		defer envConfigFile.Close()
	}

	// 3. Create the config. A nil *os.File must not reach NewConfig as a
	// non-nil io.Reader.
	var cfg *config.Config
	if envConfigFile != nil {
		cfg, err = config.NewConfig(baseConfigFile, envConfigFile, env)
	} else {
		cfg, err = config.NewConfig(baseConfigFile, nil, env)
	}
	if err != nil {
		log.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		log.Error(fmt.Sprintf("Invalid config: %v", err))
		return nil, nil, err
	}

	return cfg, logger.NewLogger(cfg.Log.Level), nil
}
