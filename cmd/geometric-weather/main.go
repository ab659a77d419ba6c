package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/config"
	"github.com/i474232898/geometric-weather/internal/logging"
)

var (
	// Global flags
	verbose bool

	cfg    *config.AppConfig
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "geometric-weather",
	Short: "Weather backend with location resolution and local storage",
	Long: `geometric-weather resolves the device position into a weather location,
fetches forecasts from Open-Meteo, OpenWeather or WeatherAPI, and keeps
locations and weather in a local database.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	locateCmd.Flags().BoolVar(&locateBackground, "background", false, "Resolve as a background request")
	citiesImportCmd.Flags().StringVar(&citiesFile, "file", "", "City catalogue JSON file (default: CITY_LIST_PATH or the bundled list)")

	citiesCmd.AddCommand(citiesImportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(citiesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
