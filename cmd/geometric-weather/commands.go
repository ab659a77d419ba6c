package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/weather"
)

var (
	locateBackground bool
	citiesFile       string
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one polling pass over every stored location",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := build(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		report, err := c.scheduler.RunNow(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}
		if report.Failed {
			return fmt.Errorf("first location was not updated")
		}
		return nil
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve the current position once and store it",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := build(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		list, err := c.store.ReadLocationList(cmd.Context())
		if err != nil {
			return err
		}
		current := weather.BuildLocal(cfg.WeatherSource)
		for _, loc := range list {
			if loc.CurrentPosition {
				current = loc
				break
			}
		}

		resolved, err := c.locator.RequestLocation(cmd.Context(), current, locateBackground)
		if perr := printJSON(resolved); perr != nil {
			return perr
		}
		return err
	},
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Manage the Chinese city catalogue",
}

var citiesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the city catalogue into the database when it is incomplete",
	RunE: func(cmd *cobra.Command, args []string) error {
		if citiesFile != "" {
			cfg.CityListPath = citiesFile
		}
		c, err := build(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		reloaded, err := c.store.EnsureChineseCityList(cmd.Context(), c.cities)
		if err != nil {
			return err
		}
		n, err := c.store.CountChineseCity(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("city catalogue checked",
			zap.Bool("reloaded", reloaded),
			zap.Int("cities", n),
			zap.Bool("bundled", cfg.CityListPath == ""))
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
