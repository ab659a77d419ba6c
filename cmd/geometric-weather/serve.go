package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/geometric-weather/internal/api/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the polling scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := build(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if reloaded, err := c.store.EnsureChineseCityList(ctx, c.cities); err != nil {
			logger.Warn("city catalogue not loaded", zap.Error(err))
		} else if reloaded {
			logger.Info("city catalogue imported")
		}

		// Scheduler that periodically refreshes every stored location.
		if err := c.scheduler.Start(); err != nil {
			return err
		}

		app := fiber.New(fiber.Config{
			AppName:               "geometric-weather",
			DisableStartupMessage: true,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          30 * time.Second,
			ErrorHandler:          httpapi.ErrorHandler,
		})

		// Global middleware
		app.Use(fiberlogger.New())
		app.Use(recover.New())

		httpapi.RegisterRoutes(app, httpapi.Deps{
			Store:     c.store,
			Locator:   c.locator,
			Weather:   c.weather,
			Poller:    c.scheduler,
			Native:    c.native,
			Positions: c.positions,
			DeviceID:  cfg.DeviceID,
			Source:    cfg.WeatherSource,
			Logger:    logger.Named("http"),
		})

		go func() {
			if err := app.Listen(":" + cfg.Port); err != nil {
				logger.Error("fiber server stopped", zap.Error(err))
				stop()
			}
		}()
		logger.Info("listening", zap.String("port", cfg.Port))

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("error during shutdown", zap.Error(err))
		}
		return nil
	},
}
