package main

import (
	"context"
	"log"
	"os"

	"github.com/skilltreehq/mentor-platform/internal/config"
	"github.com/skilltreehq/mentor-platform/internal/server"
	pkgconfig "github.com/skilltreehq/mentor-platform/pkg/config"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

func main() {
	cfg := &config.AppConfig{}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	// Environment variables override file values; a missing file is fine.
	if err := pkgconfig.GetConfig(cfg, configFile, true); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	})

	cfg.LogConfig(logg)

	ctx := context.Background()
	srv, err := server.New(ctx, cfg, logg)
	if err != nil {
		logg.Error("Failed to initialize server", logger.ErrorField(err))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logg.Error("Server exited with error", logger.ErrorField(err))
		os.Exit(1)
	}
}
