package main

import (
	"clinic-bff/internal/app"
	"clinic-bff/internal/config"
	"clinic-bff/pkg/logger"
)

func main() {
	// Load configuration from config.toml and CLINIC_* environment
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Fatal("Failed to initialise logger: %v", err)
	}
	defer logger.Sync()

	// Create and run application
	application := app.NewApp(cfg)

	logger.Info("Clinic BFF starting...")

	if err := application.Run(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}
