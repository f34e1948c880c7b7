// Command server runs the idea tracker HTTP API.
//
// The main package stays small. Its job is to:
//  1. Read configuration (environment plus an optional .env file)
//  2. Build the logger
//  3. Hand both to internal/server, which wires everything else
//
// See internal/config for the variables and .env.example for a starting
// point.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/idea-tracker/internal/config"
	"github.com/sakif/idea-tracker/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Load fails fast on a missing JWT_SECRET or an invalid value, before
	// anything touches the database.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Human-readable text locally, JSON everywhere else so log shippers
	// can parse it. Levels, least to most severe: Debug, Info, Warn, Error.
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("invalid LOG_LEVEL", slog.String("value", cfg.LogLevel))
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDev() {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	// New opens the database, runs migrations and seeds accounts.
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
