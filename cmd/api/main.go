package main

import (
	"fmt"
	"os"

	"github.com/kurihiro0119/github-data-explorer/internal/aggregator"
	"github.com/kurihiro0119/github-data-explorer/internal/api"
	"github.com/kurihiro0119/github-data-explorer/internal/config"
	"github.com/kurihiro0119/github-data-explorer/internal/dashboard"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
	"github.com/kurihiro0119/github-data-explorer/internal/render"
	"github.com/kurihiro0119/github-data-explorer/internal/storage"
	"github.com/kurihiro0119/github-data-explorer/internal/storage/postgres"
	"github.com/kurihiro0119/github-data-explorer/internal/storage/sqlite"
	"github.com/kurihiro0119/github-data-explorer/internal/store"
	"github.com/kurihiro0119/github-data-explorer/pkg/client"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	backend := client.NewClient(cfg.APIEndpoint,
		client.WithSessionToken(cfg.SessionToken),
		client.WithTimeout(cfg.HTTPTimeout),
		client.WithRateLimiter(client.NewRateLimiter(cfg.RequestInterval)),
		client.WithLogger(log),
	)

	// Initialize the cache
	var cache storage.Storage
	switch cfg.StorageType {
	case "postgres":
		cache, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Errorf("Failed to initialize PostgreSQL storage")
			os.Exit(1)
		}
	case "sqlite":
		cache, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.WithError(err).Errorf("Failed to initialize SQLite storage")
			os.Exit(1)
		}
	}

	var source store.DataSource = backend
	if cache != nil {
		defer cache.Close()
		source = storage.NewCachingSource(backend, cache, false, log)
	}

	// The browser widget draws the grid; the table grids only hold the bound rows
	gs := store.NewGridStore(source, log, cfg.PageSize)
	controller := dashboard.NewController(gs, render.NewTableGrid(nil), render.NewTableGrid(nil), cfg.ColumnOptions(), cfg.PageSize, log)
	defer controller.Close()

	handler := api.NewHandler(controller, aggregator.NewAggregator(cache))
	router := api.SetupRoutes(handler, log)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.BridgeHost, cfg.BridgePort)
	log.WithFields(map[string]interface{}{
		"addr":    addr,
		"backend": cfg.APIEndpoint,
		"storage": cfg.StorageType,
	}).Infof("Starting grid bridge")

	if err := router.Run(addr); err != nil {
		log.WithError(err).Errorf("Failed to start server")
		os.Exit(1)
	}
}
