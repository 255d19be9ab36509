// Package main is the entry point for BackFinance, a local-first personal
// finance tracker. The binary owns all state: account records (ledger,
// wallet, catalog) live in a local SQLite store keyed by nickname, and the
// bundled web shell is served from a versioned offline asset cache.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmoraes/backfinance/internal/assetcache"
	"github.com/lmoraes/backfinance/internal/config"
	"github.com/lmoraes/backfinance/internal/database"
	"github.com/lmoraes/backfinance/internal/modules/accounts"
	"github.com/lmoraes/backfinance/internal/modules/backup"
	"github.com/lmoraes/backfinance/internal/reliability"
	"github.com/lmoraes/backfinance/internal/server"
	"github.com/lmoraes/backfinance/pkg/embedded"
	"github.com/lmoraes/backfinance/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting BackFinance")

	// Open the account store. This is the open() of the persistence layer:
	// a failure here means the storage facility is unavailable and the
	// process cannot run.
	accountsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/accounts.db",
		Profile: database.ProfileLedger,
		Name:    "accounts",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Account storage unavailable")
	}
	defer accountsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{accountsDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to apply schema")
		}
	}

	// Install the current asset-set version and evict stale buckets, the
	// same install/activate cycle the shell's service worker runs.
	shellCache := assetcache.New(assetcache.Config{
		DB:     cacheDB.Conn(),
		Source: embedded.Shell(),
		Log:    log,
	})
	if err := shellCache.Install(); err != nil {
		log.Fatal().Err(err).Msg("Failed to install asset cache")
	}
	if err := shellCache.Activate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to activate asset cache")
	}

	// Wire repositories and services
	accountsRepo := accounts.NewRepository(accountsDB.Conn(), log)
	accountsService := accounts.NewService(accountsRepo, log)
	backupService := backup.NewService(accountsRepo, log)
	sessions := accounts.NewSessionManager()

	srv := server.New(server.Config{
		Log:             log,
		AccountsDB:      accountsDB,
		CacheDB:         cacheDB,
		Config:          cfg,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		AccountsService: accountsService,
		BackupService:   backupService,
		Sessions:        sessions,
		AssetCache:      shellCache,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Background database upkeep (WAL checkpoints, cache vacuum)
	maintenance := reliability.NewMaintenance(map[string]*database.DB{
		"accounts": accountsDB,
		"cache":    cacheDB,
	}, cacheDB, log)
	if err := maintenance.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to schedule maintenance jobs")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	maintenance.Stop()

	// Graceful shutdown with a 10 second deadline for in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
