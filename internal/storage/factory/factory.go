// Package factory selects a storage backend from configuration.
package factory

import (
	"fmt"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/logging"
	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/internal/storage/memory"
	"github.com/hordenight/siege/internal/storage/postgres"
	sqlitestorage "github.com/hordenight/siege/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager, dbLog zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(postgres.Dependencies{
			LogManager:   logManager,
			DBLogger:     dbLog,
			FallbackPath: cfg.SQLite.Path,
		}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{Path: cfg.SQLite.Path}, logManager), nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
