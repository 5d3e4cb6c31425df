// Package sqlitestorage implements the storage.Backend interface on a SQLite file.
// It wraps the GORM backend via composition; the only SQLite-specific concern is
// opening the database file.
package sqlitestorage

import (
	"fmt"

	"github.com/hordenight/siege/internal/database"
	"github.com/hordenight/siege/internal/logging"
	gormstorage "github.com/hordenight/siege/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path string // database file; empty means in memory
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg Config
	log *logging.SlogManager
}

// New creates a new SQLite storage backend. The file is opened by Init.
func New(cfg Config, logManager *logging.SlogManager) *Backend {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{LogManager: logManager}),
		cfg:     cfg,
		log:     logManager,
	}
}

// Init opens the database file and migrates the schema.
func (b *Backend) Init() error {
	db, err := database.GetSqliteDBStandalone(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	b.SetDB(db)

	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.log.WriteLog("Init", fmt.Sprintf("SQLite store ready at %q", b.cfg.Path), "INFO")
	return nil
}
