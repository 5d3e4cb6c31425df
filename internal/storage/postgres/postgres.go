// Package postgres implements the storage.Backend interface on PostgreSQL.
// When the server cannot be reached it falls back to a local SQLite file.
package postgres

import (
	"fmt"

	"github.com/hordenight/siege/internal/database"
	"github.com/hordenight/siege/internal/logging"
	gormstorage "github.com/hordenight/siege/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the PostgreSQL storage backend.
type Dependencies struct {
	// DB skips connecting when set.
	DB           *gorm.DB
	LogManager   *logging.SlogManager
	DBLogger     zerolog.Logger
	FallbackPath string
}

// Backend wraps the GORM backend with connection management.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	manager *database.Manager
}

// New creates a new PostgreSQL storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: deps.DB, LogManager: deps.LogManager}),
		deps:    deps,
	}
}

// Init connects (unless a DB was injected) and migrates the schema.
func (b *Backend) Init() error {
	if b.DB() == nil {
		b.manager = database.NewManager(b.deps.DBLogger, b.deps.FallbackPath)
		if err := b.manager.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		b.SetDB(b.manager.DB)
	}

	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.deps.LogManager.WriteLog("Init", fmt.Sprintf("Store ready (local=%t)", b.Local()), "INFO")
	return nil
}

// Local reports whether Init fell back to SQLite.
func (b *Backend) Local() bool {
	return b.manager != nil && b.manager.ShouldSaveLocal
}
