// Package gormstorage implements storage.Backend on any GORM dialect.
// The sqlite and postgres backends embed it and only differ in how they connect.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hordenight/siege/internal/database"
	"github.com/hordenight/siege/internal/logging"
	"github.com/hordenight/siege/internal/model"
	"github.com/hordenight/siege/internal/model/convert"
	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend with one row per world key.
type Backend struct {
	deps    Dependencies
	mu      sync.RWMutex
	dbReady bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps: deps,
	}
}

// Init migrates the schema. It fails when no DB was injected.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend has no database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		b.deps.LogManager.WriteLog("Init", err.Error(), "ERROR")
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true
	return nil
}

// SetDB injects a connection after construction. Used by wrappers that connect lazily.
func (b *Backend) SetDB(db *gorm.DB) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deps.DB = db
}

// DB returns the underlying connection, or nil before one is set.
func (b *Backend) DB() *gorm.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deps.DB
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dbReady = false
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ready reports whether the schema is in place.
func (b *Backend) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dbReady
}

// Get loads the record stored under key.
func (b *Backend) Get(key string) (*core.SiegeRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.dbReady {
		return nil, storage.ErrNotReady
	}

	var row model.SiegeRecord
	err := b.deps.DB.Where("world_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load siege record %q: %w", key, err)
	}
	return convert.SiegeRecordToCore(row), nil
}

// Save writes every field of rec under key, inserting the row on first save.
func (b *Backend) Save(key string, rec *core.SiegeRecord) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.dbReady {
		return storage.ErrNotReady
	}

	row := convert.CoreToSiegeRecord(key, rec)
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.SiegeRecord
		err := tx.Select("id", "created_at").Where("world_key = ?", key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		return tx.Save(&row).Error
	})
	if err != nil {
		b.deps.LogManager.WriteLog("Save", fmt.Sprintf("Failed to save siege record %q: %v", key, err), "ERROR")
		return fmt.Errorf("failed to save siege record %q: %w", key, err)
	}
	return nil
}

// Keys lists every stored world key.
func (b *Backend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.dbReady {
		return nil, storage.ErrNotReady
	}

	var keys []string
	err := b.deps.DB.Model(&model.SiegeRecord{}).Order("world_key").Pluck("world_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list siege records: %w", err)
	}
	return keys, nil
}
