// Package sqlite provides a single-file (or in-memory) datastore for
// development and tests. It reuses the shared GORM store from the postgres
// plugin with sqlite-appropriate options.
package sqlite

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/resonancelabs/resonance-service/internal/config"
	pgstore "github.com/resonancelabs/resonance-service/internal/plugin/store/postgres"
	registrymigrate "github.com/resonancelabs/resonance-service/internal/registry/migrate"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

//go:embed db/schema.sql
var schemaSQL string

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.MemoryStore, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.SQLitePath == "" {
				return nil, fmt.Errorf("sqlite store: RESONANCE_SQLITE_PATH is required")
			}
			store, err := Open(cfg.SQLitePath)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 110, Migrator: &sqliteMigrator{}})
}

// Open returns a sqlite-backed store with the schema applied. A single open
// connection avoids SQLITE_BUSY under concurrent writers and keeps :memory:
// databases from splitting across connections.
func Open(path string) (*pgstore.Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return pgstore.NewStore(db, pgstore.Options{
		RowLocking:  false,
		IsDuplicate: isSqliteDuplicate,
	}), nil
}

func isSqliteDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

type sqliteMigrator struct{}

func (m *sqliteMigrator) Name() string { return "sqlite-schema" }
func (m *sqliteMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart || cfg.DatastoreType != "sqlite" {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to open sqlite database %s: %w", cfg.SQLitePath, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	defer sqlDB.Close()
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return nil
}
