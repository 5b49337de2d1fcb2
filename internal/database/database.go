package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ksred/klear-trade/internal/config"
	"github.com/ksred/klear-trade/internal/database/migrations"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open initializes a GORM DB connection on the configured sqlite path and
// runs the migrations
func Open(cfg config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one connection keeps transactions from
	// failing with SQLITE_BUSY under concurrent requests
	sqlDB.SetMaxOpenConns(1)

	if err := migrations.CreateAccounts(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.CreateOrders(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenInMemory opens a private in-memory database, used by tests and by the
// simulation client when no path is given
func OpenInMemory() (*gorm.DB, error) {
	return Open(config.Database{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	})
}
