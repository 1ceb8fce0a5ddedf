// Package db provides GORM connection and migration helpers for Campo.
package db

import (
	"fmt"

	"github.com/mveloso/campo/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from storage settings.
func DSN(s config.StorageConfig) string {
	cred := s.User
	if s.Password != "" {
		cred += ":" + s.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4", cred, s.Host, s.Port, s.Database)
}

// Open opens a GORM connection for the configured storage backend.
func Open(s config.StorageConfig) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	switch s.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(s.Path), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", s.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(s)), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", s.Host, s.Port, s.Database, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", s.Driver)
	}
}

// OpenMemory opens an in-memory sqlite database, used by tests and by
// `campo sync --dry-run`.
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open in-memory sqlite: %w", err)
	}
	return db, nil
}
