// Package sqlite opens gorm connections backed by the pure-Go SQLite driver.
package sqlite

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pragmas applied to every connection:
//   - journal_mode(WAL): concurrent readers with a single writer
//   - busy_timeout(5000): wait up to 5 seconds when the database is locked
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open connects to the SQLite database at dsn and migrates the given models.
func Open(dsn string, models ...any) (*gorm.DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	db, err := gorm.Open(sqlite.Open(dsn+sep+pragmas), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	slog.Info("Opened SQLite database", "dsn", dsn)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueConstraintError reports whether err is a unique constraint violation.
func IsUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
