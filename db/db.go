// Package db provides a lightweight GORM-based SQLite wrapper for the
// faucet's persistent state, currently just the rate-limit counters.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/testnetops/faucetd/store"
)

const (
	// InMemorySQLiteDSN is a special DSN to create an ephemeral in-memory SQLite database.
	InMemorySQLiteDSN = ":memory:"

	dbDirPermissions = 0o750
)

var (
	// gormConfig disables GORM's own logging; the faucet logs through zerolog.
	gormConfig = &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	// schemaModels lists the structs auto-migrated into the database.
	schemaModels = []any{
		&store.RateLimitRecord{},
	}
)

// DB wraps a GORM client and provides simplified lifecycle management.
type DB struct {
	client *gorm.DB
}

// OpenFileDB opens (or creates) a file-backed SQLite database at path,
// creating parent directories as needed, and migrates the schema.
func OpenFileDB(path string) (*DB, error) {
	dsn, err := prepareFilePath(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare database path")
	}
	return openSQLite(dsn)
}

// OpenInMemoryDB opens a non-persistent SQLite database, for tests.
func OpenInMemoryDB() (*DB, error) {
	return openSQLite(InMemorySQLiteDSN)
}

func openSQLite(dsn string) (*DB, error) {
	// WAL mode with a busy timeout keeps concurrent readers cheap while the
	// single writer holds the lock.
	if dsn != InMemorySQLiteDSN && !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&cache=shared&mode=rwc"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	if err := db.AutoMigrate(schemaModels...); err != nil {
		return nil, errors.Wrap(err, "failed to auto-migrate database schema")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}

	// SQLite performs best with a single connection in WAL mode.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &DB{client: db}, nil
}

// Client returns the internal *gorm.DB instance for direct usage in queries.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Close safely closes the underlying database connection.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(err, "failed to close database connection")
	}
	return nil
}

func prepareFilePath(path string) (string, error) {
	if strings.Contains(path, InMemorySQLiteDSN) {
		return path, nil
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dbDirPermissions); err != nil {
			return "", errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	} else if err != nil {
		return "", errors.Wrap(err, "error checking directory")
	}

	return fmt.Sprintf("%s/%s", dir, filepath.Base(path)), nil
}
