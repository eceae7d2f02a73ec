// Package db provides database connection and migration helpers.
package db

import (
	"fmt"

	sqldriver "github.com/go-sql-driver/mysql"
	"github.com/hferris/dutywatch/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the duty store. parseTime is required so date
// columns come back as time.Time.
func DSN(host string, port int, database string) string {
	cfg := sqldriver.NewConfig()
	cfg.User = "root"
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Connect opens a GORM connection according to the database config.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "mysql":
		return ConnectMySQL(cfg.Host, cfg.Port, cfg.Name)
	case "sqlite":
		return ConnectSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// ConnectMySQL opens a GORM connection to a MySQL-compatible server.
func ConnectMySQL(host string, port int, database string) (*gorm.DB, error) {
	dsn := DSN(host, port, database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return db, nil
}

// ConnectSQLite opens a GORM connection to a local SQLite file.
// Path ":memory:" yields an in-memory database.
func ConnectSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db: sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}
