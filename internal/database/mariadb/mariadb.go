// Package mariadb implements the attendance repository on MariaDB/MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// erDupEntry is the server error number for a duplicate key.
const erDupEntry = 1062

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         VARCHAR(64) NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		course     VARCHAR(255) NOT NULL,
		embedding  BLOB NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		student_id VARCHAR(64) NOT NULL,
		timestamp  DATETIME NOT NULL,
		date_str   CHAR(10) NOT NULL,
		time_str   CHAR(8) NOT NULL,
		UNIQUE KEY uq_attendance_student_date (student_id, date_str),
		KEY idx_attendance_timestamp (timestamp),
		CONSTRAINT fk_attendance_student FOREIGN KEY (student_id) REFERENCES students(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

var _ database.Repository = (*Pool)(nil)

// driverConfig parses the DSN and forces the options the queries rely on.
// ClientFoundRows must stay off: insert-or-ignore reads "already recorded"
// from zero affected rows on ON DUPLICATE KEY UPDATE id = id.
func driverConfig(dsn string) (*mysql.Config, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.Loc = time.UTC
	mcfg.ClientFoundRows = false
	return mcfg, nil
}

// NewPool creates a new MariaDB connection pool.
// Timestamps are always exchanged in UTC.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	mcfg, err := driverConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Open connects and creates the tables if needed.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*Pool, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	if logger != nil {
		logger.Debug("mariadb schema ready")
	}
	return pool, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}
