package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"settlement/internal/db"
)

// OpenDB opens and pings the pool for driver. SQLite is limited to one open
// connection so in-memory databases are shared by every query.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, db.Dialect, error) {
	var dialect db.Dialect
	switch driver {
	case "mysql":
		dialect = db.DialectMySQL
	case "sqlite":
		dialect = db.DialectSQLite
	default:
		return nil, "", fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}

	if dialect == db.DialectSQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(10 * time.Minute)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("ping %s: %w", driver, err)
	}
	return conn, dialect, nil
}

// Ping checks an open pool with a short deadline.
func Ping(ctx context.Context, conn *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return conn.PingContext(ctx)
}
