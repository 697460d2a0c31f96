// Package catalog stores the card catalog and the user's collection in SQL.
// SQLite is the embedded default; PostgreSQL serves shared catalogs.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS card_sets (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		clean_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		set_id        TEXT NOT NULL REFERENCES card_sets(id),
		name          TEXT NOT NULL,
		clean_name    TEXT NOT NULL,
		ext_number    TEXT NOT NULL DEFAULT '',
		ext_hp        INTEGER NOT NULL DEFAULT 0,
		ext_card_type TEXT NOT NULL DEFAULT '',
		ext_attack1   TEXT NOT NULL DEFAULT '',
		ext_attack2   TEXT NOT NULL DEFAULT '',
		ext_rarity    TEXT NOT NULL DEFAULT '',
		artist        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products(clean_name)`,
	`CREATE TABLE IF NOT EXISTS collection (
		product_id TEXT NOT NULL REFERENCES products(id),
		condition  TEXT NOT NULL,
		variant    TEXT NOT NULL,
		quantity   INTEGER NOT NULL,
		added_at   TIMESTAMP NOT NULL,
		PRIMARY KEY (product_id, condition, variant)
	)`,
}

// DB wraps a catalog database connection.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects to a catalog and creates missing tables. For SQLite, dsn is
// a file path whose directory is created if needed.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case SQLite:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn += "?_foreign_keys=on"
	case Postgres:
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if driver == SQLite {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("Catalog: opened %s database", driver)
	return db, nil
}

func (db *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// ExecTx runs fn inside a transaction, rolling back if it fails.
func (db *DB) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
