package migrations

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DatabaseFromDSN returns the database named in the path of a ClickHouse DSN.
func DatabaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	if !identifier.MatchString(db) {
		return "", fmt.Errorf("clickhouse database %q is not a plain identifier", db)
	}
	return db, nil
}

// EnsureDatabase creates database if it does not exist. conn must not be
// bound to database itself.
func EnsureDatabase(ctx context.Context, conn driver.Conn, database string) error {
	if !identifier.MatchString(database) {
		return fmt.Errorf("clickhouse database %q is not a plain identifier", database)
	}
	if err := conn.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+database); err != nil {
		return fmt.Errorf("create database %s: %w", database, err)
	}
	return nil
}

// ApplyClickHouse runs every ClickHouse migration statement by statement; the
// driver does not accept multi-statement queries. Migrations must be idempotent.
func ApplyClickHouse(ctx context.Context, conn driver.Conn) error {
	migs, err := ClickHouse()
	if err != nil {
		return err
	}
	for _, m := range migs {
		for _, stmt := range Statements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
	}
	return nil
}
