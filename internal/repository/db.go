package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUserNotFound is returned by writes that require an existing user.
var ErrUserNotFound = errors.New("user_not_found")

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to Postgres through the pgx stdlib driver and pings it.
func Open(ctx context.Context, dsn, environment string) (*sql.DB, error) {
	db, err := sql.Open("pgx", normalizeDSN(dsn, environment))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// normalizeDSN disables SSL in development. Other environments connect
// through pgbouncer and need the simple query protocol.
func normalizeDSN(dsn, environment string) string {
	isURL := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	add := func(param string) {
		sep := " "
		if isURL {
			sep = "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
		}
		dsn += sep + param
	}

	if environment == "development" {
		if !strings.Contains(dsn, "sslmode") {
			add("sslmode=disable")
		}
		return dsn
	}
	if !strings.Contains(dsn, "prefer_simple_protocol") {
		add("prefer_simple_protocol=true")
	}
	return dsn
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// jsonArg turns an empty document into SQL NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
