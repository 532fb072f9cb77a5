package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/driving-school-ledger/pkg/config"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// IsolationLevel maps the configured name to a database/sql level.
func IsolationLevel(name string) sql.IsolationLevel {
	switch name {
	case config.IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case config.IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}

// Transactor runs a unit of work inside one database transaction.
type Transactor struct {
	db        *sqlx.DB
	isolation sql.IsolationLevel
	attempts  int
}

// NewTransactor builds a Transactor using the given isolation level.
// Serialization failures and deadlocks are retried up to three times.
func NewTransactor(db *sqlx.DB, isolation sql.IsolationLevel) *Transactor {
	return &Transactor{db: db, isolation: isolation, attempts: 3}
}

// WithinTx begins a transaction, hands it to fn, and commits when fn
// returns nil. Any error or panic rolls the whole unit back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	var err error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		err = t.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (t *Transactor) runOnce(ctx context.Context, fn func(exec sqlx.ExtContext) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: t.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a serialization failure (40001) or a
// deadlock (40P01) that a fresh transaction may resolve.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
