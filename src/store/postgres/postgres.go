// Package postgres implements the service stores on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

//go:embed schema.sql
var schema string

// DBExecutor is satisfied by *sqlx.DB and *sqlx.Tx
type DBExecutor interface {
	sqlx.ExtContext
}

// Store implements every repository interface of the services package
type Store struct {
	db *sqlx.DB
}

var (
	_ services.Transactor        = (*Store)(nil)
	_ services.CustomerStore     = (*Store)(nil)
	_ services.OfferStore        = (*Store)(nil)
	_ services.CourseStore       = (*Store)(nil)
	_ services.InvoiceStore      = (*Store)(nil)
	_ services.DiscountCodeStore = (*Store)(nil)
	_ services.AccountingStore   = (*Store)(nil)
)

// PoolConfig sizes the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects and pings the database
func Open(ctx context.Context, dsn string, pool PoolConfig) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return New(db), nil
}

// New wraps an open connection pool
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the connection for health endpoints
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}
	return nil
}

// Stores exposes the store through the service interfaces
func (s *Store) Stores() services.Stores {
	return services.Stores{
		Tx:            s,
		Customers:     s,
		Offers:        s,
		Courses:       s,
		Invoices:      s,
		DiscountCodes: s,
		Accounting:    s,
	}
}

type txKey struct{}

// WithinTx runs fn in a transaction; nested calls join the outer one
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// exec returns the transaction carried by ctx or the pool
func (s *Store) exec(ctx context.Context) DBExecutor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

// mapError translates driver errors into the store sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", models.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// expectRow turns an update touching no rows into ErrNotFound
func expectRow(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return mapError(sqlx.GetContext(ctx, s.exec(ctx), dest, query, args...))
}

func (s *Store) list(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return mapError(sqlx.SelectContext(ctx, s.exec(ctx), dest, query, args...))
}

func (s *Store) named(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, s.exec(ctx), query, arg)
}
