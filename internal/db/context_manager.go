package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// contextKey is a custom type for context keys to avoid collisions.
// Using UUID to ensure uniqueness.
type contextKey struct {
	name string
}

var txKey = contextKey{name: uuid.New().String()}

// Engine is the query surface shared by pgxpool.Pool and pgx.Tx.
type Engine interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// EngineFactory resolves the engine for the current context: the open
// transaction if one is in flight, otherwise the pool.
type EngineFactory interface {
	Get(ctx context.Context) Engine
}

// Transactor runs a function inside a transaction with commit/rollback on
// every exit path.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ContextManager manages database transactions scoped to a context.
type ContextManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewContextManager creates a new context manager.
func NewContextManager(pool *pgxpool.Pool, logger *zap.Logger) *ContextManager {
	return &ContextManager{pool: pool, logger: logger}
}

// Get returns either the in-flight transaction or the pool connection.
func (cm *ContextManager) Get(ctx context.Context) Engine {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return cm.pool
}

// Do executes fn within a transaction. Nested calls reuse the outer
// transaction.
func (cm *ContextManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := cm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, txKey, tx)

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			cm.logger.Error("rollback failed", zap.Error(rbErr))
			return fmt.Errorf("failed to rollback transaction: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
