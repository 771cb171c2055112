package shardroute

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// RouteConnPool wraps db.Statement.ConnPool and resolves the sharding
// conditions of every statement before handing it to the wrapped pool
// unchanged.
type RouteConnPool struct {
	router *ShardRoute
	gorm.ConnPool
}

// RouteTxCommitter is the transaction counterpart of RouteConnPool.
type RouteTxCommitter struct {
	router *ShardRoute
	gorm.ConnPool
}

func (pool *RouteConnPool) String() string {
	return "gorm:shardroute:conn_pool"
}

func (pool RouteConnPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return pool.ConnPool.PrepareContext(ctx, query)
}

func (pool RouteConnPool) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	pool.router.observe(ctx, query, args)
	return pool.ConnPool.ExecContext(ctx, query, args...)
}

// https://github.com/go-gorm/gorm/blob/v1.21.11/callbacks/query.go#L18
func (pool RouteConnPool) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	pool.router.observe(ctx, query, args)
	return pool.ConnPool.QueryContext(ctx, query, args...)
}

func (pool RouteConnPool) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	pool.router.observe(ctx, query, args)
	return pool.ConnPool.QueryRowContext(ctx, query, args...)
}

// BeginTx Implement ConnPoolBeginner.BeginTx
func (pool *RouteConnPool) BeginTx(ctx context.Context, opt *sql.TxOptions) (gorm.ConnPool, error) {
	switch basePool := pool.ConnPool.(type) {
	case gorm.ConnPoolBeginner:
		tx, err := basePool.BeginTx(ctx, opt)
		if err != nil {
			return nil, err
		}
		return &RouteTxCommitter{router: pool.router, ConnPool: tx}, nil
	case gorm.TxBeginner:
		tx, err := basePool.BeginTx(ctx, opt)
		if err != nil {
			return nil, err
		}
		return &RouteTxCommitter{router: pool.router, ConnPool: tx}, nil
	}

	return pool, gorm.ErrInvalidTransaction
}

func (pool *RouteTxCommitter) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	pool.router.observe(ctx, query, args)
	return pool.ConnPool.ExecContext(ctx, query, args...)
}

func (pool *RouteTxCommitter) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	pool.router.observe(ctx, query, args)
	return pool.ConnPool.QueryContext(ctx, query, args...)
}

func (pool *RouteTxCommitter) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	pool.router.observe(ctx, query, args)
	return pool.ConnPool.QueryRowContext(ctx, query, args...)
}

// Commit Implement TxCommitter.Commit
func (pool *RouteTxCommitter) Commit() error {
	if basePool, ok := pool.ConnPool.(gorm.TxCommitter); ok {
		return basePool.Commit()
	}

	return gorm.ErrInvalidTransaction
}

// Rollback Implement TxCommitter.Rollback
func (pool *RouteTxCommitter) Rollback() error {
	if basePool, ok := pool.ConnPool.(gorm.TxCommitter); ok {
		return basePool.Rollback()
	}

	return gorm.ErrInvalidTransaction
}

func (pool *RouteConnPool) Ping() error {
	return nil
}
