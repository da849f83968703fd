package db

import (
	"context"
	"database/sql"
)

type txKey struct{}

// TxManager runs closures inside one database transaction. Repositories pick
// the active *sql.Tx up from the context through Conn.
type TxManager struct {
	db   *sql.DB
	opts *sql.TxOptions
}

func NewTxManager(db *sql.DB, dialect Dialect) *TxManager {
	tm := &TxManager{db: db}
	if dialect == DialectMySQL {
		tm.opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return tm
}

// RunInTx commits when fn returns nil and rolls back otherwise. A nested call
// joins the transaction already carried by ctx.
func (tm *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, tm.opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Conn returns the transaction carried by ctx, or the pool.
func Conn(ctx context.Context, pool *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return pool
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}
