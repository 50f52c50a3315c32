package store

import (
	"context"
	"database/sql"

	"savingscredit/internal/db"
)

type stubDB struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s stubDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.getFn == nil {
		return nil
	}
	return s.getFn(ctx, dest, query, args...)
}

func (s stubDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

func (s stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return stubResult{}, nil
	}
	return s.execFn(ctx, query, args...)
}

type stubExecer struct {
	execFn func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s stubExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return stubResult{}, nil
	}
	return s.execFn(ctx, query, args...)
}

// fakeRunner hands the stub to fn the way db.SQLXTxRunner hands over a
// *sqlx.Tx, and records whether the unit of work committed.
type fakeRunner struct {
	tx        stubDB
	committed *bool
}

func (f fakeRunner) WithTx(_ context.Context, fn func(db.Tx) error) error {
	if err := fn(f.tx); err != nil {
		return err
	}
	if f.committed != nil {
		*f.committed = true
	}
	return nil
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) {
	return 0, r.err
}

func (r stubResult) RowsAffected() (int64, error) {
	return r.rows, r.err
}
