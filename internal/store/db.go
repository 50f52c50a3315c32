package store

import (
	"context"
	"database/sql"
	"errors"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

// IsNotFound reports whether err is a missing-row error from a Get.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
