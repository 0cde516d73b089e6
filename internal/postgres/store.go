// Package postgres implements directory.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/pkg/database"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a directory.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ directory.Store = (*Store)(nil)

// NewStore creates a Store on pool. The schema is expected to be migrated.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx implements directory.Store with a read-committed transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx directory.Tx) error) error {
	return database.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

// View implements directory.Store with a read-only transaction, so a detail
// view is built from one snapshot per statement set.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r directory.Reader) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return database.WithTx(ctx, s.pool, opts, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return &directory.ConstraintError{Constraint: pgErr.ConstraintName, Err: directory.ErrDuplicateKey}
	case codeForeignKeyViolation:
		return &directory.NotFoundError{Kind: referencedKind(pgErr.ConstraintName), Key: pgErr.Detail}
	}
	return err
}

// referencedKind derives the referenced entity from a default foreign key
// name such as group_users_user_id_fkey.
func referencedKind(constraint string) directory.Kind {
	switch {
	case strings.HasSuffix(constraint, "_group_id_fkey"):
		return directory.KindGroup
	case strings.HasSuffix(constraint, "_pirg_id_fkey"):
		return directory.KindPirg
	default:
		return directory.KindUser
	}
}

func collectIDs(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
