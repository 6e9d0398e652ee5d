package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/traits/database"
)

// store holds what every SQL repository needs: the pool, the placeholder
// dialect and a clock for the "now" stamps.
type store struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

func newStore(db *sql.DB, dialect database.Dialect) store {
	return store{db: db, dialect: dialect, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s store) q(query string) string {
	return s.dialect.Rebind(query)
}

func (s store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.q(query), args...)
}

// execOne runs an UPDATE and maps "no rows touched" to ErrNotFound.
func (s store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// inTx runs fn in a transaction, rolling back on error.
func (s store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
