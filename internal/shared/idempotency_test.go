package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	sql  []string
	args [][]any
	tag  pgconn.CommandTag
	err  error
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	e.args = append(e.args, args)
	return e.tag, e.err
}

func TestCheckAndInsertMapsUniqueViolation(t *testing.T) {
	db := &execRecorder{err: &pgconn.PgError{Code: "23505"}}
	err := NewIdempotencyStore(db).CheckAndInsert(context.Background(), "k-1", "journals")
	require.ErrorIs(t, err, ErrIdempotencyConflict)

	db = &execRecorder{err: errors.New("conn reset")}
	err = NewIdempotencyStore(db).CheckAndInsert(context.Background(), "k-1", "journals")
	require.EqualError(t, err, "conn reset")
}

func TestCleanupReportsRemovedRows(t *testing.T) {
	db := &execRecorder{tag: pgconn.NewCommandTag("DELETE 4")}
	removed, err := NewIdempotencyStore(db).Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 4, removed)

	cutoff := db.args[0][0].(time.Time)
	require.WithinDuration(t, time.Now().UTC().Add(-time.Hour), cutoff, time.Minute)

	_, err = NewIdempotencyStore(db).Cleanup(context.Background(), 0)
	require.Error(t, err)
}

func TestDeleteScopesToModule(t *testing.T) {
	db := &execRecorder{}
	store := NewIdempotencyStore(db)
	require.Error(t, store.Delete(context.Background(), "", "journals"))
	require.NoError(t, store.Delete(context.Background(), "k-2", "journals"))
	require.Equal(t, []any{"k-2", "journals"}, db.args[0])
}
