package repository

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dmitryntvh/AVITO/traits/database"
)

func newTestDB(t *testing.T) (*sql.DB, database.Dialect) {
	t.Helper()
	db, dialect, err := database.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(db, dialect))
	return db, dialect
}

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	var (
		mu  sync.Mutex
		cur = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Minute)
		return cur
	}
}
