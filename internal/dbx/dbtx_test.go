package dbx

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/keevault/internal/logging"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "settings.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n))
	return n > 0
}

func countMetadata(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM metadata`).Scan(&n))
	return n
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	for _, table := range []string{"goose_db_version", "metadata", "sync_configs"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db, logging.Nop()))
	assert.True(t, tableExists(t, db, "metadata"))
}

func TestOpen_MigrationErrorClosesDB(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "settings.db"), logging.Nop())
	require.ErrorIs(t, err, boom)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO metadata(key, value) VALUES ('k', x'01')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countMetadata(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO metadata(key, value) VALUES ('k', x'01')`)
		require.NoError(t, e)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countMetadata(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openTestDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		assert.Equal(t, 0, countMetadata(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO metadata(key, value) VALUES ('k', x'01')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil })
	require.Error(t, err)
}

func TestOpen_GooseOutputGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "settings.db"), logging.New(&buf, "debug"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "component=goose")
	assert.Contains(t, out, "successfully migrated")
}

func TestGooseLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := gooseLogger{ctx: context.Background(), log: logging.New(&buf, "debug")}

	l.Printf("applied %d\n", 2)
	assert.Contains(t, buf.String(), `msg="applied 2"`)
	assert.NotContains(t, buf.String(), `\n"`)

	buf.Reset()
	l.Fatalf("broken %s", "x")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `msg="broken x"`)
}
