package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    "file:" + t.Name() + "_" + name + "?mode=memory&cache=shared",
		Profile: ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMigrateAccountsSchema(t *testing.T) {
	db := openTestDB(t, "accounts")
	require.NoError(t, db.Migrate())

	// Migrating twice must be a no-op
	require.NoError(t, db.Migrate())

	_, err := db.Exec(
		"INSERT INTO accounts (nickname, data, updated_at) VALUES (?, ?, ?)",
		"alice", []byte{0x80}, 0,
	)
	assert.NoError(t, err)
}

func TestMigrateCacheSchema(t *testing.T) {
	db := openTestDB(t, "cache")
	require.NoError(t, db.Migrate())

	_, err := db.Exec(
		"INSERT INTO shell_assets (version, path, content_type, body, cached_at) VALUES (?, ?, ?, ?, ?)",
		"v1", "index.html", "text/html", []byte("<html>"), 0,
	)
	assert.NoError(t, err)

	// (version, path) is the primary key: same path under another version
	// is a distinct bucket entry
	_, err = db.Exec(
		"INSERT INTO shell_assets (version, path, content_type, body, cached_at) VALUES (?, ?, ?, ?, ?)",
		"v2", "index.html", "text/html", []byte("<html>"), 0,
	)
	assert.NoError(t, err)
}

func TestMigrateUnknownDatabaseIsNoop(t *testing.T) {
	db := openTestDB(t, "scratch")
	assert.NoError(t, db.Migrate())
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, "accounts")
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.QuickCheck(context.Background()))
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestWithTransactionCommits(t *testing.T) {
	db := openTestDB(t, "accounts")
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"INSERT INTO accounts (nickname, data, updated_at) VALUES (?, ?, ?)",
			"alice", []byte{0x80}, 0,
		)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t, "accounts")
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO accounts (nickname, data, updated_at) VALUES (?, ?, ?)",
			"bob", []byte{0x80}, 0,
		); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n))
	assert.Equal(t, 0, n)
}
