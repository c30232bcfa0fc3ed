package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_CreatesSchema(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())

	for _, table := range []string{"titles", "history", "delay_policies", "pending_releases", "blocklist", "settings"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	ctx := context.Background()

	_, err = GetSetting(ctx, db.Conn(), "missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, SetSetting(ctx, db.Conn(), "k", "v1"))
	require.NoError(t, SetSetting(ctx, db.Conn(), "k", "v2"))

	v, err := GetSetting(ctx, db.Conn(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
