package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrations(t *testing.T) {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))

	version, err := appliedVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())

	// applying again is a no-op
	require.NoError(t, ApplyMigrations(ctx, db))
	version, err = appliedVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestAppliedVersion_FreshDatabase(t *testing.T) {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	version, err := appliedVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())
}

func TestRollbackMigration(t *testing.T) {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, RollbackMigration(ctx, db))

	version, err := appliedVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())
}

func TestRollbackMigration_NothingApplied(t *testing.T) {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = RollbackMigration(context.Background(), db)
	assert.Error(t, err)
}
