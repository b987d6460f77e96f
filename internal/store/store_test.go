package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreUpsertInsertsNewRow(t *testing.T) {
	db := openTestStore(t)
	ctx := context.Background()

	rows, err := db.Upsert(ctx, "example.com", "443", "AA:BB:CC", 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "AA:BB:CC", rows[0].Fingerprint)
	require.EqualValues(t, 100, rows[0].Start)
	require.EqualValues(t, 100, rows[0].Finish)
}

func TestSQLiteStoreUpsertAdvancesFinish(t *testing.T) {
	db := openTestStore(t)
	ctx := context.Background()

	_, err := db.Upsert(ctx, "example.com", "443", "AA:BB:CC", 100)
	require.NoError(t, err)

	rows, err := db.Upsert(ctx, "example.com", "443", "AA:BB:CC", 200)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 100, rows[0].Start)
	require.EqualValues(t, 200, rows[0].Finish)
}

func TestSQLiteStoreUpsertDistinctFingerprintsAccumulate(t *testing.T) {
	db := openTestStore(t)
	ctx := context.Background()

	_, err := db.Upsert(ctx, "example.com", "443", "AA:BB:CC", 100)
	require.NoError(t, err)
	rows, err := db.Upsert(ctx, "example.com", "443", "DE:AD:BE", 150)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestSQLiteStoreGetRecordsIsSnapshot(t *testing.T) {
	db := openTestStore(t)
	ctx := context.Background()

	rows, err := db.GetRecords(ctx, "example.com", "443")
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = db.Upsert(ctx, "example.com", "443", "AA:BB:CC", 100)
	require.NoError(t, err)

	rows, err = db.GetRecords(ctx, "example.com", "443")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMemoryStoreMatchesSQLiteSemantics(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	rows, err := m.Upsert(ctx, "h", "443", "FP1", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = m.Upsert(ctx, "h", "443", "FP1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 2, rows[0].Finish)
	require.EqualValues(t, 1, rows[0].Start)
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "notary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
