package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatabasesReportMissingKeys(t *testing.T) {
	ldb, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer ldb.Close()

	for name, db := range map[string]Database{"mem": NewMemDB(), "leveldb": ldb} {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), got)
			require.NotNil(t, db.TrieDB())
		})
	}
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("head"), []byte{1, 2, 3}))
	db.Close()

	reopened, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get([]byte("head"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}
