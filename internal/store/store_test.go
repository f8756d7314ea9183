package store

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/internal/config"
)

type testRecord struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// openTestStores builds one instance of every backend, each against
// throwaway state, so the conformance suite runs identically across them.
func openTestStores(t *testing.T) map[string]RecordStore {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(mr.Addr(), 0, "test")
	require.NoError(t, err)

	stores := map[string]RecordStore{
		"file":   fs,
		"sqlite": sq,
		"redis":  rs,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestRecordStoreConformance(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			// Missing key reports ErrNotFound.
			var got testRecord
			err := s.Load("absent", &got)
			assert.ErrorIs(t, err, ErrNotFound)

			// Save then Load round-trips.
			want := testRecord{Name: "Yuki", Score: 42}
			require.NoError(t, s.Save("char_a", want))
			require.NoError(t, s.Load("char_a", &got))
			assert.Equal(t, want, got)

			// Save overwrites in place.
			want.Score = 77
			require.NoError(t, s.Save("char_a", want))
			require.NoError(t, s.Load("char_a", &got))
			assert.Equal(t, 77, got.Score)

			// Keys filters by prefix.
			require.NoError(t, s.Save("char_b", testRecord{Name: "Ren"}))
			require.NoError(t, s.Save("other", testRecord{Name: "X"}))
			keys, err := s.Keys("char_")
			require.NoError(t, err)
			sort.Strings(keys)
			assert.Equal(t, []string{"char_a", "char_b"}, keys)

			// Delete removes the record; deleting again is not an error.
			require.NoError(t, s.Delete("char_a"))
			assert.ErrorIs(t, s.Load("char_a", &got), ErrNotFound)
			require.NoError(t, s.Delete("char_a"))
		})
	}
}

func TestFileStoreAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Save("rec", testRecord{Name: "a"}))

	// No temp files may survive a completed save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}

	// The stored file is well-formed JSON readable by a fresh store.
	fs2, err := NewFileStore(dir)
	require.NoError(t, err)
	defer fs2.Close()
	var got testRecord
	require.NoError(t, fs2.Load("rec", &got))
	assert.Equal(t, "a", got.Name)
}

func TestFileStoreCacheServesRepeatReads(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Save("rec", testRecord{Name: "cached"}))
	var got testRecord
	require.NoError(t, fs.Load("rec", &got))

	// Remove the backing file; the cache still answers.
	require.NoError(t, os.Remove(filepath.Join(dir, "rec.json")))
	require.NoError(t, fs.Load("rec", &got))
	assert.Equal(t, "cached", got.Name)
}

func TestFileStoreWatcherInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Watch())
	defer fs.Close()

	require.NoError(t, fs.Save("rec", testRecord{Name: "old"}))
	var got testRecord
	require.NoError(t, fs.Load("rec", &got))

	// An external process rewrites the file behind the store's back.
	raw := []byte(`{"name":"new","score":1}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec.json"), raw, 0o644))

	// The watcher delivers events asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, fs.Load("rec", &got))
		if got.Name == "new" || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "new", got.Name)
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(config.StorageConfig{Driver: "file", DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	s.Close()

	s, err = Open(config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(config.StorageConfig{Driver: "bogus"})
	assert.Error(t, err)
}
