package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := OpenFileAt(path)
	require.NoError(t, err)

	_, err = store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("exercise:ex:work", "42"))
	require.NoError(t, store.Set("exercise:ex:work:meta", `{"isRunning":true}`))

	value, err := store.Get("exercise:ex:work")
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	// A second store opened on the same file sees everything.
	reopened, err := OpenFileAt(path)
	require.NoError(t, err)
	value, err = reopened.Get("exercise:ex:work:meta")
	require.NoError(t, err)
	assert.JSONEq(t, `{"isRunning":true}`, value)
}

func TestFileStoreOverwriteIsLastWriterWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := OpenFileAt(path)
	require.NoError(t, err)

	require.NoError(t, store.Set("key", "first"))
	require.NoError(t, store.Set("key", "second"))

	value, err := store.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	store, err := OpenFileAt(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)

	_, err = store.Get("anything")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptFileReportsButWorks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	store, err := OpenFileAt(path)
	require.Error(t, err)
	require.NotNil(t, store)

	// The store remains usable in spite of the corrupt document.
	require.NoError(t, store.Set("key", "value"))
	value, getErr := store.Get("key")
	require.NoError(t, getErr)
	assert.Equal(t, "value", value)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()

	_, err := store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("key", "value"))
	value, err := store.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}
