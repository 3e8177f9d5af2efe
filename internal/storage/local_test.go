package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)

	require.NoError(t, store.Store(ctx, "reports/2024-03-04/posts.csv", []byte("a,b\n")))
	require.NoError(t, store.Store(ctx, "reports/2024-03-04/phrases.csv", []byte("c\n")))
	require.NoError(t, store.Store(ctx, "latest.json", []byte("{}")))

	data, err := store.Retrieve(ctx, "reports/2024-03-04/posts.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	names, err := store.List(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/2024-03-04/phrases.csv", "reports/2024-03-04/posts.csv"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.Delete(ctx, "latest.json"))
	_, err = store.Retrieve(ctx, "latest.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "latest.json"), ErrNotFound)
}

func TestLocalStorage_Overwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Store(ctx, "latest.json", []byte("1")))
	require.NoError(t, store.Store(ctx, "latest.json", []byte("2")))

	data, err := store.Retrieve(ctx, "latest.json")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestLocalStorage_RejectsEscapingNames(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(root, "exports"))
	require.NoError(t, err)

	for _, name := range []string{"../outside.csv", "", "/etc/passwd", "a/../../b"} {
		assert.Error(t, store.Store(ctx, name, []byte("x")), name)
	}

	_, err = os.Stat(filepath.Join(root, "outside.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewLocalStorage_RequiresRoot(t *testing.T) {
	_, err := NewLocalStorage("")
	assert.Error(t, err)
}
