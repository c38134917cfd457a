package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemBlobStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	ref, err := store.Put(ctx, "artifacts", "plugin.zip", "application/zip", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "artifacts/"))
	assert.True(t, strings.HasSuffix(ref, "_plugin.zip"))

	rc, err := store.Get(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "payload", string(data))
}

func TestFilesystemBlobStoreUnknownFolder(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "secrets", "x", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestFilesystemBlobStoreGetMissing(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "artifacts/nope")
	assert.Error(t, err)
}

func TestFilesystemBlobStoreRejectsTraversal(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestFilesystemBlobStoreDelete(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	ref, err := store.Put(ctx, "logos", "logo.png", "image/png", strings.NewReader("img"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Get(ctx, ref)
	assert.Error(t, err)

	// Deleting again is not an error
	assert.NoError(t, store.Delete(ctx, ref))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "plugin.zip", sanitizeFilename("/tmp/../plugin.zip"))
	assert.Equal(t, "blob", sanitizeFilename(""))
}
