package blob

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	m := NewMemStore()
	ctx := t.Context()

	url, err := m.PresignUpload(ctx, "uploads/a/b.txt", "text/plain", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "memory://uploads/a/b.txt")

	exists, _, err := m.Exists(ctx, "uploads/a/b.txt")
	require.NoError(t, err)
	assert.False(t, exists, "presigning alone must not create the object")

	m.Put("uploads/a/b.txt", "text/plain", []byte("hello"))
	exists, size, err := m.Exists(ctx, "uploads/a/b.txt")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(5), size)

	rc, err := m.Read(ctx, "uploads/a/b.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, m.Delete(ctx, "uploads/a/b.txt"))
	exists, _, err = m.Exists(ctx, "uploads/a/b.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.Read(ctx, "uploads/a/b.txt")
	assert.Error(t, err)
}
