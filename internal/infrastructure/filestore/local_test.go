package filestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

func TestLocal_SaveOpenRemove(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save(ctx, "tpic_1141_file_ab12cd34_paper.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, store.Root(), filepath.Dir(path))

	data, err := store.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	path2, err := store.Save(ctx, "tpic_1141_file_ab12cd34_paper.png", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	data, _ = store.Open(ctx, path)
	assert.Equal(t, []byte("new"), data)

	require.NoError(t, store.Remove(ctx, path))
	require.NoError(t, store.Remove(ctx, path))

	_, err = store.Open(ctx, path)
	assert.True(t, shared.IsNotFound(err))
}

func TestLocal_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save(ctx, "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "passwd"), path)

	_, err = store.Open(ctx, "/etc/passwd")
	assert.True(t, shared.IsValidation(err))

	_, err = store.Save(ctx, ".hidden", []byte("x"))
	assert.True(t, shared.IsValidation(err))
}
