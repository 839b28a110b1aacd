package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minierrors "github.com/rama-kairi/minios/internal/errors"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	return s, dir
}

func TestWriteReadRemove(t *testing.T) {
	ctx := context.Background()
	s, dir := newService(t)

	require.NoError(t, s.Write(ctx, "notes.txt", "hello world"))

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	data, err = s.Read(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, s.Remove(ctx, "notes.txt"))
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestTouchKeepsContents(t *testing.T) {
	ctx := context.Background()
	s, dir := newService(t)

	created, err := s.Touch(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("keep"), 0o644))

	created, err = s.Touch(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestMissingParentDirectory(t *testing.T) {
	ctx := context.Background()
	s, dir := newService(t)

	created, err := s.Touch(ctx, "sub/a.txt")
	require.Error(t, err)
	assert.False(t, created)
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeIO))
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = s.Write(ctx, "sub/b.txt", "hello")
	require.Error(t, err)
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeIO))

	_, err = os.Stat(filepath.Join(dir, "sub"))
	assert.True(t, os.IsNotExist(err))

	// An existing subdirectory is fine
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, s.Write(ctx, "sub/b.txt", "hello"))
}

func TestMissingFiles(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.Read(ctx, "missing.txt")
	require.Error(t, err)
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeNotFound))
	assert.Equal(t, "File 'missing.txt' not found.", minierrors.UserMessage(err))

	err = s.Remove(ctx, "missing.txt")
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeNotFound))
}

func TestDirectoriesAreNotFiles(t *testing.T) {
	ctx := context.Background()
	s, dir := newService(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	err := s.Remove(ctx, "sub")
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeValidation))

	_, err = os.Stat(filepath.Join(dir, "sub"))
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, dir := newService(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	entries, err := s.List(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)
	assert.True(t, entries[2].IsDir)
}

func TestListEmpty(t *testing.T) {
	s, _ := newService(t)

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
