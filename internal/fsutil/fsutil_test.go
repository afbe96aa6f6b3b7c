package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, FileExists(filepath.Join(dir, "nope")))
	// Directories are not files.
	assert.False(t, FileExists(dir))

	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, FileExists(path))
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.False(t, NonEmptyFile(empty))

	full := filepath.Join(dir, "full")
	require.NoError(t, os.WriteFile(full, []byte("data"), 0o644))
	assert.True(t, NonEmptyFile(full))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.Error(t, CopyFile(filepath.Join(dir, "nope"), dst))
}

func TestFindFilesByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b", "DYNMAT"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "DYNMAT"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "OTHER"), []byte("1"), 0o644))

	files, err := FindFilesByName(dir, "DYNMAT")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a", "DYNMAT"),
		filepath.Join(dir, "b", "DYNMAT"),
	}, files)
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.hcl")}, files)
}
