package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// TestCopyDirEntries_OverlayAndIgnore verifies recursive copy, overwrite and name-based exclusions.
func TestCopyDirEntries_OverlayAndIgnore(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "www", "index.html"), "new")
	writeFile(t, filepath.Join(src, "www", ".codepushrelease"), "sig")
	writeFile(t, filepath.Join(src, "www", "js", "app.js"), "app")
	writeFile(t, filepath.Join(dst, "www", "index.html"), "old")
	writeFile(t, filepath.Join(dst, "www", "keep.css"), "keep")

	require.NoError(t, CopyDirEntries(src, dst, []string{".codepushrelease"}))

	require.Equal(t, "new", readFile(t, filepath.Join(dst, "www", "index.html")))
	require.Equal(t, "app", readFile(t, filepath.Join(dst, "www", "js", "app.js")))
	require.Equal(t, "keep", readFile(t, filepath.Join(dst, "www", "keep.css")))

	exists, err := Exists(filepath.Join(dst, "www", ".codepushrelease"))
	require.NoError(t, err)
	require.False(t, exists)
}

// TestCopyDirEntries_MissingSource reports an error for an absent source directory.
func TestCopyDirEntries_MissingSource(t *testing.T) {
	t.Parallel()

	err := CopyDirEntries(filepath.Join(t.TempDir(), "absent"), t.TempDir(), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestDeleteEntries removes listed files, tolerates missing ones and rejects escapes.
func TestDeleteEntries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "www", "old.js"), "x")
	writeFile(t, filepath.Join(root, "www", "keep.js"), "y")

	require.NoError(t, DeleteEntries(root, []string{"www/old.js", "www/never-existed.js"}))

	exists, err := Exists(filepath.Join(root, "www", "old.js"))
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = Exists(filepath.Join(root, "www", "keep.js"))
	require.NoError(t, err)
	require.True(t, exists)

	require.ErrorIs(t, DeleteEntries(root, []string{"../outside"}), ErrUnsafePath)
	require.ErrorIs(t, DeleteEntries(root, []string{"/etc/passwd"}), ErrUnsafePath)
}

func TestReplaceFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, ReplaceFile(path, []byte("first"), 0o600))
	require.Equal(t, "first", readFile(t, path))

	require.NoError(t, ReplaceFile(path, []byte("second"), 0o600))
	require.Equal(t, "second", readFile(t, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
