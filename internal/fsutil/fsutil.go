// Package fsutil implements the filesystem primitives used to assemble package directories.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

const (
	// DefaultDirMode is applied to directories created while copying.
	DefaultDirMode os.FileMode = 0o755
	// DefaultFileMode is applied when the source mode carries no permission bits.
	DefaultFileMode os.FileMode = 0o644
)

// ErrUnsafePath is returned for relative paths that would leave their root.
var ErrUnsafePath = errors.New("path escapes the package root")

// CopyDirEntries copies every entry of srcDir into dstDir, recursing into subdirectories.
// Entries whose base name is in ignore are skipped at any depth. Existing files in dstDir
// are overwritten, so the source wins on conflict.
func CopyDirEntries(srcDir, dstDir string, ignore []string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(dstDir, DefaultDirMode); err != nil {
		return err
	}

	for _, entry := range entries {
		if slices.Contains(ignore, entry.Name()) {
			continue
		}

		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, entry.Name())

		switch {
		case entry.IsDir():
			if err = replaceNonDirectory(dst); err != nil {
				return err
			}

			if err = CopyDirEntries(src, dst, ignore); err != nil {
				return err
			}
		case entry.Type()&fs.ModeSymlink != 0:
			if err = copySymlink(src, dst); err != nil {
				return err
			}
		default:
			if err = CopyFile(src, dst); err != nil {
				return err
			}
		}
	}

	return nil
}

// CopyFile copies a regular file from src to dst, replacing dst.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = srcFile.Close()
	}()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = DefaultFileMode
	}

	if err = os.MkdirAll(filepath.Dir(dst), DefaultDirMode); err != nil {
		return err
	}

	if existing, statErr := os.Lstat(dst); statErr == nil && existing.IsDir() {
		if err = os.RemoveAll(dst); err != nil {
			return err
		}
	}

	dstFile, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()

		return err
	}

	if err = dstFile.Sync(); err != nil {
		_ = dstFile.Close()

		return err
	}

	return dstFile.Close()
}

// DeleteEntries removes the listed paths, relative to root. Missing entries are ignored.
func DeleteEntries(root string, relativePaths []string) error {
	for _, rel := range relativePaths {
		target, err := Resolve(root, rel)
		if err != nil {
			return err
		}

		if err = os.RemoveAll(target); err != nil {
			return fmt.Errorf("delete %s: %w", rel, err)
		}
	}

	return nil
}

// Resolve joins a slash-separated relative path onto root, refusing paths that leave root.
func Resolve(root, rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}

	return filepath.Join(root, local), nil
}

// Exists reports whether path exists. Errors other than "not found" are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// replaceNonDirectory removes path when it exists as something other than a directory.
func replaceNonDirectory(path string) error {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	return os.Remove(path)
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}

	if err = os.RemoveAll(dst); err != nil {
		return err
	}

	return os.Symlink(target, dst)
}
