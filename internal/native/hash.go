package native

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/bundle-deployer/internal/layout"
)

// ignoredHashEntries never contribute to a package hash.
//
//nolint:gochecknoglobals // Read-only lookup table.
var ignoredHashEntries = map[string]struct{}{
	layout.SignatureFileName: {},
	layout.DiffManifestFile:  {},
	"__MACOSX":               {},
	".DS_Store":              {},
}

// DirectoryHasher computes the package hash of a deploy directory.
//
// Every regular file contributes "<relative/path>:<sha256 hex>"; the sorted
// entries are encoded as a JSON array and hashed again with SHA-256.
type DirectoryHasher struct {
	// workers caps concurrent file hashing.
	workers int
}

// NewDirectoryHasher creates a hasher using one worker per CPU.
func NewDirectoryHasher() *DirectoryHasher {
	return &DirectoryHasher{
		workers: runtime.NumCPU(),
	}
}

// PackageHash returns the hex digest of dir's contents.
func (h *DirectoryHasher) PackageHash(ctx context.Context, dir string) (string, error) {
	files, err := listFiles(dir)
	if err != nil {
		return "", err
	}

	entries := make([]string, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(h.workers, 1))

	for i, rel := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			sum, err := fileSHA256(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("hash %s: %w", rel, err)
			}

			entries[i] = rel + ":" + sum

			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return "", err
	}

	sort.Strings(entries)

	var manifest bytes.Buffer

	encoder := json.NewEncoder(&manifest)
	encoder.SetEscapeHTML(false)

	if err = encoder.Encode(entries); err != nil {
		return "", fmt.Errorf("encode hash manifest: %w", err)
	}

	digest := sha256.Sum256(bytes.TrimSuffix(manifest.Bytes(), []byte("\n")))

	return hex.EncodeToString(digest[:]), nil
}

// listFiles returns slash-separated paths of regular files under dir.
func listFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if _, ignored := ignoredHashEntries[entry.Name()]; ignored && path != dir {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list package files: %w", err)
	}

	return files, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
