package native

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/bundle-deployer/internal/fsutil"
)

// ZipExtractor unpacks zip archives.
type ZipExtractor struct{}

// NewZipExtractor creates a ZipExtractor.
func NewZipExtractor() *ZipExtractor {
	return &ZipExtractor{}
}

// Unzip extracts archivePath into destDir. Entries escaping destDir are rejected.
func (z *ZipExtractor) Unzip(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, file := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = extractEntry(file, destDir); err != nil {
			return fmt.Errorf("extract %s: %w", file.Name, err)
		}
	}

	return nil
}

func extractEntry(file *zip.File, destDir string) error {
	target, err := fsutil.Resolve(destDir, file.Name)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, fsutil.DefaultDirMode)
	}

	if err = os.MkdirAll(filepath.Dir(target), fsutil.DefaultDirMode); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = fsutil.DefaultFileMode
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	//nolint:gosec // Archive size is bounded by the downloaded artifact.
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return err
	}

	return dst.Close()
}
