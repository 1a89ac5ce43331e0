package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

// ReplaceFile atomically replaces path with data. Readers see either the old
// contents or the new ones, never a partial write.
func ReplaceFile(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return err
	}

	// go-update renames the existing target aside, so it has to exist.
	created := false

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, mode)
		if createErr != nil {
			return createErr
		}

		if createErr = placeholder.Close(); createErr != nil {
			return createErr
		}

		created = true
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: mode,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if created {
			_ = os.Remove(path)
		}

		return fmt.Errorf("apply %s: %w", filepath.Base(path), err)
	}

	return nil
}
