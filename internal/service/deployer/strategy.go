package deployer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/fsutil"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/logger"
	"github.com/oshokin/bundle-deployer/internal/repository/metadata"
	"github.com/oshokin/bundle-deployer/internal/schema"
)

var errNoBundleDir = errors.New("no bundled assets directory is configured")

// assemble builds the package in the attempt's staging directory. A diff
// manifest in the unzip directory selects the diff strategy. Committed
// package directories are only ever read here.
func (e *Engine) assemble(ctx context.Context, packageHash, attemptID string) (codepush.DeploymentResult, error) {
	if _, err := e.layout.VersionDir(packageHash); err != nil {
		return codepush.DeploymentResult{}, err
	}

	stagingDir, err := e.layout.AttemptStagingDir(attemptID)
	if err != nil {
		return codepush.DeploymentResult{}, err
	}

	isDiff, err := fsutil.Exists(e.layout.DiffManifestPath())
	if err != nil {
		return codepush.DeploymentResult{}, codepush.NewError(codepush.KindIO, "detect diff manifest", err)
	}

	result := codepush.DeploymentResult{
		DeployDir:    stagingDir,
		IsDiffUpdate: isDiff,
	}

	// Residue of interrupted attempts. The install lock is held, so nothing else stages.
	if err = removeStale(ctx, e.layout.StagingDir()); err != nil {
		return result, err
	}

	if _, err = e.layout.EnsureDirectory(stagingDir, true); err != nil {
		return result, err
	}

	logger.InfoKV(ctx, "Assembling package", "strategy", result.Kind(), "staging_dir", stagingDir)

	if !isDiff {
		if err = fsutil.CopyDirEntries(e.layout.UnzipDir(), stagingDir, nil); err != nil {
			return result, codepush.NewError(codepush.KindIO, "copy package contents", err)
		}

		return result, nil
	}

	if err = e.applyDiff(ctx, stagingDir); err != nil {
		return result, codepush.NewError(codepush.KindDiff, "apply diff update",
			fmt.Errorf("%w: %w", codepush.ErrDiffUpdate, err))
	}

	return result, nil
}

// applyDiff lays the diff on top of the current package, or on top of the
// binary assets when nothing is installed, and removes the deleted files.
func (e *Engine) applyDiff(ctx context.Context, stagingDir string) error {
	manifest, err := readDiffManifest(e.layout.DiffManifestPath())
	if err != nil {
		return err
	}

	if err = e.copyBase(ctx, e.slotPackageDir(ctx, metadata.SlotCurrent), stagingDir); err != nil {
		return err
	}

	if err = fsutil.CopyDirEntries(e.layout.UnzipDir(), stagingDir, nil); err != nil {
		return fmt.Errorf("copy diff contents: %w", err)
	}

	if err = fsutil.DeleteEntries(stagingDir, manifest.DeletedFiles); err != nil {
		return fmt.Errorf("delete removed files: %w", err)
	}

	logger.InfoKV(ctx, "Diff applied", "deleted_files", len(manifest.DeletedFiles))

	return nil
}

// copyBase copies the package the diff was computed against. The previous
// release signature never survives into the new package.
func (e *Engine) copyBase(ctx context.Context, currentDir, stagingDir string) error {
	ignore := []string{layout.SignatureFileName}

	if currentDir != "" {
		logger.InfoKV(ctx, "Copying current package as diff base", "from", currentDir)

		if err := fsutil.CopyDirEntries(currentDir, stagingDir, ignore); err != nil {
			return fmt.Errorf("copy current package: %w", err)
		}

		return nil
	}

	if e.bundleDir == "" {
		return errNoBundleDir
	}

	bundleDir, err := e.layout.EnsureDirectory(e.bundleDir, false)
	if err != nil {
		return fmt.Errorf("bundled assets: %w", err)
	}

	target := filepath.Join(stagingDir, layout.WebDirName)

	logger.InfoKV(ctx, "Copying bundled assets as diff base", "from", bundleDir, "to", target)

	if err = fsutil.CopyDirEntries(bundleDir, target, ignore); err != nil {
		return fmt.Errorf("copy bundled assets: %w", err)
	}

	return nil
}

// promote moves a verified staging directory to versions/<hash> and returns
// the final location. A directory already referenced by the current or old
// slot holds the same hash and is kept as is.
func (e *Engine) promote(ctx context.Context, stagingDir, packageHash string) (string, error) {
	target, err := e.layout.VersionDir(packageHash)
	if err != nil {
		return "", err
	}

	if e.isCommitted(ctx, target) {
		logger.InfoKV(ctx, "Package directory is already installed, keeping it", "path", target)
		e.discardStaging(ctx, stagingDir)

		return target, nil
	}

	if err = removeStale(ctx, target); err != nil {
		return "", err
	}

	if _, err = e.layout.EnsureDirectory(e.layout.VersionsDir(), true); err != nil {
		return "", err
	}

	if err = os.Rename(stagingDir, target); err != nil {
		return "", codepush.NewError(codepush.KindIO, "promote package directory", err)
	}

	logger.InfoKV(ctx, "Package directory promoted", "path", target)

	return target, nil
}

// isCommitted reports whether dir belongs to the current or the old package.
func (e *Engine) isCommitted(ctx context.Context, dir string) bool {
	for _, slot := range []metadata.Slot{metadata.SlotCurrent, metadata.SlotOld} {
		if sameDir(e.slotPackageDir(ctx, slot), dir) {
			return true
		}
	}

	return false
}

// slotPackageDir returns the deploy directory recorded in slot, or "" when no
// usable package is recorded there.
func (e *Engine) slotPackageDir(ctx context.Context, slot metadata.Slot) string {
	meta, err := e.store.Read(ctx, slot)
	if err != nil {
		logger.DebugKV(ctx, "No package recorded", "slot", slot.String(), "reason", err)
		return ""
	}

	if meta.LocalPath == "" {
		return ""
	}

	exists, err := fsutil.Exists(meta.LocalPath)
	if err != nil || !exists {
		logger.WarnKV(ctx, "Recorded package directory is missing", "slot", slot.String(), "path", meta.LocalPath)
		return ""
	}

	return meta.LocalPath
}

// discardStaging removes the scratch directory of an attempt.
func (e *Engine) discardStaging(ctx context.Context, stagingDir string) {
	if stagingDir == "" {
		return
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		logger.ErrorKV(ctx, "Unable to remove staging directory", "path", stagingDir, "error", err)
	}
}

func readDiffManifest(path string) (*codepush.DiffManifest, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, codepush.NewError(codepush.KindIO, "read diff manifest", err)
	}

	if err = schema.ValidateDiffManifest(contents); err != nil {
		return nil, codepush.NewError(codepush.KindParse, "decode diff manifest", err)
	}

	var manifest codepush.DiffManifest
	if err = json.Unmarshal(contents, &manifest); err != nil {
		return nil, codepush.NewError(codepush.KindParse, "decode diff manifest", err)
	}

	for _, rel := range manifest.DeletedFiles {
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return nil, codepush.NewError(codepush.KindParse, "decode diff manifest",
				fmt.Errorf("%w: %q", fsutil.ErrUnsafePath, rel))
		}
	}

	return &manifest, nil
}

func removeStale(ctx context.Context, dir string) error {
	exists, err := fsutil.Exists(dir)
	if err != nil {
		return codepush.NewError(codepush.KindIO, "inspect directory", err)
	}

	if !exists {
		return nil
	}

	logger.InfoKV(ctx, "Removing stale directory", "path", dir)

	if err = os.RemoveAll(dir); err != nil {
		return codepush.NewError(codepush.KindIO, "remove stale directory", err)
	}

	return nil
}

func sameDir(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}

	return absA == absB
}
