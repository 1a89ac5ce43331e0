package layout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

const (
	// RootDirName is the deployer's directory under the data root.
	RootDirName = "codepush"
	// DownloadDirName holds the downloaded artifact.
	DownloadDirName = "download"
	// UnzippedDirName is the scratch extraction target inside the download directory.
	UnzippedDirName = "unzipped"
	// DeployDirName holds deployed packages.
	DeployDirName = "deploy"
	// VersionsDirName holds one directory per package hash.
	VersionsDirName = "versions"
	// StagingDirName holds packages that are assembled but not yet verified.
	StagingDirName = "staging"

	// PackageUpdateFileName is the raw downloaded artifact.
	PackageUpdateFileName = "update.zip"
	// PackageInfoFile is the current metadata slot.
	PackageInfoFile = "currentPackage.json"
	// OldPackageInfoFile is the rollback metadata slot.
	OldPackageInfoFile = "oldPackage.json"
	// DiffManifestFile marks an artifact as a diff update.
	DiffManifestFile = "hotcodepush.json"
	// LockFileName guards against concurrent installs.
	LockFileName = "install.lock"

	// WebDirName is the bundle's web root inside a package.
	WebDirName = "www"
	// SignatureFileName is the release signature shipped inside the web root.
	SignatureFileName = ".codepushrelease"

	// DefaultDirMode is used for every directory the deployer creates.
	DefaultDirMode os.FileMode = 0o755
)

var (
	errInvalidPackageHash = errors.New("package hash cannot name a directory")
	errInvalidDirName     = errors.New("name cannot name a directory")
)

// Layout resolves deployer paths relative to a data root.
type Layout struct {
	dataRoot string
}

// New returns a Layout rooted at dataRoot.
func New(dataRoot string) *Layout {
	return &Layout{
		dataRoot: filepath.Clean(dataRoot),
	}
}

// DataRoot returns the app-private data root.
func (l *Layout) DataRoot() string {
	return l.dataRoot
}

// Root returns <dataRoot>/codepush.
func (l *Layout) Root() string {
	return filepath.Join(l.dataRoot, RootDirName)
}

// DownloadDir returns codepush/download.
func (l *Layout) DownloadDir() string {
	return filepath.Join(l.Root(), DownloadDirName)
}

// UnzipDir returns codepush/download/unzipped.
func (l *Layout) UnzipDir() string {
	return filepath.Join(l.DownloadDir(), UnzippedDirName)
}

// DeployDir returns codepush/deploy.
func (l *Layout) DeployDir() string {
	return filepath.Join(l.Root(), DeployDirName)
}

// VersionsDir returns codepush/deploy/versions.
func (l *Layout) VersionsDir() string {
	return filepath.Join(l.DeployDir(), VersionsDirName)
}

// StagingDir returns codepush/deploy/staging.
func (l *Layout) StagingDir() string {
	return filepath.Join(l.DeployDir(), StagingDirName)
}

// AttemptStagingDir returns the scratch directory of one install attempt.
func (l *Layout) AttemptStagingDir(attemptID string) (string, error) {
	if !isPlainName(attemptID) {
		return "", codepush.NewError(codepush.KindConfiguration, "resolve staging directory",
			fmt.Errorf("%w: %q", errInvalidDirName, attemptID))
	}

	return filepath.Join(l.StagingDir(), attemptID), nil
}

// VersionDir returns codepush/deploy/versions/<packageHash>.
// The same hash always maps to the same directory.
func (l *Layout) VersionDir(packageHash string) (string, error) {
	if !isPlainName(packageHash) {
		return "", codepush.NewError(codepush.KindConfiguration, "resolve version directory",
			fmt.Errorf("%w: %q", errInvalidPackageHash, packageHash))
	}

	return filepath.Join(l.VersionsDir(), packageHash), nil
}

// UpdateArchivePath returns codepush/download/update.zip.
func (l *Layout) UpdateArchivePath() string {
	return filepath.Join(l.DownloadDir(), PackageUpdateFileName)
}

// CurrentPackageFile returns the current metadata slot path.
func (l *Layout) CurrentPackageFile() string {
	return filepath.Join(l.Root(), PackageInfoFile)
}

// OldPackageFile returns the rollback metadata slot path.
func (l *Layout) OldPackageFile() string {
	return filepath.Join(l.Root(), OldPackageInfoFile)
}

// DiffManifestPath returns the diff manifest location inside the unzip directory.
func (l *Layout) DiffManifestPath() string {
	return filepath.Join(l.UnzipDir(), DiffManifestFile)
}

// LockPath returns the install lock file path.
func (l *Layout) LockPath() string {
	return filepath.Join(l.Root(), LockFileName)
}

// SignaturePath returns the signature location inside a deploy directory.
func SignaturePath(deployDir string) string {
	return filepath.Join(deployDir, WebDirName, SignatureFileName)
}

// EnsureDirectory returns path if it is an existing directory.
// A missing directory is created when createIfMissing is set and reported as NotFound otherwise.
func (l *Layout) EnsureDirectory(path string, createIfMissing bool) (string, error) {
	info, err := os.Stat(path)

	switch {
	case err == nil && info.IsDir():
		return path, nil
	case err == nil:
		return "", codepush.NewError(codepush.KindIO, "ensure directory",
			fmt.Errorf("%s exists and is not a directory", path))
	case !errors.Is(err, os.ErrNotExist):
		return "", codepush.NewError(codepush.KindIO, "ensure directory", err)
	case !createIfMissing:
		return "", codepush.NewError(codepush.KindNotFound, "ensure directory",
			fmt.Errorf("%s: %w", path, os.ErrNotExist))
	}

	if err = os.MkdirAll(path, DefaultDirMode); err != nil {
		return "", codepush.NewError(codepush.KindIO, "create directory", err)
	}

	return path, nil
}

// ResetUnzipDir removes any residue of a previous extraction and returns an empty unzip directory.
func (l *Layout) ResetUnzipDir(ctx context.Context) (string, error) {
	unzipDir := l.UnzipDir()

	if _, err := os.Stat(unzipDir); err == nil {
		logger.InfoKV(ctx, "Removing stale unzip directory", "path", unzipDir)

		if err = os.RemoveAll(unzipDir); err != nil {
			return "", codepush.NewError(codepush.KindIO, "clean unzip directory", err)
		}
	}

	return l.EnsureDirectory(unzipDir, true)
}

// isPlainName reports whether name is a single path element.
func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
