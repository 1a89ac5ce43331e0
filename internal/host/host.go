package host

import (
	"context"
	"crypto"
	_ "crypto/sha512" // registers crypto.SHA512
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
	"github.com/oshokin/bundle-deployer/internal/version"
)

// BinaryChecksumFunction hashes the running executable.
const BinaryChecksumFunction = crypto.SHA512

var (
	errBuildTimeUnknown = errors.New("build time was not embedded into the binary")
	errHashUnavailable  = errors.New("hash function is not linked into the binary")
	errNotADirectory    = errors.New("deploy location is not a directory")
)

// FileHost implements the host capabilities on top of a JSON state file.
type FileHost struct {
	statePath     string
	publicKeyFile string
	executable    func() (string, error)

	mu sync.Mutex
}

// Option configures a FileHost.
type Option func(*FileHost)

// WithPublicKeyFile sets the PEM file holding the code-signing public key.
func WithPublicKeyFile(path string) Option {
	return func(h *FileHost) {
		h.publicKeyFile = path
	}
}

// WithExecutable overrides the binary whose hash is reported.
func WithExecutable(path string) Option {
	return func(h *FileHost) {
		h.executable = func() (string, error) { return path, nil }
	}
}

// New creates a host backed by the state file at statePath.
func New(statePath string, opts ...Option) *FileHost {
	h := &FileHost{
		statePath:  statePath,
		executable: os.Executable,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// State returns a copy of the persisted state.
func (h *FileHost) State(_ context.Context) (*State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return loadState(h.statePath)
}

// IsPendingUpdate reports whether an installed update has not been applied yet.
func (h *FileHost) IsPendingUpdate(ctx context.Context) (bool, error) {
	state, err := h.State(ctx)
	if err != nil {
		return false, err
	}

	return state.PendingUpdate, nil
}

// IsFailedUpdate reports whether packageHash was rolled back by the host.
func (h *FileHost) IsFailedUpdate(ctx context.Context, packageHash string) (bool, error) {
	state, err := h.State(ctx)
	if err != nil {
		return false, err
	}

	return state.IsFailed(packageHash), nil
}

// IsFirstRun reports whether packageHash has been installed but not run.
func (h *FileHost) IsFirstRun(ctx context.Context, packageHash string) (bool, error) {
	state, err := h.State(ctx)
	if err != nil {
		return false, err
	}

	return state.IsFirstRun(packageHash), nil
}

// ApplicationVersion returns the version of this binary.
func (h *FileHost) ApplicationVersion(context.Context) (string, error) {
	return version.Short(), nil
}

// ApplicationBuildTime returns the build time embedded into this binary.
func (h *FileHost) ApplicationBuildTime(context.Context) (string, error) {
	if !version.IsBuildTimeKnown() {
		return "", errBuildTimeUnknown
	}

	return version.BuildTime, nil
}

// BinaryHash returns the hex SHA-512 of the running executable.
func (h *FileHost) BinaryHash(context.Context) (string, error) {
	if !BinaryChecksumFunction.Available() {
		return "", errHashUnavailable
	}

	path, err := h.executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := BinaryChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash executable: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// PublicKey returns the configured code-signing key, or "" when none is configured.
func (h *FileHost) PublicKey(context.Context) (string, error) {
	if h.publicKeyFile == "" {
		return "", nil
	}

	contents, err := os.ReadFile(h.publicKeyFile)
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// PreInstall checks that the deploy directory exists.
func (h *FileHost) PreInstall(_ context.Context, deployDir string) error {
	info, err := os.Stat(deployDir)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", errNotADirectory, deployDir)
	}

	return nil
}

// Install records the request as the pending package. An immediate install is
// also marked as not yet run, as the application would restart into it.
func (h *FileHost) Install(ctx context.Context, request codepush.InstallRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, err := loadState(h.statePath)
	if err != nil {
		return err
	}

	packageHash := filepath.Base(request.StartLocation)

	state.PendingUpdate = true
	state.PendingPackage = &PendingPackage{
		PackageHash:               packageHash,
		StartLocation:             request.StartLocation,
		InstallMode:               string(request.InstallMode),
		MinimumBackgroundDuration: request.MinimumBackgroundDuration,
	}

	if request.InstallMode == codepush.InstallModeImmediate {
		state.markFirstRun(packageHash)
	}

	if err = saveState(h.statePath, state); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Pending package recorded",
		"package_hash", packageHash,
		"install_mode", string(request.InstallMode),
		"state_file", h.statePath)

	return nil
}
