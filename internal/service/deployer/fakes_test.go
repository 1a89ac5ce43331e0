package deployer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/native"
	"github.com/oshokin/bundle-deployer/internal/repository/metadata"
)

type fakeHost struct {
	mu            sync.Mutex
	pending       bool
	pendingErr    error
	failed        map[string]bool
	firstRun      map[string]bool
	appVersion    string
	appVersionErr error
	buildTime     string
	buildTimeErr  error
	binaryHash    string
	binaryHashErr error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		failed:     make(map[string]bool),
		firstRun:   make(map[string]bool),
		appVersion: "1.0.0",
		buildTime:  "1700000000000",
		binaryHash: "binary-hash",
	}
}

func (h *fakeHost) IsPendingUpdate(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.pending, h.pendingErr
}

func (h *fakeHost) IsFailedUpdate(_ context.Context, packageHash string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.failed[packageHash], nil
}

func (h *fakeHost) IsFirstRun(_ context.Context, packageHash string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.firstRun[packageHash], nil
}

func (h *fakeHost) ApplicationVersion(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.appVersion, h.appVersionErr
}

func (h *fakeHost) ApplicationBuildTime(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.buildTime, h.buildTimeErr
}

func (h *fakeHost) BinaryHash(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.binaryHash, h.binaryHashErr
}

type fakeKeys struct {
	key string
	err error
}

func (k *fakeKeys) PublicKey(context.Context) (string, error) {
	return k.key, k.err
}

// fakeSignatures accepts any signature and vouches for hash.
type fakeSignatures struct {
	mu    sync.Mutex
	hash  string
	err   error
	calls int
}

func (s *fakeSignatures) DecodeSignature(context.Context, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	return s.hash, s.err
}

type fakeInstaller struct {
	mu            sync.Mutex
	preInstallErr error
	installErr    error
	preInstalled  []string
	requests      []codepush.InstallRequest
	// block, when set, holds Install until closed.
	block chan struct{}
	// done, when set, receives every finished request.
	done chan codepush.InstallRequest
}

func (i *fakeInstaller) PreInstall(_ context.Context, deployDir string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.preInstalled = append(i.preInstalled, deployDir)

	return i.preInstallErr
}

func (i *fakeInstaller) Install(_ context.Context, request codepush.InstallRequest) error {
	if i.block != nil {
		<-i.block
	}

	i.mu.Lock()
	i.requests = append(i.requests, request)
	err := i.installErr
	i.mu.Unlock()

	if i.done != nil {
		i.done <- request
	}

	return err
}

func (i *fakeInstaller) Requests() []codepush.InstallRequest {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]codepush.InstallRequest(nil), i.requests...)
}

// fakeUnzipper "extracts" archives registered by path.
type fakeUnzipper struct {
	mu       sync.Mutex
	archives map[string]map[string]string
	err      error
}

func (u *fakeUnzipper) Unzip(_ context.Context, archivePath, destDir string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.err != nil {
		return u.err
	}

	files, ok := u.archives[archivePath]
	if !ok {
		return os.ErrNotExist
	}

	for rel, content := range files {
		path := filepath.Join(destDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return err
		}
	}

	return nil
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) ReportDeploymentFailed(_ context.Context, _ *codepush.Package, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
}

func (r *recordingReporter) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]error(nil), r.errs...)
}

type recordingMetrics struct {
	mu            sync.Mutex
	installs      []string
	verifications []string
	restored      int
}

func (m *recordingMetrics) ObserveInstall(kind, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.installs = append(m.installs, kind+"/"+outcome)
}

func (m *recordingMetrics) IncVerification(policy, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifications = append(m.verifications, policy+"/"+outcome)
}

func (m *recordingMetrics) IncMetadataRestored() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.restored++
}

type harness struct {
	layout     *layout.Layout
	store      *metadata.FileStore
	host       *fakeHost
	keys       *fakeKeys
	signatures *fakeSignatures
	installer  *fakeInstaller
	unzipper   *fakeUnzipper
	reporter   *recordingReporter
	metrics    *recordingMetrics
	bundleDir  string
	engine     *Engine
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	root := t.TempDir()
	l := layout.New(root)

	h := &harness{
		layout:     l,
		store:      metadata.NewFileStore(l),
		host:       newFakeHost(),
		keys:       &fakeKeys{},
		signatures: &fakeSignatures{},
		installer:  &fakeInstaller{},
		unzipper:   &fakeUnzipper{archives: make(map[string]map[string]string)},
		reporter:   &recordingReporter{},
		metrics:    &recordingMetrics{},
		bundleDir:  filepath.Join(root, "www"),
	}

	options := append([]Option{
		WithBundleDir(h.bundleDir),
		WithStatusReporter(h.reporter),
		WithMetrics(h.metrics),
	}, opts...)

	engine, err := New(l, h.store, Collaborators{
		Host:       h.host,
		Keys:       h.keys,
		Hasher:     native.NewDirectoryHasher(),
		Signatures: h.signatures,
		Installer:  h.installer,
		Unzipper:   h.unzipper,
	}, options...)
	require.NoError(t, err)

	h.engine = engine

	return h
}

// stage registers an archive and returns a package pointing at it.
func (h *harness) stage(label, packageHash string, files map[string]string) *codepush.Package {
	archive := filepath.Join(h.layout.DownloadDir(), label+".zip")
	h.unzipper.archives[archive] = files

	return &codepush.Package{
		AppVersion:    "1.0.0",
		DeploymentKey: "deployment-key",
		Label:         label,
		PackageHash:   packageHash,
		PackageSize:   int64(len(files)),
		LocalPath:     archive,
	}
}

func (h *harness) install(t *testing.T, pkg *codepush.Package) *Result {
	t.Helper()

	result, err := h.engine.Install(context.Background(), pkg, codepush.InstallOptions{})
	require.NoError(t, err)

	return result
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(contents)

		return nil
	})
	require.NoError(t, err)

	return files
}

// hashOf computes the package hash a deploy directory holding files would have.
func hashOf(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	writeTree(t, dir, files)

	hash, err := native.NewDirectoryHasher().PackageHash(context.Background(), dir)
	require.NoError(t, err)

	return hash
}

var errBridge = errors.New("bridge rejected the call")
