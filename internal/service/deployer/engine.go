package deployer

import (
	"errors"
	"fmt"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/metrics"
	"github.com/oshokin/bundle-deployer/internal/repository/metadata"
)

// Collaborators are the platform capabilities the engine depends on. All are required.
type Collaborators struct {
	Host       HostInfo
	Keys       KeyProvider
	Hasher     PackageHasher
	Signatures SignatureDecoder
	Installer  Installer
	Unzipper   Unzipper
}

// Engine installs update packages. Install calls are serialized by an on-disk lock.
type Engine struct {
	// layout resolves every path the engine touches.
	layout *layout.Layout
	// store owns the current and old metadata slots.
	store metadata.Store
	// registry serves package lookups on top of store.
	registry *Registry

	host       HostInfo
	keys       KeyProvider
	hasher     PackageHasher
	signatures SignatureDecoder
	installer  Installer
	unzipper   Unzipper

	// bundleDir holds the web assets shipped inside the app binary.
	bundleDir string
	// defaults fill unset install options; fixed at construction.
	defaults codepush.InstallOptions
	reporter StatusReporter
	metrics  metrics.Recorder
	lock     *installLock
}

// Option configures optional engine behaviour.
type Option func(*Engine)

// WithBundleDir sets the directory of the assets shipped in the binary, used as
// the base of a diff update when no package has been installed yet.
func WithBundleDir(dir string) Option {
	return func(e *Engine) {
		e.bundleDir = dir
	}
}

// WithDefaultInstallOptions overrides the built-in install defaults. Unset fields keep the built-in values.
func WithDefaultInstallOptions(opts codepush.InstallOptions) Option {
	return func(e *Engine) {
		e.defaults = opts.WithDefaults(codepush.DefaultInstallOptions())
	}
}

// WithStatusReporter sets where failed deployments are reported.
func WithStatusReporter(reporter StatusReporter) Option {
	return func(e *Engine) {
		if reporter != nil {
			e.reporter = reporter
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

var errMissingCollaborator = errors.New("collaborator must be provided")

// New creates an engine over the given layout and metadata store.
func New(l *layout.Layout, store metadata.Store, deps Collaborators, opts ...Option) (*Engine, error) {
	if l == nil {
		return nil, fmt.Errorf("layout: %w", errMissingCollaborator)
	}

	required := []struct {
		name  string
		value any
	}{
		{"store", store},
		{"host", deps.Host},
		{"keys", deps.Keys},
		{"hasher", deps.Hasher},
		{"signatures", deps.Signatures},
		{"installer", deps.Installer},
		{"unzipper", deps.Unzipper},
	}

	for _, r := range required {
		if r.value == nil {
			return nil, fmt.Errorf("%s: %w", r.name, errMissingCollaborator)
		}
	}

	e := &Engine{
		layout:     l,
		store:      store,
		registry:   NewRegistry(store, deps.Host),
		host:       deps.Host,
		keys:       deps.Keys,
		hasher:     deps.Hasher,
		signatures: deps.Signatures,
		installer:  deps.Installer,
		unzipper:   deps.Unzipper,
		defaults:   codepush.DefaultInstallOptions(),
		reporter:   LogReporter{},
		metrics:    metrics.Noop{},
		lock:       newInstallLock(l.LockPath()),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default install options: %w", err)
	}

	return e, nil
}

// Registry returns the package registry backed by the engine's store.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// DefaultInstallOptions returns the options applied to unset fields.
func (e *Engine) DefaultInstallOptions() codepush.InstallOptions {
	return e.defaults
}
