package deployer

import (
	"context"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
	"github.com/oshokin/bundle-deployer/internal/repository/metadata"
)

// Registry reads installed packages from the metadata slots and decorates
// them with the host's view of their status.
type Registry struct {
	store metadata.Store
	host  HostInfo
}

// NewRegistry creates a registry over store.
func NewRegistry(store metadata.Store, host HostInfo) *Registry {
	return &Registry{
		store: store,
		host:  host,
	}
}

// GetPackage returns the package recorded in slot. Every call builds a fresh value.
func (r *Registry) GetPackage(ctx context.Context, slot metadata.Slot) (*codepush.Package, error) {
	ctx = logger.WithName(ctx, "registry")

	meta, err := r.store.Read(ctx, slot)
	if err != nil {
		return nil, err
	}

	failed, err := r.host.IsFailedUpdate(ctx, meta.PackageHash)
	if err != nil {
		return nil, codepush.NewError(codepush.KindNativeBridge, "check failed update", err)
	}

	firstRun, err := r.host.IsFirstRun(ctx, meta.PackageHash)
	if err != nil {
		return nil, codepush.NewError(codepush.KindNativeBridge, "check first run", err)
	}

	return meta.ToPackage(failed, firstRun), nil
}

// GetPackageOrNil returns the package recorded in slot, or nil when it cannot be read.
func (r *Registry) GetPackageOrNil(ctx context.Context, slot metadata.Slot) *codepush.Package {
	pkg, err := r.GetPackage(ctx, slot)
	if err != nil {
		logger.DebugKV(ctx, "No package available", "slot", slot.String(), "error", err)
		return nil
	}

	return pkg
}

// GetCurrentOrDefault returns the current package, or a package describing the
// assets shipped in the binary when nothing has been installed.
func (r *Registry) GetCurrentOrDefault(ctx context.Context) (*codepush.Package, error) {
	return r.getOrDefault(ctx, metadata.SlotCurrent)
}

// GetOldOrDefault is GetCurrentOrDefault for the rollback slot.
func (r *Registry) GetOldOrDefault(ctx context.Context) (*codepush.Package, error) {
	return r.getOrDefault(ctx, metadata.SlotOld)
}

func (r *Registry) getOrDefault(ctx context.Context, slot metadata.Slot) (*codepush.Package, error) {
	pkg, err := r.GetPackage(ctx, slot)
	if err == nil {
		return pkg, nil
	}

	logger.DebugKV(ctx, "Falling back to the binary package", "slot", slot.String(), "reason", err)

	return r.binaryPackage(ctx)
}

// binaryPackage describes the assets shipped with the application binary.
// A missing binary hash is tolerated, the version is not.
func (r *Registry) binaryPackage(ctx context.Context) (*codepush.Package, error) {
	appVersion, err := r.host.ApplicationVersion(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to read application version", "error", err)
		return nil, codepush.NewError(codepush.KindNativeBridge, "read application version", err)
	}

	binaryHash, err := r.host.BinaryHash(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to compute binary hash", "error", err)

		binaryHash = ""
	}

	return &codepush.Package{
		AppVersion:  appVersion,
		PackageHash: binaryHash,
	}, nil
}
