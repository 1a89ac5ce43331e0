package deployer

import (
	"context"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
	"github.com/oshokin/bundle-deployer/internal/repository/metadata"
)

// finalize records pkg as the current package and hands it to the native installer.
// pkg.LocalPath must already point at the verified deploy directory.
func (e *Engine) finalize(
	ctx context.Context,
	attempt *installAttempt,
	pkg *codepush.Package,
	opts codepush.InstallOptions,
) (codepush.InstallMode, <-chan error, error) {
	attempt.enter(ctx, StageBackingUp)

	pending, err := e.host.IsPendingUpdate(ctx)
	if err != nil {
		return "", nil, codepush.NewError(codepush.KindNativeBridge, "check pending update", err)
	}

	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return "", nil, err
	}

	if pending {
		// The pending package was never run, so the old slot must keep pointing at the last good one.
		logger.InfoKV(ctx, "Update is pending, keeping the rollback slot")
	} else if err = e.store.BackupCurrentToOld(ctx); err != nil {
		if !codepush.IsKind(err, codepush.KindNotFound) {
			return "", nil, err
		}

		logger.InfoKV(ctx, "No current package to back up")
	}

	attempt.enter(ctx, StageWritingMetadata)

	if err = e.store.Write(ctx, e.buildMetadata(ctx, pkg)); err != nil {
		e.restore(ctx, snapshot)
		return "", nil, err
	}

	attempt.enter(ctx, StagePreInstalling)

	if err = e.installer.PreInstall(ctx, pkg.LocalPath); err != nil {
		e.restore(ctx, snapshot)
		return "", nil, codepush.NewError(codepush.KindNativeBridge, "prepare install", err)
	}

	mode := pkg.EffectiveInstallMode(opts)
	request := codepush.InstallRequest{
		StartLocation:             pkg.LocalPath,
		InstallMode:               mode,
		MinimumBackgroundDuration: opts.MinimumBackgroundDuration,
	}

	attempt.enter(ctx, StageInstalling)

	if mode == codepush.InstallModeImmediate {
		return mode, e.launch(ctx, request), nil
	}

	if err = e.installer.Install(ctx, request); err != nil {
		e.restore(ctx, snapshot)
		return "", nil, codepush.NewError(codepush.KindNativeBridge, "install package", err)
	}

	return mode, completed(), nil
}

// launch starts an immediate install without waiting for it. The caller has
// already been told that the install succeeded, so failures are only logged
// and delivered on the returned channel.
func (e *Engine) launch(ctx context.Context, request codepush.InstallRequest) <-chan error {
	ctx = context.WithoutCancel(ctx)
	done := make(chan error, 1)

	go func() {
		defer close(done)

		err := e.installer.Install(ctx, request)
		if err != nil {
			logger.ErrorKV(ctx, "Immediate install failed", "start_location", request.StartLocation, "error", err)
		}

		done <- err
	}()

	return done
}

// completed returns a closed channel for installs that already finished.
func completed() <-chan error {
	done := make(chan error)
	close(done)

	return done
}

// buildMetadata leaves the build time or version blank when the host cannot report them.
func (e *Engine) buildMetadata(ctx context.Context, pkg *codepush.Package) *codepush.PackageInfoMetadata {
	buildTime, err := e.host.ApplicationBuildTime(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to read application build time", "error", err)

		buildTime = ""
	}

	appVersion, err := e.host.ApplicationVersion(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to read application version", "error", err)

		appVersion = ""
	}

	return codepush.NewMetadata(pkg, appVersion, buildTime)
}

func (e *Engine) restore(ctx context.Context, snapshot *metadata.Snapshot) {
	if err := e.store.Restore(ctx, snapshot); err != nil {
		logger.ErrorKV(ctx, "Unable to restore package information", "error", err)
		return
	}

	e.metrics.IncMetadataRestored()

	logger.InfoKV(ctx, "Package information restored")
}
