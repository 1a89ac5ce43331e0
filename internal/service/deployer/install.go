package deployer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

// Stage is a step of an install attempt.
type Stage string

// Install stages in the order they run. Failed can follow any of them.
const (
	StageUnzipping       Stage = "unzipping"
	StageAssembling      Stage = "assembling"
	StageVerifying       Stage = "verifying"
	StageBackingUp       Stage = "backing_up"
	StageWritingMetadata Stage = "writing_metadata"
	StagePreInstalling   Stage = "pre_installing"
	StageInstalling      Stage = "installing"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// kindUnknown labels attempts that failed before the strategy was known.
const kindUnknown = "unknown"

// Result describes a successful install.
type Result struct {
	// AttemptID correlates the log lines of this attempt.
	AttemptID string
	// Package is the installed package, LocalPath points at its deploy directory.
	Package *codepush.Package
	// Mode is the effective install mode handed to the native installer.
	Mode codepush.InstallMode
	// IsDiffUpdate reports which strategy assembled the package.
	IsDiffUpdate bool
	// Done yields the outcome of the native install and is then closed. For
	// IMMEDIATE installs it fires once the background install finishes,
	// otherwise it is already closed. A process about to exit should drain it.
	Done <-chan error
}

var (
	errNilPackage    = errors.New("package is nil")
	errNoArchivePath = errors.New("package has no local archive path")
	errNoPackageHash = errors.New("package has no hash")
)

// installAttempt tracks where an install is and what it is deploying.
type installAttempt struct {
	id    string
	stage Stage
	kind  string
}

func (a *installAttempt) enter(ctx context.Context, next Stage) {
	a.stage = next
	logger.DebugKV(ctx, "Install stage", "stage", string(next))
}

// Install deploys the archive at pkg.LocalPath and activates it per opts.
// Unset options fall back to the engine defaults. On failure the previously
// installed package stays current and the failure is reported.
//
// For IMMEDIATE installs the native installer is started in the background and
// Install returns without waiting for it, see Result.Done.
func (e *Engine) Install(ctx context.Context, pkg *codepush.Package, opts codepush.InstallOptions) (*Result, error) {
	attempt := &installAttempt{
		id:   uuid.NewString(),
		kind: kindUnknown,
	}

	ctx = logger.WithName(ctx, "deployer")
	ctx = logger.WithKV(ctx, "attempt_id", attempt.id)

	started := time.Now()

	result, err := e.install(ctx, attempt, pkg, opts)

	e.metrics.ObserveInstall(attempt.kind, outcome(err), time.Since(started).Seconds())

	if err != nil {
		e.reporter.ReportDeploymentFailed(ctx, pkg, err)
		return nil, err
	}

	result.AttemptID = attempt.id

	return result, nil
}

func (e *Engine) install(
	ctx context.Context,
	attempt *installAttempt,
	pkg *codepush.Package,
	opts codepush.InstallOptions,
) (*Result, error) {
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}

	opts = opts.WithDefaults(e.defaults)
	if err := opts.Validate(); err != nil {
		return nil, codepush.NewError(codepush.KindConfiguration, "install options", err)
	}

	ctx = logger.WithKV(ctx, "package_hash", pkg.PackageHash)

	release, err := e.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	attempt.enter(ctx, StageUnzipping)

	logger.InfoKV(ctx, "Installing package", "label", pkg.Label, "archive", pkg.LocalPath)

	result, err := e.run(ctx, attempt, pkg, opts)
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "stage", string(attempt.stage), "error", err)
		attempt.enter(ctx, StageFailed)

		return nil, err
	}

	attempt.enter(ctx, StageDone)

	logger.InfoKV(ctx, "Package installed",
		"label", pkg.Label,
		"install_mode", string(result.Mode),
		"strategy", attempt.kind)

	return result, nil
}

func (e *Engine) run(
	ctx context.Context,
	attempt *installAttempt,
	pkg *codepush.Package,
	opts codepush.InstallOptions,
) (*Result, error) {
	unzipDir, err := e.layout.ResetUnzipDir(ctx)
	if err != nil {
		return nil, err
	}

	if err = e.unzipper.Unzip(ctx, pkg.LocalPath, unzipDir); err != nil {
		return nil, codepush.NewError(codepush.KindIO, "unzip package", err)
	}

	attempt.enter(ctx, StageAssembling)

	deployment, err := e.assemble(ctx, pkg.PackageHash, attempt.id)
	if deployment.DeployDir != "" {
		attempt.kind = deployment.Kind()
	}

	if err != nil {
		e.discardStaging(ctx, deployment.DeployDir)
		return nil, err
	}

	attempt.enter(ctx, StageVerifying)

	if err = e.verify(ctx, pkg.PackageHash, deployment); err != nil {
		e.discardStaging(ctx, deployment.DeployDir)
		return nil, err
	}

	deployDir, err := e.promote(ctx, deployment.DeployDir, pkg.PackageHash)
	if err != nil {
		e.discardStaging(ctx, deployment.DeployDir)
		return nil, err
	}

	installed := *pkg
	installed.LocalPath = deployDir
	installed.IsFirstRun = false
	installed.FailedInstall = false

	mode, done, err := e.finalize(ctx, attempt, &installed, opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Package:      &installed,
		Mode:         mode,
		IsDiffUpdate: deployment.IsDiffUpdate,
		Done:         done,
	}, nil
}

func validatePackage(pkg *codepush.Package) error {
	switch {
	case pkg == nil:
		return codepush.NewError(codepush.KindConfiguration, "install", errNilPackage)
	case pkg.LocalPath == "":
		return codepush.NewError(codepush.KindConfiguration, "install", errNoArchivePath)
	case pkg.PackageHash == "":
		return codepush.NewError(codepush.KindConfiguration, "install", errNoPackageHash)
	default:
		return nil
	}
}
