package deployer

import (
	"context"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

// HostInfo answers questions about the running application.
type HostInfo interface {
	IsPendingUpdate(ctx context.Context) (bool, error)
	IsFailedUpdate(ctx context.Context, packageHash string) (bool, error)
	IsFirstRun(ctx context.Context, packageHash string) (bool, error)
	ApplicationVersion(ctx context.Context) (string, error)
	ApplicationBuildTime(ctx context.Context) (string, error)
	BinaryHash(ctx context.Context) (string, error)
}

// KeyProvider returns the configured code-signing public key, or "" when none is configured.
type KeyProvider interface {
	PublicKey(ctx context.Context) (string, error)
}

// PackageHasher computes the content digest of a deploy directory.
type PackageHasher interface {
	PackageHash(ctx context.Context, dir string) (string, error)
}

// SignatureDecoder verifies a release signature and returns the content hash it vouches for.
type SignatureDecoder interface {
	DecodeSignature(ctx context.Context, publicKey, signature string) (string, error)
}

// Installer hands a verified deploy directory to the native runtime.
type Installer interface {
	PreInstall(ctx context.Context, deployDir string) error
	Install(ctx context.Context, request codepush.InstallRequest) error
}

// Unzipper extracts an archive into an empty directory.
type Unzipper interface {
	Unzip(ctx context.Context, archivePath, destDir string) error
}

// StatusReporter is told about failed deployments.
type StatusReporter interface {
	ReportDeploymentFailed(ctx context.Context, pkg *codepush.Package, err error)
}

// LogReporter reports failed deployments to the log.
type LogReporter struct{}

// ReportDeploymentFailed logs the failure with the package identity.
func (LogReporter) ReportDeploymentFailed(ctx context.Context, pkg *codepush.Package, err error) {
	if pkg == nil {
		logger.ErrorKV(ctx, "Deployment failed", "error", err)
		return
	}

	logger.ErrorKV(ctx, "Deployment failed",
		"label", pkg.Label,
		"deployment_key", pkg.DeploymentKey,
		"error_kind", codepush.KindOf(err).String(),
		"error", err)
}
