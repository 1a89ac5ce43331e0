package deployer

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

// Verification policies, also used as metric labels.
const (
	policyHashAndSignature = "hash_and_signature"
	policyHashUnsigned     = "hash_unsigned"
	policyHashOnly         = "hash_only"
	policyNone             = "none"
	policyMisconfigured    = "signature_missing"
)

// verify checks the deploy directory against the package hash and, when a
// public key is configured, against the release signature.
//
//	key  signature  check
//	yes  yes        hash and signature
//	yes  no         fail, the bundle should have been signed
//	no   yes        hash only, with a warning
//	no   no         hash only for diff updates, nothing for full updates
func (e *Engine) verify(ctx context.Context, expectedHash string, result codepush.DeploymentResult) error {
	publicKey, err := e.keys.PublicKey(ctx)
	if err != nil {
		return codepush.NewError(codepush.KindNativeBridge, "read public key", err)
	}

	signature, hasSignature, err := readSignature(result.DeployDir)
	if err != nil {
		return err
	}

	hasKey := publicKey != ""

	var policy string

	switch {
	case hasKey && hasSignature:
		policy = policyHashAndSignature
		err = e.verifyHash(ctx, result.DeployDir, expectedHash)

		if err == nil {
			err = e.verifySignature(ctx, publicKey, signature, expectedHash)
		}
	case hasKey:
		policy = policyMisconfigured
		err = codepush.NewError(codepush.KindConfiguration, "verify package", codepush.ErrSignatureMissing)
	case hasSignature:
		policy = policyHashUnsigned

		logger.WarnKV(ctx, "Package is signed but no public key is configured, checking the hash only")

		err = e.verifyHash(ctx, result.DeployDir, expectedHash)
	case result.IsDiffUpdate:
		policy = policyHashOnly
		err = e.verifyHash(ctx, result.DeployDir, expectedHash)
	default:
		policy = policyNone

		logger.InfoKV(ctx, "Full update without signing, skipping verification")
	}

	e.metrics.IncVerification(policy, outcome(err))

	return err
}

func (e *Engine) verifyHash(ctx context.Context, deployDir, expectedHash string) error {
	actual, err := e.hasher.PackageHash(ctx, deployDir)
	if err != nil {
		return codepush.NewError(codepush.KindNativeBridge, "compute package hash", err)
	}

	if actual != expectedHash {
		logger.ErrorKV(ctx, "Package hash mismatch", "expected", expectedHash, "actual", actual)
		return codepush.NewError(codepush.KindIntegrity, "verify package hash", codepush.ErrIntegrityCheckFailed)
	}

	logger.InfoKV(ctx, "Package hash verified")

	return nil
}

func (e *Engine) verifySignature(ctx context.Context, publicKey, signature, expectedHash string) error {
	signedHash, err := e.signatures.DecodeSignature(ctx, publicKey, signature)
	if err != nil {
		return codepush.NewError(codepush.KindNativeBridge, "decode release signature", err)
	}

	if signedHash != expectedHash {
		logger.ErrorKV(ctx, "Signed hash mismatch", "expected", expectedHash, "signed", signedHash)
		return codepush.NewError(codepush.KindSigning, "verify release signature", codepush.ErrCodeSigningCheckFailed)
	}

	logger.InfoKV(ctx, "Release signature verified")

	return nil
}

// readSignature loads www/.codepushrelease from the deploy directory.
func readSignature(deployDir string) (string, bool, error) {
	contents, err := os.ReadFile(layout.SignaturePath(deployDir))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}

	if err != nil {
		return "", false, codepush.NewError(codepush.KindIO, "read release signature", err)
	}

	return strings.TrimSpace(string(contents)), true, nil
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}

	return "success"
}
