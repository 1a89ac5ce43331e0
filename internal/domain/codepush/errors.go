package codepush

import (
	"errors"
	"fmt"
)

// ErrorKind classifies deployer failures.
type ErrorKind int

// Error kinds reported by the deployer.
const (
	KindUnknown ErrorKind = iota
	// KindIO is a failed filesystem operation.
	KindIO
	// KindParse is malformed persisted JSON or a malformed manifest.
	KindParse
	// KindNotFound is an absent metadata slot.
	KindNotFound
	// KindIntegrity is a content hash mismatch.
	KindIntegrity
	// KindSigning is a signature mismatch.
	KindSigning
	// KindNativeBridge is a rejected platform call.
	KindNativeBridge
	// KindConfiguration is a fatal mismatch between device and artifact configuration.
	KindConfiguration
	// KindDiff is any failure while assembling a diff update.
	KindDiff
	// KindBusy means another install holds the install lock.
	KindBusy
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "IO"
	case KindParse:
		return "Parse"
	case KindNotFound:
		return "NotFound"
	case KindIntegrity:
		return "Integrity"
	case KindSigning:
		return "Signing"
	case KindNativeBridge:
		return "NativeBridge"
	case KindConfiguration:
		return "Configuration"
	case KindDiff:
		return "Diff"
	case KindBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

var (
	// ErrNotFound is returned when a metadata slot does not exist yet.
	ErrNotFound = errors.New("package information not found")
	// ErrInstallInProgress is returned when another install holds the lock.
	ErrInstallInProgress = errors.New("another install is in progress")
	// ErrIntegrityCheckFailed is returned when the computed hash differs from the declared one.
	ErrIntegrityCheckFailed = errors.New("the update contents failed the data integrity check")
	// ErrCodeSigningCheckFailed is returned when the signed hash differs from the declared one.
	ErrCodeSigningCheckFailed = errors.New("the update contents failed the code signing check")
	// ErrSignatureMissing is returned when a public key is configured but the bundle is unsigned.
	ErrSignatureMissing = errors.New("public key was provided but there is no signature within the app bundle to verify. " +
		"Possible reasons: 1. the update was released with a CLI version that does not support code signing; " +
		"2. the update was released without providing a private key")
	// ErrDiffUpdate is returned when any diff assembly step fails.
	ErrDiffUpdate = errors.New("cannot perform diff-update")
)

// Error wraps a failure with its kind and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and an operation name.
func NewError(kind ErrorKind, op string, err error) error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	}

	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost Error in err's chain.
func KindOf(err error) ErrorKind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}

	return KindUnknown
}

// IsKind reports whether the outermost Error in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
