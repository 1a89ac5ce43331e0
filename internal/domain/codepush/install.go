package codepush

import (
	"errors"
	"fmt"
	"strings"
)

// InstallMode tells the native installer when the new bundle takes effect.
type InstallMode string

// Install modes understood by the native installer.
const (
	InstallModeImmediate     InstallMode = "IMMEDIATE"
	InstallModeOnNextRestart InstallMode = "ON_NEXT_RESTART"
	InstallModeOnNextResume  InstallMode = "ON_NEXT_RESUME"
	InstallModeOnNextSuspend InstallMode = "ON_NEXT_SUSPEND"
)

var errUnknownInstallMode = errors.New("unknown install mode")

// ParseInstallMode accepts the canonical names case-insensitively, dashes allowed.
func ParseInstallMode(s string) (InstallMode, error) {
	normalized := InstallMode(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !normalized.Valid() {
		return "", fmt.Errorf("%w: %q", errUnknownInstallMode, s)
	}

	return normalized, nil
}

// Valid reports whether m is one of the known modes.
func (m InstallMode) Valid() bool {
	switch m {
	case InstallModeImmediate, InstallModeOnNextRestart, InstallModeOnNextResume, InstallModeOnNextSuspend:
		return true
	default:
		return false
	}
}

// Code returns the numeric value used across the native bridge.
func (m InstallMode) Code() int {
	switch m {
	case InstallModeImmediate:
		return 0
	case InstallModeOnNextRestart:
		return 1
	case InstallModeOnNextResume:
		return 2
	case InstallModeOnNextSuspend:
		return 3
	default:
		return -1
	}
}

// InstallOptions customizes how an installed package is activated.
// Zero-valued fields fall back to the process defaults.
type InstallOptions struct {
	// InstallMode applies to non-mandatory packages.
	InstallMode InstallMode `yaml:"install_mode"`
	// MandatoryInstallMode applies to mandatory packages.
	MandatoryInstallMode InstallMode `yaml:"mandatory_install_mode"`
	// MinimumBackgroundDuration is the number of seconds the app must stay in
	// the background before an ON_NEXT_RESUME install is applied.
	MinimumBackgroundDuration int `yaml:"minimum_background_duration"`
}

// DefaultInstallOptions returns the built-in defaults. A fresh copy is returned on every call.
func DefaultInstallOptions() InstallOptions {
	return InstallOptions{
		InstallMode:               InstallModeOnNextRestart,
		MandatoryInstallMode:      InstallModeImmediate,
		MinimumBackgroundDuration: 0,
	}
}

// WithDefaults fills unset fields of o from defaults.
func (o InstallOptions) WithDefaults(defaults InstallOptions) InstallOptions {
	if o.InstallMode == "" {
		o.InstallMode = defaults.InstallMode
	}

	if o.MandatoryInstallMode == "" {
		o.MandatoryInstallMode = defaults.MandatoryInstallMode
	}

	if o.MinimumBackgroundDuration == 0 {
		o.MinimumBackgroundDuration = defaults.MinimumBackgroundDuration
	}

	return o
}

// Validate checks that every set mode is known and the duration is not negative.
func (o InstallOptions) Validate() error {
	for _, mode := range []InstallMode{o.InstallMode, o.MandatoryInstallMode} {
		if mode != "" && !mode.Valid() {
			return fmt.Errorf("%w: %q", errUnknownInstallMode, mode)
		}
	}

	if o.MinimumBackgroundDuration < 0 {
		return fmt.Errorf("minimum background duration %d is negative", o.MinimumBackgroundDuration)
	}

	return nil
}

// InstallRequest is handed to the native installer.
type InstallRequest struct {
	// StartLocation is the deploy directory of the new package.
	StartLocation string
	// InstallMode is the effective mode for this package.
	InstallMode InstallMode
	// MinimumBackgroundDuration in seconds.
	MinimumBackgroundDuration int
}
