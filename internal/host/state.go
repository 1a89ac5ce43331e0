package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/oshokin/bundle-deployer/internal/fsutil"
)

const stateFileMode os.FileMode = 0o600

// State is the persisted host state.
type State struct {
	PendingUpdate  bool            `json:"pending_update"`
	PendingPackage *PendingPackage `json:"pending_package,omitempty"`
	FailedHashes   []string        `json:"failed_hashes"`
	FirstRunHashes []string        `json:"first_run_hashes"`
}

// PendingPackage is the last install request handed to the host.
type PendingPackage struct {
	PackageHash               string `json:"package_hash"`
	StartLocation             string `json:"start_location"`
	InstallMode               string `json:"install_mode"`
	MinimumBackgroundDuration int    `json:"minimum_background_duration"`
}

// IsFailed reports whether packageHash has been marked as failed.
func (s *State) IsFailed(packageHash string) bool {
	return slices.Contains(s.FailedHashes, packageHash)
}

// IsFirstRun reports whether packageHash has not been run yet.
func (s *State) IsFirstRun(packageHash string) bool {
	return slices.Contains(s.FirstRunHashes, packageHash)
}

func (s *State) markFirstRun(packageHash string) {
	if !s.IsFirstRun(packageHash) {
		s.FirstRunHashes = append(s.FirstRunHashes, packageHash)
	}
}

// loadState reads the state file. A missing file is an empty state.
func loadState(path string) (*State, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read host state: %w", err)
	}

	var state State
	if err = json.Unmarshal(contents, &state); err != nil {
		return nil, fmt.Errorf("decode host state: %w", err)
	}

	return &state, nil
}

func saveState(path string, state *State) error {
	contents, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode host state: %w", err)
	}

	if err = fsutil.ReplaceFile(path, contents, stateFileMode); err != nil {
		return fmt.Errorf("write host state: %w", err)
	}

	return nil
}
