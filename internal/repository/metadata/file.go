package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/fsutil"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/logger"
	"github.com/oshokin/bundle-deployer/internal/schema"
)

// Slot names one of the two persisted metadata records.
type Slot int

const (
	// SlotCurrent is the installed or installing package.
	SlotCurrent Slot = iota
	// SlotOld is the previously installed package used for rollback.
	SlotOld
)

// String returns the slot's file name.
func (s Slot) String() string {
	if s == SlotOld {
		return layout.OldPackageInfoFile
	}

	return layout.PackageInfoFile
}

// DefaultFileMode restricts metadata files to the owner.
const DefaultFileMode os.FileMode = 0o600

// Store defines persistence operations for package metadata.
type Store interface {
	Write(ctx context.Context, metadata *codepush.PackageInfoMetadata) error
	Read(ctx context.Context, slot Slot) (*codepush.PackageInfoMetadata, error)
	BackupCurrentToOld(ctx context.Context) error
	Snapshot(ctx context.Context) (*Snapshot, error)
	Restore(ctx context.Context, snapshot *Snapshot) error
}

// Snapshot holds the raw bytes of both slots. A nil slice means the slot was absent.
type Snapshot struct {
	Current []byte
	Old     []byte
}

// FileStore persists metadata slots as JSON files under the codepush root.
type FileStore struct {
	// root is the directory holding both slot files.
	root string
	// mu serializes access to the slot files within this process.
	mu sync.Mutex
}

var errNilMetadata = errors.New("metadata is nil")

// NewFileStore creates a store for the slots defined by l.
func NewFileStore(l *layout.Layout) *FileStore {
	return &FileStore{
		root: l.Root(),
	}
}

func (s *FileStore) path(slot Slot) string {
	return filepath.Join(s.root, slot.String())
}

// Write replaces the current slot. Either the new record is fully in place or the old one is untouched.
func (s *FileStore) Write(ctx context.Context, metadata *codepush.PackageInfoMetadata) error {
	if metadata == nil {
		return codepush.NewError(codepush.KindIO, "write package information", errNilMetadata)
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return codepush.NewError(codepush.KindParse, "encode package information", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.replace(SlotCurrent, data); err != nil {
		return codepush.NewError(codepush.KindIO, "write package information", err)
	}

	logger.DebugKV(ctx, "Package information written", "slot", SlotCurrent.String(), "package_hash", metadata.PackageHash)

	return nil
}

// Read loads a slot. A missing file is KindNotFound, malformed content is KindParse.
func (s *FileStore) Read(_ context.Context, slot Slot) (*codepush.PackageInfoMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path(slot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, codepush.NewError(codepush.KindNotFound, "read "+slot.String(), codepush.ErrNotFound)
		}

		return nil, codepush.NewError(codepush.KindIO, "read "+slot.String(), err)
	}

	if err = schema.ValidatePackageInfo(contents); err != nil {
		return nil, codepush.NewError(codepush.KindParse, "decode "+slot.String(), err)
	}

	var metadata codepush.PackageInfoMetadata
	if err = json.Unmarshal(contents, &metadata); err != nil {
		return nil, codepush.NewError(codepush.KindParse, "decode "+slot.String(), err)
	}

	return &metadata, nil
}

// BackupCurrentToOld replaces the old slot with a copy of the current slot.
func (s *FileStore) BackupCurrentToOld(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.path(SlotCurrent)
	old := s.path(SlotOld)

	exists, err := fsutil.Exists(current)
	if err != nil {
		return codepush.NewError(codepush.KindIO, "backup package information", err)
	}

	if !exists {
		return codepush.NewError(codepush.KindNotFound, "backup package information", codepush.ErrNotFound)
	}

	if err = os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
		return codepush.NewError(codepush.KindIO, "remove old package information", err)
	}

	if err = fsutil.CopyFile(current, old); err != nil {
		return codepush.NewError(codepush.KindIO, "backup package information", err)
	}

	logger.DebugKV(ctx, "Package information backed up", "from", current, "to", old)

	return nil
}

// Snapshot captures both slots so that they can be restored after a failed install.
func (s *FileStore) Snapshot(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := readOptional(s.path(SlotCurrent))
	if err != nil {
		return nil, codepush.NewError(codepush.KindIO, "snapshot package information", err)
	}

	old, err := readOptional(s.path(SlotOld))
	if err != nil {
		return nil, codepush.NewError(codepush.KindIO, "snapshot package information", err)
	}

	return &Snapshot{
		Current: current,
		Old:     old,
	}, nil
}

// Restore puts both slots back to the captured content.
func (s *FileStore) Restore(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.restoreSlot(SlotCurrent, snapshot.Current); err != nil {
		return codepush.NewError(codepush.KindIO, "restore "+SlotCurrent.String(), err)
	}

	if err := s.restoreSlot(SlotOld, snapshot.Old); err != nil {
		return codepush.NewError(codepush.KindIO, "restore "+SlotOld.String(), err)
	}

	logger.Info(ctx, "Package information restored")

	return nil
}

func (s *FileStore) restoreSlot(slot Slot, data []byte) error {
	if data == nil {
		if err := os.Remove(s.path(slot)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		return nil
	}

	return s.replace(slot, data)
}

// replace swaps the slot file for data without ever exposing a partial write.
func (s *FileStore) replace(slot Slot, data []byte) error {
	if err := fsutil.ReplaceFile(s.path(slot), data, DefaultFileMode); err != nil {
		return fmt.Errorf("replace %s: %w", slot, err)
	}

	return nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if data == nil {
		data = []byte{}
	}

	return data, nil
}
