package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/layout"
)

func newStore(t *testing.T) (*FileStore, *layout.Layout) {
	t.Helper()

	l := layout.New(t.TempDir())

	return NewFileStore(l), l
}

func sampleMetadata(hash string) *codepush.PackageInfoMetadata {
	return &codepush.PackageInfoMetadata{
		AppVersion:      "1.0.0",
		DeploymentKey:   "staging-key",
		Label:           "v" + hash,
		PackageHash:     hash,
		PackageSize:     1024,
		LocalPath:       "/data/codepush/deploy/versions/" + hash,
		NativeBuildTime: "1700000000",
	}
}

// TestFileStore_NotFound verifies Read reports KindNotFound for a missing slot.
func TestFileStore_NotFound(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	m, err := store.Read(context.Background(), SlotCurrent)
	require.Nil(t, m)
	require.True(t, codepush.IsKind(err, codepush.KindNotFound))
	require.ErrorIs(t, err, codepush.ErrNotFound)
}

// TestFileStore_WriteRead_Roundtrip ensures Write followed by Read returns the same record.
func TestFileStore_WriteRead_Roundtrip(t *testing.T) {
	t.Parallel()

	store, l := newStore(t)
	want := sampleMetadata("aaa")

	require.NoError(t, store.Write(context.Background(), want))

	got, err := store.Read(context.Background(), SlotCurrent)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Overwrite keeps a single file without go-update leftovers.
	require.NoError(t, store.Write(context.Background(), sampleMetadata("bbb")))

	entries, err := os.ReadDir(l.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, layout.PackageInfoFile, entries[0].Name())

	raw, err := os.ReadFile(l.CurrentPackageFile())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"packageHash":"bbb"`)
	require.NotContains(t, string(raw), `"install"`)
}

// TestFileStore_ParseError distinguishes malformed JSON from a missing file.
func TestFileStore_ParseError(t *testing.T) {
	t.Parallel()

	store, l := newStore(t)

	require.NoError(t, os.MkdirAll(l.Root(), 0o755))
	require.NoError(t, os.WriteFile(l.CurrentPackageFile(), []byte(`{"packageHash":`), 0o600))

	_, err := store.Read(context.Background(), SlotCurrent)
	require.True(t, codepush.IsKind(err, codepush.KindParse))

	require.NoError(t, os.WriteFile(l.OldPackageFile(), []byte(`{"packageSize":"big"}`), 0o600))

	_, err = store.Read(context.Background(), SlotOld)
	require.True(t, codepush.IsKind(err, codepush.KindParse))
}

// TestFileStore_BackupCurrentToOld replaces the old slot rather than merging into it.
func TestFileStore_BackupCurrentToOld(t *testing.T) {
	t.Parallel()

	store, l := newStore(t)
	ctx := context.Background()

	err := store.BackupCurrentToOld(ctx)
	require.True(t, codepush.IsKind(err, codepush.KindNotFound))

	require.NoError(t, os.MkdirAll(l.Root(), 0o755))
	require.NoError(t, os.WriteFile(l.OldPackageFile(),
		[]byte(`{"packageHash":"stale","description":"only in the stale record"}`), 0o600))

	require.NoError(t, store.Write(ctx, sampleMetadata("ccc")))
	require.NoError(t, store.BackupCurrentToOld(ctx))

	old, err := store.Read(ctx, SlotOld)
	require.NoError(t, err)
	require.Equal(t, "ccc", old.PackageHash)
	require.Empty(t, old.Description)
}

// TestFileStore_SnapshotRestore puts both slots back, including removing slots that did not exist.
func TestFileStore_SnapshotRestore(t *testing.T) {
	t.Parallel()

	store, l := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sampleMetadata("first")))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Current)
	require.Nil(t, snapshot.Old)

	require.NoError(t, store.BackupCurrentToOld(ctx))
	require.NoError(t, store.Write(ctx, sampleMetadata("second")))

	require.NoError(t, store.Restore(ctx, snapshot))

	current, err := store.Read(ctx, SlotCurrent)
	require.NoError(t, err)
	require.Equal(t, "first", current.PackageHash)

	_, err = os.Stat(filepath.Join(l.Root(), layout.OldPackageInfoFile))
	require.ErrorIs(t, err, os.ErrNotExist)
}
