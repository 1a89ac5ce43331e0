package deployer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
)

func TestInstallLock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
		alive    func(int) (bool, error)
		wantBusy bool
	}{
		{
			name:     "owner running",
			contents: "4242",
			alive:    func(int) (bool, error) { return true, nil },
			wantBusy: true,
		},
		{
			name:     "owner gone",
			contents: "4242",
			alive:    func(int) (bool, error) { return false, nil },
		},
		{
			name:     "garbage pid",
			contents: "not-a-pid",
			alive:    func(int) (bool, error) { return true, nil },
		},
		{
			name:     "process table unavailable",
			contents: "4242",
			alive:    func(int) (bool, error) { return false, errors.New("no procfs") },
			wantBusy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "codepush", "install.lock")
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o600))

			lock := newInstallLock(path)
			lock.processAlive = tt.alive

			release, err := lock.acquire(context.Background())
			if tt.wantBusy {
				require.ErrorIs(t, err, codepush.ErrInstallInProgress)
				return
			}

			require.NoError(t, err)

			contents, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, strconv.Itoa(os.Getpid()), string(contents))

			release()
			require.NoFileExists(t, path)
		})
	}
}

func TestInstallLock_SecondAcquireInSameProcessIsBusy(t *testing.T) {
	t.Parallel()

	lock := newInstallLock(filepath.Join(t.TempDir(), "install.lock"))

	release, err := lock.acquire(context.Background())
	require.NoError(t, err)

	defer release()

	_, err = lock.acquire(context.Background())
	require.True(t, codepush.IsKind(err, codepush.KindBusy))
}
