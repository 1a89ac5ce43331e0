package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/layout"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

const lockFileMode os.FileMode = 0o600

// installLock is a marker file holding the PID of the process that is installing.
// A marker whose process is gone is stale and gets taken over.
type installLock struct {
	path string
	// processAlive is replaced in tests.
	processAlive func(pid int) (bool, error)
}

func newInstallLock(path string) *installLock {
	return &installLock{
		path:         path,
		processAlive: isProcessAlive,
	}
}

// acquire takes the lock or fails with a Busy error. The returned func releases it.
func (l *installLock) acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), layout.DefaultDirMode); err != nil {
		return nil, codepush.NewError(codepush.KindIO, "acquire install lock", err)
	}

	err := l.create()
	if errors.Is(err, os.ErrExist) {
		var stale bool

		stale, err = l.isStale(ctx)
		if err != nil {
			return nil, err
		}

		if !stale {
			return nil, codepush.NewError(codepush.KindBusy, "acquire install lock", codepush.ErrInstallInProgress)
		}

		logger.WarnKV(ctx, "Taking over stale install lock", "path", l.path)

		if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, codepush.NewError(codepush.KindIO, "remove stale install lock", err)
		}

		err = l.create()
		if errors.Is(err, os.ErrExist) {
			return nil, codepush.NewError(codepush.KindBusy, "acquire install lock", codepush.ErrInstallInProgress)
		}
	}

	if err != nil {
		return nil, codepush.NewError(codepush.KindIO, "acquire install lock", err)
	}

	release := func() {
		if removeErr := os.Remove(l.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.ErrorKV(ctx, "Unable to release install lock", "path", l.path, "error", removeErr)
		}
	}

	return release, nil
}

func (l *installLock) create() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFileMode)
	if err != nil {
		return err
	}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(l.path)
	}

	return err
}

// isStale reports whether the lock owner is no longer running.
// An unreadable PID means the marker was left half-written and is stale.
func (l *installLock) isStale(ctx context.Context) (bool, error) {
	contents, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	if err != nil {
		return false, codepush.NewError(codepush.KindIO, "read install lock", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		logger.WarnKV(ctx, "Install lock holds no valid PID", "contents", string(contents))
		return true, nil
	}

	alive, err := l.processAlive(pid)
	if err != nil {
		// Unknown state, keep treating the lock as held.
		logger.WarnKV(ctx, "Unable to check install lock owner", "pid", pid, "error", err)
		return false, nil
	}

	return !alive, nil
}

func isProcessAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}

	return process != nil, nil
}
