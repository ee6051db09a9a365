package device

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// ErrLocked is returned when another live process holds a dump open for
// writing.
var ErrLocked = errors.New("device file is in use")

func lockPath(path string) string { return path + ".lock" }

// processRunning checks whether pid is alive. On Unix, signal 0 probes
// without delivering anything.
func processRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// acquireLock creates path.lock holding our PID. A lock left behind by a
// dead process, or one that cannot be parsed, is removed first.
func acquireLock(path string, logger hclog.Logger) error {
	lock := lockPath(path)

	if data, err := os.ReadFile(lock); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		switch {
		case err != nil:
			logger.Info("🧹 Removing invalid lock file", "path", lock)
		case processRunning(pid):
			return fmt.Errorf("%w: locked by process %d (%s)", ErrLocked, pid, lock)
		default:
			logger.Info("🧹 Removing stale lock", "path", lock, "pid", pid)
		}
		os.Remove(lock)
	}

	file, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s appeared while locking", ErrLocked, lock)
		}
		return fmt.Errorf("failed to lock device file: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		os.Remove(lock)
		return fmt.Errorf("failed to lock device file: %w", err)
	}
	logger.Debug("🔒 Locked device file", "path", lock)
	return nil
}

func releaseLock(path string, logger hclog.Logger) {
	if err := os.Remove(lockPath(path)); err != nil {
		logger.Debug("⚠️ Failed to remove lock file", "error", err)
		return
	}
	logger.Debug("🔓 Released device file")
}
