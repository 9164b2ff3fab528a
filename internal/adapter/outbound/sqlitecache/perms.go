package sqlitecache

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// warnIfTooOpen logs a warning if an existing cache file's permissions are
// more open than 0600. Skipped on Windows, where Unix permission bits
// don't apply — same guard used for the on-disk app state file.
func warnIfTooOpen(path string, logger *slog.Logger) {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return // file doesn't exist yet; nothing to warn about
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		logger.Warn("decision cache file has too-open permissions, should be 0600",
			"path", path, "current_mode", fmt.Sprintf("%04o", mode))
	}
}

// chmodCache enforces 0600 permissions on the cache file after opening,
// as a safety net against a too-permissive umask at creation time.
func chmodCache(path string, logger *slog.Logger) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, 0600)
}
