package bootstrap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
)

// ClassifySQLiteError turns a SQLite open failure into a message with
// likely causes and remediation steps.
func ClassifySQLiteError(err error, dbPath string) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	absPath, _ := filepath.Abs(dbPath)
	parentDir := filepath.Dir(absPath)

	switch {
	case containsAny(errStr, "permission denied", "access denied"):
		return fmt.Sprintf("Permission denied accessing SQLite database at %s.\n"+
			"  Remediation:\n"+
			"  - Check file permissions: ls -la %s\n"+
			"  - Check directory permissions: ls -la %s\n"+
			"  - For Docker: mount the data volume with the service user's permissions",
			absPath, absPath, parentDir)

	case containsAny(errStr, "database is locked", "SQLITE_BUSY"):
		return fmt.Sprintf("SQLite database at %s is locked by another process.\n"+
			"  Remediation:\n"+
			"  - Check for another running instance: ps aux | grep ruleguard\n"+
			"  - Remove stale -shm and -wal files only if no process is using them",
			absPath)

	case containsAny(errStr, "disk full", "no space", "SQLITE_FULL"):
		return fmt.Sprintf("Disk full - cannot write to SQLite database at %s.\n"+
			"  Remediation:\n"+
			"  - Check available disk space: df -h %s\n"+
			"  - Move storage.sqlite_path to a larger partition",
			absPath, parentDir)

	case containsAny(errStr, "corrupt", "malformed", "SQLITE_CORRUPT"):
		return fmt.Sprintf("SQLite database at %s appears to be corrupted.\n"+
			"  Back up the file before proceeding.\n"+
			"  Remediation:\n"+
			"  - Check integrity: sqlite3 %s \"PRAGMA integrity_check;\"\n"+
			"  - Try recovery: sqlite3 %s \".recover\" | sqlite3 %s.recovered",
			absPath, absPath, absPath, absPath)

	case containsAny(errStr, "invalid database path"):
		return fmt.Sprintf("Invalid SQLite database path %q: %v\n"+
			"  Remediation:\n"+
			"  - Set storage.sqlite_path or RULEGUARD_STORAGE_SQLITE_PATH to a plain file path",
			dbPath, err)

	case containsAny(errStr, "read-only"):
		return fmt.Sprintf("SQLite database location is on a read-only file system: %s.\n"+
			"  Remediation:\n"+
			"  - Move the database via RULEGUARD_STORAGE_SQLITE_PATH",
			absPath)
	}

	return fmt.Sprintf("Failed to initialize SQLite database at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure the directory %s exists and is writable\n"+
		"  - Check disk space and permissions",
		absPath, err, parentDir)
}

// ClassifyListenError explains why the API server could not bind addr.
func ClassifyListenError(err error, addr string) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, syscall.EADDRINUSE) || containsAny(err.Error(), "address already in use"):
		return fmt.Sprintf("API address %s is already in use.\n"+
			"  Remediation:\n"+
			"  - Find the process holding the port: lsof -i %s\n"+
			"  - Change api.port or RULEGUARD_API_PORT",
			addr, addr)

	case errors.Is(err, syscall.EACCES) || containsAny(err.Error(), "permission denied"):
		return fmt.Sprintf("Permission denied binding API address %s.\n"+
			"  Ports below 1024 need elevated privileges; choose a higher api.port.",
			addr)

	case containsAny(err.Error(), "no such host", "lookup"):
		return fmt.Sprintf("Cannot resolve api.host in %s.\n"+
			"  Use an IP address such as 0.0.0.0 or 127.0.0.1.",
			addr)
	}

	return fmt.Sprintf("API server on %s failed: %v", addr, err)
}

// containsAny reports whether s contains any of subs, ignoring case.
func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
