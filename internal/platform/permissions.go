package platform

import (
	"os"
	"runtime"
)

// FilePermSecure is the mode of files holding credentials (the config file).
const FilePermSecure os.FileMode = 0o600

// Chmod sets file permissions. On Windows this is a no-op.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// PermOK reports whether mode has exactly the wanted permission bits. Always
// true on Windows.
func PermOK(mode, want os.FileMode) bool {
	return runtime.GOOS == "windows" || mode.Perm() == want
}
