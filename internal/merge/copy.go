package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modi-labs/modi/internal/platform"
)

// Outcome is the result of copying one entry into the destination.
type Outcome int

const (
	Copied Outcome = iota
	SkippedExisting
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Copied:
		return "copied"
	case SkippedExisting:
		return "skipped-existing"
	default:
		return "failed"
	}
}

// CopyEntry copies src to dst unless dst already exists. Directories are
// copied recursively and files individually.
func CopyEntry(src, dst string) (Outcome, error) {
	if _, err := os.Lstat(dst); err == nil {
		return SkippedExisting, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Failed, fmt.Errorf("checking %s: %w", dst, err)
	}

	info, err := os.Lstat(src)
	if err != nil {
		return Failed, fmt.Errorf("reading %s: %w", src, err)
	}

	switch {
	case info.IsDir():
		err = copyDir(src, dst)
	case info.Mode()&os.ModeSymlink != 0:
		err = copySymlink(src, dst)
	default:
		err = copyFile(src, dst, info.Mode())
	}
	if err != nil {
		// Leave nothing half-copied behind.
		_ = os.RemoveAll(dst)
		return Failed, fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}

	return Copied, nil
}

// copyDir recursively copies src to dst.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type()&os.ModeSymlink != 0 {
			if err := copySymlink(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if err := copyFile(srcPath, dstPath, info.Mode()); err != nil {
				return err
			}
		}
	}

	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, mode.Perm())
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return platform.Symlink(target, dst)
}
