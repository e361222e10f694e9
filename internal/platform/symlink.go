package platform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// Symlink recreates a link at link pointing to target, as found in a staging
// tree. When the platform refuses the link (Windows without developer mode)
// and the target is a regular file, the file is copied instead. Relative
// targets resolve against the link's directory.
func Symlink(target, link string) error {
	err := os.Symlink(target, link)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}

	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(link), target)
	}
	info, statErr := os.Stat(resolved)
	if statErr != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("symlink %s -> %s: %w", link, target, err)
	}

	if err := copyFile(resolved, link, info.Mode()); err != nil {
		return fmt.Errorf("symlink fallback copy of %s: %w", resolved, err)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
