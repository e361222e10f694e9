package merge

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// EggPackageName derives a package name from an egg file name by cutting it
// at the first '-' ("six-1.16.0-py3.11.egg" -> "six").
func EggPackageName(eggFile string) string {
	name := strings.TrimSuffix(filepath.Base(eggFile), ".egg")
	if i := strings.IndexByte(name, '-'); i >= 0 {
		return name[:i]
	}
	return name
}

// mergeCompressedEgg expands a zipped egg, moves its package directory into
// the staging tree, deletes the egg and merges what it moved.
func (st *mergeState) mergeCompressedEgg(staging, eggPath string) error {
	tmp, err := os.MkdirTemp("", "modi-egg-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := unzip(eggPath, tmp); err != nil {
		return err
	}

	pkg := EggPackageName(eggPath)
	expanded := filepath.Join(tmp, pkg)

	if info, err := os.Stat(expanded); err != nil || !info.IsDir() {
		// Single-module egg: no package directory, merge its top level.
		if err := os.Remove(eggPath); err != nil {
			return fmt.Errorf("removing %s: %w", eggPath, err)
		}
		return st.mergeChildren(tmp, eggInfoDir)
	}

	moved := filepath.Join(staging, pkg)
	if _, err := os.Lstat(moved); err == nil {
		moved = filepath.Join(tmp, pkg)
	} else if err := os.Rename(expanded, moved); err != nil {
		if _, cerr := CopyEntry(expanded, moved); cerr != nil {
			return fmt.Errorf("moving %s into staging: %w", pkg, cerr)
		}
	}

	if err := os.Remove(eggPath); err != nil {
		return fmt.Errorf("removing %s: %w", eggPath, err)
	}

	st.copy(moved, pkg, true)

	return nil
}

func unzip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening egg archive: %w", err)
	}
	defer r.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)

	for _, f := range r.File {
		destPath := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(destPath, root) {
			return fmt.Errorf("egg entry %q escapes the extraction directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", destPath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(destPath), err)
		}
		if err := extractZipFile(f, destPath); err != nil {
			return err
		}
	}

	return nil
}

func extractZipFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening zip entry: %w", err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}

	return out.Close()
}
