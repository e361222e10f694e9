package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Write encodes the contents of srcDir under the root folder root into a new
// archive at out.
func Write(out string, f Format, srcDir, root string) error {
	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", out, err)
	}

	if f == Zip {
		err = writeZip(file, srcDir, root)
	} else {
		err = writeTarGz(file, srcDir, root)
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing archive %s: %w", out, cerr)
	}
	if err != nil {
		os.Remove(out)
		return err
	}

	return nil
}

// walkEntries calls fn for srcDir itself and everything below it, with the
// slash-separated archive name rooted at root.
func walkEntries(srcDir, root string, fn func(p, name string, info fs.FileInfo) error) error {
	return filepath.Walk(srcDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := path.Join(root, filepath.ToSlash(rel))
		if info.IsDir() {
			name += "/"
		}
		return fn(p, name, info)
	})
}

func writeTarGz(w io.Writer, srcDir, root string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := walkEntries(srcDir, root, func(p, name string, info fs.FileInfo) error {
		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			link = target
		} else if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("building tar header for %s: %w", p, err)
		}
		hdr.Name = name
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", name, err)
		}

		if info.Mode().IsRegular() {
			return copyInto(tw, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	return nil
}

func writeZip(w io.Writer, srcDir, root string) error {
	zw := zip.NewWriter(w)

	err := walkEntries(srcDir, root, func(p, name string, info fs.FileInfo) error {
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("building zip header for %s: %w", p, err)
		}
		hdr.Name = name
		if !info.IsDir() {
			hdr.Method = zip.Deflate
		}

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("writing zip header for %s: %w", name, err)
		}

		if info.Mode().IsRegular() {
			return copyInto(fw, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zip writer: %w", err)
	}

	return nil
}

func copyInto(w io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("archiving %s: %w", p, err)
	}
	return nil
}
