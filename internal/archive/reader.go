package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modi-labs/modi/internal/manifest"
)

// Entry is one decoded archive member.
type Entry struct {
	Name string // cleaned, slash-separated
	Dir  bool
	Mode fs.FileMode
	Link string // symlink target, if any
}

// Listing is the validated table of contents of an archive.
type Listing struct {
	Format  Format
	Root    string
	Entries []Entry
	// Manifest is the archive name of the metadata file in the root folder,
	// set for every format when present and required for ModiPkg.
	Manifest string
	// Meta is the decoded, schema-valid content of Manifest.
	Meta *manifest.Meta
}

// maxManifestSize bounds how much of a manifest member is read into memory.
const maxManifestSize = 1 << 20

// Inspect fully decodes the archive at p and validates it: every member must
// stay inside the root folder, there must be exactly one root folder, and a
// .pkg must carry a manifest. A manifest, when present, must pass the
// metadata schema. Nothing is written to disk.
func Inspect(p string) (*Listing, error) {
	l := &Listing{Format: FormatOf(p)}
	metas := map[string][]byte{}

	err := walkArchive(p, l.Format, func(e Entry, r io.Reader) error {
		l.Entries = append(l.Entries, e)
		if !isRootMeta(e) {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(r, maxManifestSize+1))
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrExtraction, e.Name, err)
		}
		if len(data) > maxManifestSize {
			return fmt.Errorf("%w: manifest %s exceeds %d bytes", ErrExtraction, e.Name, maxManifestSize)
		}
		metas[e.Name] = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.validate(metas); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtraction, filepath.Base(p), err)
	}

	return l, nil
}

// Extract validates the archive at p and then writes it below dest. The
// extracted tree is dest/<Listing.Root>.
func Extract(p, dest string) (*Listing, error) {
	l, err := Inspect(p)
	if err != nil {
		return nil, err
	}

	err = walkArchive(p, l.Format, func(e Entry, r io.Reader) error {
		return writeEntry(dest, e, r)
	})
	if err != nil {
		return nil, err
	}

	return l, nil
}

// isRootMeta reports whether e is a metadata file directly below the root
// folder.
func isRootMeta(e Entry) bool {
	_, rest, nested := strings.Cut(e.Name, "/")
	return nested && !e.Dir && e.Link == "" && !strings.Contains(rest, "/") && manifest.IsMetaFile(rest)
}

func (l *Listing) validate(metas map[string][]byte) error {
	roots := map[string]bool{}
	rootIsDir := false

	for _, e := range l.Entries {
		root, _, nested := strings.Cut(e.Name, "/")
		roots[root] = true
		if nested || e.Dir {
			rootIsDir = true
		}
		if isRootMeta(e) {
			l.Manifest = e.Name
		}
	}

	switch {
	case len(roots) == 0:
		return errors.New("archive is empty")
	case len(roots) > 1:
		names := make([]string, 0, len(roots))
		for r := range roots {
			names = append(names, r)
		}
		sort.Strings(names)
		return fmt.Errorf("expected one root folder, found %s", strings.Join(names, ", "))
	case !rootIsDir:
		return errors.New("archive root is not a folder")
	}

	for r := range roots {
		l.Root = r
	}

	if l.Format == ModiPkg && l.Manifest == "" {
		return errors.New("package archive has no manifest")
	}

	if l.Manifest != "" {
		m, err := manifest.ParseMeta(metas[l.Manifest])
		if err != nil {
			return fmt.Errorf("manifest %s: %w", l.Manifest, err)
		}
		l.Meta = m
	}

	return nil
}

// walkArchive decodes every member of the archive, checks its name and hands
// it to fn together with its content.
func walkArchive(p string, f Format, fn func(Entry, io.Reader) error) error {
	if f == Zip {
		return walkZip(p, fn)
	}
	return walkTarGz(p, fn)
}

func walkTarGz(p string, fn func(Entry, io.Reader) error) error {
	file, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrExtraction, p, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%w: reading gzip stream of %s: %w", ErrExtraction, filepath.Base(p), err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading tar entry: %w", ErrExtraction, err)
		}

		var e Entry
		switch hdr.Typeflag {
		case tar.TypeDir:
			e = Entry{Dir: true, Mode: fs.FileMode(hdr.Mode).Perm()}
		case tar.TypeReg:
			e = Entry{Mode: fs.FileMode(hdr.Mode).Perm()}
		case tar.TypeSymlink:
			e = Entry{Link: hdr.Linkname, Mode: fs.ModeSymlink}
		case tar.TypeXGlobalHeader:
			continue
		default:
			// Hard links, devices and fifos are never extracted.
			continue
		}

		if e.Name, err = checkName(hdr.Name, e.Link); err != nil {
			return err
		}

		if err := consume(fn, e, tr); err != nil {
			return err
		}
	}
}

func walkZip(p string, fn func(Entry, io.Reader) error) error {
	r, err := zip.OpenReader(p)
	if err != nil {
		return fmt.Errorf("%w: opening zip archive %s: %w", ErrExtraction, filepath.Base(p), err)
	}
	defer r.Close()

	for _, f := range r.File {
		e := Entry{Dir: f.FileInfo().IsDir(), Mode: f.Mode().Perm()}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: opening zip entry %s: %w", ErrExtraction, f.Name, err)
		}

		var content io.Reader = rc
		if f.Mode()&fs.ModeSymlink != 0 {
			target, err := io.ReadAll(rc)
			if err != nil {
				rc.Close()
				return fmt.Errorf("%w: reading zip entry %s: %w", ErrExtraction, f.Name, err)
			}
			e.Link, e.Mode = string(target), fs.ModeSymlink
			content = strings.NewReader("")
		}

		if e.Name, err = checkName(f.Name, e.Link); err != nil {
			rc.Close()
			return err
		}

		err = consume(fn, e, content)
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

// consume hands the entry to fn and drains what fn left unread so corrupt
// content surfaces during inspection.
func consume(fn func(Entry, io.Reader) error, e Entry, r io.Reader) error {
	if err := fn(e, r); err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrExtraction, e.Name, err)
	}
	return nil
}

// checkName cleans a member name and rejects anything that would land
// outside the extraction directory.
func checkName(name, link string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), "./"))
	if clean == "." || path.IsAbs(clean) || escapes(clean) {
		return "", fmt.Errorf("%w: entry %q escapes the destination", ErrExtraction, name)
	}

	if link != "" {
		if path.IsAbs(link) || escapes(path.Join(path.Dir(clean), link)) {
			return "", fmt.Errorf("%w: link %q -> %q escapes the destination", ErrExtraction, name, link)
		}
	}

	return clean, nil
}

func escapes(p string) bool {
	return p == ".." || strings.HasPrefix(p, "../")
}

func writeEntry(dest string, e Entry, r io.Reader) error {
	target := filepath.Join(dest, filepath.FromSlash(e.Name))

	if e.Dir {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", target, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	if e.Link != "" {
		if err := os.Symlink(e.Link, target); err != nil {
			return fmt.Errorf("linking %s: %w", target, err)
		}
		return nil
	}

	mode := e.Mode
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("%w: extracting %s: %w", ErrExtraction, e.Name, err)
	}

	return out.Close()
}
