package archive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects the archive encoding.
type Format int

const (
	Tar Format = iota
	Zip
	ModiPkg
)

const (
	tarGzExt   = ".tar.gz"
	zipExt     = ".zip"
	modiPkgExt = ".modi.pkg"
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case ModiPkg:
		return "pkg"
	default:
		return "tar"
	}
}

// ParseFormat maps a format name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tar", "tar.gz", "tgz", "":
		return Tar, nil
	case "zip":
		return Zip, nil
	case "pkg", "modi", "modi.pkg":
		return ModiPkg, nil
	default:
		return Tar, fmt.Errorf("unknown archive format %q (want tar, zip or pkg)", s)
	}
}

// FileName returns the archive file name for name in format f.
func FileName(name string, f Format) string {
	switch f {
	case Zip:
		return name + zipExt
	case ModiPkg:
		return name + modiPkgExt
	default:
		return name + tarGzExt
	}
}

// FormatOf dispatches on the final extension of path: ".zip" is zip, ".pkg"
// is a gzip-tar with manifest, anything else is read as gzip-tar.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return Zip
	case ".pkg":
		return ModiPkg
	default:
		return Tar
	}
}
