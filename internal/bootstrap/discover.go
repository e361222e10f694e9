package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrArchiveDiscovery is returned when no archive matches.
	ErrArchiveDiscovery = errors.New("archive discovery failed")
	// ErrAmbiguousArchive is returned when several archives match and no
	// selector was supplied.
	ErrAmbiguousArchive = fmt.Errorf("%w: more than one archive matches", ErrArchiveDiscovery)
)

// archiveSuffixes are the restorable archive suffixes, longest first.
var archiveSuffixes = []string{".tar.gz", ".modi.pkg", ".zip", ".gz", ".pkg"}

// archiveStem returns name without its archive suffix, or false when name is
// not an archive.
func archiveStem(name string) (string, bool) {
	for _, suffix := range archiveSuffixes {
		if stem, ok := strings.CutSuffix(name, suffix); ok && stem != "" {
			return stem, true
		}
	}
	return "", false
}

// Discover returns the archives in dir whose stem contains stem, sorted.
// The stem is the file name without its archive suffix.
func Discover(dir, stem string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrArchiveDiscovery, dir, err)
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fileStem, ok := archiveStem(e.Name())
		if ok && strings.Contains(fileStem, stem) {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(found)
	return found, nil
}

// choose narrows candidates down to one archive.
func choose(candidates []string, stem string, sel func([]string) (string, error)) (string, error) {
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: no archive matching %q", ErrArchiveDiscovery, stem)
	case 1:
		return candidates[0], nil
	}

	if sel == nil {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = filepath.Base(c)
		}
		return "", fmt.Errorf("%w: %s", ErrAmbiguousArchive, strings.Join(names, ", "))
	}

	picked, err := sel(candidates)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if c == picked {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not one of the candidates", ErrArchiveDiscovery, picked)
}
