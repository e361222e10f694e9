// Package workspace removes installed packages from the cache or a project
// directory.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/merge"
	"github.com/modi-labs/modi/internal/prompt"
)

// Remove deletes the named packages from dir: the entry with that exact name,
// the single-file module <name>.py and any metadata entries belonging to the
// distribution. It returns the removed entry names, sorted.
func Remove(ctx context.Context, dir string, names []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var removed []string
	for _, name := range names {
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			logger.Warnf(ctx, "skipping invalid package name %q", name)
			continue
		}

		targets := map[string]bool{}
		for _, e := range entries {
			n := e.Name()
			switch {
			case n == name, n == name+".py":
				targets[n] = true
			case merge.IsMetadata(n) && merge.Normalize(distributionName(n)) == merge.Normalize(name):
				targets[n] = true
			}
		}

		if len(targets) == 0 {
			logger.Warnf(ctx, "%s is not installed in %s", name, dir)
			continue
		}

		for n := range targets {
			if err := os.RemoveAll(filepath.Join(dir, n)); err != nil {
				return removed, fmt.Errorf("removing %s: %w", n, err)
			}
			logger.Debugf(ctx, "removed %s", filepath.Join(dir, n))
			removed = append(removed, n)
		}
	}

	sort.Strings(removed)
	return removed, nil
}

// RemoveEntries deletes exactly the named entries of dir, ignoring names that
// are not there.
func RemoveEntries(ctx context.Context, dir string, names []string) ([]string, error) {
	var removed []string
	for _, n := range names {
		if n == "" || n != filepath.Base(n) || n == "." || n == ".." {
			continue
		}
		p := filepath.Join(dir, n)
		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("removing %s: %w", n, err)
		}
		logger.Debugf(ctx, "removed %s", p)
		removed = append(removed, n)
	}

	sort.Strings(removed)
	return removed, nil
}

// RemoveAll deletes every entry of dir except source files, dot-entries,
// requirements.txt, metadata files and the entry script. It asks c first; a
// declined confirmation returns prompt.ErrDeclined and changes nothing.
func RemoveAll(ctx context.Context, dir, entryScript string, c prompt.Confirmer) ([]string, error) {
	victims, err := Removable(dir, entryScript)
	if err != nil {
		return nil, err
	}
	if len(victims) == 0 {
		return nil, nil
	}

	msg := fmt.Sprintf("Remove %d entries from %s (%s)?", len(victims), dir, strings.Join(victims, ", "))
	if err := prompt.Require(c, msg); err != nil {
		return nil, err
	}

	var removed []string
	for _, n := range victims {
		if err := os.RemoveAll(filepath.Join(dir, n)); err != nil {
			return removed, fmt.Errorf("removing %s: %w", n, err)
		}
		removed = append(removed, n)
	}

	logger.Infof(ctx, "removed %d entries from %s", len(removed), dir)

	return removed, nil
}

// Removable lists the entries RemoveAll would delete, sorted.
func Removable(dir, entryScript string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if !Keep(e.Name(), e.IsDir(), entryScript) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)

	return out, nil
}

// Keep reports whether a workspace entry survives RemoveAll.
func Keep(name string, isDir bool, entryScript string) bool {
	switch {
	case strings.HasPrefix(name, "."):
		return true
	case name == manifest.RequirementsFile:
		return true
	case entryScript != "" && name == filepath.Base(entryScript):
		return true
	case isDir:
		return false
	case manifest.IsMetaFile(name), strings.HasSuffix(name, ".py"):
		return true
	}
	return false
}

// distributionName strips version and metadata suffix from an installer
// metadata entry ("requests-2.31.0.dist-info" -> "requests").
func distributionName(entry string) string {
	name := strings.TrimSuffix(entry, filepath.Ext(entry))
	if i := strings.IndexByte(name, '-'); i >= 0 {
		name = name[:i]
	}
	return name
}
