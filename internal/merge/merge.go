package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/modi-labs/modi/internal/logger"
)

// Options tunes merge behavior.
type Options struct {
	// StopAfterCompressedEgg ends the merge right after the first compressed
	// egg has been expanded and copied, leaving later staged entries alone.
	StopAfterCompressedEgg bool
}

// Entry records what happened to one classified entry.
type Entry struct {
	Name    string
	Kind    EntryKind
	Outcome Outcome
}

// Result is the outcome of one merge.
type Result struct {
	Dependencies []string
	Packages     []string
	Entries      []Entry
}

// Copied returns the names of entries this merge created in the destination.
func (r *Result) Copied() []string {
	var names []string
	for _, e := range r.Entries {
		if e.Outcome == Copied {
			names = append(names, e.Name)
		}
	}
	return names
}

// Engine merges staging trees into destinations.
type Engine struct {
	opts Options
}

// New returns an Engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

type mergeState struct {
	ctx      context.Context
	dest     string
	explicit Set
	result   *Result
}

// Merge copies the classified top-level entries of staging into dest.
// Existing destination entries are never overwritten and a failed copy is
// recorded rather than returned; only an unreadable staging tree or a
// cancelled context is an error.
func (e *Engine) Merge(ctx context.Context, staging, dest string, explicit []string) (*Result, error) {
	ctx = logger.WithName(ctx, "merge")

	entries, err := os.ReadDir(staging)
	if err != nil {
		return nil, fmt.Errorf("reading staging tree %s: %w", staging, err)
	}

	st := &mergeState{
		ctx:      ctx,
		dest:     dest,
		explicit: NewSet(explicit...),
		result:   &Result{},
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		src := filepath.Join(staging, name)

		switch Classify(name, entry.IsDir(), st.explicit) {
		case KindSkipped:
			logger.Debugf(ctx, "skipping metadata entry %s", name)
		case KindEggBundle:
			if entry.IsDir() {
				if err := st.mergeChildren(src, eggInfoDir); err != nil {
					return nil, err
				}
				continue
			}
			if err := st.mergeCompressedEgg(staging, src); err != nil {
				logger.Warnf(ctx, "expanding egg %s: %v", name, err)
				st.result.Entries = append(st.result.Entries, Entry{Name: name, Kind: KindEggBundle, Outcome: Failed})
			}
			if e.opts.StopAfterCompressedEgg {
				return st.finish(), nil
			}
		default:
			st.copy(src, name, entry.IsDir())
		}
	}

	return st.finish(), nil
}

// mergeChildren classifies and copies every child of dir except skip.
func (st *mergeState) mergeChildren(dir, skip string) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, child := range children {
		if child.Name() == skip {
			continue
		}
		st.copy(filepath.Join(dir, child.Name()), child.Name(), child.IsDir())
	}

	return nil
}

// copy classifies one entry and copies it into the destination.
func (st *mergeState) copy(src, name string, isDir bool) {
	kind := Classify(name, isDir, st.explicit)
	if kind == KindSkipped || kind == KindEggBundle {
		return
	}

	outcome, err := CopyEntry(src, filepath.Join(st.dest, name))
	switch outcome {
	case SkippedExisting:
		logger.Debugf(st.ctx, "%s already exists in %s, keeping it", name, st.dest)
	case Failed:
		logger.Warnf(st.ctx, "merging %s: %v", name, err)
	}

	st.result.Entries = append(st.result.Entries, Entry{Name: name, Kind: kind, Outcome: outcome})
	if outcome == Failed {
		return
	}

	switch kind {
	case KindPackage:
		st.result.Packages = append(st.result.Packages, PackageName(name, isDir))
	case KindDependency, KindFileDependency:
		st.result.Dependencies = append(st.result.Dependencies, name)
	}
}

func (st *mergeState) finish() *Result {
	st.result.Packages = sortedUnique(st.result.Packages)
	st.result.Dependencies = sortedUnique(st.result.Dependencies)
	return st.result
}

func sortedUnique(names []string) []string {
	if len(names) == 0 {
		return []string{}
	}
	sort.Strings(names)
	return slices.Compact(names)
}
