package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modi-labs/modi/internal/archive"
	"github.com/modi-labs/modi/internal/branding"
	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/merge"
	"github.com/modi-labs/modi/internal/prompt"
)

// ErrRenameWithoutCleanup is returned when a project rename is requested for
// a restore that merges on top of existing entries.
var ErrRenameWithoutCleanup = errors.New("renaming the project needs a cleanup restore")

// Options configures one restore.
type Options struct {
	// NameStem selects the archive in Dest by (part of) its stem.
	NameStem string
	Dest     string
	// ProjectName renames the restored project when a manifest is present.
	// Only valid together with Cleanup.
	ProjectName string
	// Cleanup empties Dest before restoring. Without it the archive is
	// merged on top of the existing entries.
	Cleanup bool
	// Select picks one archive when several match.
	Select func(candidates []string) (string, error)
}

// Status reports what a restore did.
type Status struct {
	Archive  string
	Root     string
	Removed  []string
	Restored []merge.Entry
	Manifest *manifest.Meta
	// RequirementsWritten is set when requirements.txt was regenerated.
	RequirementsWritten bool
}

// Engine restores archives.
type Engine struct {
	Confirm prompt.Confirmer
	// EntryScript is the file name of the runtime shim kept across cleanup.
	EntryScript string
}

// New returns an Engine that confirms destructive steps with c.
func New(c prompt.Confirmer) *Engine {
	return &Engine{Confirm: c, EntryScript: branding.EntryScript()}
}

// Sync merges an archive on top of dest without deleting anything first.
func (e *Engine) Sync(ctx context.Context, opts Options) (*Status, error) {
	opts.Cleanup = false
	return e.Bootstrap(ctx, opts)
}

// Bootstrap restores dest from the archive selected by opts.NameStem. The
// archive and its manifest are validated before anything in dest changes.
// Once cleanup has run, the entry script is put back on every return path.
func (e *Engine) Bootstrap(ctx context.Context, opts Options) (_ *Status, err error) {
	if opts.ProjectName != "" {
		if !opts.Cleanup {
			return nil, ErrRenameWithoutCleanup
		}
		if id := manifest.ProjectID(opts.ProjectName); id == "" || strings.ContainsAny(id, `/\`) {
			return nil, fmt.Errorf("invalid project name %q", opts.ProjectName)
		}
	}

	dest, err := filepath.Abs(opts.Dest)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", opts.Dest, err)
	}

	candidates, err := Discover(dest, opts.NameStem)
	if err != nil {
		return nil, err
	}
	archivePath, err := choose(candidates, opts.NameStem, opts.Select)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(logger.WithName(ctx, "bootstrap"), "archive", filepath.Base(archivePath))

	listing, err := archive.Inspect(archivePath)
	if err != nil {
		return nil, err
	}

	st := &Status{Archive: archivePath, Root: listing.Root}

	if opts.Cleanup {
		var restoreEntry func() error
		if restoreEntry, err = e.clean(ctx, dest, archivePath, st); err != nil {
			return nil, err
		}
		if restoreEntry != nil {
			defer func() {
				rerr := restoreEntry()
				switch {
				case rerr == nil:
				case err == nil:
					err = rerr
				default:
					logger.Errorf(ctx, "%v", rerr)
				}
			}()
		}
	}

	tmp, err := os.MkdirTemp(dest, ".modi-restore-*")
	if err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if _, err := archive.Extract(archivePath, tmp); err != nil {
		return nil, err
	}

	if st.Restored, err = mergeUp(ctx, filepath.Join(tmp, listing.Root), dest); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(tmp); err != nil {
		logger.Warnf(ctx, "removing extraction directory: %v", err)
	}
	if err := os.Remove(archivePath); err != nil {
		return nil, fmt.Errorf("removing archive: %w", err)
	}

	if listing.Meta == nil {
		logger.Warn(ctx, "archive has no manifest; requirements.txt cannot be generated")
		return st, nil
	}

	if err := writeProject(ctx, dest, listing.Meta, opts, st); err != nil {
		return nil, err
	}

	return st, nil
}

// clean confirms and deletes every entry of dest except the archive. The
// entry script is backed up first; the returned func puts it back.
func (e *Engine) clean(ctx context.Context, dest, archivePath string, st *Status) (func() error, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dest, err)
	}

	var others []string
	for _, de := range entries {
		if de.Name() != filepath.Base(archivePath) {
			others = append(others, de.Name())
		}
	}
	if len(others) == 0 {
		return nil, nil
	}

	msg := fmt.Sprintf("Delete %d entries in %s before restoring %s? (%s)",
		len(others), dest, filepath.Base(archivePath), strings.Join(others, ", "))
	if err := prompt.Require(e.Confirm, msg); err != nil {
		return nil, err
	}

	restore, err := e.backupEntryScript(dest)
	if err != nil {
		return nil, err
	}

	for _, n := range others {
		if err := os.RemoveAll(filepath.Join(dest, n)); err != nil {
			err = fmt.Errorf("removing %s: %w", n, err)
			if restore != nil {
				if rerr := restore(); rerr != nil {
					logger.Errorf(ctx, "%v", rerr)
				}
			}
			return nil, err
		}
	}
	st.Removed = others
	logger.Infof(ctx, "removed %d entries from %s", len(others), dest)

	return restore, nil
}

// backupEntryScript copies the entry script of dest to a temp file and
// returns a func that writes it back.
func (e *Engine) backupEntryScript(dest string) (func() error, error) {
	if e.EntryScript == "" {
		return nil, nil
	}

	src := filepath.Join(dest, e.EntryScript)
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backing up %s: %w", e.EntryScript, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("backing up %s: %w", e.EntryScript, err)
	}

	backup, err := os.CreateTemp("", "modi-entry-*")
	if err != nil {
		return nil, fmt.Errorf("backing up %s: %w", e.EntryScript, err)
	}
	if _, err := backup.Write(data); err != nil {
		backup.Close()
		os.Remove(backup.Name())
		return nil, fmt.Errorf("backing up %s: %w", e.EntryScript, err)
	}
	if err := backup.Close(); err != nil {
		os.Remove(backup.Name())
		return nil, fmt.Errorf("backing up %s: %w", e.EntryScript, err)
	}

	return func() error {
		defer os.Remove(backup.Name())
		saved, err := os.ReadFile(backup.Name())
		if err != nil {
			return fmt.Errorf("restoring %s: %w", e.EntryScript, err)
		}
		if err := os.WriteFile(src, saved, info.Mode().Perm()); err != nil {
			return fmt.Errorf("restoring %s: %w", e.EntryScript, err)
		}
		return nil
	}, nil
}

// mergeUp copies the children of root into dest with merge semantics.
func mergeUp(ctx context.Context, root, dest string) ([]merge.Entry, error) {
	children, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading extracted folder: %w", err)
	}

	var out []merge.Entry
	for _, c := range children {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		outcome, err := merge.CopyEntry(filepath.Join(root, c.Name()), filepath.Join(dest, c.Name()))
		switch outcome {
		case merge.SkippedExisting:
			logger.Debugf(ctx, "%s already exists, keeping it", c.Name())
		case merge.Failed:
			logger.Warnf(ctx, "restoring %s: %v", c.Name(), err)
		}
		out = append(out, merge.Entry{Name: c.Name(), Kind: merge.Classify(c.Name(), c.IsDir(), nil), Outcome: outcome})
	}

	return out, nil
}

// writeProject writes the restored project's metadata and, after a cleanup
// restore, its requirements.txt.
func writeProject(ctx context.Context, dest string, meta *manifest.Meta, opts Options, st *Status) error {
	oldID := meta.Name
	if opts.ProjectName != "" {
		meta.Name = manifest.ProjectID(opts.ProjectName)
		meta.FullName = opts.ProjectName
	}

	if err := manifest.WriteMeta(filepath.Join(dest, manifest.MetaFileName(meta.Name)), meta); err != nil {
		return err
	}
	if oldID != meta.Name {
		// The archive's own copy came along with the merge.
		_ = os.Remove(filepath.Join(dest, manifest.MetaFileName(oldID)))
	}
	st.Manifest = meta

	if !opts.Cleanup {
		return nil
	}

	if err := manifest.WriteRequirements(filepath.Join(dest, manifest.RequirementsFile), meta.Dependencies); err != nil {
		return err
	}
	st.RequirementsWritten = true
	logger.Infof(ctx, "restored %s with %d dependencies", meta.Name, len(meta.Dependencies))

	return nil
}
