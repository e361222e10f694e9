package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/modi-labs/modi/internal/branding"
	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/merge"
	"github.com/modi-labs/modi/internal/workspace"
)

// Mode selects what goes into an archive.
type Mode int

const (
	// Freeze archives the directory as it is.
	Freeze Mode = iota
	// Auto installs requirements.txt into the directory first, archives the
	// result and then removes what the install added.
	Auto
)

func (m Mode) String() string {
	if m == Auto {
		return "auto"
	}
	return "freeze"
}

// BuildOptions configures one Build.
type BuildOptions struct {
	Mode   Mode
	Format Format
	// Name is the archive name and root folder; defaults to the project ID
	// or the directory's base name.
	Name string `validate:"omitempty,excludesall=/\\"`
	Dir  string `validate:"required,dir"`
}

// Installer installs packages into a directory and reports what the merge did.
type Installer interface {
	InstallInto(ctx context.Context, dir string, names []string) (*merge.Result, error)
}

// Builder produces archives of working directories.
type Builder struct {
	// EntryScript is the runtime shim added when sources import it and the
	// directory does not carry its own copy.
	EntryScript string
	// Installer is required for Auto builds.
	Installer Installer
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Build writes the archive into opts.Dir and returns its path.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (string, error) {
	if err := validate.Struct(opts); err != nil {
		return "", fmt.Errorf("invalid build options: %w", err)
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", opts.Dir, err)
	}

	meta, err := projectMeta(dir)
	if err != nil {
		return "", err
	}

	name := opts.Name
	if name == "" {
		name = defaultName(dir, meta)
	}

	ctx = logger.WithKV(logger.WithName(ctx, "build"), "archive", FileName(name, opts.Format))

	var installed *merge.Result
	if opts.Mode == Auto {
		if b.Installer == nil {
			return "", errors.New("auto build needs an installer")
		}
		reqs, err := readRequirements(dir)
		if err != nil {
			return "", err
		}
		logger.Infof(ctx, "installing %d requirements before packaging", len(reqs))
		if installed, err = b.Installer.InstallInto(ctx, dir, reqs); err != nil {
			return "", fmt.Errorf("installing requirements: %w", err)
		}
	}

	out, buildErr := b.write(ctx, dir, name, opts.Format, meta, installed)

	if installed != nil {
		removed, err := workspace.RemoveEntries(ctx, dir, installed.Copied())
		if err != nil {
			logger.Warnf(ctx, "cleaning up installed packages: %v", err)
		}
		logger.Debugf(ctx, "removed %d installed entries after packaging", len(removed))
	}

	if buildErr != nil {
		return "", buildErr
	}

	logger.Infof(ctx, "wrote %s", out)

	return out, nil
}

func (b *Builder) write(ctx context.Context, dir, name string, f Format, meta *manifest.Meta, installed *merge.Result) (string, error) {
	entries, err := b.collect(dir)
	if err != nil {
		return "", err
	}

	stage := filepath.Join(dir, name)
	if _, err := os.Lstat(stage); err == nil {
		stage = filepath.Join(dir, name+"-"+uuid.NewString()[:8])
	}
	if err := os.Mkdir(stage, 0o755); err != nil {
		return "", fmt.Errorf("creating staging directory %s: %w", stage, err)
	}
	defer os.RemoveAll(stage)

	for _, src := range entries {
		if _, err := merge.CopyEntry(src, filepath.Join(stage, filepath.Base(src))); err != nil {
			return "", err
		}
	}

	if f == ModiPkg {
		m, err := archiveManifest(dir, name, meta, installed)
		if err != nil {
			return "", err
		}
		if err := manifest.WriteMeta(filepath.Join(stage, manifest.MetaFileName(m.Name)), m); err != nil {
			return "", err
		}
	}

	out := filepath.Join(dir, FileName(name, f))
	logger.Debugf(ctx, "archiving %d entries", len(entries))
	if err := Write(out, f, stage, name); err != nil {
		return "", err
	}

	return out, nil
}

var importsEntryScript = regexp.MustCompile(`(?m)^\s*(import|from)\s+` + regexp.QuoteMeta(branding.ImportName()) + `\b`)

// collect returns the paths of every top-level directory not starting with
// "." or "_", every top-level source file and, when a source file imports
// it, the entry script.
func (b *Builder) collect(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var (
		paths     []string
		sources   []string
		hasEntry  bool
		entryName = branding.EntryScript()
	)
	for _, de := range des {
		n := de.Name()
		p := filepath.Join(dir, n)
		switch {
		case de.IsDir():
			if strings.HasPrefix(n, ".") || strings.HasPrefix(n, "_") {
				continue
			}
			paths = append(paths, p)
			sources = append(sources, p)
		case strings.HasSuffix(n, ".py"):
			paths = append(paths, p)
			sources = append(sources, p)
			if n == entryName {
				hasEntry = true
			}
		}
	}

	if hasEntry || b.EntryScript == "" {
		return paths, nil
	}

	uses, err := importsEntry(sources)
	if err != nil {
		return nil, err
	}
	if uses {
		if _, err := os.Stat(b.EntryScript); err == nil {
			paths = append(paths, b.EntryScript)
		}
	}

	return paths, nil
}

// importsEntry reports whether any .py file at or below roots imports the
// entry script module.
func importsEntry(roots []string) (bool, error) {
	errFound := errors.New("found")

	for _, root := range roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(p, ".py") {
				return nil
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			if importsEntryScript.Match(data) {
				return errFound
			}
			return nil
		})
		if errors.Is(err, errFound) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("scanning sources: %w", err)
		}
	}

	return false, nil
}

func projectMeta(dir string) (*manifest.Meta, error) {
	p, err := manifest.FindMeta(dir)
	if err != nil || p == "" {
		return nil, err
	}
	return manifest.ReadMeta(p)
}

func defaultName(dir string, meta *manifest.Meta) string {
	if meta != nil && meta.Name != "" {
		return meta.Name
	}
	return filepath.Base(dir)
}

func readRequirements(dir string) ([]string, error) {
	names, err := manifest.ReadRequirements(filepath.Join(dir, manifest.RequirementsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return names, err
}

// archiveManifest is the project's metadata when it has some, otherwise
// metadata generated from the archive name and requirements.txt, with the
// name's project ID as pkg_name. Packages come from the Auto install when
// there was one.
func archiveManifest(dir, name string, meta *manifest.Meta, installed *merge.Result) (*manifest.Meta, error) {
	var m manifest.Meta
	if meta != nil {
		m = *meta
	} else {
		m = *manifest.NewMeta(manifest.ProjectID(name), name, "")
		deps, err := readRequirements(dir)
		if err != nil {
			return nil, err
		}
		if deps != nil {
			m.Dependencies = deps
		}
	}

	if installed != nil {
		m.Packages = installed.Packages
	}

	return &m, nil
}
