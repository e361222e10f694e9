package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modi-labs/modi/internal/archive"
	"github.com/modi-labs/modi/internal/index"
	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/python"
)

// ErrNoSetupScript is returned when a source distribution has no setup.py.
var ErrNoSetupScript = errors.New("source distribution has no setup.py")

// PipInstaller installs packages with `python -m pip install --prefix`.
type PipInstaller struct {
	Python *python.Runtime
}

// Install implements Installer.
func (p *PipInstaller) Install(ctx context.Context, name string, t Target) error {
	return p.Python.PipInstall(ctx, name, t.Prefix, t.SitePath)
}

// SourceInstaller downloads a package's source distribution from the index
// and runs its setup.py.
type SourceInstaller struct {
	Python *python.Runtime
	Index  *index.Client

	resolved map[string]string
}

// ResolvedRelease implements ReleaseResolver.
func (s *SourceInstaller) ResolvedRelease(name string) (string, bool) {
	purl, ok := s.resolved[name]
	return purl, ok
}

// Install implements Installer.
func (s *SourceInstaller) Install(ctx context.Context, name string, t Target) error {
	rel, err := s.Index.Lookup(ctx, manifest.RequirementName(name))
	if err != nil {
		return err
	}
	logger.Infof(ctx, "building %s from source", rel.PURL)

	tmp, err := os.MkdirTemp("", "modi-sdist-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	sdist, err := s.Index.Download(ctx, rel.URL, tmp)
	if err != nil {
		return err
	}
	if err := index.VerifyDigest(sdist, rel.SHA256); err != nil {
		return err
	}

	srcRoot := filepath.Join(tmp, "src")
	listing, err := archive.Extract(sdist, srcRoot)
	if err != nil {
		return fmt.Errorf("unpacking %s: %w", filepath.Base(sdist), err)
	}

	srcDir := filepath.Join(srcRoot, listing.Root)
	if _, err := os.Stat(filepath.Join(srcDir, "setup.py")); err != nil {
		return fmt.Errorf("%w: %s", ErrNoSetupScript, filepath.Base(sdist))
	}

	if err := s.Python.SetupInstall(ctx, srcDir, t.Prefix, t.SitePath); err != nil {
		return err
	}

	if s.resolved == nil {
		s.resolved = map[string]string{}
	}
	s.resolved[name] = rel.PURL
	return nil
}
