package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/modi-labs/modi/internal/branding"
	"github.com/modi-labs/modi/internal/session"
)

// TargetMode says where merged packages end up.
type TargetMode int

const (
	// TargetCache installs into the global cache.
	TargetCache TargetMode = iota
	// TargetLocal installs into the current project directory.
	TargetLocal
)

func (m TargetMode) String() string {
	if m == TargetLocal {
		return "local"
	}
	return "cache"
}

// Target describes one staging prefix and the destination it feeds.
type Target struct {
	Prefix   string
	SitePath string
	Mode     TargetMode
	Dest     string
}

// SiteDir is the directory the installer populates: Prefix/SitePath.
func (t Target) SiteDir() string {
	return filepath.Join(t.Prefix, t.SitePath)
}

// DestFor returns the destination directory for mode.
func DestFor(sess *session.Session, mode TargetMode) string {
	if mode == TargetLocal {
		return sess.WorkDir
	}
	return sess.CachePath()
}

// Stage creates a fresh staging prefix inside dest. The prefix is the hidden
// staging directory, or that name with a random suffix when it is taken.
func Stage(ctx context.Context, sess *session.Session, dest string) (Target, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return Target{}, fmt.Errorf("resolving %s: %w", dest, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return Target{}, fmt.Errorf("creating destination %s: %w", abs, err)
	}

	mode := TargetLocal
	if cache, err := filepath.Abs(sess.CachePath()); err == nil && cache == abs {
		mode = TargetCache
	}

	prefix := filepath.Join(abs, branding.StagingDir())
	if _, err := os.Lstat(prefix); err == nil {
		prefix += "-" + uuid.NewString()[:8]
	} else if !errors.Is(err, os.ErrNotExist) {
		return Target{}, fmt.Errorf("checking %s: %w", prefix, err)
	}
	if err := os.Mkdir(prefix, 0o755); err != nil {
		return Target{}, fmt.Errorf("creating staging directory %s: %w", prefix, err)
	}

	site, err := sess.Python.SitePath(ctx)
	if err != nil {
		os.RemoveAll(prefix)
		return Target{}, fmt.Errorf("resolving site path: %w", err)
	}

	return Target{Prefix: prefix, SitePath: site, Mode: mode, Dest: abs}, nil
}
