// Package session holds the per-invocation state shared by every command:
// the loaded config, the confirmation prompt, the Python runtime and the
// package index client.
package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modi-labs/modi/internal/branding"
	"github.com/modi-labs/modi/internal/config"
	"github.com/modi-labs/modi/internal/index"
	"github.com/modi-labs/modi/internal/prompt"
	"github.com/modi-labs/modi/internal/python"
)

// indexCacheDir holds cached index lookups inside the global cache.
const indexCacheDir = ".index"

// Session is created once per invocation and passed explicitly.
type Session struct {
	Config  *config.Store
	Confirm prompt.Confirmer
	Python  *python.Runtime
	Index   *index.Client
	Out     io.Writer

	// WorkDir is the destination of local installs and the default
	// directory for build and bootstrap.
	WorkDir string
	// EntryScript is the path of the runtime shim shipped with archives.
	EntryScript string
}

// Option configures a Session.
type Option func(*Session)

// WithConfirmer replaces the default terminal confirmer.
func WithConfirmer(c prompt.Confirmer) Option {
	return func(s *Session) { s.Confirm = c }
}

// WithOutput sets the writer for user-facing results.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.Out = w }
}

// WithWorkDir overrides the working directory.
func WithWorkDir(dir string) Option {
	return func(s *Session) { s.WorkDir = dir }
}

// WithIndex replaces the package index client.
func WithIndex(c *index.Client) Option {
	return func(s *Session) { s.Index = c }
}

// WithEntryScript overrides the entry script location.
func WithEntryScript(path string) Option {
	return func(s *Session) { s.EntryScript = path }
}

// New builds a Session from a loaded config store.
func New(store *config.Store, opts ...Option) (*Session, error) {
	s := &Session{
		Config:      store,
		Confirm:     prompt.NewTerminal(false),
		Python:      python.New(store.Python()),
		Index:       index.New(store.IndexURL(), index.WithCache(filepath.Join(store.CachePath(), indexCacheDir), index.DefaultCacheMaxAge)),
		Out:         os.Stdout,
		EntryScript: filepath.Join(store.CachePath(), branding.EntryScript()),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		s.WorkDir = wd
	}

	return s, nil
}

// CachePath returns the global cache directory.
func (s *Session) CachePath() string { return s.Config.CachePath() }

// Printf writes a user-facing line to Out.
func (s *Session) Printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}
