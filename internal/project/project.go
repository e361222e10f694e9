package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sahilm/fuzzy"

	"github.com/modi-labs/modi/internal/config"
	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/prompt"
	"github.com/modi-labs/modi/internal/workspace"
)

var (
	// ErrProjectExists is returned by Create for an ID already registered.
	ErrProjectExists = errors.New("project already exists")
	// ErrProjectNotFound is returned for IDs missing from the registry.
	ErrProjectNotFound = errors.New("project not found")
)

const maxSuggestions = 3

// Project is a registered working directory.
type Project struct {
	ID           string `validate:"required,excludesall=/\\"`
	Name         string `validate:"required"`
	Directory    string `validate:"required"`
	Dependencies []string
	Description  string
	Type         string
}

// CreateOptions holds the optional fields of a new project.
type CreateOptions struct {
	Description string
	Type        string
}

// Registry manages the projects of one config store.
type Registry struct {
	store    *config.Store
	confirm  prompt.Confirmer
	validate *validator.Validate
}

// NewRegistry returns a Registry over store. Deletions are confirmed with c.
func NewRegistry(store *config.Store, c prompt.Confirmer) *Registry {
	return &Registry{
		store:    store,
		confirm:  c,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create registers a new project, creating its directory, metadata file and
// requirements.txt. An existing requirements.txt is kept and seeds the
// dependency list.
func (r *Registry) Create(ctx context.Context, name, directory string, opts CreateOptions) (*Project, error) {
	id := manifest.ProjectID(name)
	if _, ok := r.store.Config().Projects[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, id)
	}

	dir, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", directory, err)
	}

	p := &Project{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Directory:    dir,
		Dependencies: []string{},
		Description:  opts.Description,
		Type:         opts.Type,
	}
	if p.Type == "" {
		p.Type = manifest.DefaultType
	}
	if err := r.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid project %q: %w", name, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory %s: %w", dir, err)
	}

	reqPath := filepath.Join(dir, manifest.RequirementsFile)
	existing, err := manifest.ReadRequirements(reqPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := manifest.WriteRequirements(reqPath, nil); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		p.Dependencies = existing
	}

	if err := writeMeta(p); err != nil {
		return nil, err
	}
	if _, err := workspace.EnsureIgnored(dir, workspace.IgnorePatterns()); err != nil {
		logger.Warnf(ctx, "updating .gitignore: %v", err)
	}

	if err := r.put(p); err != nil {
		return nil, err
	}

	logger.Infof(ctx, "created project %s in %s", p.ID, p.Directory)

	return p, nil
}

// Delete removes the project's directory and its registry entry after
// confirmation. Declining returns prompt.ErrDeclined and changes nothing.
func (r *Registry) Delete(ctx context.Context, id string) error {
	p, err := r.Show(id)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Delete project %s and everything in %s?", p.ID, p.Directory)
	if err := prompt.Require(r.confirm, msg); err != nil {
		return err
	}

	if err := os.RemoveAll(p.Directory); err != nil {
		return fmt.Errorf("removing %s: %w", p.Directory, err)
	}

	delete(r.store.Config().Projects, p.ID)
	if err := r.store.Save(); err != nil {
		return err
	}

	logger.Infof(ctx, "deleted project %s", p.ID)

	return nil
}

// Unlist removes the registry entry and leaves the directory alone.
func (r *Registry) Unlist(ctx context.Context, id string) error {
	if _, err := r.Show(id); err != nil {
		return err
	}

	delete(r.store.Config().Projects, id)
	if err := r.store.Save(); err != nil {
		return err
	}

	logger.Infof(ctx, "unlisted project %s", id)

	return nil
}

// List returns every registered project sorted by ID.
func (r *Registry) List() []Project {
	projects := make([]Project, 0, len(r.store.Config().Projects))
	for id, cp := range r.store.Config().Projects {
		projects = append(projects, fromConfig(id, cp))
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects
}

// Show returns one project. A miss is reported with the closest IDs.
func (r *Registry) Show(id string) (*Project, error) {
	cp, ok := r.store.Config().Projects[id]
	if !ok {
		if s := r.Suggest(id); len(s) > 0 {
			return nil, fmt.Errorf("%w: %s (did you mean %s?)", ErrProjectNotFound, id, strings.Join(s, ", "))
		}
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}

	p := fromConfig(id, cp)
	return &p, nil
}

// Suggest returns up to three registered IDs that fuzzily match id.
func (r *Registry) Suggest(id string) []string {
	ids := make([]string, 0, len(r.store.Config().Projects))
	for k := range r.store.Config().Projects {
		ids = append(ids, k)
	}
	sort.Strings(ids)

	var out []string
	for _, m := range fuzzy.Find(id, ids) {
		out = append(out, m.Str)
	}
	// Also catch IDs whose letters all appear in the query ("demo" for "demo2").
	for _, k := range ids {
		if len(fuzzy.Find(k, []string{id})) > 0 && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// AddDependencies appends names to the project's dependency list and
// rewrites its metadata file and requirements.txt.
func (r *Registry) AddDependencies(ctx context.Context, id string, names []string) (*Project, error) {
	return r.updateDependencies(ctx, id, func(deps []string) []string {
		for _, n := range names {
			if name := manifest.RequirementName(n); name != "" && !slices.Contains(deps, name) {
				deps = append(deps, name)
			}
		}
		return deps
	})
}

// RemoveDependencies drops names from the project's dependency list and
// rewrites its metadata file and requirements.txt.
func (r *Registry) RemoveDependencies(ctx context.Context, id string, names []string) (*Project, error) {
	return r.updateDependencies(ctx, id, func(deps []string) []string {
		return slices.DeleteFunc(deps, func(d string) bool {
			return slices.ContainsFunc(names, func(n string) bool {
				return strings.EqualFold(manifest.RequirementName(n), d)
			})
		})
	})
}

func (r *Registry) updateDependencies(ctx context.Context, id string, update func([]string) []string) (*Project, error) {
	p, err := r.Show(id)
	if err != nil {
		return nil, err
	}

	p.Dependencies = update(slices.Clone(p.Dependencies))
	if p.Dependencies == nil {
		p.Dependencies = []string{}
	}

	if err := os.MkdirAll(p.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory %s: %w", p.Directory, err)
	}
	if err := writeMeta(p); err != nil {
		return nil, err
	}
	if err := manifest.WriteRequirements(filepath.Join(p.Directory, manifest.RequirementsFile), p.Dependencies); err != nil {
		return nil, err
	}
	if err := r.put(p); err != nil {
		return nil, err
	}

	logger.Debugf(ctx, "project %s now has %d dependencies", p.ID, len(p.Dependencies))

	return p, nil
}

func (r *Registry) put(p *Project) error {
	r.store.Config().Projects[p.ID] = config.Project{
		Name:         p.Name,
		Directory:    p.Directory,
		Dependencies: p.Dependencies,
		Description:  p.Description,
		Type:         p.Type,
	}
	return r.store.Save()
}

// writeMeta rewrites <dir>/<id>.meta.json, keeping fields only the file
// knows about (packages).
func writeMeta(p *Project) error {
	path := filepath.Join(p.Directory, manifest.MetaFileName(p.ID))

	m := manifest.NewMeta(p.ID, p.Name, p.Description)
	if old, err := manifest.ReadMeta(path); err == nil {
		m.Packages = old.Packages
	}
	m.Dependencies = p.Dependencies
	m.Type = p.Type

	return manifest.WriteMeta(path, m)
}

func fromConfig(id string, cp config.Project) Project {
	t := cp.Type
	if t == "" {
		t = manifest.DefaultType
	}
	deps := cp.Dependencies
	if deps == nil {
		deps = []string{}
	}
	return Project{
		ID:           id,
		Name:         cp.Name,
		Directory:    cp.Directory,
		Dependencies: deps,
		Description:  cp.Description,
		Type:         t,
	}
}
