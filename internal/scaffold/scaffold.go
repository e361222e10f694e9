package scaffold

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/modi-labs/modi/internal/branding"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const entryTemplate = "templates/entry.py.tmpl"

// EntryData holds the template variables of the entry script.
type EntryData struct {
	DisplayName string
	CLIName     string
	ImportName  string
	// CachePath is the global cache baked in as the default search path.
	CachePath string
	// EnvVar overrides CachePath at runtime.
	EnvVar string
}

// NewEntryData returns EntryData for a cache directory.
func NewEntryData(cachePath string) *EntryData {
	return &EntryData{
		DisplayName: branding.DisplayName(),
		CLIName:     branding.CLIName(),
		ImportName:  branding.ImportName(),
		CachePath:   cachePath,
		EnvVar:      branding.EnvVar("CACHE_PATH"),
	}
}

// Render executes the entry script template.
func Render(data *EntryData) ([]byte, error) {
	raw, err := templateFS.ReadFile(entryTemplate)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", entryTemplate, err)
	}

	tmpl, err := template.New(filepath.Base(entryTemplate)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", entryTemplate, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", entryTemplate, err)
	}
	return buf.Bytes(), nil
}

// WriteEntryScript renders the shim to path unless a file is already there.
// It reports whether it wrote anything.
func WriteEntryScript(path string, data *EntryData) (bool, error) {
	if _, err := os.Lstat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	content, err := Render(data)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
