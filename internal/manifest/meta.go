package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MetaSuffix is the file name suffix of project metadata files.
	MetaSuffix = ".meta.json"

	// RequirementsFile is the dependency-list file written next to the metadata.
	RequirementsFile = "requirements.txt"

	// DefaultType is the pkg_type given to new projects.
	DefaultType = "app"
)

// ErrInvalidMeta is returned when a metadata file fails schema validation.
var ErrInvalidMeta = errors.New("invalid metadata")

// Meta is the content of <id>.meta.json. The same structure is embedded at
// the root of .modi.pkg archives as the archive manifest.
type Meta struct {
	Name         string   `json:"pkg_name"`
	FullName     string   `json:"pkg_fullname"`
	Dependencies []string `json:"dependencies"`
	Packages     []string `json:"packages,omitempty"`
	Type         string   `json:"pkg_type"`
	Description  string   `json:"description"`
}

// NewMeta returns metadata for a project with the given id and display name.
func NewMeta(id, fullName, description string) *Meta {
	return &Meta{
		Name:         id,
		FullName:     fullName,
		Dependencies: []string{},
		Type:         DefaultType,
		Description:  description,
	}
}

// ProjectID derives a project identifier from a display name: lowercased,
// with every run of whitespace replaced by one underscore.
func ProjectID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// MetaFileName returns "<id>.meta.json".
func MetaFileName(id string) string {
	return id + MetaSuffix
}

// IsMetaFile reports whether name looks like a metadata file.
func IsMetaFile(name string) bool {
	return strings.HasSuffix(name, MetaSuffix) && len(name) > len(MetaSuffix)
}

// FindMeta returns the path of the metadata file in dir, or "" if there is none.
// When several exist the lexically first one wins.
func FindMeta(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

	var found []string
	for _, e := range entries {
		if !e.IsDir() && IsMetaFile(e.Name()) {
			found = append(found, e.Name())
		}
	}
	if len(found) == 0 {
		return "", nil
	}

	sort.Strings(found)
	return filepath.Join(dir, found[0]), nil
}

// ParseMeta validates and decodes metadata JSON.
func ParseMeta(data []byte) (*Meta, error) {
	if err := ValidateMeta(data); err != nil {
		return nil, err
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &m, nil
}

// ReadMeta reads and validates a metadata file.
func ReadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata %s: %w", path, err)
	}

	m, err := ParseMeta(data)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return m, nil
}

// Marshal encodes m as indented JSON. Nil lists are written as [].
func (m *Meta) Marshal() ([]byte, error) {
	out := *m
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	if out.Type == "" {
		out.Type = DefaultType
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteMeta validates m and writes it to path. Nothing is written when m
// fails the schema.
func WriteMeta(path string, m *Meta) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := ValidateMeta(data); err != nil {
		return fmt.Errorf("metadata %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing metadata %s: %w", path, err)
	}
	return nil
}
