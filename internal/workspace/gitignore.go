package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modi-labs/modi/internal/branding"
)

// IgnorePatterns are the transient entries modi creates inside a project.
func IgnorePatterns() []string {
	return []string{
		branding.StagingDir() + "*/",
		".modi-restore-*/",
		"__pycache__/",
	}
}

// EnsureIgnored appends each pattern missing from dir/.gitignore, creating
// the file if needed. It returns the patterns it added.
func EnsureIgnored(dir string, patterns []string) ([]string, error) {
	path := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading .gitignore: %w", err)
	}

	present := make(map[string]bool)
	for _, l := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(l)] = true
	}

	var added []string
	var b strings.Builder
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		b.WriteByte('\n')
	}
	for _, p := range patterns {
		if present[p] {
			continue
		}
		present[p] = true
		added = append(added, p)
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if len(added) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening .gitignore for append: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return nil, fmt.Errorf("writing to .gitignore: %w", err)
	}
	return added, f.Close()
}
