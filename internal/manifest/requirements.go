package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var requirementName = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)

// RequirementName returns the distribution name of a requirement specifier
// ("requests[socks]>=2.31" -> "requests").
func RequirementName(spec string) string {
	return requirementName.FindString(strings.TrimSpace(spec))
}

// ParseRequirements extracts package names from a requirements file. Blank
// lines, comments and directive lines (starting with "-" or ".") are skipped;
// version specifiers, extras and environment markers are dropped.
func ParseRequirements(r io.Reader) ([]string, error) {
	var names []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "-") || strings.HasPrefix(line, ".") {
			continue
		}

		name := RequirementName(line)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}

	return names, nil
}

// ReadRequirements parses the requirements file at path.
func ReadRequirements(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return ParseRequirements(f)
}

// WriteRequirements writes one package name per line.
func WriteRequirements(path string, names []string) error {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
