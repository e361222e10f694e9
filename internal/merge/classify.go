package merge

import (
	"path/filepath"
	"strings"
)

// EntryKind is the classification of one staged entry.
type EntryKind int

const (
	KindSkipped EntryKind = iota
	KindPackage
	KindDependency
	KindFileDependency
	KindEggBundle
)

func (k EntryKind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindDependency:
		return "dependency"
	case KindFileDependency:
		return "file-dependency"
	case KindEggBundle:
		return "egg"
	default:
		return "skipped"
	}
}

// eggInfoDir is the metadata directory inside an egg bundle.
const eggInfoDir = "EGG-INFO"

var metadataSuffixes = []string{".dist-info", ".egg-info", ".pth"}

// Set holds normalized package names.
type Set map[string]struct{}

// NewSet builds a Set from package names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[Normalize(n)] = struct{}{}
	}
	return s
}

// Has reports whether name, once normalized, is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

// Normalize folds case and treats '-' and '_' as equal.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}

// IsMetadata reports whether name is installer metadata that is never copied.
func IsMetadata(name string) bool {
	if name == eggInfoDir || name == "__pycache__" {
		return true
	}
	for _, suffix := range metadataSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Classify decides what a staged entry is. It only looks at the name.
func Classify(name string, isDir bool, explicit Set) EntryKind {
	if IsMetadata(name) {
		return KindSkipped
	}
	if strings.HasSuffix(name, ".egg") {
		return KindEggBundle
	}

	ext := filepath.Ext(name)
	if isDir || ext == "" {
		if explicit.Has(name) {
			return KindPackage
		}
		return KindDependency
	}

	if explicit.Has(strings.TrimSuffix(name, ext)) {
		return KindPackage
	}
	return KindFileDependency
}

// PackageName returns the name an entry is recorded under: directories keep
// their name, single files lose their extension.
func PackageName(name string, isDir bool) string {
	if isDir {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
