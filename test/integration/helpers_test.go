//go:build integration

package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modi-labs/modi/internal/config"
	"github.com/modi-labs/modi/internal/prompt"
	"github.com/modi-labs/modi/internal/session"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir    string // HOME, holds .modi.json and the cache
	ProjectDir string // a project working directory
	RestoreDir string // where archives are restored
	Session    *session.Session
}

// setupTestEnv creates isolated temp directories and points HOME and
// MODI_CONFIG at them so no real user state is touched.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:    t.TempDir(),
		ProjectDir: filepath.Join(t.TempDir(), "project"),
		RestoreDir: t.TempDir(),
	}

	cfgPath := filepath.Join(env.HomeDir, ".modi.json")
	t.Setenv("HOME", env.HomeDir)
	t.Setenv("MODI_CONFIG", cfgPath)

	store, err := config.Open(cfgPath)
	if err != nil {
		t.Fatalf("opening config: %v", err)
	}

	env.Session, err = session.New(store,
		session.WithConfirmer(prompt.Static(true)),
		session.WithWorkDir(env.ProjectDir),
	)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	return env
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// moveFile renames src into dir, keeping its base name.
func moveFile(t *testing.T, src, dir string) string {
	t.Helper()
	dst := filepath.Join(dir, filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		t.Fatalf("moving %s: %v", src, err)
	}
	return dst
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertDirExists fails the test if the directory does not exist.
func assertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory to exist: %s (error: %v)", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("expected %s to be a directory, but it is a file", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}
