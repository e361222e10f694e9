package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOpenBootstrapsOnce verifies the skeleton config and cache directory are created only on first use.
func TestOpenBootstrapsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".modi.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.True(t, s.Bootstrapped())
	require.DirExists(t, filepath.Join(dir, ".modi_cache"))
	require.Equal(t, filepath.Join(dir, ".modi_cache"), s.CachePath())
	require.Empty(t, s.Config().Projects)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "cache")
	require.Contains(t, raw, "projects")

	again, err := Open(path)
	require.NoError(t, err)
	require.False(t, again.Bootstrapped())
}

// TestSavePersistsProjects checks that registry mutations survive a reload.
func TestSavePersistsProjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".modi.json")

	s, err := Open(path)
	require.NoError(t, err)

	s.Config().Projects["my.proj"] = Project{
		Name:         "My.Proj",
		Directory:    "/work/my.proj",
		Dependencies: []string{"requests"},
		Description:  "dotted id",
	}
	require.NoError(t, s.Save())

	loaded, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, s.Config().Projects, loaded.Config().Projects)
}

// TestEnvOverridesSettings ensures MODI_* variables win over file values.
func TestEnvOverridesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".modi.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, "python3", s.Python())

	t.Setenv("MODI_PYTHON", "/opt/py/bin/python3.12")
	t.Setenv("MODI_CACHE_PATH", "/srv/cache")

	s, err = Open(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/py/bin/python3.12", s.Python())
	require.Equal(t, "/srv/cache", s.CachePath())
}

// TestSetAndGet covers known and unknown settings keys.
func TestSetAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".modi.json")

	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyIndex, "https://mirror.example/pypi"))

	got, err := s.Get(KeyIndex)
	require.NoError(t, err)
	require.Equal(t, "https://mirror.example/pypi", got)

	reloaded, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, "https://mirror.example/pypi", reloaded.IndexURL())

	require.ErrorIs(t, s.Set("colour", "blue"), ErrUnknownKey)
	_, err = s.Get("colour")
	require.ErrorIs(t, err, ErrUnknownKey)
}

// TestOpenCorruptFile reports a bootstrap failure for unparsable JSON.
func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".modi.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrBootstrap)
}
