package bootstrap

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modi-labs/modi/internal/archive"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/prompt"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// buildArchive builds an archive of a small project and moves it into dest.
func buildArchive(t *testing.T, f archive.Format, dest string) string {
	t.Helper()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "main.py"), "import modi\nprint('restored')\n")
	writeFile(t, filepath.Join(src, "lib", "__init__.py"), "VALUE = 1\n")
	writeFile(t, filepath.Join(src, "modi.py"), "# archived shim\n")
	writeFile(t, filepath.Join(src, manifest.RequirementsFile), "requests\nnumpy>=1.26\n")
	meta := manifest.NewMeta("demo", "Demo", "round trip")
	meta.Dependencies = []string{"requests", "numpy"}
	require.NoError(t, manifest.WriteMeta(filepath.Join(src, manifest.MetaFileName("demo")), meta))

	out, err := (&archive.Builder{}).Build(context.Background(), archive.BuildOptions{Format: f, Name: "demo", Dir: src})
	require.NoError(t, err)

	moved := filepath.Join(dest, filepath.Base(out))
	require.NoError(t, os.Rename(out, moved))
	return moved
}

// writeTarGz writes files into a gzipped tarball at path.
func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		body := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

// cancelOnConfirm agrees to the cleanup and cancels the restore right after.
type cancelOnConfirm struct {
	cancel context.CancelFunc
}

func (c cancelOnConfirm) Confirm(string) (bool, error) {
	c.cancel()
	return true, nil
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"foo.tar.gz", "foo.modi.pkg", "bar.zip", "foo.txt", "foo"} {
		writeFile(t, filepath.Join(dir, n), "")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "foo.zip.d"), 0o755))

	found, err := Discover(dir, "foo")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "foo.modi.pkg"), filepath.Join(dir, "foo.tar.gz")}, found)

	found, err = Discover(dir, "ba")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "bar.zip")}, found)
}

func TestDiscoverDottedStem(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"my.proj.tar.gz", "my.proj.modi.pkg", "my.zip", ".zip"} {
		writeFile(t, filepath.Join(dir, n), "")
	}

	found, err := Discover(dir, "my.proj")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "my.proj.modi.pkg"), filepath.Join(dir, "my.proj.tar.gz")}, found)

	found, err = Discover(dir, "my")
	require.NoError(t, err)
	require.Len(t, found, 3)
}

func TestBootstrapNoArchive(t *testing.T) {
	_, err := New(prompt.Static(true)).Bootstrap(context.Background(), Options{NameStem: "ghost", Dest: t.TempDir()})
	require.ErrorIs(t, err, ErrArchiveDiscovery)
}

func TestBootstrapAmbiguousNeedsSelector(t *testing.T) {
	dest := t.TempDir()
	buildArchive(t, archive.Tar, dest)
	pkg := buildArchive(t, archive.ModiPkg, dest)

	eng := New(prompt.Static(true))
	_, err := eng.Bootstrap(context.Background(), Options{NameStem: "demo", Dest: dest})
	require.ErrorIs(t, err, ErrAmbiguousArchive)
	require.ErrorIs(t, err, ErrArchiveDiscovery)

	st, err := eng.Bootstrap(context.Background(), Options{
		NameStem: "demo",
		Dest:     dest,
		Select: func(c []string) (string, error) {
			require.Len(t, c, 2)
			return pkg, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, pkg, st.Archive)
	require.NoFileExists(t, pkg)
	require.FileExists(t, filepath.Join(dest, "demo.tar.gz"))
}

func TestBootstrapRoundTripRegeneratesRequirements(t *testing.T) {
	dest := t.TempDir()
	pkg := buildArchive(t, archive.ModiPkg, dest)
	writeFile(t, filepath.Join(dest, "stale.py"), "old\n")
	writeFile(t, filepath.Join(dest, "junk", "data.bin"), "x")
	writeFile(t, filepath.Join(dest, "modi.py"), "# local shim\n")

	st, err := New(prompt.Static(true)).Bootstrap(context.Background(), Options{
		NameStem:    "demo",
		Dest:        dest,
		ProjectName: "Restored App",
		Cleanup:     true,
	})
	require.NoError(t, err)

	require.Equal(t, pkg, st.Archive)
	require.Equal(t, "demo", st.Root)
	require.ElementsMatch(t, []string{"junk", "modi.py", "stale.py"}, st.Removed)
	require.True(t, st.RequirementsWritten)

	require.NoFileExists(t, pkg)
	require.NoFileExists(t, filepath.Join(dest, "stale.py"))
	require.NoDirExists(t, filepath.Join(dest, "junk"))
	require.NoDirExists(t, filepath.Join(dest, "demo"))
	require.Equal(t, "VALUE = 1\n", readFile(t, filepath.Join(dest, "lib", "__init__.py")))
	require.Equal(t, "# local shim\n", readFile(t, filepath.Join(dest, "modi.py")))

	require.Equal(t, "requests\nnumpy\n", readFile(t, filepath.Join(dest, manifest.RequirementsFile)))
	m, err := manifest.ReadMeta(filepath.Join(dest, "restored_app.meta.json"))
	require.NoError(t, err)
	require.Equal(t, "restored_app", m.Name)
	require.Equal(t, "Restored App", m.FullName)
	require.NoFileExists(t, filepath.Join(dest, "demo.meta.json"))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".modi-restore")
	}
}

func TestBootstrapDeclinedChangesNothing(t *testing.T) {
	dest := t.TempDir()
	pkg := buildArchive(t, archive.ModiPkg, dest)
	writeFile(t, filepath.Join(dest, "keep.py"), "mine\n")

	_, err := New(prompt.Static(false)).Bootstrap(context.Background(), Options{NameStem: "demo", Dest: dest, Cleanup: true})
	require.ErrorIs(t, err, prompt.ErrDeclined)

	require.FileExists(t, pkg)
	require.Equal(t, "mine\n", readFile(t, filepath.Join(dest, "keep.py")))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestBootstrapValidatesBeforeCleanup(t *testing.T) {
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "broken.modi.pkg"), "definitely not gzip")
	writeFile(t, filepath.Join(dest, "keep.py"), "mine\n")

	_, err := New(prompt.Static(true)).Bootstrap(context.Background(), Options{NameStem: "broken", Dest: dest, Cleanup: true})
	require.ErrorIs(t, err, archive.ErrExtraction)
	require.FileExists(t, filepath.Join(dest, "keep.py"))
	require.FileExists(t, filepath.Join(dest, "broken.modi.pkg"))
}

func TestBootstrapRejectsInvalidManifestBeforeCleanup(t *testing.T) {
	dest := t.TempDir()
	pkg := filepath.Join(dest, "demo.modi.pkg")
	writeTarGz(t, pkg, map[string]string{
		"demo/main.py":        "print('hi')\n",
		"demo/demo.meta.json": `{"pkg_name": "my app", "pkg_fullname": "My App", "dependencies": [], "pkg_type": "app"}`,
	})
	writeFile(t, filepath.Join(dest, "precious.txt"), "keep me\n")
	writeFile(t, filepath.Join(dest, "modi.py"), "# local shim\n")

	_, err := New(prompt.Static(true)).Bootstrap(context.Background(), Options{NameStem: "demo", Dest: dest, Cleanup: true})
	require.ErrorIs(t, err, archive.ErrExtraction)
	require.ErrorIs(t, err, manifest.ErrInvalidMeta)

	require.FileExists(t, pkg)
	require.Equal(t, "keep me\n", readFile(t, filepath.Join(dest, "precious.txt")))
	require.Equal(t, "# local shim\n", readFile(t, filepath.Join(dest, "modi.py")))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestBootstrapDisplayNamedPackage(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "main.py"), "print('restored')\n")
	writeFile(t, filepath.Join(src, "lib", "__init__.py"), "VALUE = 1\n")
	writeFile(t, filepath.Join(src, manifest.RequirementsFile), "requests\n")

	out, err := (&archive.Builder{}).Build(context.Background(), archive.BuildOptions{Format: archive.ModiPkg, Name: "My App", Dir: src})
	require.NoError(t, err)

	dest := t.TempDir()
	pkg := filepath.Join(dest, filepath.Base(out))
	require.NoError(t, os.Rename(out, pkg))
	writeFile(t, filepath.Join(dest, "precious.txt"), "old\n")
	writeFile(t, filepath.Join(dest, "modi.py"), "# local shim\n")

	st, err := New(prompt.Static(true)).Bootstrap(context.Background(), Options{NameStem: "My App", Dest: dest, Cleanup: true})
	require.NoError(t, err)
	require.Equal(t, "My App", st.Root)
	require.Equal(t, "my_app", st.Manifest.Name)
	require.Equal(t, "My App", st.Manifest.FullName)
	require.True(t, st.RequirementsWritten)

	require.NoFileExists(t, pkg)
	require.NoFileExists(t, filepath.Join(dest, "precious.txt"))
	require.FileExists(t, filepath.Join(dest, "main.py"))
	require.FileExists(t, filepath.Join(dest, "lib", "__init__.py"))
	require.FileExists(t, filepath.Join(dest, "my_app.meta.json"))
	require.Equal(t, "# local shim\n", readFile(t, filepath.Join(dest, "modi.py")))
	require.Equal(t, "requests\n", readFile(t, filepath.Join(dest, manifest.RequirementsFile)))
}

func TestBootstrapRestoresEntryScriptOnFailure(t *testing.T) {
	dest := t.TempDir()
	pkg := buildArchive(t, archive.ModiPkg, dest)
	writeFile(t, filepath.Join(dest, "modi.py"), "# local shim\n")
	writeFile(t, filepath.Join(dest, "stale.py"), "old\n")

	backups := t.TempDir()
	t.Setenv("TMPDIR", backups)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := New(cancelOnConfirm{cancel: cancel}).Bootstrap(ctx, Options{NameStem: "demo", Dest: dest, Cleanup: true})
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, "# local shim\n", readFile(t, filepath.Join(dest, "modi.py")))
	require.NoFileExists(t, filepath.Join(dest, "stale.py"))
	require.FileExists(t, pkg)

	left, err := os.ReadDir(backups)
	require.NoError(t, err)
	require.Empty(t, left, "entry script backup left behind")

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".modi-restore")
	}
}

func TestSyncRejectsRename(t *testing.T) {
	dest := t.TempDir()
	pkg := buildArchive(t, archive.ModiPkg, dest)

	_, err := New(prompt.Static(true)).Sync(context.Background(), Options{NameStem: "demo", Dest: dest, ProjectName: "Other"})
	require.ErrorIs(t, err, ErrRenameWithoutCleanup)
	require.FileExists(t, pkg)

	writeFile(t, filepath.Join(dest, "keep.py"), "mine\n")
	_, err = New(prompt.Static(true)).Bootstrap(context.Background(), Options{NameStem: "demo", Dest: dest, ProjectName: "a/b", Cleanup: true})
	require.Error(t, err)
	require.FileExists(t, pkg)
	require.FileExists(t, filepath.Join(dest, "keep.py"))
}

func TestSyncMergesOnTop(t *testing.T) {
	dest := t.TempDir()
	buildArchive(t, archive.ModiPkg, dest)
	writeFile(t, filepath.Join(dest, "main.py"), "# edited locally\n")
	writeFile(t, filepath.Join(dest, "extra.py"), "")

	st, err := New(prompt.Static(false)).Sync(context.Background(), Options{NameStem: "demo", Dest: dest, Cleanup: true})
	require.NoError(t, err)
	require.Empty(t, st.Removed)
	require.False(t, st.RequirementsWritten)

	require.Equal(t, "# edited locally\n", readFile(t, filepath.Join(dest, "main.py")))
	require.FileExists(t, filepath.Join(dest, "extra.py"))
	require.FileExists(t, filepath.Join(dest, "lib", "__init__.py"))
	require.FileExists(t, filepath.Join(dest, "demo.meta.json"))
	require.NoFileExists(t, filepath.Join(dest, manifest.RequirementsFile))
}

func TestBootstrapWithoutManifest(t *testing.T) {
	dest := t.TempDir()
	buildArchive(t, archive.Zip, dest)

	st, err := New(prompt.Static(true)).Bootstrap(context.Background(), Options{NameStem: "demo", Dest: dest, Cleanup: true})
	require.NoError(t, err)
	require.Nil(t, st.Manifest)
	require.False(t, st.RequirementsWritten)
	require.FileExists(t, filepath.Join(dest, "main.py"))
	require.NoFileExists(t, filepath.Join(dest, manifest.RequirementsFile))
}
