package merge

import (
	"archive/zip"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	explicit := NewSet("numpy", "Typing-Extensions")

	tests := []struct {
		name  string
		isDir bool
		want  EntryKind
	}{
		{"numpy", true, KindPackage},
		{"six.py", false, KindFileDependency},
		{"numpy.dist-info", true, KindSkipped},
		{"numpy-1.26.0.egg-info", true, KindSkipped},
		{"distutils-precedence.pth", false, KindSkipped},
		{"__pycache__", true, KindSkipped},
		{"EGG-INFO", true, KindSkipped},
		{"urllib3", true, KindDependency},
		{"typing_extensions.py", false, KindPackage},
		{"six-1.16.0-py3.11.egg", false, KindEggBundle},
		{"pkg-1.0-py3.11.egg", true, KindEggBundle},
		{"README", false, KindDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.name, tt.isDir, explicit))
		})
	}
}

func TestEggPackageName(t *testing.T) {
	require.Equal(t, "six", EggPackageName("/stage/six-1.16.0-py3.11.egg"))
	require.Equal(t, "plain", EggPackageName("plain.egg"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// requestsStaging lays out what pip leaves behind for `pip install requests`.
func requestsStaging(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, pkg := range []string{"requests", "urllib3", "idna", "certifi", "charset_normalizer"} {
		writeFile(t, filepath.Join(dir, pkg, "__init__.py"), "# "+pkg+"\n")
		writeFile(t, filepath.Join(dir, pkg+"-1.0.dist-info", "METADATA"), "Name: "+pkg+"\n")
	}
	return dir
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			out[rel] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	}))
	return out
}

func TestMergeClassifiesRequests(t *testing.T) {
	staging := requestsStaging(t)
	dest := t.TempDir()

	res, err := New(Options{}).Merge(context.Background(), staging, dest, []string{"requests"})
	require.NoError(t, err)

	require.Equal(t, []string{"requests"}, res.Packages)
	require.Equal(t, []string{"certifi", "charset_normalizer", "idna", "urllib3"}, res.Dependencies)
	require.ElementsMatch(t, []string{"certifi", "charset_normalizer", "idna", "requests", "urllib3"}, res.Copied())

	require.DirExists(t, filepath.Join(dest, "requests"))
	require.NoDirExists(t, filepath.Join(dest, "requests-1.0.dist-info"))
}

func TestMergeIsIdempotent(t *testing.T) {
	staging := requestsStaging(t)
	writeFile(t, filepath.Join(staging, "six.py"), "six = 1\n")
	dest := t.TempDir()
	eng := New(Options{})
	ctx := context.Background()

	_, err := eng.Merge(ctx, staging, dest, []string{"requests"})
	require.NoError(t, err)
	first := snapshot(t, dest)

	second, err := eng.Merge(ctx, staging, dest, []string{"requests"})
	require.NoError(t, err)
	require.Equal(t, first, snapshot(t, dest))
	require.Empty(t, second.Copied())
	for _, e := range second.Entries {
		require.Equal(t, SkippedExisting, e.Outcome, e.Name)
	}
	require.Equal(t, []string{"requests"}, second.Packages)
}

func TestMergeNeverOverwrites(t *testing.T) {
	staging := t.TempDir()
	writeFile(t, filepath.Join(staging, "six.py"), "new\n")
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "six.py"), "old\n")

	res, err := New(Options{}).Merge(context.Background(), staging, dest, nil)
	require.NoError(t, err)
	require.Equal(t, []Entry{{Name: "six.py", Kind: KindFileDependency, Outcome: SkippedExisting}}, res.Entries)
	require.Equal(t, []string{"six.py"}, res.Dependencies)

	data, err := os.ReadFile(filepath.Join(dest, "six.py"))
	require.NoError(t, err)
	require.Equal(t, "old\n", string(data))
}

func TestMergeExplicitPackagesComplete(t *testing.T) {
	staging := t.TempDir()
	explicit := []string{"Flask", "typing-extensions", "attrs"}
	writeFile(t, filepath.Join(staging, "flask", "__init__.py"), "")
	writeFile(t, filepath.Join(staging, "typing_extensions.py"), "")
	writeFile(t, filepath.Join(staging, "attrs", "__init__.py"), "")
	writeFile(t, filepath.Join(staging, "jinja2", "__init__.py"), "")

	res, err := New(Options{}).Merge(context.Background(), staging, t.TempDir(), explicit)
	require.NoError(t, err)
	require.Equal(t, []string{"attrs", "flask", "typing_extensions"}, res.Packages)
	require.Equal(t, []string{"jinja2"}, res.Dependencies)
}

func TestMergeUncompressedEgg(t *testing.T) {
	staging := t.TempDir()
	egg := filepath.Join(staging, "legacy-0.1-py3.11.egg")
	writeFile(t, filepath.Join(egg, "legacy", "__init__.py"), "")
	writeFile(t, filepath.Join(egg, "EGG-INFO", "PKG-INFO"), "")
	dest := t.TempDir()

	res, err := New(Options{}).Merge(context.Background(), staging, dest, []string{"legacy"})
	require.NoError(t, err)
	require.Equal(t, []string{"legacy"}, res.Packages)
	require.DirExists(t, filepath.Join(dest, "legacy"))
	require.NoDirExists(t, filepath.Join(dest, "EGG-INFO"))
}

func writeEgg(t *testing.T, path, pkg string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{pkg + "/__init__.py", pkg + "/core.py", "EGG-INFO/PKG-INFO"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("# " + name + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func compressedEggStaging(t *testing.T) string {
	t.Helper()
	staging := t.TempDir()
	// ReadDir order is lexical: the egg sorts before "zlib_extra".
	writeEgg(t, filepath.Join(staging, "bundle-2.0-py3.11.egg"), "bundle")
	writeFile(t, filepath.Join(staging, "zlib_extra", "__init__.py"), "")
	return staging
}

func TestMergeCompressedEggProcessesAllEntries(t *testing.T) {
	staging := compressedEggStaging(t)
	dest := t.TempDir()

	res, err := New(Options{}).Merge(context.Background(), staging, dest, []string{"bundle"})
	require.NoError(t, err)

	require.Equal(t, []string{"bundle"}, res.Packages)
	require.Equal(t, []string{"zlib_extra"}, res.Dependencies)
	require.FileExists(t, filepath.Join(dest, "bundle", "core.py"))
	require.DirExists(t, filepath.Join(dest, "zlib_extra"))
	require.NoFileExists(t, filepath.Join(staging, "bundle-2.0-py3.11.egg"))
}

func TestMergeStopAfterCompressedEgg(t *testing.T) {
	staging := compressedEggStaging(t)
	dest := t.TempDir()

	res, err := New(Options{StopAfterCompressedEgg: true}).Merge(context.Background(), staging, dest, []string{"bundle"})
	require.NoError(t, err)

	require.Equal(t, []string{"bundle"}, res.Packages)
	require.Empty(t, res.Dependencies)
	require.FileExists(t, filepath.Join(dest, "bundle", "__init__.py"))
	require.NoDirExists(t, filepath.Join(dest, "zlib_extra"))
}

func TestMergeMissingStaging(t *testing.T) {
	_, err := New(Options{}).Merge(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir(), nil)
	require.Error(t, err)
}
