package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out, err := Render(NewEntryData("/home/dev/.modi_cache"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	s := string(out)
	for _, want := range []string{
		`"MODI_CACHE_PATH"`,
		`"/home/dev/.modi_cache"`,
		"import modi",
		"sys.path.insert(0, _path)",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("rendered shim missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "{{") {
		t.Errorf("rendered shim has unexpanded template actions:\n%s", s)
	}
}

func TestRenderQuotesPath(t *testing.T) {
	out, err := Render(NewEntryData(`C:\Users\dev\.modi_cache`))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), `"C:\\Users\\dev\\.modi_cache"`) {
		t.Errorf("backslashes not escaped:\n%s", out)
	}
}

func TestWriteEntryScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "modi.py")

	wrote, err := WriteEntryScript(path, NewEntryData(filepath.Dir(path)))
	if err != nil {
		t.Fatalf("WriteEntryScript: %v", err)
	}
	if !wrote {
		t.Fatal("WriteEntryScript did not write a missing shim")
	}

	if err := os.WriteFile(path, []byte("# edited\n"), 0644); err != nil {
		t.Fatal(err)
	}

	wrote, err = WriteEntryScript(path, NewEntryData(filepath.Dir(path)))
	if err != nil {
		t.Fatalf("WriteEntryScript: %v", err)
	}
	if wrote {
		t.Error("WriteEntryScript overwrote an existing shim")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# edited\n" {
		t.Errorf("shim content = %q, want the edited copy", data)
	}
}
