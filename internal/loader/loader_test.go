package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeJar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jar: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close jar: %v", err)
	}
}

func TestClasspath_AppendAndRender(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jar")
	b := filepath.Join(dir, "b.jar")
	writeJar(t, a, map[string]string{"org/a/A.class": "a"})
	writeJar(t, b, map[string]string{"org/b/B.class": "b"})

	cp := NewClasspath()
	if err := Load(cp, []string{a, b, a}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := a + string(os.PathListSeparator) + b
	if got := cp.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestClasspath_ResolveSymbol(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "lib.jar")
	writeJar(t, jar, map[string]string{"org/example/Widget.class": "x", "META-INF/info.txt": "hello"})
	classes := filepath.Join(dir, "classes")
	if err := os.MkdirAll(filepath.Join(classes, "org", "local"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(classes, "org", "local", "Thing.class"), []byte("y"), 0o644); err != nil {
		t.Fatalf("write class: %v", err)
	}

	cp := NewClasspath()
	if err := Load(cp, []string{jar, classes}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := cp.ResolveSymbol("org.example.Widget"); !ok || got != jar {
		t.Fatalf("ResolveSymbol(Widget) = %q, %v", got, ok)
	}
	if got, ok := cp.ResolveSymbol("org.local.Thing"); !ok || got != classes {
		t.Fatalf("ResolveSymbol(Thing) = %q, %v", got, ok)
	}
	if _, ok := cp.ResolveSymbol("org.example.Missing"); ok {
		t.Fatalf("resolved a missing symbol")
	}
	data, ok, err := cp.Resource("/META-INF/info.txt")
	if err != nil || !ok || string(data) != "hello" {
		t.Fatalf("Resource = %q, %v, %v", data, ok, err)
	}
}

func TestLoad_AggregatesFailures(t *testing.T) {
	dir := t.TempDir()
	err := Load(NewClasspath(), []string{filepath.Join(dir, "one.jar"), filepath.Join(dir, "two.jar")})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !strings.Contains(err.Error(), "one.jar") || !strings.Contains(err.Error(), "two.jar") {
		t.Fatalf("error %q does not list both paths", err)
	}
}
