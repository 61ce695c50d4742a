package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "mygame"
entry = "main.lox"

[backend]
default = "vm"

[bytecode]
out = "build/main.loxc"
`
	if err := os.WriteFile(filepath.Join(dir, "lox.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "mygame" {
		t.Errorf("project name = %q, want mygame", m.Project.Name)
	}
	if m.Project.Entry != "main.lox" {
		t.Errorf("project entry = %q, want main.lox", m.Project.Entry)
	}
	if m.Backend.Default != "vm" {
		t.Errorf("backend default = %q, want vm", m.Backend.Default)
	}
	want := filepath.Join(m.Dir, "main.lox")
	if got := m.EntryPath(); got != want {
		t.Errorf("EntryPath() = %q, want %q", got, want)
	}
}

func TestLoadDefaultsBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lox.toml"), []byte(`[project]
name = "bare"
`), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Backend.Default != DefaultBackend {
		t.Errorf("backend default = %q, want %q", m.Backend.Default, DefaultBackend)
	}
	if m.BytecodeOutPath() != filepath.Join(m.Dir, "build/main.loxc") {
		t.Errorf("BytecodeOutPath() = %q", m.BytecodeOutPath())
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "lox.toml"), []byte(`[project]
name = "nested"
`), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil manifest")
	}
	if m.Project.Name != "nested" {
		t.Errorf("project name = %q, want nested", m.Project.Name)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil manifest, got %+v", m)
	}
}
