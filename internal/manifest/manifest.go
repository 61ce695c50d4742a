// Package manifest handles lox.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a lox.toml project configuration.
type Manifest struct {
	Project  Project       `toml:"project"`
	Backend  BackendConfig `toml:"backend"`
	Bytecode BytecodeConfig `toml:"bytecode"`

	// Dir is the directory containing the lox.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// BackendConfig selects the default execution backend.
type BackendConfig struct {
	Default string `toml:"default"` // "tree-walk" | "vm" | "ir"
}

// BytecodeConfig configures compiled-bytecode output.
type BytecodeConfig struct {
	Out string `toml:"out"`
}

// DefaultBackend is used when a manifest omits [backend].
const DefaultBackend = "tree-walk"

// Load parses a lox.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "lox.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Backend.Default == "" {
		m.Backend.Default = DefaultBackend
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a lox.toml file, then loads
// and returns the manifest. Returns nil (no error) if no manifest is found —
// a manifest is ambient convenience, never required to run a single script.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "lox.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path to the project's entry script.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// BytecodeOutPath returns the absolute path for compiled-bytecode output.
func (m *Manifest) BytecodeOutPath() string {
	out := m.Bytecode.Out
	if out == "" {
		out = "build/main.loxc"
	}
	return filepath.Join(m.Dir, out)
}
