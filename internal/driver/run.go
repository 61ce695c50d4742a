package driver

import (
	"fmt"
	"os"

	"github.com/tallowlang/lox/internal/bytecode"
	"github.com/tallowlang/lox/internal/manifest"
)

// ResolveRun figures out what `lox run` (or bare `lox <file>`, or bare
// `lox` with a manifest in scope) should execute: the source path, if
// not given explicitly on the command line, falls back to the nearest
// lox.toml's [project] entry (internal/manifest.FindAndLoad); the
// execution backend, if not given via -backend, falls back to the same
// manifest's [backend] default, or manifest.DefaultBackend if no
// manifest exists at all. A manifest is pure convenience here — running
// a standalone script with an explicit path never requires one, per
// SPEC_FULL.md §4.9.
func ResolveRun(explicitPath, explicitBackend string) (path, backend string, err error) {
	path = explicitPath
	backend = explicitBackend

	if path != "" && backend != "" {
		return path, backend, nil
	}

	dir, derr := os.Getwd()
	if derr != nil {
		return "", "", derr
	}
	m, merr := manifest.FindAndLoad(dir)
	if merr != nil {
		return "", "", merr
	}

	if path == "" {
		if m == nil {
			return "", "", fmt.Errorf("no source file given and no lox.toml found in %s or any parent", dir)
		}
		path = m.EntryPath()
		if path == "" {
			return "", "", fmt.Errorf("lox.toml at %s has no [project] entry set", m.Dir)
		}
	}

	if backend == "" {
		if m != nil {
			backend = m.Backend.Default
		} else {
			backend = manifest.DefaultBackend
		}
	}

	return path, backend, nil
}

// RunFile executes opts.Path under the named backend ("tree-walk", "vm",
// or "ir"), the three choices SPEC_FULL.md §4.9's [backend] table allows.
// "vm" compiles and runs in one step rather than round-tripping through
// a serialized .loxc file — spec.md's compile-bytecode/bytecode-run modes
// exist for the explicit two-step workflow; this is the convenience path
// a plain `lox run` takes.
func RunFile(opts Options, backend string) int {
	switch backend {
	case "tree-walk", "":
		return runInterpret(opts)
	case "vm":
		return runBytecodeInMemory(opts)
	case "ir":
		return runCompileNative(opts)
	default:
		fmt.Fprintf(opts.stderr(), "unknown backend %q (want tree-walk, vm, or ir)\n", backend)
		return ExitCompile
	}
}

func runBytecodeInMemory(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	program, code := scanParse(opts, src, opts.Path)
	if code != ExitOK {
		return code
	}

	chunk, cr := bytecode.Compile(program, opts.Path, src)
	if cr.HasErrors() {
		fmt.Fprint(opts.stderr(), cr.Render(src))
		return ExitCompile
	}

	vm := bytecode.New(opts.stdout())
	if err := vm.Run(chunk); err != nil {
		return reportRuntimeError(opts, err)
	}
	return ExitOK
}
