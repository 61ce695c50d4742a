package irgen

import _ "embed"

// RuntimeSource and RuntimeHeader are the C support library that every
// emitted IR module declares against (spec.md §4.7, SPEC_FULL.md §4.11).
// internal/driver's compile-native mode writes these to a temp directory
// alongside the emitted .ll file before shelling out to clang/cc — there
// is no Go LLVM linker here, just an external-tool invocation, grounded
// on original_source/src/codegen/native.rs's own object-emit-then-link
// pipeline.
//
//go:embed runtime/lox_runtime.c
var RuntimeSource string

//go:embed runtime/lox_runtime.h
var RuntimeHeader string
