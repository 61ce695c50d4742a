package irgen

import (
	"fmt"
	"math"
)

// The runtime value representation: spec.md §4.7's two-field record
// `{i8 tag, i64 payload}`. Tag constants and the builder/extractor shape
// are grounded on original_source/src/codegen/types.rs's LoxValueType,
// re-expressed as functions that append LLVM IR text instead of calling
// inkwell builder methods.

const valueType = "%lox.value"
const valueTypeDecl = valueType + " = type { i8, i64 }\n"

const (
	tagNil      = 0
	tagBool     = 1
	tagNumber   = 2
	tagString   = 3
	tagFunction = 4
	tagClass    = 5
	tagInstance = 6
)

// buildTagged emits the two-insert sequence that builds a {i8,i64} value
// from a tag constant and an i64 payload, returning the register holding
// the finished value.
func (f *funcCtx) buildTagged(tag int, payload string) string {
	undef := f.reg()
	fmt.Fprintf(&f.body, "  %s = insertvalue %s undef, i8 %d, 0\n", undef, valueType, tag)
	full := f.reg()
	fmt.Fprintf(&f.body, "  %s = insertvalue %s %s, i64 %s, 1\n", full, valueType, undef, payload)
	return full
}

func (f *funcCtx) buildNil() string {
	return f.buildTagged(tagNil, "0")
}

func (f *funcCtx) buildBool(b bool) string {
	v := 0
	if b {
		v = 1
	}
	return f.buildTagged(tagBool, fmt.Sprintf("%d", v))
}

// buildBoolFromI1 builds a tagged bool value from an i1 register (the
// result of an icmp/fcmp/call).
func (f *funcCtx) buildBoolFromI1(i1reg string) string {
	ext := f.reg()
	fmt.Fprintf(&f.body, "  %s = zext i1 %s to i64\n", ext, i1reg)
	return f.buildTagged(tagBool, ext)
}

func (f *funcCtx) buildNumber(n float64) string {
	bits := math.Float64bits(n)
	return f.buildTagged(tagNumber, fmt.Sprintf("%d", bits))
}

// buildTaggedNumber wraps an f64 register (already computed) as a
// tagged number value, bitcasting it to i64 first.
func (f *funcCtx) buildTaggedNumber(f64reg string) string {
	bits := f.reg()
	fmt.Fprintf(&f.body, "  %s = bitcast double %s to i64\n", bits, f64reg)
	return f.buildTagged(tagNumber, bits)
}

// buildString wraps an already-computed pointer-as-i64 register as a
// tagged string value.
func (f *funcCtx) buildString(ptrAsI64 string) string {
	return f.buildTagged(tagString, ptrAsI64)
}

func (f *funcCtx) extractTag(v string) string {
	r := f.reg()
	fmt.Fprintf(&f.body, "  %s = extractvalue %s %s, 0\n", r, valueType, v)
	return r
}

func (f *funcCtx) extractPayload(v string) string {
	r := f.reg()
	fmt.Fprintf(&f.body, "  %s = extractvalue %s %s, 1\n", r, valueType, v)
	return r
}

// extractNumber pulls the f64 out of a tagged number's i64 payload.
func (f *funcCtx) extractNumber(v string) string {
	payload := f.extractPayload(v)
	r := f.reg()
	fmt.Fprintf(&f.body, "  %s = bitcast i64 %s to double\n", r, payload)
	return r
}

// ptrToI64 / i64ToPtr round-trip a pointer through the payload's i64
// slot, since LLVM struct fields here are untyped integers by design
// (spec.md §4.7: "pointer-as-integer").
func (f *funcCtx) ptrToI64(ptrReg, ptrType string) string {
	r := f.reg()
	fmt.Fprintf(&f.body, "  %s = ptrtoint %s %s to i64\n", r, ptrType, ptrReg)
	return r
}

func (f *funcCtx) i64ToPtr(i64reg, ptrType string) string {
	r := f.reg()
	fmt.Fprintf(&f.body, "  %s = inttoptr i64 %s to %s\n", r, i64reg, ptrType)
	return r
}
