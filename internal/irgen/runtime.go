package irgen

import "fmt"

// Declarations for the C support library's ABI (spec.md §4.7, exhaustively
// enumerated; SPEC_FULL.md §4.11 names the exact nineteen entry points).
// Grounded on original_source/src/codegen/runtime.rs's RuntimeDecls,
// which declares only the five "Phase 1" functions as llvm FunctionValues
// via inkwell — extended here to the full ABI, and re-expressed as
// `declare` lines in IR text rather than inkwell bindings, since no
// LLVM-IR-building Go library exists anywhere in the example pack (see
// DESIGN.md).
var runtimeDecls = []string{
	"declare void @lox_print(" + valueType + ")",
	"declare " + valueType + " @lox_global_get(i8*, i64, i64)",
	"declare void @lox_global_set(i8*, i64, " + valueType + ")",
	"declare i1 @lox_value_truthy(" + valueType + ")",
	"declare void @lox_runtime_error(i8*, i64, i64) noreturn",
	"declare i8* @lox_alloc_closure(i8*, i64, i8*, i64, i8**, i64)",
	"declare i8* @lox_alloc_cell(" + valueType + ")",
	"declare " + valueType + " @lox_cell_get(i8*)",
	"declare void @lox_cell_set(i8*, " + valueType + ")",
	"declare " + valueType + " @lox_string_concat(" + valueType + ", " + valueType + ", i64)",
	"declare i1 @lox_string_equal(" + valueType + ", " + valueType + ")",
	"declare i8* @lox_alloc_class(i8*, i64, i8*, i64)",
	"declare void @lox_class_add_method(i8*, i8*, i64, i8*)",
	"declare i8* @lox_alloc_instance(i8*)",
	"declare " + valueType + " @lox_instance_get_property(" + valueType + ", i8*, i64, i64)",
	"declare void @lox_instance_set_field(" + valueType + ", i8*, i64, " + valueType + ")",
	"declare i8* @lox_class_find_method(i8*, i8*, i64)",
	"declare i8* @lox_bind_method(i8*, " + valueType + ")",
	"declare " + valueType + " @lox_clock()",
}

// closureType is the emitter's own view of the opaque pointer
// lox_alloc_closure/lox_bind_method return: a private layout shared with
// internal/irgen/runtime/lox_runtime.h, holding exactly enough of a
// prefix for IR to perform a direct, arity-matched call without a
// runtime "invoke" helper (the ABI deliberately has none — calling is a
// native `call` instruction, not a support-library entry point).
const closureType = "%lox.closure"
const closureTypeDecl = closureType + " = type { i8*, i64, i8**, i64 }\n"

func (f *funcCtx) loadClosureField(closurePtr string, index int, fieldType string) string {
	asClosure := f.reg()
	fmt.Fprintf(&f.body, "  %s = bitcast i8* %s to %s*\n", asClosure, closurePtr, closureType)
	fieldPtr := f.reg()
	fmt.Fprintf(&f.body, "  %s = getelementptr %s, %s* %s, i32 0, i32 %d\n",
		fieldPtr, closureType, closureType, asClosure, index)
	val := f.reg()
	fmt.Fprintf(&f.body, "  %s = load %s, %s* %s\n", val, fieldType, fieldType, fieldPtr)
	return val
}

func (f *funcCtx) callClosureArity(closurePtr string) string {
	return f.loadClosureField(closurePtr, 1, "i64")
}

func (f *funcCtx) callClosureFn(closurePtr string) string {
	return f.loadClosureField(closurePtr, 0, "i8*")
}

func (f *funcCtx) callClosureEnv(closurePtr string) string {
	return f.loadClosureField(closurePtr, 2, "i8**")
}

// callRuntime emits a call to one of the fixed-signature runtime
// functions, appending the instruction and returning the result
// register (empty string for void calls).
func (f *funcCtx) callRuntime(retType, name string, args ...string) string {
	argList := ""
	for i, a := range args {
		if i > 0 {
			argList += ", "
		}
		argList += a
	}
	if retType == "void" {
		fmt.Fprintf(&f.body, "  call void @%s(%s)\n", name, argList)
		return ""
	}
	r := f.reg()
	fmt.Fprintf(&f.body, "  %s = call %s @%s(%s)\n", r, retType, name, argList)
	return r
}
