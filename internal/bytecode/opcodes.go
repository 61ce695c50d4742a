// Package bytecode implements the second execution backend from spec.md
// §4.5/§4.6: a compiler from the resolved AST to a stack-oriented chunk
// format, and a single-threaded fetch-decode-execute VM for it.
//
// Grounded on the teacher's pkg/bytecode package: the opcode-organized-by-
// byte-range layout (opcodes.go), the chunk/serialize shape (chunk.go), and
// the disassembler's one-instruction-per-line format (disasm.go) all carry
// over; the instruction set itself is rebuilt for Lox's stack-slot/upvalue
// model instead of Maggie's message-send/block model.
package bytecode

import "fmt"

// Opcode is a single bytecode instruction. Operand widths are fixed per
// opcode (spec.md §3.8): one byte for local/upvalue/constant-pool indices,
// two bytes for jump offsets.
type Opcode byte

const (
	// Stack manipulation (0x00-0x0F)
	OpPop Opcode = 0x00 // pop top of stack

	// Constants and literals (0x10-0x1F)
	OpConstant Opcode = 0x10 // push constants[<index:u8>]
	OpNil      Opcode = 0x11 // push nil
	OpTrue     Opcode = 0x12 // push true
	OpFalse    Opcode = 0x13 // push false

	// Locals and upvalues (0x20-0x27)
	OpGetLocal    Opcode = 0x20 // push stack[frame_base + <slot:u8>]
	OpSetLocal    Opcode = 0x21 // stack[frame_base + <slot:u8>] = peek(0)
	OpGetUpvalue  Opcode = 0x22 // push *closure.Upvalues[<index:u8>]
	OpSetUpvalue  Opcode = 0x23 // *closure.Upvalues[<index:u8>] = peek(0)
	OpCloseUpvalue Opcode = 0x24 // close the open upvalue at the top stack slot, then pop

	// Globals (0x28-0x2F)
	OpDefineGlobal Opcode = 0x28 // globals[constants[<name:u8>]] = pop()
	OpGetGlobal    Opcode = 0x29 // push globals[constants[<name:u8>]]
	OpSetGlobal    Opcode = 0x2A // globals[constants[<name:u8>]] = peek(0)

	// Properties (0x30-0x3F)
	OpGetProperty Opcode = 0x30 // push pop().fields|bound-method[constants[<name:u8>]]
	OpSetProperty Opcode = 0x31 // instance.fields[constants[<name:u8>]] = value

	// Arithmetic (0x40-0x4F)
	OpAdd    Opcode = 0x40
	OpSub    Opcode = 0x41
	OpMul    Opcode = 0x42
	OpDiv    Opcode = 0x43
	OpNegate Opcode = 0x44

	// Comparison and logic (0x50-0x5F)
	OpEqual        Opcode = 0x50
	OpNotEqual     Opcode = 0x51
	OpLess         Opcode = 0x52
	OpLessEqual    Opcode = 0x53
	OpGreater      Opcode = 0x54
	OpGreaterEqual Opcode = 0x55
	OpNot          Opcode = 0x56

	// Control flow (0x60-0x6F)
	OpJump        Opcode = 0x60 // ip += <offset:u16>
	OpJumpIfFalse Opcode = 0x61 // if !truthy(peek(0)): ip += <offset:u16>
	OpLoop        Opcode = 0x62 // ip -= <offset:u16>

	// Calls and closures (0x70-0x7F)
	OpCall       Opcode = 0x70 // call pop-below-<argc:u8>-args with <argc:u8> args
	OpClosure    Opcode = 0x71 // push closure over constants[<fn:u8>], then <upvalue-count> (is-local,index) pairs
	OpInvoke     Opcode = 0x72 // fused get-property+call: constants[<name:u8>], <argc:u8>
	OpSuperInvoke Opcode = 0x73 // fused super-get+call: constants[<name:u8>], <argc:u8>
	OpGetSuper   Opcode = 0x74 // pop superclass, pop this; push bound method constants[<name:u8>]

	// Classes (0x80-0x8F)
	OpClass   Opcode = 0x80 // push new Class{Name: constants[<name:u8>]}
	OpInherit Opcode = 0x81 // subclass=pop(); superclass=peek(0); copy methods; push subclass
	OpMethod  Opcode = 0x82 // class=peek(0); closure=pop(); class.Methods[constants[<name:u8>]]=closure

	// Output and return (0xF0-0xFF)
	OpPrint  Opcode = 0xF0 // print(pop())
	OpReturn Opcode = 0xF1 // return pop() from the current frame
	OpNop    Opcode = 0xFF // no-op; never emitted by the compiler, only used as a sentinel
)

// opcodeNames and opcodeOperandLen drive both the disassembler and the
// compiler's sanity checks. Every opcode defined above must appear here.
var opcodeNames = map[Opcode]string{
	OpPop: "POP",

	OpConstant: "CONSTANT",
	OpNil:      "NIL",
	OpTrue:     "TRUE",
	OpFalse:    "FALSE",

	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpGetUpvalue:   "GET_UPVALUE",
	OpSetUpvalue:   "SET_UPVALUE",
	OpCloseUpvalue: "CLOSE_UPVALUE",

	OpDefineGlobal: "DEFINE_GLOBAL",
	OpGetGlobal:    "GET_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",

	OpGetProperty: "GET_PROPERTY",
	OpSetProperty: "SET_PROPERTY",

	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpNegate: "NEGATE",

	OpEqual:        "EQUAL",
	OpNotEqual:     "NOT_EQUAL",
	OpLess:         "LESS",
	OpLessEqual:    "LESS_EQUAL",
	OpGreater:      "GREATER",
	OpGreaterEqual: "GREATER_EQUAL",
	OpNot:          "NOT",

	OpJump:        "JUMP",
	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpLoop:        "LOOP",

	OpCall:        "CALL",
	OpClosure:     "CLOSURE",
	OpInvoke:      "INVOKE",
	OpSuperInvoke: "SUPER_INVOKE",
	OpGetSuper:    "GET_SUPER",

	OpClass:   "CLASS",
	OpInherit: "INHERIT",
	OpMethod:  "METHOD",

	OpPrint:  "PRINT",
	OpReturn: "RETURN",
	OpNop:    "NOP",
}

// operandLen is the number of operand bytes following the opcode itself,
// not counting OpClosure's variable-length upvalue trailer (handled
// specially by the compiler/VM/disassembler, since its length depends on
// the referenced function's upvalue count rather than being fixed).
var operandLen = map[Opcode]int{
	OpPop: 0,

	OpConstant: 1,
	OpNil:      0,
	OpTrue:     0,
	OpFalse:    0,

	OpGetLocal:     1,
	OpSetLocal:     1,
	OpGetUpvalue:   1,
	OpSetUpvalue:   1,
	OpCloseUpvalue: 0,

	OpDefineGlobal: 1,
	OpGetGlobal:    1,
	OpSetGlobal:    1,

	OpGetProperty: 1,
	OpSetProperty: 1,

	OpAdd: 0, OpSub: 0, OpMul: 0, OpDiv: 0, OpNegate: 0,

	OpEqual: 0, OpNotEqual: 0, OpLess: 0, OpLessEqual: 0,
	OpGreater: 0, OpGreaterEqual: 0, OpNot: 0,

	OpJump: 2, OpJumpIfFalse: 2, OpLoop: 2,

	OpCall:        1,
	OpClosure:     1, // plus the upvalue trailer
	OpInvoke:      2, // name-const index + argc
	OpSuperInvoke: 2,
	OpGetSuper:    1,

	OpClass: 1, OpInherit: 0, OpMethod: 1,

	OpPrint: 0, OpReturn: 0, OpNop: 0,
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// OperandLen returns the number of fixed operand bytes following op,
// excluding OpClosure's variable-length upvalue trailer.
func (op Opcode) OperandLen() int {
	return operandLen[op]
}
