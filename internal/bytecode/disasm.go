package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble renders chunk and every function nested in its constant
// pool as a human-readable instruction listing — the `disassemble` CLI
// mode (spec.md §6.2).
//
// Grounded on the teacher's pkg/bytecode/disasm.go: a header block of
// chunk metadata followed by one line per instruction, offset first,
// mnemonic second, decoded operand third; nested function constants are
// rendered as a separate named section instead of being interleaved.
func Disassemble(chunk *Chunk) string {
	var sb strings.Builder
	disassembleChunk(&sb, chunk, chunkDisplayName(chunk))
	return sb.String()
}

func chunkDisplayName(c *Chunk) string {
	if c.Name == "" {
		return "<script>"
	}
	return c.Name
}

func disassembleChunk(sb *strings.Builder, c *Chunk, name string) {
	fmt.Fprintf(sb, "== %s ==\n", name)
	if len(c.Constants) > 0 {
		fmt.Fprintf(sb, "; constants:\n")
		for i, k := range c.Constants {
			fmt.Fprintf(sb, ";   [%3d] %s\n", i, describeConstant(k))
		}
	}

	offset := 0
	for offset < len(c.Code) {
		offset, _ = disassembleInstruction(sb, c, offset)
	}
	sb.WriteString("\n")

	for _, k := range c.Constants {
		if k.Kind == ConstFunction {
			disassembleChunk(sb, k.Function, fmt.Sprintf("fn %s", nonEmpty(k.Function.Name, "<anonymous>")))
		}
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func describeConstant(k Constant) string {
	switch k.Kind {
	case ConstNumber:
		return strconv.FormatFloat(k.Number, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(k.Str)
	case ConstFunction:
		return fmt.Sprintf("<fn %s>", nonEmpty(k.Function.Name, "anonymous"))
	default:
		return "?"
	}
}

// disassembleInstruction writes one line for the instruction at offset
// and returns the offset of the next instruction.
func disassembleInstruction(sb *strings.Builder, c *Chunk, offset int) (next int, length int) {
	op := Opcode(c.Code[offset])
	line := c.Lines[offset]
	fmt.Fprintf(sb, "%04d %4d  %-14s", offset, line, op.String())

	switch op {
	case OpConstant, OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue,
		OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpGetProperty, OpSetProperty,
		OpCall, OpClass, OpMethod, OpGetSuper:
		operand := c.Code[offset+1]
		fmt.Fprintf(sb, " %d", operand)
		if isConstOperand(op) {
			fmt.Fprintf(sb, " ; %s", describeConstant(c.Constants[operand]))
		}
		sb.WriteString("\n")
		return offset + 2, 2

	case OpInvoke, OpSuperInvoke:
		nameIdx := c.Code[offset+1]
		argc := c.Code[offset+2]
		fmt.Fprintf(sb, " %d %d ; %s, %d args\n", nameIdx, argc, describeConstant(c.Constants[nameIdx]), argc)
		return offset + 3, 3

	case OpJump, OpJumpIfFalse:
		delta := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		fmt.Fprintf(sb, " -> %04d\n", offset+3+delta)
		return offset + 3, 3

	case OpLoop:
		delta := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		fmt.Fprintf(sb, " -> %04d\n", offset+3-delta)
		return offset + 3, 3

	case OpClosure:
		fnIdx := c.Code[offset+1]
		fmt.Fprintf(sb, " %d ; %s\n", fnIdx, describeConstant(c.Constants[fnIdx]))
		next = offset + 2
		if c.Constants[fnIdx].Kind == ConstFunction {
			upvalueCount := c.Constants[fnIdx].Function.UpvalueCount
			for i := 0; i < upvalueCount; i++ {
				isLocal := c.Code[next]
				index := c.Code[next+1]
				kind := "upvalue"
				if isLocal == 1 {
					kind = "local"
				}
				fmt.Fprintf(sb, "%04d      |                 %s %d\n", next, kind, index)
				next += 2
			}
		}
		return next, next - offset

	default:
		sb.WriteString("\n")
		return offset + 1, 1
	}
}

func isConstOperand(op Opcode) bool {
	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpGetProperty,
		OpSetProperty, OpClass, OpMethod, OpGetSuper:
		return true
	default:
		return false
	}
}
