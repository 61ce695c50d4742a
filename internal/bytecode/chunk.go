package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// BlobMagic is the 4-byte header spec.md §6.3 requires on every serialized
// bytecode file.
var BlobMagic = [4]byte{'b', 'l', 'o', 'x'}

// ConstantKind tags the variant held by a Constant (spec.md §3.8: "the
// constant pool holds numbers, strings, and nested function descriptors").
type ConstantKind uint8

const (
	ConstNumber ConstantKind = iota
	ConstString
	ConstFunction
)

// Constant is one entry of a chunk's constant pool. Only one of Number,
// Str, Function is meaningful, selected by Kind.
type Constant struct {
	Kind     ConstantKind `cbor:"kind"`
	Number   float64      `cbor:"number,omitempty"`
	Str      string       `cbor:"str,omitempty"`
	Function *Chunk       `cbor:"function,omitempty"`
}

// maxConstants is the one-byte constant-pool index limit spec.md §3.8 sets.
const maxConstants = 256

// Chunk is a function's compiled form: code bytes, constant pool, and a
// per-byte line table (spec.md §3.8). The implicit top-level "script"
// function compiles to a Chunk exactly like any other function.
type Chunk struct {
	Code      []byte     `cbor:"code"`
	Constants []Constant `cbor:"constants"`
	Lines     []int      `cbor:"lines"` // len(Lines) == len(Code)

	Name          string `cbor:"name"`
	Arity         int    `cbor:"arity"`
	UpvalueCount  int    `cbor:"upvalue_count"`
	IsInitializer bool   `cbor:"is_initializer"`
}

// NewChunk returns an empty chunk named name (empty for the top-level
// script chunk).
func NewChunk(name string) *Chunk {
	return &Chunk{Name: name}
}

// Emit appends a single byte at source line and returns its offset.
func (c *Chunk) Emit(b byte, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return offset
}

// EmitOp appends an opcode byte.
func (c *Chunk) EmitOp(op Opcode, line int) int {
	return c.Emit(byte(op), line)
}

// EmitOpByte appends an opcode followed by a single operand byte.
func (c *Chunk) EmitOpByte(op Opcode, operand byte, line int) int {
	offset := c.EmitOp(op, line)
	c.Emit(operand, line)
	return offset
}

// AddConstant appends value to the pool and returns its index, erroring if
// the pool would exceed the one-byte index limit.
func (c *Chunk) AddConstant(value Constant) (byte, error) {
	if len(c.Constants) >= maxConstants {
		return 0, fmt.Errorf("bytecode: chunk %q exceeds %d constants", c.Name, maxConstants)
	}
	idx := byte(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx, nil
}

// AddStringConstant interns a string constant, reusing an existing entry
// if the same string was already added (keeps constant-heavy programs,
// e.g. repeated property names, under the 256-entry cap).
func (c *Chunk) AddStringConstant(s string) (byte, error) {
	for i, k := range c.Constants {
		if k.Kind == ConstString && k.Str == s {
			return byte(i), nil
		}
	}
	return c.AddConstant(Constant{Kind: ConstString, Str: s})
}

// EmitJump appends a jump opcode with a placeholder two-byte offset and
// returns the offset of the first placeholder byte, for PatchJump.
func (c *Chunk) EmitJump(op Opcode, line int) int {
	c.EmitOp(op, line)
	at := len(c.Code)
	c.Emit(0xFF, line)
	c.Emit(0xFF, line)
	return at
}

// PatchJump backpatches the two-byte offset at placeholderOffset to land
// on the current end of the code section.
func (c *Chunk) PatchJump(placeholderOffset int) {
	delta := len(c.Code) - (placeholderOffset + 2)
	c.Code[placeholderOffset] = byte(uint16(delta) >> 8)
	c.Code[placeholderOffset+1] = byte(uint16(delta))
}

// EmitLoop appends a backward OpLoop instruction jumping to loopStart.
func (c *Chunk) EmitLoop(loopStart int, line int) {
	c.EmitOp(OpLoop, line)
	offset := len(c.Code) - loopStart + 2
	c.Emit(byte(uint16(offset)>>8), line)
	c.Emit(byte(uint16(offset)), line)
}

// CurrentOffset returns the current end of the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// Serialize encodes c as the 4-byte "blox" magic followed by a CBOR
// encoding of the chunk; nested function constants recurse automatically
// since Constant.Function is an ordinary struct field (spec.md §4.10).
func Serialize(c *Chunk) ([]byte, error) {
	payload, err := cbor.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("bytecode: encode chunk: %w", err)
	}
	out := make([]byte, 0, 4+len(payload))
	out = append(out, BlobMagic[:]...)
	out = append(out, payload...)
	return out, nil
}

// Deserialize verifies the magic and decodes the CBOR payload back into a
// Chunk (spec.md §6.3: "the VM file loader verifies the magic and rejects
// mismatches").
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("bytecode: truncated file: need at least 4 bytes, got %d", len(data))
	}
	if data[0] != BlobMagic[0] || data[1] != BlobMagic[1] || data[2] != BlobMagic[2] || data[3] != BlobMagic[3] {
		return nil, fmt.Errorf("bytecode: bad magic: expected %q, got %q", BlobMagic[:], data[0:4])
	}
	var c Chunk
	if err := cbor.Unmarshal(data[4:], &c); err != nil {
		return nil, fmt.Errorf("bytecode: decode chunk: %w", err)
	}
	return &c, nil
}
