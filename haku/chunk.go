package haku

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Bytecode chunks
// ---------------------------------------------------------------------------

// Opcode is a single bytecode instruction. Operands follow the opcode byte
// in little-endian order.
type Opcode byte

const (
	// OpNil pushes Nil.
	OpNil Opcode = iota
	// OpFalse pushes False.
	OpFalse
	// OpTrue pushes True.
	OpTrue
	// OpNumber (f32) pushes a number constant.
	OpNumber
	// OpLocal (u8) pushes the local at the given frame slot.
	OpLocal
	// OpSetLocal (u8) pops into the given frame slot.
	OpSetLocal
	// OpCapture (u8) pushes the current closure's capture.
	OpCapture
	// OpDef (u16) pushes the definition with the given index.
	OpDef
	// OpSetDef (u16) pops into the definition with the given index.
	OpSetDef
	// OpDropLet (u8) pops the result, drops that many let bindings beneath
	// it, and pushes the result back.
	OpDropLet
	// OpFunction (params u8, then u16) creates a closure. Its body starts
	// right after the operands; `then` points past the body at the
	// function's metadata: local count u8, capture count u8, then capture
	// count pairs of (source u8, index u8). Execution continues after the
	// metadata.
	OpFunction
	// OpJump (u16) jumps to an absolute offset within the chunk.
	OpJump
	// OpJumpIfNot (u16) pops a value and jumps if it is falsy.
	OpJumpIfNot
	// OpCall (u8) calls the closure beneath that many arguments.
	OpCall
	// OpTailCall (u8) calls the closure beneath that many arguments,
	// replacing the current call frame.
	OpTailCall
	// OpSystem (index u8, argc u8) calls a system function.
	OpSystem
	// OpReturn pops the current frame, leaving the result on the stack.
	OpReturn
)

// Capture sources for OpFunction metadata.
const (
	CaptureLocal   = 0
	CaptureCapture = 1
)

// MaxChunkLen is the hard cap on chunk size; all bytecode offsets are u16.
const MaxChunkLen = 1 << 16

// ErrChunkTooBig is reported when compiled bytecode exceeds the chunk
// capacity.
var ErrChunkTooBig = fmt.Errorf("the program is too big")

// Chunk is a byte vector of compiled bytecode.
type Chunk struct {
	Bytes    []byte
	capacity int
}

// NewChunk creates an empty chunk with the given capacity, clamped to
// MaxChunkLen.
func NewChunk(capacity int) *Chunk {
	if capacity > MaxChunkLen {
		capacity = MaxChunkLen
	}
	return &Chunk{capacity: capacity}
}

// Len returns the current length of the chunk.
func (c *Chunk) Len() int { return len(c.Bytes) }

// Offset returns the current write offset.
func (c *Chunk) Offset() uint16 { return uint16(len(c.Bytes)) }

func (c *Chunk) push(bytes ...byte) error {
	if len(c.Bytes)+len(bytes) > c.capacity {
		return ErrChunkTooBig
	}
	c.Bytes = append(c.Bytes, bytes...)
	return nil
}

// EmitOpcode appends an opcode byte.
func (c *Chunk) EmitOpcode(op Opcode) error { return c.push(byte(op)) }

// EmitU8 appends a u8 operand.
func (c *Chunk) EmitU8(v uint8) error { return c.push(v) }

// EmitU16 appends a u16 operand and returns its offset for patching.
func (c *Chunk) EmitU16(v uint16) (uint16, error) {
	at := c.Offset()
	return at, c.push(byte(v), byte(v>>8))
}

// EmitF32 appends an f32 operand.
func (c *Chunk) EmitF32(v float32) error {
	bits := math.Float32bits(v)
	return c.push(byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
}

// PatchU16 overwrites a previously emitted u16 operand.
func (c *Chunk) PatchU16(at uint16, v uint16) {
	binary.LittleEndian.PutUint16(c.Bytes[at:], v)
}

// ReadU8 reads a u8 at pc, advancing it.
func (c *Chunk) ReadU8(pc *uint16) uint8 {
	v := c.Bytes[*pc]
	*pc++
	return v
}

// ReadU16 reads a u16 at pc, advancing it.
func (c *Chunk) ReadU16(pc *uint16) uint16 {
	v := binary.LittleEndian.Uint16(c.Bytes[*pc:])
	*pc += 2
	return v
}

// ReadF32 reads an f32 at pc, advancing it.
func (c *Chunk) ReadF32(pc *uint16) float32 {
	v := binary.LittleEndian.Uint32(c.Bytes[*pc:])
	*pc += 4
	return math.Float32frombits(v)
}

// InBounds reports whether pc points at a valid instruction start.
func (c *Chunk) InBounds(pc uint16) bool { return int(pc) < len(c.Bytes) }
