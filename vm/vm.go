package vm

import (
	"github.com/rakugaki/rakugaki/haku"
)

// ---------------------------------------------------------------------------
// The virtual machine
// ---------------------------------------------------------------------------

// Limits bounds everything a brush run may consume. All of them exist so a
// hostile brush can be run without taking the server down with it.
type Limits struct {
	StackCapacity     int
	CallStackCapacity int
	RefCapacity       int
	Fuel              int
	Memory            int
}

// CallFrame is one entry of the call stack. Bottom is the operand stack
// index of the frame's first argument; the callee sits right beneath it.
type CallFrame struct {
	Closure *Closure
	ChunkID uint32
	PC      uint16
	Bottom  int
}

// Vm executes compiled brush bytecode. It is not safe for concurrent use;
// every session owns its own instance.
type Vm struct {
	limits    Limits
	stack     []Value
	callStack []CallFrame
	refs      []Ref
	defs      []Value
	fuel      int
	memory    Budget
}

// NewVm creates a VM with fresh resources.
func NewVm(limits Limits) *Vm {
	return &Vm{
		limits:    limits,
		stack:     make([]Value, 0, limits.StackCapacity),
		callStack: make([]CallFrame, 0, limits.CallStackCapacity),
		fuel:      limits.Fuel,
		memory:    NewBudget(limits.Memory),
	}
}

// Reset clears all state, including definitions, and refills fuel and
// memory. SetDefCount must be called again afterwards.
func (vm *Vm) Reset() {
	vm.stack = vm.stack[:0]
	vm.callStack = vm.callStack[:0]
	vm.refs = vm.refs[:0]
	vm.defs = nil
	vm.fuel = vm.limits.Fuel
	vm.memory = NewBudget(vm.limits.Memory)
}

// SetDefCount sizes the definition value table. New slots hold Nil.
func (vm *Vm) SetDefCount(n int) {
	vm.defs = make([]Value, n)
}

// RemainingFuel returns the fuel left after the last run.
func (vm *Vm) RemainingFuel() int { return vm.fuel }

// ConsumeFuel charges n units of fuel. The renderer shares the brush's fuel
// through this.
func (vm *Vm) ConsumeFuel(n int) *Exception {
	if vm.fuel < n {
		vm.fuel = 0
		return errOutOfFuel
	}
	vm.fuel -= n
	return nil
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

// Image is a snapshot of the VM's state. Restoring it rolls back everything
// allocated or consumed since the snapshot was taken.
type Image struct {
	refCount   int
	defs       []Value
	memoryUsed int
}

// Image snapshots the VM between runs. The operand and call stacks must be
// empty when the snapshot is taken.
func (vm *Vm) Image() Image {
	defs := make([]Value, len(vm.defs))
	copy(defs, vm.defs)
	return Image{
		refCount:   len(vm.refs),
		defs:       defs,
		memoryUsed: vm.memory.Used(),
	}
}

// RestoreImage rolls the VM back to a snapshot and refills fuel.
func (vm *Vm) RestoreImage(image Image) {
	vm.stack = vm.stack[:0]
	vm.callStack = vm.callStack[:0]
	vm.refs = vm.refs[:image.refCount]
	vm.defs = make([]Value, len(image.defs))
	copy(vm.defs, image.defs)
	vm.fuel = vm.limits.Fuel
	vm.memory.Restore(image.memoryUsed)
}

// ---------------------------------------------------------------------------
// Heap access
// ---------------------------------------------------------------------------

// CreateRef allocates a heap object, charging the ref and memory limits.
// Allocation also burns fuel in proportion to the object's size, so building
// a huge list costs more than pushing a handful of scalars.
func (vm *Vm) CreateRef(ref Ref) (RefID, *Exception) {
	if len(vm.refs) >= vm.limits.RefCapacity {
		return 0, newException(OutOfMemory, "too many value allocations")
	}
	cost := ref.memoryCost()
	if exc := vm.ConsumeFuel(cost / valueCost); exc != nil {
		return 0, exc
	}
	if !vm.memory.Charge(cost) {
		return 0, errOutOfMemory
	}
	vm.refs = append(vm.refs, ref)
	return RefID(len(vm.refs) - 1), nil
}

// Deref resolves a heap reference. It returns nil for ids that are out of
// bounds, which only happens with corrupt bytecode.
func (vm *Vm) Deref(id RefID) *Ref {
	if int(id) >= len(vm.refs) {
		return nil
	}
	return &vm.refs[id]
}

// DerefValue resolves a value to its heap object if it is a ref.
func (vm *Vm) DerefValue(v Value) *Ref {
	id, ok := v.Ref()
	if !ok {
		return nil
	}
	return vm.Deref(id)
}

func (vm *Vm) derefClosure(v Value) *Closure {
	ref := vm.DerefValue(v)
	if ref == nil || ref.Kind != RefClosure {
		return nil
	}
	return ref.Closure
}

// ---------------------------------------------------------------------------
// Stack discipline
// ---------------------------------------------------------------------------

func (vm *Vm) push(v Value) *Exception {
	if len(vm.stack) >= vm.limits.StackCapacity {
		return errStackOverflow
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *Vm) pop() (Value, *Exception) {
	if len(vm.stack) == 0 {
		return Value{}, newException(Panic, "operand stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Run calls a closure with the given arguments and interprets bytecode until
// it returns. Any exception leaves the VM in an unspecified but safe state;
// restore an image before running again.
func (vm *Vm) Run(chunks []*haku.Chunk, closureID RefID, args ...Value) (Value, error) {
	ref := vm.Deref(closureID)
	if ref == nil || ref.Kind != RefClosure {
		return Value{}, newException(Panic, "Run expects a closure ref")
	}
	closure := ref.Closure
	if int(closure.ParamCount) != len(args) {
		return Value{}, newException(ArityMismatch,
			"function expects a different number of arguments")
	}

	if err := vm.push(RefValue(closureID)); err != nil {
		return Value{}, err
	}
	for _, arg := range args {
		if err := vm.push(arg); err != nil {
			return Value{}, err
		}
	}
	vm.callStack = append(vm.callStack, CallFrame{
		Closure: closure,
		ChunkID: closure.Start.ChunkID,
		PC:      closure.Start.Offset,
		Bottom:  len(vm.stack) - len(args),
	})

	result, err := vm.interpret(chunks)
	if err != nil {
		return Value{}, err
	}
	return result, nil
}

func (vm *Vm) interpret(chunks []*haku.Chunk) (Value, *Exception) {
	for {
		if vm.fuel <= 0 {
			return Value{}, errOutOfFuel
		}
		vm.fuel--

		frame := &vm.callStack[len(vm.callStack)-1]
		if int(frame.ChunkID) >= len(chunks) {
			return Value{}, newException(Panic, "chunk id out of bounds")
		}
		chunk := chunks[frame.ChunkID]
		if !chunk.InBounds(frame.PC) {
			return Value{}, newException(Panic, "program counter out of bounds")
		}

		opcode := haku.Opcode(chunk.ReadU8(&frame.PC))
		switch opcode {
		case haku.OpNil:
			if err := vm.push(NilValue()); err != nil {
				return Value{}, err
			}
		case haku.OpFalse:
			if err := vm.push(BooleanValue(false)); err != nil {
				return Value{}, err
			}
		case haku.OpTrue:
			if err := vm.push(BooleanValue(true)); err != nil {
				return Value{}, err
			}
		case haku.OpNumber:
			if err := vm.push(NumberValue(chunk.ReadF32(&frame.PC))); err != nil {
				return Value{}, err
			}

		case haku.OpLocal:
			index := frame.Bottom + int(chunk.ReadU8(&frame.PC))
			if index >= len(vm.stack) {
				return Value{}, newException(Panic, "local index out of bounds")
			}
			if err := vm.push(vm.stack[index]); err != nil {
				return Value{}, err
			}
		case haku.OpSetLocal:
			index := frame.Bottom + int(chunk.ReadU8(&frame.PC))
			value, err := vm.pop()
			if err != nil {
				return Value{}, err
			}
			if index >= len(vm.stack) {
				return Value{}, newException(Panic, "local index out of bounds")
			}
			vm.stack[index] = value
		case haku.OpCapture:
			index := int(chunk.ReadU8(&frame.PC))
			if index >= len(frame.Closure.Captures) {
				return Value{}, newException(Panic, "capture index out of bounds")
			}
			if err := vm.push(frame.Closure.Captures[index]); err != nil {
				return Value{}, err
			}

		case haku.OpDef:
			index := int(chunk.ReadU16(&frame.PC))
			if index >= len(vm.defs) {
				return Value{}, newException(Panic, "def index out of bounds")
			}
			if err := vm.push(vm.defs[index]); err != nil {
				return Value{}, err
			}
		case haku.OpSetDef:
			index := int(chunk.ReadU16(&frame.PC))
			value, err := vm.pop()
			if err != nil {
				return Value{}, err
			}
			if index >= len(vm.defs) {
				return Value{}, newException(Panic, "def index out of bounds")
			}
			vm.defs[index] = value

		case haku.OpDropLet:
			count := int(chunk.ReadU8(&frame.PC))
			result, err := vm.pop()
			if err != nil {
				return Value{}, err
			}
			if len(vm.stack) < count {
				return Value{}, newException(Panic, "let binding underflow")
			}
			vm.stack = vm.stack[:len(vm.stack)-count]
			if err := vm.push(result); err != nil {
				return Value{}, err
			}

		case haku.OpFunction:
			paramCount := chunk.ReadU8(&frame.PC)
			then := chunk.ReadU16(&frame.PC)
			bodyStart := frame.PC

			metaPC := then
			if !chunk.InBounds(metaPC) {
				return Value{}, newException(Panic, "function metadata out of bounds")
			}
			localCount := chunk.ReadU8(&metaPC)
			captureCount := int(chunk.ReadU8(&metaPC))
			captures := make([]Value, 0, captureCount)
			for i := 0; i < captureCount; i++ {
				source := chunk.ReadU8(&metaPC)
				index := int(chunk.ReadU8(&metaPC))
				switch source {
				case haku.CaptureLocal:
					at := frame.Bottom + index
					if at >= len(vm.stack) {
						return Value{}, newException(Panic, "captured local out of bounds")
					}
					captures = append(captures, vm.stack[at])
				case haku.CaptureCapture:
					if index >= len(frame.Closure.Captures) {
						return Value{}, newException(Panic, "captured capture out of bounds")
					}
					captures = append(captures, frame.Closure.Captures[index])
				default:
					return Value{}, newException(Panic, "invalid capture source")
				}
			}

			id, exc := vm.CreateRef(Ref{Kind: RefClosure, Closure: &Closure{
				Start:      BytecodeLoc{ChunkID: frame.ChunkID, Offset: bodyStart},
				ParamCount: paramCount,
				LocalCount: localCount,
				Captures:   captures,
			}})
			if exc != nil {
				return Value{}, exc
			}
			if err := vm.push(RefValue(id)); err != nil {
				return Value{}, err
			}
			frame.PC = metaPC

		case haku.OpJump:
			frame.PC = chunk.ReadU16(&frame.PC)
		case haku.OpJumpIfNot:
			target := chunk.ReadU16(&frame.PC)
			condition, err := vm.pop()
			if err != nil {
				return Value{}, err
			}
			if !condition.Truthy() {
				frame.PC = target
			}

		case haku.OpCall:
			argCount := int(chunk.ReadU8(&frame.PC))
			calleeAt := len(vm.stack) - argCount - 1
			if calleeAt < 0 {
				return Value{}, newException(Panic, "call underflow")
			}
			closure := vm.derefClosure(vm.stack[calleeAt])
			if closure == nil {
				return Value{}, newException(TypeMismatch,
					"this value cannot be called; only functions can")
			}
			if int(closure.ParamCount) != argCount {
				return Value{}, newException(ArityMismatch,
					"function expects a different number of arguments")
			}
			if len(vm.callStack) >= vm.limits.CallStackCapacity {
				return Value{}, errTooMuchRecursion
			}
			vm.callStack = append(vm.callStack, CallFrame{
				Closure: closure,
				ChunkID: closure.Start.ChunkID,
				PC:      closure.Start.Offset,
				Bottom:  calleeAt + 1,
			})

		case haku.OpTailCall:
			argCount := int(chunk.ReadU8(&frame.PC))
			calleeAt := len(vm.stack) - argCount - 1
			if calleeAt < frame.Bottom-1 {
				return Value{}, newException(Panic, "tail call underflow")
			}
			closure := vm.derefClosure(vm.stack[calleeAt])
			if closure == nil {
				return Value{}, newException(TypeMismatch,
					"this value cannot be called; only functions can")
			}
			if int(closure.ParamCount) != argCount {
				return Value{}, newException(ArityMismatch,
					"function expects a different number of arguments")
			}
			// Slide the callee and its arguments down over the current
			// frame and reuse it, so recursion in tail position runs in
			// constant call stack space.
			copy(vm.stack[frame.Bottom-1:], vm.stack[calleeAt:])
			vm.stack = vm.stack[:frame.Bottom+argCount]
			frame.Closure = closure
			frame.ChunkID = closure.Start.ChunkID
			frame.PC = closure.Start.Offset

		case haku.OpSystem:
			index := chunk.ReadU8(&frame.PC)
			argCount := int(chunk.ReadU8(&frame.PC))
			if len(vm.stack) < argCount {
				return Value{}, newException(Panic, "system call underflow")
			}
			fn := systems[index]
			if fn == nil {
				return Value{}, newException(Panic, "invalid system function")
			}
			args := vm.stack[len(vm.stack)-argCount:]
			result, exc := fn(vm, args)
			if exc != nil {
				return Value{}, exc
			}
			vm.stack = vm.stack[:len(vm.stack)-argCount]
			if err := vm.push(result); err != nil {
				return Value{}, err
			}

		case haku.OpReturn:
			result, err := vm.pop()
			if err != nil {
				return Value{}, err
			}
			bottom := frame.Bottom
			vm.callStack = vm.callStack[:len(vm.callStack)-1]
			if bottom-1 < 0 || bottom-1 > len(vm.stack) {
				return Value{}, newException(Panic, "return underflow")
			}
			vm.stack = vm.stack[:bottom-1]
			if len(vm.callStack) == 0 {
				return result, nil
			}
			if err := vm.push(result); err != nil {
				return Value{}, err
			}

		default:
			return Value{}, newException(Panic, "invalid opcode")
		}
	}
}
