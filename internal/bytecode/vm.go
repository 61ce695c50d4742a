package bytecode

import (
	"fmt"
	"io"
	"time"

	"github.com/tallowlang/lox/internal/diag"
)

// callFrame is one entry of the VM's explicit call stack (spec.md §4.6):
// the closure being executed, its instruction pointer, and the stack
// index of its slot 0 (the callee/receiver value itself, by convention —
// see Compile's compileFunction).
type callFrame struct {
	closure  *Closure
	ip       int
	slotBase int
}

// VM is the stack-based bytecode interpreter: a value stack, an explicit
// call-frame stack (bounded only by memory, per spec.md §3.9 — no
// recursive Go call underlies frame nesting), a globals table, and an
// open-upvalue list in descending stack-index order.
//
// Grounded on the teacher's pkg/bytecode/vm.go for the overall shape
// (single exported Run entry point, custom-error-as-control-flow for
// error propagation) though the value/capture model is rebuilt from
// scratch for Lox's upvalue-based closures instead of Maggie's
// CaptureCell/ivar-accessor model.
type VM struct {
	stack        []any
	frames       []callFrame
	globals      map[string]any
	openUpvalues []*Upvalue
	out          io.Writer
}

// New creates a VM that writes `print` output to out and defines the
// global native functions (currently just `clock`, matching
// internal/interp.New).
func New(out io.Writer) *VM {
	vm := &VM{globals: make(map[string]any), out: out}
	vm.globals["clock"] = &NativeFunction{
		Name:  "clock",
		Arity: 0,
		Fn: func(args []any) (any, error) {
			return float64(time.Now().UnixNano()) / 1e9, nil
		},
	}
	return vm
}

// Run executes chunk — the top-level script chunk produced by Compile —
// to completion.
func (vm *VM) Run(chunk *Chunk) error {
	closure := &Closure{Proto: &FuncProto{Chunk: chunk}}
	vm.stack = append(vm.stack, closure)
	vm.frames = append(vm.frames, callFrame{closure: closure, slotBase: 0})
	return vm.run()
}

func (vm *VM) push(v any)             { vm.stack = append(vm.stack, v) }
func (vm *VM) pop() any               { v := vm.stack[len(vm.stack)-1]; vm.stack = vm.stack[:len(vm.stack)-1]; return v }
func (vm *VM) peek(distance int) any  { return vm.stack[len(vm.stack)-1-distance] }

func (vm *VM) readByte(chunk *Chunk, frame *callFrame) byte {
	b := chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(chunk *Chunk, frame *callFrame) int {
	hi := chunk.Code[frame.ip]
	lo := chunk.Code[frame.ip+1]
	frame.ip += 2
	return int(hi)<<8 | int(lo)
}

func (vm *VM) constantValue(chunk *Chunk, idx byte) any {
	k := chunk.Constants[idx]
	switch k.Kind {
	case ConstNumber:
		return k.Number
	case ConstString:
		return k.Str
	case ConstFunction:
		return &Closure{Proto: &FuncProto{Chunk: k.Function}}
	default:
		return nil
	}
}

// run is the single fetch-decode-execute loop. Every OP_CALL/OP_INVOKE
// family opcode pushes a new callFrame rather than recursing into run
// itself — the loop always operates on the current top frame, so a Lox
// call stack a thousand frames deep costs no Go stack at all.
func (vm *VM) run() error {
	for {
		frame := &vm.frames[len(vm.frames)-1]
		chunk := frame.closure.Proto.Chunk
		op := Opcode(vm.readByte(chunk, frame))
		line := chunk.Lines[frame.ip-1]

		switch op {
		case OpPop:
			vm.pop()

		case OpConstant:
			idx := vm.readByte(chunk, frame)
			vm.push(vm.constantValue(chunk, idx))
		case OpNil:
			vm.push(nil)
		case OpTrue:
			vm.push(true)
		case OpFalse:
			vm.push(false)

		case OpGetLocal:
			slot := vm.readByte(chunk, frame)
			vm.push(vm.stack[frame.slotBase+int(slot)])
		case OpSetLocal:
			slot := vm.readByte(chunk, frame)
			vm.stack[frame.slotBase+int(slot)] = vm.peek(0)
		case OpGetUpvalue:
			idx := vm.readByte(chunk, frame)
			vm.push(frame.closure.Upvalues[idx].get(vm.stack))
		case OpSetUpvalue:
			idx := vm.readByte(chunk, frame)
			frame.closure.Upvalues[idx].set(vm.stack, vm.peek(0))
		case OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case OpDefineGlobal:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			vm.globals[name] = vm.pop()
		case OpGetGlobal:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			v, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError(line, "Undefined variable '%s'.", name)
			}
			vm.push(v)
		case OpSetGlobal:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			if _, ok := vm.globals[name]; !ok {
				return vm.runtimeError(line, "Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case OpGetProperty:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			inst, ok := vm.peek(0).(*Instance)
			if !ok {
				return vm.runtimeError(line, "Only instances have properties.")
			}
			if v, ok := inst.Fields[name]; ok {
				vm.pop()
				vm.push(v)
				break
			}
			if m, ok := inst.Class.FindMethod(name); ok {
				vm.pop()
				vm.push(&BoundMethod{Receiver: inst, Method: m})
				break
			}
			return vm.runtimeError(line, "Undefined property '%s'.", name)
		case OpSetProperty:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			value := vm.peek(0)
			inst, ok := vm.peek(1).(*Instance)
			if !ok {
				return vm.runtimeError(line, "Only instances have fields.")
			}
			inst.Fields[name] = value
			vm.pop()
			vm.pop()
			vm.push(value)

		case OpAdd:
			if err := vm.binaryAdd(line); err != nil {
				return err
			}
		case OpSub, OpMul, OpDiv:
			if err := vm.binaryArith(op, line); err != nil {
				return err
			}
		case OpNegate:
			n, ok := vm.peek(0).(float64)
			if !ok {
				return vm.runtimeError(line, "Operand must be a number.")
			}
			vm.pop()
			vm.push(-n)

		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(isEqual(a, b))
		case OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(!isEqual(a, b))
		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			if err := vm.compare(op, line); err != nil {
				return err
			}
		case OpNot:
			vm.push(!isTruthy(vm.pop()))

		case OpJump:
			offset := vm.readShort(chunk, frame)
			frame.ip += offset
		case OpJumpIfFalse:
			offset := vm.readShort(chunk, frame)
			if !isTruthy(vm.peek(0)) {
				frame.ip += offset
			}
		case OpLoop:
			offset := vm.readShort(chunk, frame)
			frame.ip -= offset

		case OpCall:
			argc := int(vm.readByte(chunk, frame))
			if err := vm.callValue(vm.peek(argc), argc, line); err != nil {
				return err
			}
		case OpInvoke:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			argc := int(vm.readByte(chunk, frame))
			if err := vm.invoke(name, argc, line); err != nil {
				return err
			}
		case OpSuperInvoke:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			argc := int(vm.readByte(chunk, frame))
			superclass, ok := vm.pop().(*Class)
			if !ok {
				return vm.runtimeError(line, "Superclass must be a class.")
			}
			method, ok := superclass.FindMethod(name)
			if !ok {
				return vm.runtimeError(line, "Undefined property '%s'.", name)
			}
			if err := vm.callClosure(method, argc, line); err != nil {
				return err
			}
		case OpGetSuper:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			superclass, ok := vm.pop().(*Class)
			if !ok {
				return vm.runtimeError(line, "Superclass must be a class.")
			}
			this, ok := vm.pop().(*Instance)
			if !ok {
				return vm.runtimeError(line, "Only instances have a super.")
			}
			method, ok := superclass.FindMethod(name)
			if !ok {
				return vm.runtimeError(line, "Undefined property '%s'.", name)
			}
			vm.push(&BoundMethod{Receiver: this, Method: method})

		case OpClosure:
			fnIdx := vm.readByte(chunk, frame)
			proto := &FuncProto{Chunk: chunk.Constants[fnIdx].Function}
			closure := &Closure{Proto: proto}
			for i := 0; i < proto.Chunk.UpvalueCount; i++ {
				isLocal := vm.readByte(chunk, frame)
				index := vm.readByte(chunk, frame)
				if isLocal == 1 {
					closure.Upvalues = append(closure.Upvalues, vm.captureUpvalue(frame.slotBase+int(index)))
				} else {
					closure.Upvalues = append(closure.Upvalues, frame.closure.Upvalues[index])
				}
			}
			vm.push(closure)

		case OpClass:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			vm.push(&Class{Name: name, Methods: make(map[string]*Closure)})
		case OpInherit:
			subclass, ok := vm.pop().(*Class)
			if !ok {
				return vm.runtimeError(line, "Superclass must be a class.")
			}
			super, ok := vm.peek(0).(*Class)
			if !ok {
				return vm.runtimeError(line, "Superclass must be a class.")
			}
			for name, method := range super.Methods {
				subclass.Methods[name] = method
			}
			subclass.Superclass = super
			vm.push(subclass)
		case OpMethod:
			name := chunk.Constants[vm.readByte(chunk, frame)].Str
			method := vm.pop().(*Closure)
			class := vm.peek(0).(*Class)
			class.Methods[name] = method

		case OpPrint:
			fmt.Fprintln(vm.out, stringify(vm.pop()))

		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotBase)
			returnBase := frame.slotBase
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.stack = vm.stack[:returnBase]
			if len(vm.frames) == 0 {
				return nil
			}
			vm.push(result)

		default:
			return vm.runtimeError(line, "unknown opcode 0x%02X", byte(op))
		}
	}
}

func (vm *VM) binaryAdd(line int) error {
	b, a := vm.peek(0), vm.peek(1)
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			vm.pop()
			vm.pop()
			vm.push(af + bf)
			return nil
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			vm.pop()
			vm.pop()
			vm.push(as + bs)
			return nil
		}
	}
	return vm.runtimeError(line, "Operands must be two numbers or two strings.")
}

func (vm *VM) binaryArith(op Opcode, line int) error {
	bf, bok := vm.peek(0).(float64)
	af, aok := vm.peek(1).(float64)
	if !aok || !bok {
		return vm.runtimeError(line, "Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	switch op {
	case OpSub:
		vm.push(af - bf)
	case OpMul:
		vm.push(af * bf)
	case OpDiv:
		vm.push(af / bf)
	}
	return nil
}

func (vm *VM) compare(op Opcode, line int) error {
	bf, bok := vm.peek(0).(float64)
	af, aok := vm.peek(1).(float64)
	if !aok || !bok {
		return vm.runtimeError(line, "Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	switch op {
	case OpLess:
		vm.push(af < bf)
	case OpLessEqual:
		vm.push(af <= bf)
	case OpGreater:
		vm.push(af > bf)
	case OpGreaterEqual:
		vm.push(af >= bf)
	}
	return nil
}

// callValue dispatches an OP_CALL on whatever value sits at the callee
// slot: a closure, a native function, a class (constructor), or a bound
// method.
func (vm *VM) callValue(callee any, argc int, line int) error {
	switch fn := callee.(type) {
	case *Closure:
		return vm.callClosure(fn, argc, line)
	case *NativeFunction:
		if argc != fn.Arity {
			return vm.runtimeError(line, "Expected %d arguments but got %d.", fn.Arity, argc)
		}
		args := make([]any, argc)
		copy(args, vm.stack[len(vm.stack)-argc:])
		result, err := fn.Fn(args)
		if err != nil {
			return vm.runtimeError(line, "%s", err.Error())
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		vm.push(result)
		return nil
	case *Class:
		instance := NewInstance(fn)
		vm.stack[len(vm.stack)-argc-1] = instance
		if init, ok := fn.FindMethod("init"); ok {
			return vm.callClosure(init, argc, line)
		}
		if argc != 0 {
			return vm.runtimeError(line, "Expected 0 arguments but got %d.", argc)
		}
		return nil
	case *BoundMethod:
		vm.stack[len(vm.stack)-argc-1] = fn.Receiver
		return vm.callClosure(fn.Method, argc, line)
	default:
		return vm.runtimeError(line, "Can only call functions and classes.")
	}
}

func (vm *VM) callClosure(closure *Closure, argc int, line int) error {
	if argc != closure.Proto.Chunk.Arity {
		return vm.runtimeError(line, "Expected %d arguments but got %d.", closure.Proto.Chunk.Arity, argc)
	}
	slotBase := len(vm.stack) - argc - 1
	vm.frames = append(vm.frames, callFrame{closure: closure, slotBase: slotBase})
	return nil
}

// invoke fuses a property lookup with a call (spec.md §4.6): if name
// names a field holding a callable, that value is called; otherwise the
// class's method table is consulted directly without materializing an
// intermediate BoundMethod.
func (vm *VM) invoke(name string, argc int, line int) error {
	receiverPos := len(vm.stack) - argc - 1
	inst, ok := vm.stack[receiverPos].(*Instance)
	if !ok {
		return vm.runtimeError(line, "Only instances have methods.")
	}
	if v, ok := inst.Fields[name]; ok {
		vm.stack[receiverPos] = v
		return vm.callValue(v, argc, line)
	}
	method, ok := inst.Class.FindMethod(name)
	if !ok {
		return vm.runtimeError(line, "Undefined property '%s'.", name)
	}
	return vm.callClosure(method, argc, line)
}

// captureUpvalue returns the open upvalue aliasing stackIndex, reusing an
// existing one if the same slot was already captured, and otherwise
// inserting a new one keeping vm.openUpvalues in descending stack-index
// order (spec.md §4.6).
func (vm *VM) captureUpvalue(stackIndex int) *Upvalue {
	i := 0
	for i < len(vm.openUpvalues) && vm.openUpvalues[i].stackIndex > stackIndex {
		i++
	}
	if i < len(vm.openUpvalues) && vm.openUpvalues[i].stackIndex == stackIndex {
		return vm.openUpvalues[i]
	}
	uv := &Upvalue{stackIndex: stackIndex}
	vm.openUpvalues = append(vm.openUpvalues, nil)
	copy(vm.openUpvalues[i+1:], vm.openUpvalues[i:])
	vm.openUpvalues[i] = uv
	return uv
}

// closeUpvalues promotes every open upvalue at or above minIndex to
// closed, removing it from the open list.
func (vm *VM) closeUpvalues(minIndex int) {
	for len(vm.openUpvalues) > 0 && vm.openUpvalues[len(vm.openUpvalues)-1].stackIndex >= minIndex {
		last := vm.openUpvalues[len(vm.openUpvalues)-1]
		last.close(vm.stack)
		vm.openUpvalues = vm.openUpvalues[:len(vm.openUpvalues)-1]
	}
}

// runtimeError builds a *diag.RuntimeError with a call-stack snapshot,
// innermost frame first (spec.md §7).
func (vm *VM) runtimeError(line int, format string, args ...any) *diag.RuntimeError {
	frames := make([]diag.Frame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		frameLine := line
		if fr.ip-1 >= 0 && fr.ip-1 < len(fr.closure.Proto.Chunk.Lines) {
			frameLine = fr.closure.Proto.Chunk.Lines[fr.ip-1]
		}
		frames = append(frames, diag.Frame{Name: fr.closure.Proto.Chunk.Name, Line: frameLine})
	}
	return &diag.RuntimeError{Line: line, Message: fmt.Sprintf(format, args...), Frames: frames}
}
