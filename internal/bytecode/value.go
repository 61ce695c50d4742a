package bytecode

import (
	"fmt"
	"strconv"
)

// Runtime values mirror internal/interp/value.go's representation —
// plain Go types for the four primitives, pointers to reference types
// otherwise — kept as a separate, independently-maintained model per
// the three-backend architecture rather than shared code.

// FuncProto is a compiled function's static descriptor: its chunk, shared
// by every Closure created from the same `closure` instruction.
type FuncProto struct {
	Chunk *Chunk
}

func (f *FuncProto) String() string {
	if f.Chunk.Name == "" {
		return "<fn>"
	}
	return fmt.Sprintf("<fn %s>", f.Chunk.Name)
}

// Upvalue is a captured-variable cell (spec.md §4.6): open while it still
// aliases a live stack slot, closed once that frame has returned.
type Upvalue struct {
	stackIndex int
	closed     any
	isClosed   bool
}

func (u *Upvalue) get(stack []any) any {
	if u.isClosed {
		return u.closed
	}
	return stack[u.stackIndex]
}

func (u *Upvalue) set(stack []any, v any) {
	if u.isClosed {
		u.closed = v
		return
	}
	stack[u.stackIndex] = v
}

func (u *Upvalue) close(stack []any) {
	u.closed = stack[u.stackIndex]
	u.isClosed = true
}

// Closure is the runtime value for every user function. spec.md §4.6:
// "all user functions, even non-capturing ones, are represented
// uniformly as closures" to avoid a runtime branch on call.
type Closure struct {
	Proto    *FuncProto
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Proto.String() }

// NativeFunction is a builtin such as clock.
type NativeFunction struct {
	Name  string
	Arity int
	Fn    func(args []any) (any, error)
}

func (n *NativeFunction) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// Class is a Lox class: name, optional superclass, and a flat method
// table that already contains any inherited methods copied in by
// OP_INHERIT (spec.md §4.5/§4.6).
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*Closure
}

func (c *Class) String() string { return c.Name }

func (c *Class) FindMethod(name string) (*Closure, bool) {
	if m, ok := c.Methods[name]; ok {
		return m, true
	}
	if c.Superclass != nil {
		return c.Superclass.FindMethod(name)
	}
	return nil, false
}

// Instance is a Lox object.
type Instance struct {
	Class  *Class
	Fields map[string]any
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[string]any)}
}

func (i *Instance) String() string { return fmt.Sprintf("%s instance", i.Class.Name) }

// BoundMethod pairs a receiver with an unbound method closure — the
// value produced by OP_GET_PROPERTY and OP_GET_SUPER when the name
// resolves to a method rather than a field.
type BoundMethod struct {
	Receiver *Instance
	Method   *Closure
}

func (b *BoundMethod) String() string { return b.Method.String() }

func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func isEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case *Closure:
		bv, ok := b.(*Closure)
		return ok && av == bv
	case *Class:
		bv, ok := b.(*Class)
		return ok && av == bv
	case *Instance:
		bv, ok := b.(*Instance)
		return ok && av == bv
	case *NativeFunction:
		bv, ok := b.(*NativeFunction)
		return ok && av == bv
	case *BoundMethod:
		bv, ok := b.(*BoundMethod)
		return ok && av == bv
	default:
		return false
	}
}

// stringify renders v per spec.md §6.5 — byte-for-byte identical to
// internal/interp/value.go's stringify, since the format is normative
// across all backends.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case *Closure:
		return x.String()
	case *NativeFunction:
		return x.String()
	case *Class:
		return x.String()
	case *Instance:
		return x.String()
	case *BoundMethod:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
