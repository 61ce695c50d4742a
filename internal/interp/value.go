package interp

import (
	"fmt"
	"strconv"

	"github.com/tallowlang/lox/internal/ast"
)

// Values are represented with plain Go types wherever a one-to-one native
// mapping exists — float64, string, bool, untyped nil — and pointers to
// the four reference types below otherwise. This mirrors the teacher
// corpus's tree-walkers (e.g. the Rust reference's `Value` enum): tag by
// Go dynamic type instead of a hand-rolled tag field, since `any` already
// carries one.

// Function is a user-defined Lox function or method, closed over the
// environment active at its declaration.
type Function struct {
	Decl          *ast.FunDecl
	Closure       *Environment
	IsInitializer bool
}

func (f *Function) Arity() int { return len(f.Decl.Params) }
func (f *Function) String() string {
	if f.Decl.Name == "" {
		return "<fn>"
	}
	return fmt.Sprintf("<fn %s>", f.Decl.Name)
}

// Bind returns a copy of f whose closure additionally defines `this` as
// instance — the mechanism that turns an unbound method into a bound one
// at property-access time (spec §4.4 "Property access").
func (f *Function) Bind(instance *Instance) *Function {
	env := NewEnvironment(f.Closure)
	env.Define("this", instance)
	return &Function{Decl: f.Decl, Closure: env, IsInitializer: f.IsInitializer}
}

// NativeFunction is a builtin such as clock, implemented in Go rather
// than compiled from Lox source.
type NativeFunction struct {
	Name string
	Ar   int
	Fn   func(args []any) (any, error)
}

func (n *NativeFunction) Arity() int     { return n.Ar }
func (n *NativeFunction) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// Class is a Lox class: a name, an optional superclass, and a flat
// method table populated once at declaration time (spec §3.7).
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*Function
}

func (c *Class) String() string { return c.Name }

// FindMethod walks the superclass chain looking up name.
func (c *Class) FindMethod(name string) (*Function, bool) {
	if f, ok := c.Methods[name]; ok {
		return f, true
	}
	if c.Superclass != nil {
		return c.Superclass.FindMethod(name)
	}
	return nil, false
}

// Instance is a Lox object: a class pointer and a mutable field table
// created lazily on first assignment (spec §3.7).
type Instance struct {
	Class  *Class
	Fields map[string]any
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[string]any)}
}

func (i *Instance) String() string { return fmt.Sprintf("%s instance", i.Class.Name) }

// Get reads a field, falling back to a bound method if no field of that
// name exists (spec §4.4 "Property access").
func (i *Instance) Get(name string) (any, bool) {
	if v, ok := i.Fields[name]; ok {
		return v, true
	}
	if m, ok := i.Class.FindMethod(name); ok {
		return m.Bind(i), true
	}
	return nil, false
}

func (i *Instance) Set(name string, value any) {
	i.Fields[name] = value
}

// isTruthy implements spec §3.5: everything is truthy except false and nil.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// isEqual implements spec §3.5's tag-then-payload equality: numbers by
// value, strings by content, booleans by identity, nil equals only nil,
// and functions/classes/instances by reference identity.
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
	case *Function:
		bv, ok := b.(*Function)
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
	default:
		return false
	}
}

// stringify renders v per spec §6.5 — the format shared, byte-for-byte,
// by all three backends.
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
	case *Function:
		return x.String()
	case *NativeFunction:
		return x.String()
	case *Class:
		return x.String()
	case *Instance:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
