package interp

import (
	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
)

func (it *Interp) evalAssign(n *ast.Assign) (any, error) {
	value, err := it.eval(n.Value)
	if err != nil {
		return nil, err
	}
	if distance, ok := it.resMap[n.ID()]; ok {
		if !it.env.AssignAt(distance, n.Name, value) {
			return nil, it.runtimeErr(n.TargetSpan, "internal error: resolved assignment target '%s' missing at depth %d", n.Name, distance)
		}
		return value, nil
	}
	if !it.globals.Assign(n.Name, value) {
		return nil, it.runtimeErr(n.TargetSpan, "Undefined variable '%s'.", n.Name)
	}
	return value, nil
}

func (it *Interp) evalGet(n *ast.Get) (any, error) {
	obj, err := it.eval(n.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, it.runtimeErr(n.Span(), "Only instances have properties.")
	}
	v, ok := inst.Get(n.Name)
	if !ok {
		return nil, it.runtimeErr(n.Span(), "Undefined property '%s'.", n.Name)
	}
	return v, nil
}

func (it *Interp) evalSet(n *ast.Set) (any, error) {
	obj, err := it.eval(n.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, it.runtimeErr(n.Span(), "Only instances have fields.")
	}
	value, err := it.eval(n.Value)
	if err != nil {
		return nil, err
	}
	inst.Set(n.Name, value)
	return value, nil
}

func (it *Interp) evalSuper(n *ast.Super) (any, error) {
	distance, ok := it.resMap[n.ID()]
	if !ok {
		return nil, it.runtimeErr(n.Span(), "internal error: 'super' was not resolved")
	}
	scVal, ok := it.env.GetAt(distance, "super")
	if !ok {
		return nil, it.runtimeErr(n.Span(), "internal error: 'super' missing at depth %d", distance)
	}
	thisVal, ok := it.env.GetAt(distance-1, "this")
	if !ok {
		return nil, it.runtimeErr(n.Span(), "internal error: 'this' missing at depth %d", distance-1)
	}
	superclass, ok := scVal.(*Class)
	if !ok {
		return nil, it.runtimeErr(n.Span(), "internal error: 'super' did not resolve to a class")
	}
	instance, ok := thisVal.(*Instance)
	if !ok {
		return nil, it.runtimeErr(n.Span(), "internal error: 'this' did not resolve to an instance")
	}
	method, ok := superclass.FindMethod(n.Method)
	if !ok {
		return nil, it.runtimeErr(n.Span(), "Undefined property '%s'.", n.Method)
	}
	return method.Bind(instance), nil
}

func (it *Interp) evalCall(n *ast.Call) (any, error) {
	calleeVal, err := it.eval(n.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := it.eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	switch callee := calleeVal.(type) {
	case *Function:
		if len(args) != callee.Arity() {
			return nil, it.runtimeErr(n.ParenSpan, "Expected %d arguments but got %d.", callee.Arity(), len(args))
		}
		return it.callFunction(callee, args, n.Span())
	case *NativeFunction:
		if len(args) != callee.Arity() {
			return nil, it.runtimeErr(n.ParenSpan, "Expected %d arguments but got %d.", callee.Arity(), len(args))
		}
		v, err := callee.Fn(args)
		if err != nil {
			return nil, it.runtimeErr(n.Span(), "%s", err.Error())
		}
		return v, nil
	case *Class:
		instance := NewInstance(callee)
		if init, ok := callee.FindMethod("init"); ok {
			if len(args) != init.Arity() {
				return nil, it.runtimeErr(n.ParenSpan, "Expected %d arguments but got %d.", init.Arity(), len(args))
			}
			if _, err := it.callFunction(init.Bind(instance), args, n.Span()); err != nil {
				return nil, err
			}
		} else if len(args) != 0 {
			return nil, it.runtimeErr(n.ParenSpan, "Expected 0 arguments but got %d.", len(args))
		}
		return instance, nil
	default:
		return nil, it.runtimeErr(n.Callee.Span(), "Can only call functions and classes.")
	}
}

// callFunction implements spec §4.4's call sequence: a fresh environment
// parented by the function's closure (not the caller's environment),
// parameters bound by position, the body executed, and the return value
// determined by how the body finished — a `return`, falling off the end
// (nil), or — in an initializer — the bound `this` either way.
func (it *Interp) callFunction(fn *Function, args []any, callSite diag.Span) (any, error) {
	callEnv := NewEnvironment(fn.Closure)
	for i, param := range fn.Decl.Params {
		callEnv.Define(param.Name, args[i])
	}

	name := fn.Decl.Name
	line := diag.PositionOf(it.currentSource, callSite.Offset).Line
	it.frames = append(it.frames, diag.Frame{Name: name, Line: line})
	defer func() { it.frames = it.frames[:len(it.frames)-1] }()

	err := it.execBlock(fn.Decl.Body, callEnv)
	if _, ok := err.(*returnSignal); err != nil && !ok {
		return nil, err
	}

	if fn.IsInitializer {
		this, _ := fn.Closure.GetAt(0, "this")
		return this, nil
	}
	if rs, ok := err.(*returnSignal); ok {
		return rs.Value, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}
