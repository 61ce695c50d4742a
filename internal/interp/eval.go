package interp

import (
	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
)

func (it *Interp) eval(e ast.Expr) (any, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return it.evalLiteral(n), nil
	case *ast.Grouping:
		return it.eval(n.Inner)
	case *ast.Unary:
		return it.evalUnary(n)
	case *ast.Binary:
		return it.evalBinary(n)
	case *ast.Logical:
		return it.evalLogical(n)
	case *ast.Variable:
		return it.lookupVariable(n.Name, n.ID(), n.Span())
	case *ast.Assign:
		return it.evalAssign(n)
	case *ast.Call:
		return it.evalCall(n)
	case *ast.Get:
		return it.evalGet(n)
	case *ast.Set:
		return it.evalSet(n)
	case *ast.This:
		return it.lookupVariable("this", n.ID(), n.Span())
	case *ast.Super:
		return it.evalSuper(n)
	default:
		return nil, it.runtimeErr(e.Span(), "internal error: unknown expression type %T", e)
	}
}

func (it *Interp) evalLiteral(n *ast.Literal) any {
	switch n.Kind {
	case ast.LiteralNumber:
		return n.Number
	case ast.LiteralString:
		return n.Str
	case ast.LiteralBool:
		return n.Bool
	default:
		return nil
	}
}

func (it *Interp) evalUnary(n *ast.Unary) (any, error) {
	operand, err := it.eval(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.UnaryNegate:
		f, ok := operand.(float64)
		if !ok {
			return nil, it.runtimeErr(n.OpSpan, "Operand must be a number.")
		}
		return -f, nil
	case ast.UnaryNot:
		return !isTruthy(operand), nil
	default:
		return nil, it.runtimeErr(n.OpSpan, "internal error: unknown unary operator")
	}
}

func (it *Interp) evalLogical(n *ast.Logical) (any, error) {
	left, err := it.eval(n.Left)
	if err != nil {
		return nil, err
	}
	if n.Op == ast.LogicalOr {
		if isTruthy(left) {
			return left, nil
		}
	} else if !isTruthy(left) {
		return left, nil
	}
	return it.eval(n.Right)
}

func (it *Interp) evalBinary(n *ast.Binary) (any, error) {
	left, err := it.eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := it.eval(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case ast.BinEqual:
		return isEqual(left, right), nil
	case ast.BinNotEqual:
		return !isEqual(left, right), nil
	case ast.BinAdd:
		if lf, ok := left.(float64); ok {
			if rf, ok := right.(float64); ok {
				return lf + rf, nil
			}
		}
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
		return nil, it.runtimeErr(n.OpSpan, "Operands must be two numbers or two strings.")
	}

	lf, lok := left.(float64)
	rf, rok := right.(float64)
	if !lok || !rok {
		return nil, it.runtimeErr(n.OpSpan, "Operands must be numbers.")
	}
	switch n.Op {
	case ast.BinSub:
		return lf - rf, nil
	case ast.BinMul:
		return lf * rf, nil
	case ast.BinDiv:
		return lf / rf, nil
	case ast.BinLess:
		return lf < rf, nil
	case ast.BinLessEqual:
		return lf <= rf, nil
	case ast.BinGreater:
		return lf > rf, nil
	case ast.BinGreaterEqual:
		return lf >= rf, nil
	default:
		return nil, it.runtimeErr(n.OpSpan, "internal error: unknown binary operator")
	}
}

// lookupVariable resolves name per spec §4.4: if the resolver recorded a
// scope distance for id, jump exactly that many links and fail fast if
// the name isn't there (an internal invariant violation, not a normal
// runtime error); otherwise walk the full chain from globals.
func (it *Interp) lookupVariable(name string, id ast.ExprID, span diag.Span) (any, error) {
	if distance, ok := it.resMap[id]; ok {
		v, ok := it.env.GetAt(distance, name)
		if !ok {
			return nil, it.runtimeErr(span, "internal error: resolved variable '%s' missing at depth %d", name, distance)
		}
		return v, nil
	}
	if v, ok := it.globals.Get(name); ok {
		return v, nil
	}
	return nil, it.runtimeErr(span, "Undefined variable '%s'.", name)
}
