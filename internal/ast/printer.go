package ast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Print renders a program (the top-level declaration list) as a single
// s-expression string, one line per top-level declaration — the `dump-ast`
// CLI mode's default rendering (spec §6.2).
func Print(program []Decl) string {
	var b strings.Builder
	for _, d := range program {
		b.WriteString(sexprDecl(d))
		b.WriteByte('\n')
	}
	return b.String()
}

func sexprDecl(d Decl) string {
	switch n := d.(type) {
	case *ClassDecl:
		var methods []string
		for _, m := range n.Methods {
			methods = append(methods, sexprDecl(m))
		}
		super := "nil"
		if n.Superclass != nil {
			super = n.Superclass.Name
		}
		return paren("class", n.Name, super, paren("methods", methods...))
	case *FunDecl:
		var params []string
		for _, p := range n.Params {
			params = append(params, p.Name)
		}
		var body []string
		for _, s := range n.Body {
			body = append(body, sexprDecl(s))
		}
		return paren("fun", n.Name, paren("params", params...), paren("body", body...))
	case *VarDecl:
		if n.Init == nil {
			return paren("var", n.Name)
		}
		return paren("var", n.Name, sexprExpr(n.Init))
	case *StmtDecl:
		return sexprStmt(n.Stmt)
	default:
		return fmt.Sprintf("<unknown-decl %T>", d)
	}
}

func sexprStmt(s Stmt) string {
	switch n := s.(type) {
	case *ExprStmt:
		return sexprExpr(n.Expr)
	case *PrintStmt:
		return paren("print", sexprExpr(n.Expr))
	case *ReturnStmt:
		if n.Value == nil {
			return "(return)"
		}
		return paren("return", sexprExpr(n.Value))
	case *BlockStmt:
		var decls []string
		for _, d := range n.Decls {
			decls = append(decls, sexprDecl(d))
		}
		return paren("block", decls...)
	case *IfStmt:
		if n.Else == nil {
			return paren("if", sexprExpr(n.Cond), sexprStmt(n.Then))
		}
		return paren("if", sexprExpr(n.Cond), sexprStmt(n.Then), sexprStmt(n.Else))
	case *WhileStmt:
		return paren("while", sexprExpr(n.Cond), sexprStmt(n.Body))
	default:
		return fmt.Sprintf("<unknown-stmt %T>", s)
	}
}

func sexprExpr(e Expr) string {
	switch n := e.(type) {
	case *Literal:
		switch n.Kind {
		case LiteralNumber:
			return formatNumber(n.Number)
		case LiteralString:
			return strconv.Quote(n.Str)
		case LiteralBool:
			if n.Bool {
				return "true"
			}
			return "false"
		default:
			return "nil"
		}
	case *Grouping:
		return paren("group", sexprExpr(n.Inner))
	case *Unary:
		return paren(unaryOpName(n.Op), sexprExpr(n.Operand))
	case *Binary:
		return paren(binaryOpName(n.Op), sexprExpr(n.Left), sexprExpr(n.Right))
	case *Logical:
		return paren(logicalOpName(n.Op), sexprExpr(n.Left), sexprExpr(n.Right))
	case *Variable:
		return n.Name
	case *Assign:
		return paren("=", n.Name, sexprExpr(n.Value))
	case *Call:
		var args []string
		for _, a := range n.Args {
			args = append(args, sexprExpr(a))
		}
		return paren("call", append([]string{sexprExpr(n.Callee)}, args...)...)
	case *Get:
		return paren("get", sexprExpr(n.Object), n.Name)
	case *Set:
		return paren("set", sexprExpr(n.Object), n.Name, sexprExpr(n.Value))
	case *This:
		return "this"
	case *Super:
		return paren("super", n.Method)
	default:
		return fmt.Sprintf("<unknown-expr %T>", e)
	}
}

func paren(head string, parts ...string) string {
	if len(parts) == 0 {
		return "(" + head + ")"
	}
	return "(" + head + " " + strings.Join(parts, " ") + ")"
}

func unaryOpName(op UnaryOp) string {
	switch op {
	case UnaryNegate:
		return "-"
	case UnaryNot:
		return "!"
	default:
		return "?"
	}
}

func binaryOpName(op BinaryOp) string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinEqual:
		return "=="
	case BinNotEqual:
		return "!="
	case BinLess:
		return "<"
	case BinLessEqual:
		return "<="
	case BinGreater:
		return ">"
	case BinGreaterEqual:
		return ">="
	default:
		return "?"
	}
}

func logicalOpName(op LogicalOp) string {
	if op == LogicalAnd {
		return "and"
	}
	return "or"
}

// formatNumber matches spec §6.5's printed-value format: integral values
// print without a decimal part, non-integral values print with enough
// precision to roundtrip.
func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// jsonNode is the generic shape every node marshals to for the `dump-ast
// --json` rendering: a type tag plus a flat field map, recursively applied
// to child nodes.
type jsonNode map[string]any

// PrintJSON renders a program as a JSON array of declaration nodes, each
// tagged under "type" by a short node-kind name ("Class", "Var", "If", ...).
func PrintJSON(program []Decl) ([]byte, error) {
	var nodes []jsonNode
	for _, d := range program {
		nodes = append(nodes, jsonDecl(d))
	}
	return json.MarshalIndent(nodes, "", "  ")
}

func jsonDecl(d Decl) jsonNode {
	switch n := d.(type) {
	case *ClassDecl:
		var methods []jsonNode
		for _, m := range n.Methods {
			methods = append(methods, jsonDecl(m))
		}
		super := any(nil)
		if n.Superclass != nil {
			super = n.Superclass.Name
		}
		return jsonNode{"type": "Class", "name": n.Name, "superclass": super, "methods": methods}
	case *FunDecl:
		var params []string
		for _, p := range n.Params {
			params = append(params, p.Name)
		}
		var body []jsonNode
		for _, s := range n.Body {
			body = append(body, jsonDecl(s))
		}
		return jsonNode{"type": "Fun", "name": n.Name, "params": params, "body": body}
	case *VarDecl:
		node := jsonNode{"type": "Var", "name": n.Name}
		if n.Init != nil {
			node["init"] = jsonExpr(n.Init)
		}
		return node
	case *StmtDecl:
		return jsonStmt(n.Stmt)
	default:
		return jsonNode{"type": fmt.Sprintf("%T", d)}
	}
}

func jsonStmt(s Stmt) jsonNode {
	switch n := s.(type) {
	case *ExprStmt:
		return jsonNode{"type": "ExprStmt", "expr": jsonExpr(n.Expr)}
	case *PrintStmt:
		return jsonNode{"type": "Print", "expr": jsonExpr(n.Expr)}
	case *ReturnStmt:
		node := jsonNode{"type": "Return"}
		if n.Value != nil {
			node["value"] = jsonExpr(n.Value)
		}
		return node
	case *BlockStmt:
		var decls []jsonNode
		for _, d := range n.Decls {
			decls = append(decls, jsonDecl(d))
		}
		return jsonNode{"type": "Block", "decls": decls}
	case *IfStmt:
		node := jsonNode{"type": "If", "cond": jsonExpr(n.Cond), "then": jsonStmt(n.Then)}
		if n.Else != nil {
			node["else"] = jsonStmt(n.Else)
		}
		return node
	case *WhileStmt:
		return jsonNode{"type": "While", "cond": jsonExpr(n.Cond), "body": jsonStmt(n.Body)}
	default:
		return jsonNode{"type": fmt.Sprintf("%T", s)}
	}
}

func jsonExpr(e Expr) jsonNode {
	base := jsonNode{"id": int64(e.ID())}
	switch n := e.(type) {
	case *Literal:
		base["type"] = "Literal"
		switch n.Kind {
		case LiteralNumber:
			base["value"] = n.Number
		case LiteralString:
			base["value"] = n.Str
		case LiteralBool:
			base["value"] = n.Bool
		default:
			base["value"] = nil
		}
	case *Grouping:
		base["type"] = "Grouping"
		base["inner"] = jsonExpr(n.Inner)
	case *Unary:
		base["type"] = "Unary"
		base["op"] = unaryOpName(n.Op)
		base["operand"] = jsonExpr(n.Operand)
	case *Binary:
		base["type"] = "Binary"
		base["op"] = binaryOpName(n.Op)
		base["left"] = jsonExpr(n.Left)
		base["right"] = jsonExpr(n.Right)
	case *Logical:
		base["type"] = "Logical"
		base["op"] = logicalOpName(n.Op)
		base["left"] = jsonExpr(n.Left)
		base["right"] = jsonExpr(n.Right)
	case *Variable:
		base["type"] = "Variable"
		base["name"] = n.Name
	case *Assign:
		base["type"] = "Assign"
		base["name"] = n.Name
		base["value"] = jsonExpr(n.Value)
	case *Call:
		base["type"] = "Call"
		base["callee"] = jsonExpr(n.Callee)
		var args []jsonNode
		for _, a := range n.Args {
			args = append(args, jsonExpr(a))
		}
		base["args"] = args
	case *Get:
		base["type"] = "Get"
		base["object"] = jsonExpr(n.Object)
		base["name"] = n.Name
	case *Set:
		base["type"] = "Set"
		base["object"] = jsonExpr(n.Object)
		base["name"] = n.Name
		base["value"] = jsonExpr(n.Value)
	case *This:
		base["type"] = "This"
	case *Super:
		base["type"] = "Super"
		base["method"] = n.Method
	default:
		base["type"] = fmt.Sprintf("%T", e)
	}
	return base
}
