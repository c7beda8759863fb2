package ast

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeError reports a malformed tree document
type DecodeError struct {
	Line   int
	Column int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("yaml %d:%d: %s", e.Line, e.Column, e.Msg)
}

func errAt(n *yaml.Node, format string, args ...any) error {
	return &DecodeError{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}

// DecodeYAML reads a program from its YAML form:
//
//	functions:
//	  - name: add
//	    params: [a, b]
//	    body:
//	      - return: {binary: {op: "+", left: a, right: b}}
//	statements:
//	  - println: {string: "hello"}
//
// Bare integers, floats and booleans are literals and bare words are
// variables. Every other expression or statement is a single-key mapping.
// Unknown keys decode to Opaque or OpaqueStmt.
func DecodeYAML(data []byte) (*Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	prog := &Program{}
	if doc.Kind == 0 {
		return prog, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return prog, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, errAt(root, "program must be a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "functions":
			if val.Kind != yaml.SequenceNode {
				return nil, errAt(val, "functions must be a list")
			}
			for _, fn := range val.Content {
				f, err := decodeFunction(fn)
				if err != nil {
					return nil, err
				}
				prog.Functions = append(prog.Functions, f)
			}
		case "statements":
			stmts, err := decodeBlock(val)
			if err != nil {
				return nil, err
			}
			prog.Statements = stmts
		default:
			return nil, errAt(key, "unknown program key %q", key.Value)
		}
	}
	return prog, nil
}

func decodeFunction(n *yaml.Node) (*Function, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "function must be a mapping")
	}
	f := &Function{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "name":
			f.Name = val.Value
		case "params":
			if err := val.Decode(&f.Params); err != nil {
				return nil, errAt(val, "params: %v", err)
			}
		case "body":
			body, err := decodeBlock(val)
			if err != nil {
				return nil, err
			}
			f.Body = body
		default:
			return nil, errAt(key, "unknown function key %q", key.Value)
		}
	}
	if f.Name == "" {
		return nil, errAt(n, "function without a name")
	}
	return f, nil
}

func decodeBlock(n *yaml.Node) ([]Stmt, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, errAt(n, "statement block must be a list")
	}
	stmts := make([]Stmt, 0, len(n.Content))
	for _, c := range n.Content {
		s, err := decodeStmt(c)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// fields returns the key/value pairs of a mapping node
func fields(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "expected a mapping")
	}
	m := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		m[n.Content[i].Value] = n.Content[i+1]
	}
	return m, nil
}

func single(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, errAt(n, "expected a single-key mapping")
	}
	return n.Content[0].Value, n.Content[1], nil
}

func decodeStmt(n *yaml.Node) (Stmt, error) {
	if n.Kind == yaml.ScalarNode && n.Value == "pass" {
		return &Pass{}, nil
	}
	kind, v, err := single(n)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "assign":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		name, ok := f["name"]
		if !ok {
			return nil, errAt(v, "assign without a name")
		}
		val, err := requiredExpr(v, f, "value")
		if err != nil {
			return nil, err
		}
		return &Assign{Name: name.Value, Value: val}, nil
	case "expr":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x}, nil
	case "print", "println":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &Print{X: x, Newline: kind == "println"}, nil
	case "print_num":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &PrintNum{X: x}, nil
	case "if":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		cond, err := requiredExpr(v, f, "cond")
		if err != nil {
			return nil, err
		}
		s := &If{Cond: cond}
		if t, ok := f["then"]; ok {
			if s.Then, err = decodeBlock(t); err != nil {
				return nil, err
			}
		}
		if e, ok := f["else"]; ok {
			if s.Else, err = decodeBlock(e); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "while":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		cond, err := requiredExpr(v, f, "cond")
		if err != nil {
			return nil, err
		}
		body, err := optionalBlock(f, "body")
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Body: body}, nil
	case "for":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		name, ok := f["var"]
		if !ok {
			return nil, errAt(v, "for without a var")
		}
		start, err := requiredExpr(v, f, "start")
		if err != nil {
			return nil, err
		}
		end, err := requiredExpr(v, f, "end")
		if err != nil {
			return nil, err
		}
		body, err := optionalBlock(f, "body")
		if err != nil {
			return nil, err
		}
		return &For{Var: name.Value, Start: start, End: end, Body: body}, nil
	case "foreach":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		name, ok := f["var"]
		if !ok {
			return nil, errAt(v, "foreach without a var")
		}
		iter, err := requiredExpr(v, f, "in")
		if err != nil {
			return nil, err
		}
		body, err := optionalBlock(f, "body")
		if err != nil {
			return nil, err
		}
		return &ForEach{Var: name.Value, Iter: iter, Body: body}, nil
	case "return":
		if v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
			return &Return{}, nil
		}
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &Return{Value: x}, nil
	case "pass":
		return &Pass{}, nil
	default:
		return &OpaqueStmt{Kind: kind}, nil
	}
}

func requiredExpr(parent *yaml.Node, f map[string]*yaml.Node, key string) (Expr, error) {
	n, ok := f[key]
	if !ok {
		return nil, errAt(parent, "missing %q", key)
	}
	return decodeExpr(n)
}

func optionalBlock(f map[string]*yaml.Node, key string) ([]Stmt, error) {
	n, ok := f[key]
	if !ok {
		return nil, nil
	}
	return decodeBlock(n)
}

func decodeExpr(n *yaml.Node) (Expr, error) {
	if n.Kind == yaml.ScalarNode {
		return decodeScalar(n)
	}
	kind, v, err := single(n)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "int":
		var i int64
		if err := v.Decode(&i); err != nil {
			return nil, errAt(v, "int: %v", err)
		}
		return &IntLit{Value: i}, nil
	case "float":
		var f float64
		if err := v.Decode(&f); err != nil {
			return nil, errAt(v, "float: %v", err)
		}
		return &FloatLit{Value: f}, nil
	case "bool":
		var b bool
		if err := v.Decode(&b); err != nil {
			return nil, errAt(v, "bool: %v", err)
		}
		return &BoolLit{Value: b}, nil
	case "string":
		return &StringLit{Value: v.Value}, nil
	case "var":
		return &Var{Name: v.Value}, nil
	case "binary":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		op, ok := lookupOp(f, binOpNames)
		if !ok {
			return nil, errAt(v, "unknown binary operator")
		}
		l, r, err := operands(v, f)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: l, Right: r}, nil
	case "compare":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		op, ok := lookupOp(f, cmpOpNames)
		if !ok {
			return nil, errAt(v, "unknown comparison operator")
		}
		l, r, err := operands(v, f)
		if err != nil {
			return nil, err
		}
		return &Compare{Op: op, Left: l, Right: r}, nil
	case "unary":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		op, ok := lookupOp(f, unaryOpNames)
		if !ok {
			return nil, errAt(v, "unknown unary operator")
		}
		x, err := requiredExpr(v, f, "x")
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	case "call":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		name, ok := f["name"]
		if !ok {
			return nil, errAt(v, "call without a name")
		}
		c := &Call{Name: name.Value}
		if args, ok := f["args"]; ok {
			if c.Args, err = decodeList(args); err != nil {
				return nil, err
			}
		}
		return c, nil
	case "array":
		elems, err := decodeList(v)
		if err != nil {
			return nil, err
		}
		return &ArrayLit{Elems: elems}, nil
	case "index":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		x, err := requiredExpr(v, f, "x")
		if err != nil {
			return nil, err
		}
		idx, err := requiredExpr(v, f, "index")
		if err != nil {
			return nil, err
		}
		return &Index{X: x, Index: idx}, nil
	case "len":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &Len{X: x}, nil
	case "cast":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		to, ok := f["to"]
		if !ok {
			return nil, errAt(v, "cast without a target type")
		}
		c := &Cast{}
		switch to.Value {
		case "int":
			c.To = CastInt
		case "float":
			c.To = CastFloat
		case "bool":
			c.To = CastBool
		default:
			return nil, errAt(to, "unknown cast target %q", to.Value)
		}
		if c.X, err = requiredExpr(v, f, "x"); err != nil {
			return nil, err
		}
		return c, nil
	case "input":
		return &Input{}, nil
	case "addr":
		return &AddrOf{Name: v.Value}, nil
	case "deref":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &Deref{X: x}, nil
	case "inc", "dec":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		op := PreInc
		if kind == "dec" {
			op = PreDec
		}
		return &Unary{Op: op, X: x}, nil
	case "sizeof":
		return &SizeOf{}, nil
	default:
		return &Opaque{Kind: kind}, nil
	}
}

func decodeScalar(n *yaml.Node) (Expr, error) {
	switch n.Tag {
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, errAt(n, "int: %v", err)
		}
		return &IntLit{Value: i}, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, errAt(n, "float: %v", err)
		}
		return &FloatLit{Value: f}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errAt(n, "bool: %v", err)
		}
		return &BoolLit{Value: b}, nil
	case "!!str":
		if n.Value == "" {
			return nil, errAt(n, "empty variable name")
		}
		return &Var{Name: n.Value}, nil
	default:
		return nil, errAt(n, "unexpected %s scalar", n.Tag)
	}
}

func decodeList(n *yaml.Node) ([]Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errAt(n, "expected a list")
	}
	out := make([]Expr, 0, len(n.Content))
	for _, c := range n.Content {
		e, err := decodeExpr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func operands(parent *yaml.Node, f map[string]*yaml.Node) (Expr, Expr, error) {
	l, err := requiredExpr(parent, f, "left")
	if err != nil {
		return nil, nil, err
	}
	r, err := requiredExpr(parent, f, "right")
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func lookupOp[T comparable](f map[string]*yaml.Node, names map[T]string) (T, bool) {
	var zero T
	n, ok := f["op"]
	if !ok {
		return zero, false
	}
	for op, s := range names {
		if s == n.Value {
			return op, true
		}
	}
	return zero, false
}
