// Package ast defines the syntax tree the code generator consumes.
//
// The node set is closed: expressions implement Expr and statements implement
// Stmt through unexported marker methods, so only this package can add kinds.
// Opaque and OpaqueStmt stand for upstream node kinds that have no machine
// encoding. The code generator rejects them with an encoding error.
package ast

// Expr is an expression node
type Expr interface {
	exprNode()
}

// Stmt is a statement node
type Stmt interface {
	stmtNode()
}

// Program is a whole compilation unit
type Program struct {
	Functions  []*Function
	Statements []Stmt // top-level statements, run before main
}

// Function is a named function definition
type Function struct {
	Name   string
	Params []string
	Body   []Stmt
}

// Lookup returns the function named name
func (p *Program) Lookup(name string) (*Function, bool) {
	for _, f := range p.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// BinOp is an arithmetic or bitwise operator
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	Shl
	Shr
)

var binOpNames = map[BinOp]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%",
	And: "&", Or: "|", Xor: "^", Shl: "<<", Shr: ">>",
}

func (op BinOp) String() string { return binOpNames[op] }

// UnaryOp is a prefix operator
type UnaryOp int

const (
	Neg     UnaryOp = iota // -x
	Not                    // !x, yields 0 or 1
	BitNot                 // ~x
	PreInc                 // ++x on a value, yields x+1
	PreDec                 // --x on a value, yields x-1
)

var unaryOpNames = map[UnaryOp]string{
	Neg: "-", Not: "!", BitNot: "~", PreInc: "++", PreDec: "--",
}

func (op UnaryOp) String() string { return unaryOpNames[op] }

// CmpOp is a comparison operator
type CmpOp int

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var cmpOpNames = map[CmpOp]string{
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
}

func (op CmpOp) String() string { return cmpOpNames[op] }

// CastKind is the target type of a Cast
type CastKind int

const (
	CastInt CastKind = iota
	CastFloat
	CastBool
)

func (k CastKind) String() string {
	switch k {
	case CastFloat:
		return "float"
	case CastBool:
		return "bool"
	default:
		return "int"
	}
}

type (
	IntLit struct{ Value int64 }

	FloatLit struct{ Value float64 }

	BoolLit struct{ Value bool }

	// StringLit carries the raw text; escapes are processed at interning
	StringLit struct{ Value string }

	Var struct{ Name string }

	Binary struct {
		Op          BinOp
		Left, Right Expr
	}

	Unary struct {
		Op UnaryOp
		X  Expr
	}

	Compare struct {
		Op          CmpOp
		Left, Right Expr
	}

	Call struct {
		Name string
		Args []Expr
	}

	ArrayLit struct{ Elems []Expr }

	Index struct {
		X, Index Expr
	}

	Len struct{ X Expr }

	Cast struct {
		To CastKind
		X  Expr
	}

	// Input reads one integer from standard input
	Input struct{}

	// AddrOf yields the address of a local variable's slot
	AddrOf struct{ Name string }

	// Deref loads the 64-bit value at an address
	Deref struct{ X Expr }

	// SizeOf yields the size in bytes of a 64-bit value
	SizeOf struct{}

	// Opaque is an upstream expression kind with no encoding
	Opaque struct{ Kind string }
)

func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*BoolLit) exprNode()   {}
func (*StringLit) exprNode() {}
func (*Var) exprNode()       {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Compare) exprNode()   {}
func (*Call) exprNode()      {}
func (*ArrayLit) exprNode()  {}
func (*Index) exprNode()     {}
func (*Len) exprNode()       {}
func (*Cast) exprNode()      {}
func (*Input) exprNode()     {}
func (*AddrOf) exprNode()    {}
func (*Deref) exprNode()     {}
func (*SizeOf) exprNode()    {}
func (*Opaque) exprNode()    {}

type (
	Assign struct {
		Name  string
		Value Expr
	}

	ExprStmt struct{ X Expr }

	Print struct {
		X       Expr
		Newline bool
	}

	// PrintNum prints an integer with a trailing newline
	PrintNum struct{ X Expr }

	If struct {
		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	While struct {
		Cond Expr
		Body []Stmt
	}

	// For runs Body with Var bound to Start, Start+1, ..., End-1
	For struct {
		Var        string
		Start, End Expr
		Body       []Stmt
	}

	// ForEach runs Body once per element of an array
	ForEach struct {
		Var  string
		Iter Expr
		Body []Stmt
	}

	// Return with a nil Value returns 0
	Return struct{ Value Expr }

	Pass struct{}

	// OpaqueStmt is an upstream statement kind with no encoding
	OpaqueStmt struct{ Kind string }
)

func (*Assign) stmtNode()     {}
func (*ExprStmt) stmtNode()   {}
func (*Print) stmtNode()      {}
func (*PrintNum) stmtNode()   {}
func (*If) stmtNode()         {}
func (*While) stmtNode()      {}
func (*For) stmtNode()        {}
func (*ForEach) stmtNode()    {}
func (*Return) stmtNode()     {}
func (*Pass) stmtNode()       {}
func (*OpaqueStmt) stmtNode() {}

// KindOf names the node kind of an expression or statement for diagnostics
func KindOf(n any) string {
	switch n := n.(type) {
	case *IntLit:
		return "int"
	case *FloatLit:
		return "float"
	case *BoolLit:
		return "bool"
	case *StringLit:
		return "string"
	case *Var:
		return "var"
	case *Binary:
		return "binary " + n.Op.String()
	case *Unary:
		return "unary " + n.Op.String()
	case *Compare:
		return "compare " + n.Op.String()
	case *Call:
		return "call"
	case *ArrayLit:
		return "array"
	case *Index:
		return "index"
	case *Len:
		return "len"
	case *Cast:
		return "cast"
	case *Input:
		return "input"
	case *AddrOf:
		return "addr"
	case *Deref:
		return "deref"
	case *SizeOf:
		return "sizeof"
	case *Opaque:
		return n.Kind
	case *Assign:
		return "assign"
	case *ExprStmt:
		return "expr"
	case *Print:
		if n.Newline {
			return "println"
		}
		return "print"
	case *PrintNum:
		return "print_num"
	case *If:
		return "if"
	case *While:
		return "while"
	case *For:
		return "for"
	case *ForEach:
		return "foreach"
	case *Return:
		return "return"
	case *Pass:
		return "pass"
	case *OpaqueStmt:
		return n.Kind
	case *Function:
		return "function " + n.Name
	case nil:
		return "nil"
	default:
		return "unknown"
	}
}
