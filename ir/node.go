package ir

import "fmt"

// ---------------------------------------------------------------------------
// Node kinds
// ---------------------------------------------------------------------------

// Kind discriminates the closed set of node types.
type Kind uint8

const (
	KindNumber Kind = iota + 1
	KindString
	KindBool
	KindVarRef
	KindLambda
	KindCall
	KindLet
	KindBinaryOp
	KindUnaryOp
	KindMatch
	KindRecord
	KindFieldGet
	KindList
	KindPrimitive
	KindBoolean
	KindTransform
	KindGenerate
	KindThreadedHole
	KindTrace
	KindError
)

var kindNames = [...]string{
	KindNumber:       "Number",
	KindString:       "String",
	KindBool:         "Bool",
	KindVarRef:       "VarRef",
	KindLambda:       "Lambda",
	KindCall:         "Call",
	KindLet:          "Let",
	KindBinaryOp:     "BinaryOp",
	KindUnaryOp:      "UnaryOp",
	KindMatch:        "Match",
	KindRecord:       "Record",
	KindFieldGet:     "FieldGet",
	KindList:         "List",
	KindPrimitive:    "Primitive",
	KindBoolean:      "Boolean",
	KindTransform:    "Transform",
	KindGenerate:     "Generate",
	KindThreadedHole: "ThreadedHole",
	KindTrace:        "Trace",
	KindError:        "Error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ProducesGeometry reports whether nodes of this kind call into the
// geometry provider.
func (k Kind) ProducesGeometry() bool {
	switch k {
	case KindPrimitive, KindBoolean, KindTransform, KindGenerate, KindThreadedHole:
		return true
	}
	return false
}

// Node is implemented by every IR node type. The set of implementations is
// closed; consumers switch over the concrete types exhaustively.
type Node interface {
	Kind() Kind
	// Operands returns the ids this node consumes, in a fixed order.
	// Absent optional operands (NoNode) are omitted.
	Operands() []NodeID
	node() // marker method
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// NumberLit is a numeric literal as written, with its unit suffix.
type NumberLit struct {
	Value float64
	Unit  Unit
}

type StringLit struct{ Value string }
type BoolLit struct{ Value bool }

func (*NumberLit) Kind() Kind { return KindNumber }
func (*StringLit) Kind() Kind { return KindString }
func (*BoolLit) Kind() Kind   { return KindBool }

func (*NumberLit) Operands() []NodeID { return nil }
func (*StringLit) Operands() []NodeID { return nil }
func (*BoolLit) Operands() []NodeID   { return nil }

func (*NumberLit) node() {}
func (*StringLit) node() {}
func (*BoolLit) node()   {}

// ---------------------------------------------------------------------------
// Names, functions and control flow
// ---------------------------------------------------------------------------

// VarRef references a name in the lexical environment.
type VarRef struct{ Name string }

// Param is a lambda parameter. Default is NoNode when the parameter has no
// default value.
type Param struct {
	Name    string
	Default NodeID
}

// Lambda builds a closure over the defining environment.
type Lambda struct {
	Params []Param
	Body   NodeID
}

// Arg is a call argument. An empty Name marks a positional argument.
type Arg struct {
	Name  string
	Value NodeID
}

// Call applies Callee to Args.
type Call struct {
	Callee NodeID
	Args   []Arg
}

// Let binds Name to Value while evaluating Body.
type Let struct {
	Name  string
	Value NodeID
	Body  NodeID
}

// Arm is one arm of a Match.
type Arm struct {
	Pattern Pattern
	Body    NodeID
}

// Match evaluates Scrutinee once and takes the first arm whose pattern
// matches.
type Match struct {
	Scrutinee NodeID
	Arms      []Arm
}

func (*VarRef) Kind() Kind { return KindVarRef }
func (*Lambda) Kind() Kind { return KindLambda }
func (*Call) Kind() Kind   { return KindCall }
func (*Let) Kind() Kind    { return KindLet }
func (*Match) Kind() Kind  { return KindMatch }

func (*VarRef) Operands() []NodeID { return nil }

func (n *Lambda) Operands() []NodeID {
	ops := make([]NodeID, 0, len(n.Params)+1)
	for _, p := range n.Params {
		if p.Default.Valid() {
			ops = append(ops, p.Default)
		}
	}
	return append(ops, n.Body)
}

func (n *Call) Operands() []NodeID {
	ops := make([]NodeID, 0, len(n.Args)+1)
	ops = append(ops, n.Callee)
	for _, a := range n.Args {
		ops = append(ops, a.Value)
	}
	return ops
}

func (n *Let) Operands() []NodeID { return []NodeID{n.Value, n.Body} }

func (n *Match) Operands() []NodeID {
	ops := make([]NodeID, 0, len(n.Arms)+1)
	ops = append(ops, n.Scrutinee)
	for _, a := range n.Arms {
		ops = append(ops, a.Body)
	}
	return ops
}

func (*VarRef) node() {}
func (*Lambda) node() {}
func (*Call) node()   {}
func (*Let) node()    {}
func (*Match) node()  {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// BinOp is a binary arithmetic, comparison or logical operator.
type BinOp uint8

const (
	OpAdd BinOp = iota + 1
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpAnd
	OpOr
)

var binOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpLeq: "<=", OpGt: ">", OpGeq: ">=",
	OpAnd: "&&", OpOr: "||",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) && binOpNames[op] != "" {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", uint8(op))
}

// UnOp is a unary operator.
type UnOp uint8

const (
	OpNeg UnOp = iota + 1
	OpNot
)

func (op UnOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "!"
	}
	return fmt.Sprintf("UnOp(%d)", uint8(op))
}

type BinaryOp struct {
	Op          BinOp
	Left, Right NodeID
}

type UnaryOp struct {
	Op      UnOp
	Operand NodeID
}

func (*BinaryOp) Kind() Kind { return KindBinaryOp }
func (*UnaryOp) Kind() Kind  { return KindUnaryOp }

func (n *BinaryOp) Operands() []NodeID { return []NodeID{n.Left, n.Right} }
func (n *UnaryOp) Operands() []NodeID  { return []NodeID{n.Operand} }

func (*BinaryOp) node() {}
func (*UnaryOp) node()  {}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Field is a named record field initializer.
type Field struct {
	Name  string
	Value NodeID
}

// Record constructs a record, or with a valid Base, copies Base and
// overrides the listed fields.
type Record struct {
	TypeName string
	Fields   []Field
	Base     NodeID
}

// FieldGet reads one field of a record.
type FieldGet struct {
	Record NodeID
	Name   string
}

// List constructs an ordered list.
type List struct {
	Elems []NodeID
}

func (*Record) Kind() Kind   { return KindRecord }
func (*FieldGet) Kind() Kind { return KindFieldGet }
func (*List) Kind() Kind     { return KindList }

func (n *Record) Operands() []NodeID {
	ops := make([]NodeID, 0, len(n.Fields)+1)
	if n.Base.Valid() {
		ops = append(ops, n.Base)
	}
	for _, f := range n.Fields {
		ops = append(ops, f.Value)
	}
	return ops
}

func (n *FieldGet) Operands() []NodeID { return []NodeID{n.Record} }

func (n *List) Operands() []NodeID {
	return append([]NodeID(nil), n.Elems...)
}

func (*Record) node()   {}
func (*FieldGet) node() {}
func (*List) node()     {}

// ---------------------------------------------------------------------------
// Geometry
// ---------------------------------------------------------------------------

// Shape names a primitive constructor.
type Shape uint8

const (
	ShapeBox Shape = iota + 1
	ShapeCylinder
	ShapeSphere
	ShapeRect
	ShapeCircle
)

var shapeNames = [...]string{
	ShapeBox: "box", ShapeCylinder: "cylinder", ShapeSphere: "sphere",
	ShapeRect: "rect", ShapeCircle: "circle",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) && shapeNames[s] != "" {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// BoolOp is a boolean solid combinator.
type BoolOp uint8

const (
	OpUnion BoolOp = iota + 1
	OpDifference
	OpIntersect
)

func (op BoolOp) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpDifference:
		return "difference"
	case OpIntersect:
		return "intersect"
	}
	return fmt.Sprintf("BoolOp(%d)", uint8(op))
}

// TransformOp is a rigid or scaling transform.
type TransformOp uint8

const (
	OpTranslate TransformOp = iota + 1
	OpRotate
	OpScale
	OpMirror
)

func (op TransformOp) String() string {
	switch op {
	case OpTranslate:
		return "translate"
	case OpRotate:
		return "rotate"
	case OpScale:
		return "scale"
	case OpMirror:
		return "mirror"
	}
	return fmt.Sprintf("TransformOp(%d)", uint8(op))
}

// GenerateOp builds a solid from one or more profiles.
type GenerateOp uint8

const (
	OpSweep GenerateOp = iota + 1
	OpRevolve
	OpLoft
)

func (op GenerateOp) String() string {
	switch op {
	case OpSweep:
		return "sweep"
	case OpRevolve:
		return "revolve"
	case OpLoft:
		return "loft"
	}
	return fmt.Sprintf("GenerateOp(%d)", uint8(op))
}

// HoleKind selects which diameter of a thread size a hole is drilled at.
type HoleKind uint8

const (
	HoleTap HoleKind = iota + 1
	HoleClearance
	HoleInsert
)

func (k HoleKind) String() string {
	switch k {
	case HoleTap:
		return "tap"
	case HoleClearance:
		return "clearance"
	case HoleInsert:
		return "insert"
	}
	return fmt.Sprintf("HoleKind(%d)", uint8(k))
}

// Primitive constructs a solid or profile from numeric parameters.
//
//	box:      size (vec3) or x, y, z
//	cylinder: radius, height
//	sphere:   radius
//	rect:     width, height
//	circle:   radius
type Primitive struct {
	Shape  Shape
	Params []NodeID
}

// Boolean combines two solids.
type Boolean struct {
	Op          BoolOp
	Left, Right NodeID
}

// Transform applies Op to Target.
//
//	translate: offset (vec3)
//	rotate:    axis (vec3), angle
//	scale:     factors (vec3) or one uniform factor
//	mirror:    plane normal (vec3)
type Transform struct {
	Op     TransformOp
	Target NodeID
	Params []NodeID
}

// Generate sweeps, revolves or lofts profiles.
//
//	sweep:   one profile, path (vec3)
//	revolve: one profile, axis (vec3), angle
//	loft:    two or more profiles, height
type Generate struct {
	Op       GenerateOp
	Profiles []NodeID
	Params   []NodeID
}

// ThreadedHole produces the tool solid for a hole of a standard thread size.
type ThreadedHole struct {
	Standard string
	Size     string
	Hole     HoleKind
	Depth    NodeID
}

func (*Primitive) Kind() Kind    { return KindPrimitive }
func (*Boolean) Kind() Kind      { return KindBoolean }
func (*Transform) Kind() Kind    { return KindTransform }
func (*Generate) Kind() Kind     { return KindGenerate }
func (*ThreadedHole) Kind() Kind { return KindThreadedHole }

func (n *Primitive) Operands() []NodeID {
	return append([]NodeID(nil), n.Params...)
}

func (n *Boolean) Operands() []NodeID { return []NodeID{n.Left, n.Right} }

func (n *Transform) Operands() []NodeID {
	ops := make([]NodeID, 0, len(n.Params)+1)
	ops = append(ops, n.Target)
	return append(ops, n.Params...)
}

func (n *Generate) Operands() []NodeID {
	ops := make([]NodeID, 0, len(n.Profiles)+len(n.Params))
	ops = append(ops, n.Profiles...)
	return append(ops, n.Params...)
}

func (n *ThreadedHole) Operands() []NodeID { return []NodeID{n.Depth} }

func (*Primitive) node()    {}
func (*Boolean) node()      {}
func (*Transform) node()    {}
func (*Generate) node()     {}
func (*ThreadedHole) node() {}

// ---------------------------------------------------------------------------
// Debugging and diagnostics
// ---------------------------------------------------------------------------

// Trace passes its operand through unchanged and registers it with the
// debug stepper under Label.
type Trace struct {
	Label   string
	Operand NodeID
}

// Diagnostic is a lowering problem reported by the front end.
type Diagnostic struct {
	Message string
	Span    Span
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s", d.Span, d.Message)
}

// ErrorNode replaces a statement that could not be lowered. Evaluating it
// fails with the carried diagnostic.
type ErrorNode struct {
	Diagnostic Diagnostic
}

func (*Trace) Kind() Kind     { return KindTrace }
func (*ErrorNode) Kind() Kind { return KindError }

func (n *Trace) Operands() []NodeID  { return []NodeID{n.Operand} }
func (*ErrorNode) Operands() []NodeID { return nil }

func (*Trace) node()     {}
func (*ErrorNode) node() {}
