package ir

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// WireVersion is the version of the CBOR DAG encoding. Bumping it makes
// previously written DAGs unreadable.
const WireVersion uint8 = 1

// cborEncMode uses canonical mode so equal DAGs encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ir: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Wire types
//
// Nodes are flattened into one record shape. Which fields are meaningful
// depends on Kind:
//
//	Op   unit, operator, shape or hole kind
//	Str  literal text, name, label, record type, thread standard, message
//	Ops  primary operand list; Names runs parallel to it where named
//	Ops2 secondary operands (lambda body, callee, record base, transform
//	     target, generate params)
// ---------------------------------------------------------------------------

type wireDAG struct {
	Version    uint8           `cbor:"1,keyasint"`
	Nodes      []wireNode      `cbor:"2,keyasint"`
	Statements []wireStatement `cbor:"3,keyasint,omitempty"`
}

type wireStatement struct {
	Name string    `cbor:"1,keyasint,omitempty"`
	Node uint32    `cbor:"2,keyasint"`
	Span [2]uint32 `cbor:"3,keyasint"`
}

type wireNode struct {
	Kind     Kind      `cbor:"1,keyasint"`
	Span     [2]uint32 `cbor:"2,keyasint"`
	Op       uint8     `cbor:"3,keyasint,omitempty"`
	Num      float64   `cbor:"4,keyasint,omitempty"`
	Str      string    `cbor:"5,keyasint,omitempty"`
	Str2     string    `cbor:"6,keyasint,omitempty"`
	Bool     bool      `cbor:"7,keyasint,omitempty"`
	Ops      []uint32  `cbor:"8,keyasint,omitempty"`
	Ops2     []uint32  `cbor:"9,keyasint,omitempty"`
	Names    []string  `cbor:"10,keyasint,omitempty"`
	Arms     []wireArm `cbor:"11,keyasint,omitempty"`
	DiagSpan [2]uint32 `cbor:"12,keyasint,omitempty"`
}

type wireArm struct {
	Pattern wirePattern `cbor:"1,keyasint"`
	Body    uint32      `cbor:"2,keyasint"`
}

type wirePattern struct {
	Kind    uint8          `cbor:"1,keyasint"`
	Literal *wireNode      `cbor:"2,keyasint,omitempty"`
	Name    string         `cbor:"3,keyasint,omitempty"`
	Fields  []wireFieldPat `cbor:"4,keyasint,omitempty"`
}

type wireFieldPat struct {
	Name    string      `cbor:"1,keyasint"`
	Pattern wirePattern `cbor:"2,keyasint"`
}

const (
	wirePatWildcard uint8 = iota + 1
	wirePatLiteral
	wirePatBind
	wirePatRecord
)

// ErrWireFormat reports malformed encoded DAG data.
var ErrWireFormat = errors.New("ir: malformed DAG encoding")

// MarshalDAG serializes d to canonical CBOR.
func MarshalDAG(d *DAG) ([]byte, error) {
	w := wireDAG{Version: WireVersion, Nodes: make([]wireNode, 0, d.Len())}
	for _, e := range d.entries {
		wn, err := encodeNode(e.Node)
		if err != nil {
			return nil, err
		}
		wn.Span = [2]uint32{e.Span.Start, e.Span.End}
		w.Nodes = append(w.Nodes, wn)
	}
	for _, s := range d.statements {
		w.Statements = append(w.Statements, wireStatement{
			Name: s.Name,
			Node: uint32(s.Node),
			Span: [2]uint32{s.Span.Start, s.Span.End},
		})
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalDAG decodes a DAG written by MarshalDAG. Structural invariants
// are re-checked; violations are reported as errors rather than panics.
func UnmarshalDAG(data []byte) (*DAG, error) {
	var w wireDAG
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("ir: unmarshal DAG: %w", err)
	}
	if w.Version != WireVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrWireFormat, w.Version, WireVersion)
	}
	d := New()
	for i := range w.Nodes {
		wn := &w.Nodes[i]
		n, err := decodeNode(wn)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		if _, err := d.append(n, Span{Start: wn.Span[0], End: wn.Span[1]}); err != nil {
			return nil, err
		}
	}
	for _, s := range w.Statements {
		if int(s.Node) >= d.Len() {
			return nil, fmt.Errorf("%w: statement refers to missing node %d", ErrWireFormat, s.Node)
		}
		d.statements = append(d.statements, Statement{
			Name: s.Name,
			Node: NodeID(s.Node),
			Span: Span{Start: s.Span[0], End: s.Span[1]},
		})
	}
	return d, nil
}

func ids(in []NodeID) []uint32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]uint32, len(in))
	for i, id := range in {
		out[i] = uint32(id)
	}
	return out
}

func nodeIDs(in []uint32) []NodeID {
	if len(in) == 0 {
		return nil
	}
	out := make([]NodeID, len(in))
	for i, id := range in {
		out[i] = NodeID(id)
	}
	return out
}

func encodeNode(n Node) (wireNode, error) {
	wn := wireNode{Kind: n.Kind()}
	switch n := n.(type) {
	case *NumberLit:
		wn.Num, wn.Op = n.Value, uint8(n.Unit)
	case *StringLit:
		wn.Str = n.Value
	case *BoolLit:
		wn.Bool = n.Value
	case *VarRef:
		wn.Str = n.Name
	case *Lambda:
		for _, p := range n.Params {
			wn.Names = append(wn.Names, p.Name)
			wn.Ops = append(wn.Ops, uint32(p.Default))
		}
		wn.Ops2 = []uint32{uint32(n.Body)}
	case *Call:
		for _, a := range n.Args {
			wn.Names = append(wn.Names, a.Name)
			wn.Ops = append(wn.Ops, uint32(a.Value))
		}
		wn.Ops2 = []uint32{uint32(n.Callee)}
	case *Let:
		wn.Str = n.Name
		wn.Ops = []uint32{uint32(n.Value), uint32(n.Body)}
	case *BinaryOp:
		wn.Op = uint8(n.Op)
		wn.Ops = []uint32{uint32(n.Left), uint32(n.Right)}
	case *UnaryOp:
		wn.Op = uint8(n.Op)
		wn.Ops = []uint32{uint32(n.Operand)}
	case *Match:
		wn.Ops = []uint32{uint32(n.Scrutinee)}
		for _, arm := range n.Arms {
			wp, err := encodePattern(arm.Pattern)
			if err != nil {
				return wn, err
			}
			wn.Arms = append(wn.Arms, wireArm{Pattern: wp, Body: uint32(arm.Body)})
		}
	case *Record:
		wn.Str = n.TypeName
		for _, f := range n.Fields {
			wn.Names = append(wn.Names, f.Name)
			wn.Ops = append(wn.Ops, uint32(f.Value))
		}
		wn.Ops2 = []uint32{uint32(n.Base)}
	case *FieldGet:
		wn.Str = n.Name
		wn.Ops = []uint32{uint32(n.Record)}
	case *List:
		wn.Ops = ids(n.Elems)
	case *Primitive:
		wn.Op = uint8(n.Shape)
		wn.Ops = ids(n.Params)
	case *Boolean:
		wn.Op = uint8(n.Op)
		wn.Ops = []uint32{uint32(n.Left), uint32(n.Right)}
	case *Transform:
		wn.Op = uint8(n.Op)
		wn.Ops = ids(n.Params)
		wn.Ops2 = []uint32{uint32(n.Target)}
	case *Generate:
		wn.Op = uint8(n.Op)
		wn.Ops = ids(n.Profiles)
		wn.Ops2 = ids(n.Params)
	case *ThreadedHole:
		wn.Op = uint8(n.Hole)
		wn.Str, wn.Str2 = n.Standard, n.Size
		wn.Ops = []uint32{uint32(n.Depth)}
	case *Trace:
		wn.Str = n.Label
		wn.Ops = []uint32{uint32(n.Operand)}
	case *ErrorNode:
		wn.Str = n.Diagnostic.Message
		wn.DiagSpan = [2]uint32{n.Diagnostic.Span.Start, n.Diagnostic.Span.End}
	default:
		return wn, fmt.Errorf("ir: cannot encode node %T", n)
	}
	return wn, nil
}

func want(wn *wireNode, ops, ops2 int) error {
	if ops >= 0 && len(wn.Ops) != ops {
		return fmt.Errorf("%w: %s has %d operands, want %d", ErrWireFormat, wn.Kind, len(wn.Ops), ops)
	}
	if ops2 >= 0 && len(wn.Ops2) != ops2 {
		return fmt.Errorf("%w: %s has %d secondary operands, want %d", ErrWireFormat, wn.Kind, len(wn.Ops2), ops2)
	}
	return nil
}

func wantNames(wn *wireNode) error {
	if len(wn.Names) != len(wn.Ops) {
		return fmt.Errorf("%w: %s has %d names for %d operands", ErrWireFormat, wn.Kind, len(wn.Names), len(wn.Ops))
	}
	return nil
}

func opIn(wn *wireNode, what string, lo, hi uint8) error {
	if wn.Op < lo || wn.Op > hi {
		return fmt.Errorf("%w: %s has unknown %s %d", ErrWireFormat, wn.Kind, what, wn.Op)
	}
	return nil
}

func decodeNode(wn *wireNode) (Node, error) {
	switch wn.Kind {
	case KindNumber:
		if err := opIn(wn, "unit", uint8(NoUnit), uint8(Radian)); err != nil {
			return nil, err
		}
		return &NumberLit{Value: wn.Num, Unit: Unit(wn.Op)}, nil
	case KindString:
		return &StringLit{Value: wn.Str}, nil
	case KindBool:
		return &BoolLit{Value: wn.Bool}, nil
	case KindVarRef:
		return &VarRef{Name: wn.Str}, nil
	case KindLambda:
		if err := want(wn, -1, 1); err != nil {
			return nil, err
		}
		if err := wantNames(wn); err != nil {
			return nil, err
		}
		n := &Lambda{Body: NodeID(wn.Ops2[0])}
		for i, name := range wn.Names {
			n.Params = append(n.Params, Param{Name: name, Default: NodeID(wn.Ops[i])})
		}
		return n, nil
	case KindCall:
		if err := want(wn, -1, 1); err != nil {
			return nil, err
		}
		if err := wantNames(wn); err != nil {
			return nil, err
		}
		n := &Call{Callee: NodeID(wn.Ops2[0])}
		for i, name := range wn.Names {
			n.Args = append(n.Args, Arg{Name: name, Value: NodeID(wn.Ops[i])})
		}
		return n, nil
	case KindLet:
		if err := want(wn, 2, 0); err != nil {
			return nil, err
		}
		return &Let{Name: wn.Str, Value: NodeID(wn.Ops[0]), Body: NodeID(wn.Ops[1])}, nil
	case KindBinaryOp:
		if err := want(wn, 2, 0); err != nil {
			return nil, err
		}
		if err := opIn(wn, "operator", uint8(OpAdd), uint8(OpOr)); err != nil {
			return nil, err
		}
		return &BinaryOp{Op: BinOp(wn.Op), Left: NodeID(wn.Ops[0]), Right: NodeID(wn.Ops[1])}, nil
	case KindUnaryOp:
		if err := want(wn, 1, 0); err != nil {
			return nil, err
		}
		if err := opIn(wn, "operator", uint8(OpNeg), uint8(OpNot)); err != nil {
			return nil, err
		}
		return &UnaryOp{Op: UnOp(wn.Op), Operand: NodeID(wn.Ops[0])}, nil
	case KindMatch:
		if err := want(wn, 1, 0); err != nil {
			return nil, err
		}
		n := &Match{Scrutinee: NodeID(wn.Ops[0])}
		for _, wa := range wn.Arms {
			p, err := decodePattern(&wa.Pattern)
			if err != nil {
				return nil, err
			}
			n.Arms = append(n.Arms, Arm{Pattern: p, Body: NodeID(wa.Body)})
		}
		return n, nil
	case KindRecord:
		if err := want(wn, -1, 1); err != nil {
			return nil, err
		}
		if err := wantNames(wn); err != nil {
			return nil, err
		}
		n := &Record{TypeName: wn.Str, Base: NodeID(wn.Ops2[0])}
		for i, name := range wn.Names {
			n.Fields = append(n.Fields, Field{Name: name, Value: NodeID(wn.Ops[i])})
		}
		return n, nil
	case KindFieldGet:
		if err := want(wn, 1, 0); err != nil {
			return nil, err
		}
		return &FieldGet{Record: NodeID(wn.Ops[0]), Name: wn.Str}, nil
	case KindList:
		return &List{Elems: nodeIDs(wn.Ops)}, nil
	case KindPrimitive:
		if err := opIn(wn, "shape", uint8(ShapeBox), uint8(ShapeCircle)); err != nil {
			return nil, err
		}
		return &Primitive{Shape: Shape(wn.Op), Params: nodeIDs(wn.Ops)}, nil
	case KindBoolean:
		if err := want(wn, 2, 0); err != nil {
			return nil, err
		}
		if err := opIn(wn, "operation", uint8(OpUnion), uint8(OpIntersect)); err != nil {
			return nil, err
		}
		return &Boolean{Op: BoolOp(wn.Op), Left: NodeID(wn.Ops[0]), Right: NodeID(wn.Ops[1])}, nil
	case KindTransform:
		if err := want(wn, -1, 1); err != nil {
			return nil, err
		}
		if err := opIn(wn, "operation", uint8(OpTranslate), uint8(OpMirror)); err != nil {
			return nil, err
		}
		return &Transform{Op: TransformOp(wn.Op), Target: NodeID(wn.Ops2[0]), Params: nodeIDs(wn.Ops)}, nil
	case KindGenerate:
		if err := opIn(wn, "operation", uint8(OpSweep), uint8(OpLoft)); err != nil {
			return nil, err
		}
		return &Generate{Op: GenerateOp(wn.Op), Profiles: nodeIDs(wn.Ops), Params: nodeIDs(wn.Ops2)}, nil
	case KindThreadedHole:
		if err := want(wn, 1, 0); err != nil {
			return nil, err
		}
		if err := opIn(wn, "hole kind", uint8(HoleTap), uint8(HoleInsert)); err != nil {
			return nil, err
		}
		return &ThreadedHole{Standard: wn.Str, Size: wn.Str2, Hole: HoleKind(wn.Op), Depth: NodeID(wn.Ops[0])}, nil
	case KindTrace:
		if err := want(wn, 1, 0); err != nil {
			return nil, err
		}
		return &Trace{Label: wn.Str, Operand: NodeID(wn.Ops[0])}, nil
	case KindError:
		return &ErrorNode{Diagnostic: Diagnostic{
			Message: wn.Str,
			Span:    Span{Start: wn.DiagSpan[0], End: wn.DiagSpan[1]},
		}}, nil
	}
	return nil, fmt.Errorf("%w: unknown node kind %d", ErrWireFormat, wn.Kind)
}

func encodePattern(p Pattern) (wirePattern, error) {
	switch p := p.(type) {
	case *WildcardPat:
		return wirePattern{Kind: wirePatWildcard}, nil
	case *LiteralPat:
		wn, err := encodeNode(p.Literal)
		if err != nil {
			return wirePattern{}, err
		}
		return wirePattern{Kind: wirePatLiteral, Literal: &wn}, nil
	case *BindPat:
		return wirePattern{Kind: wirePatBind, Name: p.Name}, nil
	case *RecordPat:
		wp := wirePattern{Kind: wirePatRecord, Name: p.TypeName}
		for _, f := range p.Fields {
			sub, err := encodePattern(f.Pattern)
			if err != nil {
				return wirePattern{}, err
			}
			wp.Fields = append(wp.Fields, wireFieldPat{Name: f.Name, Pattern: sub})
		}
		return wp, nil
	}
	return wirePattern{}, fmt.Errorf("ir: cannot encode pattern %T", p)
}

func decodePattern(wp *wirePattern) (Pattern, error) {
	switch wp.Kind {
	case wirePatWildcard:
		return &WildcardPat{}, nil
	case wirePatLiteral:
		if wp.Literal == nil {
			return nil, fmt.Errorf("%w: literal pattern without literal", ErrWireFormat)
		}
		switch wp.Literal.Kind {
		case KindNumber, KindString, KindBool:
		default:
			return nil, fmt.Errorf("%w: literal pattern of kind %s", ErrWireFormat, wp.Literal.Kind)
		}
		lit, err := decodeNode(wp.Literal)
		if err != nil {
			return nil, err
		}
		return &LiteralPat{Literal: lit}, nil
	case wirePatBind:
		return &BindPat{Name: wp.Name}, nil
	case wirePatRecord:
		p := &RecordPat{TypeName: wp.Name}
		for i := range wp.Fields {
			sub, err := decodePattern(&wp.Fields[i].Pattern)
			if err != nil {
				return nil, err
			}
			p.Fields = append(p.Fields, FieldPat{Name: wp.Fields[i].Name, Pattern: sub})
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown pattern kind %d", ErrWireFormat, wp.Kind)
}
