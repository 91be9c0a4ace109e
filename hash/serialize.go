package hash

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/covariant/ir"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of one node.
//
// Encoding conventions:
//   - First byte: HashVersion
//   - Integers: big-endian fixed-width (uint32=4B)
//   - Floats: IEEE 754 big-endian 8B, after normalization
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans and enums: single byte
//   - Operands: their 32-byte digests, never their ids
// ---------------------------------------------------------------------------

// canonicalNaN is the single bit pattern every NaN serializes to.
const canonicalNaN uint64 = 0x7FF8000000000001

// Serialize produces the byte serialization of n given the digests of its
// operands. Two structurally equal nodes whose operands have equal digests
// serialize identically regardless of where they sit in a DAG.
func Serialize(n ir.Node, operand func(ir.NodeID) Digest) []byte {
	s := &serializer{buf: make([]byte, 0, 128), operand: operand}
	s.writeByte(HashVersion)
	s.serializeNode(n)
	return s.buf
}

type serializer struct {
	buf     []byte
	operand func(ir.NodeID) Digest
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], normalizeFloat(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeDigest(d Digest) {
	s.buf = append(s.buf, d[:]...)
}

func (s *serializer) writeOperand(id ir.NodeID) {
	s.writeDigest(s.operand(id))
}

func (s *serializer) writeOptional(id ir.NodeID) {
	if !id.Valid() {
		s.writeByte(TagAbsent)
		return
	}
	s.writeByte(TagPresent)
	s.writeOperand(id)
}

func (s *serializer) writeOperands(ids []ir.NodeID) {
	s.writeUint32(uint32(len(ids)))
	for _, id := range ids {
		s.writeOperand(id)
	}
}

// writeNumber writes the dimension and the value converted to the
// canonical unit of that dimension, so 1cm and 10mm serialize alike.
func (s *serializer) writeNumber(v float64, u ir.Unit) {
	s.writeByte(byte(u.Dimension()))
	s.writeFloat64(u.ToCanonical(v))
}

func normalizeFloat(v float64) uint64 {
	switch {
	case math.IsNaN(v):
		return canonicalNaN
	case v == 0:
		return 0 // folds -0 into +0
	}
	return math.Float64bits(v)
}

func (s *serializer) serializeNode(node ir.Node) {
	switch n := node.(type) {
	case *ir.NumberLit:
		s.writeByte(TagNumber)
		s.writeNumber(n.Value, n.Unit)

	case *ir.StringLit:
		s.writeByte(TagString)
		s.writeString(n.Value)

	case *ir.BoolLit:
		s.writeByte(TagBool)
		s.writeBool(n.Value)

	case *ir.VarRef:
		s.writeByte(TagVarRef)
		s.writeString(n.Name)

	case *ir.Lambda:
		s.writeByte(TagLambda)
		s.writeUint32(uint32(len(n.Params)))
		for _, p := range n.Params {
			s.writeString(p.Name)
			s.writeOptional(p.Default)
		}
		s.writeOperand(n.Body)

	case *ir.Call:
		s.writeByte(TagCall)
		s.writeOperand(n.Callee)
		s.writeUint32(uint32(len(n.Args)))
		for _, a := range n.Args {
			s.writeString(a.Name)
			s.writeOperand(a.Value)
		}

	case *ir.Let:
		s.writeByte(TagLet)
		s.writeString(n.Name)
		s.writeOperand(n.Value)
		s.writeOperand(n.Body)

	case *ir.BinaryOp:
		s.writeByte(TagBinaryOp)
		s.writeByte(byte(n.Op))
		s.writeOperand(n.Left)
		s.writeOperand(n.Right)

	case *ir.UnaryOp:
		s.writeByte(TagUnaryOp)
		s.writeByte(byte(n.Op))
		s.writeOperand(n.Operand)

	case *ir.Match:
		s.writeByte(TagMatch)
		s.writeOperand(n.Scrutinee)
		s.writeUint32(uint32(len(n.Arms)))
		for _, arm := range n.Arms {
			s.serializePattern(arm.Pattern)
			s.writeOperand(arm.Body)
		}

	case *ir.Record:
		s.writeByte(TagRecord)
		s.writeString(n.TypeName)
		s.writeOptional(n.Base)
		s.writeUint32(uint32(len(n.Fields)))
		for _, f := range n.Fields {
			s.writeString(f.Name)
			s.writeOperand(f.Value)
		}

	case *ir.FieldGet:
		s.writeByte(TagFieldGet)
		s.writeString(n.Name)
		s.writeOperand(n.Record)

	case *ir.List:
		s.writeByte(TagList)
		s.writeOperands(n.Elems)

	case *ir.Primitive:
		s.writeByte(TagPrimitive)
		s.writeByte(byte(n.Shape))
		s.writeOperands(n.Params)

	case *ir.Boolean:
		s.writeByte(TagBoolean)
		s.writeByte(byte(n.Op))
		s.writeOperand(n.Left)
		s.writeOperand(n.Right)

	case *ir.Transform:
		s.writeByte(TagTransform)
		s.writeByte(byte(n.Op))
		s.writeOperand(n.Target)
		s.writeOperands(n.Params)

	case *ir.Generate:
		s.writeByte(TagGenerate)
		s.writeByte(byte(n.Op))
		s.writeOperands(n.Profiles)
		s.writeOperands(n.Params)

	case *ir.ThreadedHole:
		s.writeByte(TagThreadedHole)
		s.writeString(n.Standard)
		s.writeString(n.Size)
		s.writeByte(byte(n.Hole))
		s.writeOperand(n.Depth)

	case *ir.Trace:
		s.writeByte(TagTrace)
		s.writeString(n.Label)
		s.writeOperand(n.Operand)

	case *ir.ErrorNode:
		s.writeByte(TagError)
		s.writeString(n.Diagnostic.Message)
		s.writeUint32(n.Diagnostic.Span.Start)
		s.writeUint32(n.Diagnostic.Span.End)

	default:
		panic(fmt.Sprintf("hash: unknown node type %T", node))
	}
}

func (s *serializer) serializePattern(p ir.Pattern) {
	switch p := p.(type) {
	case *ir.WildcardPat:
		s.writeByte(TagPatWildcard)

	case *ir.LiteralPat:
		s.writeByte(TagPatLiteral)
		// Literal patterns hold operand-free literal nodes.
		s.serializeNode(p.Literal)

	case *ir.BindPat:
		s.writeByte(TagPatBind)
		s.writeString(p.Name)

	case *ir.RecordPat:
		s.writeByte(TagPatRecord)
		s.writeString(p.TypeName)
		s.writeUint32(uint32(len(p.Fields)))
		for _, f := range p.Fields {
			s.writeString(f.Name)
			s.serializePattern(f.Pattern)
		}

	default:
		panic(fmt.Sprintf("hash: unknown pattern type %T", p))
	}
}
