package eval

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

// Kind identifies the runtime type of a Value.
type Kind uint8

const (
	KindNumber Kind = iota + 1
	KindString
	KindBool
	KindVec3
	KindList
	KindRecord
	KindClosure
	KindBuiltin
	KindSolid
)

var kindNames = [...]string{
	KindNumber:  "number",
	KindString:  "string",
	KindBool:    "bool",
	KindVec3:    "vec3",
	KindList:    "list",
	KindRecord:  "record",
	KindClosure: "function",
	KindBuiltin: "builtin",
	KindSolid:   "solid",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a runtime value. Values are immutable.
//
// Every value produced by the evaluator carries the digest of the
// evaluation key it was computed under, so a value's digest identifies it
// and can itself feed the key of a later evaluation.
type Value interface {
	Kind() Kind
	Digest() hash.Digest
	String() string
	withDigest(d hash.Digest) Value
}

type stamp struct {
	digest hash.Digest
}

// Digest returns the evaluation key the value was produced under.
func (s stamp) Digest() hash.Digest { return s.digest }

// Number is a scalar, length (mm) or angle (rad).
type Number struct {
	stamp
	V   float64
	Dim ir.Dimension
}

// String is a string value.
type String struct {
	stamp
	V string
}

// Bool is a boolean value.
type Bool struct {
	stamp
	V bool
}

// Vec3 is a three-component vector. Dim is Length for points and offsets
// and Scalar for directions and factors.
type Vec3 struct {
	stamp
	V   geom.Vec3
	Dim ir.Dimension
}

// List is an ordered sequence of values.
type List struct {
	stamp
	Elems []Value
}

// Solid wraps a geometry provider handle.
type Solid struct {
	stamp
	Handle geom.Handle
}

func (*Number) Kind() Kind { return KindNumber }
func (*String) Kind() Kind { return KindString }
func (*Bool) Kind() Kind   { return KindBool }
func (*Vec3) Kind() Kind   { return KindVec3 }
func (*List) Kind() Kind   { return KindList }
func (*Solid) Kind() Kind  { return KindSolid }

func (n *Number) String() string {
	s := strconv.FormatFloat(n.V, 'g', -1, 64)
	switch n.Dim {
	case ir.Length:
		return s + "mm"
	case ir.Angle:
		return s + "rad"
	}
	return s
}

func (s *String) String() string { return strconv.Quote(s.V) }
func (b *Bool) String() string   { return strconv.FormatBool(b.V) }

func (v *Vec3) String() string {
	if v.Dim == ir.Length {
		return fmt.Sprintf("vec3(%gmm, %gmm, %gmm)", v.V.X, v.V.Y, v.V.Z)
	}
	return fmt.Sprintf("vec3(%g, %g, %g)", v.V.X, v.V.Y, v.V.Z)
}

func (l *List) String() string {
	parts := make([]string, len(l.Elems))
	for i, e := range l.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s *Solid) String() string { return "solid " + s.Handle.String() }

func (n *Number) withDigest(d hash.Digest) Value { c := *n; c.digest = d; return &c }
func (s *String) withDigest(d hash.Digest) Value { c := *s; c.digest = d; return &c }
func (b *Bool) withDigest(d hash.Digest) Value   { c := *b; c.digest = d; return &c }
func (v *Vec3) withDigest(d hash.Digest) Value   { c := *v; c.digest = d; return &c }
func (l *List) withDigest(d hash.Digest) Value   { c := *l; c.digest = d; return &c }
func (s *Solid) withDigest(d hash.Digest) Value  { c := *s; c.digest = d; return &c }

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// Record is an immutable set of named fields, optionally tagged with a
// type name. Field order is declaration order.
type Record struct {
	stamp
	TypeName string
	names    []string
	fields   map[string]Value
}

// NewRecord builds a record. names and values are parallel.
func NewRecord(typeName string, names []string, values []Value) *Record {
	r := &Record{
		TypeName: typeName,
		names:    slices.Clone(names),
		fields:   make(map[string]Value, len(names)),
	}
	for i, n := range names {
		r.fields[n] = values[i]
	}
	return r
}

func (*Record) Kind() Kind { return KindRecord }

// Get returns the value of field name.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Fields returns the field names in declaration order.
func (r *Record) Fields() []string {
	return slices.Clone(r.names)
}

// With returns a copy of r with field name set to v. r is unchanged.
func (r *Record) With(name string, v Value) *Record {
	c := &Record{
		TypeName: r.TypeName,
		names:    slices.Clone(r.names),
		fields:   make(map[string]Value, len(r.fields)+1),
	}
	for k, fv := range r.fields {
		c.fields[k] = fv
	}
	if _, ok := c.fields[name]; !ok {
		c.names = append(c.names, name)
	}
	c.fields[name] = v
	return c
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.TypeName)
	b.WriteString("{")
	for i, n := range r.names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", n, r.fields[n])
	}
	b.WriteString("}")
	return b.String()
}

func (r *Record) withDigest(d hash.Digest) Value { c := *r; c.digest = d; return &c }

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Closure is a lambda together with the environment it was defined in.
type Closure struct {
	stamp
	Node   ir.NodeID
	Params []ir.Param
	Body   ir.NodeID

	env  *Env
	prog *program
	// origin is the key the lambda was evaluated under. Re-stamping a
	// closure reached through an alias keeps it.
	origin hash.Digest
}

func (*Closure) Kind() Kind { return KindClosure }

func (c *Closure) String() string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("fn(%s)", strings.Join(names, ", "))
}

func (c *Closure) withDigest(d hash.Digest) Value {
	cc := *c
	cc.digest = d
	if cc.origin.IsZero() {
		cc.origin = d
	}
	return &cc
}

// BuiltinParam declares a builtin parameter. A nil Default makes the
// parameter required.
type BuiltinParam struct {
	Name    string
	Default Value
}

// Builtin is a function implemented by the evaluator.
type Builtin struct {
	stamp
	Name   string
	Params []BuiltinParam
	fn     func(args []Value) (Value, error)
}

func (*Builtin) Kind() Kind { return KindBuiltin }

func (b *Builtin) String() string { return "builtin " + b.Name }

func (b *Builtin) withDigest(d hash.Digest) Value { c := *b; c.digest = d; return &c }

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports structural equality, ignoring digests. Functions compare
// by identity of their definition and solids by handle.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Number:
		b := b.(*Number)
		return a.Dim == b.Dim && (a.V == b.V || math.IsNaN(a.V) && math.IsNaN(b.V))
	case *String:
		return a.V == b.(*String).V
	case *Bool:
		return a.V == b.(*Bool).V
	case *Vec3:
		b := b.(*Vec3)
		return a.Dim == b.Dim && a.V == b.V
	case *List:
		b := b.(*List)
		return slices.EqualFunc(a.Elems, b.Elems, Equal)
	case *Record:
		b := b.(*Record)
		if a.TypeName != b.TypeName || len(a.fields) != len(b.fields) {
			return false
		}
		for k, av := range a.fields {
			bv, ok := b.fields[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case *Closure:
		return a.origin == b.(*Closure).origin
	case *Builtin:
		return a.Name == b.(*Builtin).Name
	case *Solid:
		return a.Handle == b.(*Solid).Handle
	}
	return false
}
