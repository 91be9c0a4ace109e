package eval

import (
	"github.com/chazu/covariant/ir"
)

// builder appends nodes with distinct, increasing spans.
type builder struct {
	d   *ir.DAG
	pos uint32
}

func newBuilder() *builder {
	return &builder{d: ir.New()}
}

func (b *builder) add(n ir.Node) ir.NodeID {
	id := b.d.Insert(n, ir.NewSpan(b.pos, b.pos+4))
	b.pos += 5
	return id
}

func (b *builder) num(v float64, u ir.Unit) ir.NodeID {
	return b.add(&ir.NumberLit{Value: v, Unit: u})
}

func (b *builder) mm(v float64) ir.NodeID { return b.num(v, ir.Millimeter) }

func (b *builder) str(s string) ir.NodeID { return b.add(&ir.StringLit{Value: s}) }

func (b *builder) ref(name string) ir.NodeID { return b.add(&ir.VarRef{Name: name}) }

func (b *builder) bin(op ir.BinOp, l, r ir.NodeID) ir.NodeID {
	return b.add(&ir.BinaryOp{Op: op, Left: l, Right: r})
}

func (b *builder) call(callee ir.NodeID, args ...ir.Arg) ir.NodeID {
	return b.add(&ir.Call{Callee: callee, Args: args})
}

func pos(v ir.NodeID) ir.Arg { return ir.Arg{Value: v} }

func named(name string, v ir.NodeID) ir.Arg { return ir.Arg{Name: name, Value: v} }

func (b *builder) box(x, y, z float64) ir.NodeID {
	return b.add(&ir.Primitive{Shape: ir.ShapeBox, Params: []ir.NodeID{b.mm(x), b.mm(y), b.mm(z)}})
}

func (b *builder) cylinder(r, h float64) ir.NodeID {
	return b.add(&ir.Primitive{Shape: ir.ShapeCylinder, Params: []ir.NodeID{b.mm(r), b.mm(h)}})
}

func (b *builder) boolean(op ir.BoolOp, l, r ir.NodeID) ir.NodeID {
	return b.add(&ir.Boolean{Op: op, Left: l, Right: r})
}

func (b *builder) translate(target ir.NodeID, x, y, z float64) ir.NodeID {
	offset := b.call(b.ref("vec3"), pos(b.mm(x)), pos(b.mm(y)), pos(b.mm(z)))
	return b.add(&ir.Transform{Op: ir.OpTranslate, Target: target, Params: []ir.NodeID{offset}})
}

func (b *builder) stmt(name string, id ir.NodeID) ir.NodeID {
	b.d.AddStatement(name, id, b.d.Span(id))
	return id
}

// plate builds difference(box(50, 50, thickness), union(hole, translate(hole)))
// with the two holes lowered as separate but identical subgraphs.
func plate(thickness float64) (*ir.DAG, ir.NodeID) {
	b := newBuilder()
	box := b.box(50, 50, thickness)
	h1 := b.cylinder(3, 10)
	h2 := b.translate(b.cylinder(3, 10), 20, 0, 0)
	root := b.boolean(ir.OpDifference, box, b.boolean(ir.OpUnion, h1, h2))
	b.stmt("plate", root)
	return b.d, root
}
