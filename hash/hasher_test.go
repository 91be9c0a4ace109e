package hash

import (
	"slices"
	"testing"

	"github.com/chazu/covariant/ir"
)

func TestHasher_StructuralSharing(t *testing.T) {
	d := ir.New()
	r1 := d.Insert(&ir.NumberLit{Value: 5, Unit: ir.Millimeter}, ir.Span{})
	h1 := d.Insert(&ir.NumberLit{Value: 10, Unit: ir.Millimeter}, ir.Span{})
	c1 := d.Insert(&ir.Primitive{Shape: ir.ShapeCylinder, Params: []ir.NodeID{r1, h1}}, ir.NewSpan(0, 20))
	r2 := d.Insert(&ir.NumberLit{Value: 0.5, Unit: ir.Centimeter}, ir.Span{})
	h2 := d.Insert(&ir.NumberLit{Value: 1, Unit: ir.Centimeter}, ir.Span{})
	c2 := d.Insert(&ir.Primitive{Shape: ir.ShapeCylinder, Params: []ir.NodeID{r2, h2}}, ir.NewSpan(40, 60))

	h := New(d)
	if h.Of(c1) != h.Of(c2) {
		t.Errorf("equal cylinders hash differently: %s vs %s", h.Of(c1).Short(), h.Of(c2).Short())
	}
}

func TestHasher_IndependentOfIDsAndSpans(t *testing.T) {
	a := ir.New()
	a.Insert(&ir.StringLit{Value: "padding"}, ir.Span{})
	x := a.Insert(&ir.NumberLit{Value: 5}, ir.NewSpan(1, 2))
	ra := a.Insert(&ir.UnaryOp{Op: ir.OpNeg, Operand: x}, ir.NewSpan(0, 2))

	b := ir.New()
	y := b.Insert(&ir.NumberLit{Value: 5}, ir.NewSpan(100, 101))
	rb := b.Insert(&ir.UnaryOp{Op: ir.OpNeg, Operand: y}, ir.NewSpan(99, 101))

	if New(a).Of(ra) != New(b).Of(rb) {
		t.Error("digest must not depend on node ids or spans")
	}
}

func TestHasher_DistinguishesStructure(t *testing.T) {
	d := ir.New()
	one := d.Insert(&ir.NumberLit{Value: 1}, ir.Span{})
	two := d.Insert(&ir.NumberLit{Value: 2}, ir.Span{})
	add := d.Insert(&ir.BinaryOp{Op: ir.OpAdd, Left: one, Right: two}, ir.Span{})
	sub := d.Insert(&ir.BinaryOp{Op: ir.OpSub, Left: one, Right: two}, ir.Span{})
	swapped := d.Insert(&ir.BinaryOp{Op: ir.OpAdd, Left: two, Right: one}, ir.Span{})

	h := New(d)
	digests := []Digest{h.Of(one), h.Of(two), h.Of(add), h.Of(sub), h.Of(swapped)}
	for i := range digests {
		for j := i + 1; j < len(digests); j++ {
			if digests[i] == digests[j] {
				t.Errorf("nodes %d and %d collide", i, j)
			}
		}
	}
}

func TestHasher_LeafChangePropagates(t *testing.T) {
	build := func(depth float64) (*ir.DAG, []ir.NodeID) {
		d := ir.New()
		x := d.Insert(&ir.NumberLit{Value: 50, Unit: ir.Millimeter}, ir.Span{})
		z := d.Insert(&ir.NumberLit{Value: depth, Unit: ir.Millimeter}, ir.Span{})
		box := d.Insert(&ir.Primitive{Shape: ir.ShapeBox, Params: []ir.NodeID{x, x, z}}, ir.Span{})
		r := d.Insert(&ir.NumberLit{Value: 3, Unit: ir.Millimeter}, ir.Span{})
		cyl := d.Insert(&ir.Primitive{Shape: ir.ShapeCylinder, Params: []ir.NodeID{r, z}}, ir.Span{})
		other := d.Insert(&ir.Primitive{Shape: ir.ShapeSphere, Params: []ir.NodeID{r}}, ir.Span{})
		root := d.Insert(&ir.Boolean{Op: ir.OpDifference, Left: box, Right: cyl}, ir.Span{})
		return d, []ir.NodeID{x, z, box, r, cyl, other, root}
	}
	da, ids := build(5)
	db, _ := build(6)
	ha, hb := New(da), New(db)

	var changed []ir.NodeID
	for _, id := range ids {
		if ha.Of(id) != hb.Of(id) {
			changed = append(changed, id)
		}
	}
	want := []ir.NodeID{ids[1], ids[2], ids[4], ids[6]}
	if !slices.Equal(changed, want) {
		t.Errorf("changed digests: got %v, want %v", changed, want)
	}
}

func TestHasher_MatchPatternsAffectDigest(t *testing.T) {
	d := ir.New()
	s := d.Insert(&ir.VarRef{Name: "s"}, ir.Span{})
	body := d.Insert(&ir.NumberLit{Value: 1}, ir.Span{})
	m1 := d.Insert(&ir.Match{Scrutinee: s, Arms: []ir.Arm{
		{Pattern: &ir.LiteralPat{Literal: &ir.NumberLit{Value: 1, Unit: ir.Centimeter}}, Body: body},
	}}, ir.Span{})
	m2 := d.Insert(&ir.Match{Scrutinee: s, Arms: []ir.Arm{
		{Pattern: &ir.LiteralPat{Literal: &ir.NumberLit{Value: 10, Unit: ir.Millimeter}}, Body: body},
	}}, ir.Span{})
	m3 := d.Insert(&ir.Match{Scrutinee: s, Arms: []ir.Arm{
		{Pattern: &ir.BindPat{Name: "x"}, Body: body},
	}}, ir.Span{})

	h := New(d)
	if h.Of(m1) != h.Of(m2) {
		t.Error("literal patterns equal after unit conversion must hash alike")
	}
	if h.Of(m1) == h.Of(m3) {
		t.Error("different patterns must hash differently")
	}
}

func TestBind(t *testing.T) {
	node := Sum([]byte("body"))
	a := Sum([]byte("a"))
	b := Sum([]byte("b"))

	k1 := Bind(node, []string{"r"}, []Digest{a})
	k2 := Bind(node, []string{"r"}, []Digest{a})
	k3 := Bind(node, []string{"r"}, []Digest{b})
	k4 := Bind(node, []string{"h"}, []Digest{a})

	if k1 != k2 {
		t.Error("Bind is not deterministic")
	}
	if k1 == k3 || k1 == k4 || k1 == node {
		t.Error("Bind must depend on the node, the names and the bound values")
	}
}

func TestBuiltin(t *testing.T) {
	if Builtin("vec3") != Builtin("vec3") {
		t.Error("Builtin is not deterministic")
	}
	if Builtin("vec3") == Builtin("sqrt") {
		t.Error("distinct builtins share a digest")
	}
}

func TestDigest_Format(t *testing.T) {
	d := Sum([]byte("x"))
	if len(d.String()) != 64 {
		t.Errorf("String length: got %d, want 64", len(d.String()))
	}
	if d.Short() != d.String()[:12] {
		t.Errorf("Short: got %s, want prefix of %s", d.Short(), d.String())
	}
	if d.IsZero() || !(Digest{}).IsZero() {
		t.Error("IsZero misreports")
	}
}
