package diff

import (
	"context"
	"slices"
	"testing"

	"github.com/chazu/covariant/cache"
	"github.com/chazu/covariant/eval"
	"github.com/chazu/covariant/geom/csg"
	"github.com/chazu/covariant/ir"
)

type builder struct {
	d   *ir.DAG
	pos uint32
}

func (b *builder) add(n ir.Node) ir.NodeID {
	id := b.d.Insert(n, ir.NewSpan(b.pos, b.pos+4))
	b.pos += 5
	return id
}

func (b *builder) mm(v float64) ir.NodeID {
	return b.add(&ir.NumberLit{Value: v, Unit: ir.Millimeter})
}

func (b *builder) prim(s ir.Shape, params ...ir.NodeID) ir.NodeID {
	return b.add(&ir.Primitive{Shape: s, Params: params})
}

// plate lowers difference(box(50, 50, t), union(cyl, translate(cyl, vec3(20, 0, 0)))).
// It returns the DAG and the ids of the thickness literal, the box and
// the root.
func plate(t float64) (d *ir.DAG, lit, box, root ir.NodeID) {
	b := &builder{d: ir.New()}
	lit = b.mm(t)
	box = b.prim(ir.ShapeBox, b.mm(50), b.mm(50), lit)
	c1 := b.prim(ir.ShapeCylinder, b.mm(3), b.mm(10))
	c2 := b.prim(ir.ShapeCylinder, b.mm(3), b.mm(10))
	vec := b.add(&ir.Call{
		Callee: b.add(&ir.VarRef{Name: "vec3"}),
		Args:   []ir.Arg{{Value: b.mm(20)}, {Value: b.mm(0)}, {Value: b.mm(0)}},
	})
	moved := b.add(&ir.Transform{Op: ir.OpTranslate, Target: c2, Params: []ir.NodeID{vec}})
	union := b.add(&ir.Boolean{Op: ir.OpUnion, Left: c1, Right: moved})
	root = b.add(&ir.Boolean{Op: ir.OpDifference, Left: box, Right: union})
	b.d.AddStatement("plate", root, b.d.Span(root))
	return b.d, lit, box, root
}

func plan(d *ir.DAG, c *cache.Cache[eval.Value]) (*Result, *eval.Evaluator) {
	ev := eval.New(d, c, eval.WithProvider(csg.New()))
	return Plan(d, ev.Hasher(), ev.Scopes(), eval.BaseDigests(), c.Contains), ev
}

func TestPlan_EverythingDirtyOnFirstLoad(t *testing.T) {
	d, _, _, _ := plate(5)
	res, _ := plan(d, cache.New[eval.Value]())

	if got := len(res.Dirty()); got != d.Len() {
		t.Errorf("dirty: got %d, want all %d nodes", got, d.Len())
	}
}

func TestPlan_CleanAfterEvaluation(t *testing.T) {
	d, _, _, _ := plate(5)
	c := cache.New[eval.Value]()
	_, ev := plan(d, c)
	if err := ev.Run(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}

	res, _ := plan(d, c)
	if dirty := res.Dirty(); len(dirty) != 0 {
		t.Errorf("dirty after evaluation: %v", dirty)
	}
}

func TestPlan_EditDirtiesOnlyAncestors(t *testing.T) {
	c := cache.New[eval.Value]()
	d1, _, _, _ := plate(5)
	_, ev := plan(d1, c)
	if err := ev.Run(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}

	d2, lit, box, root := plate(6)
	res, _ := plan(d2, c)
	want := []ir.NodeID{lit, box, root}
	if got := res.Dirty(); !slices.Equal(got, want) {
		t.Errorf("dirty: got %v, want %v", got, want)
	}
	if got := len(res.Deferred()); got != 0 {
		t.Errorf("deferred: got %d, want 0", got)
	}
}

func TestPlan_KeysMatchEvaluator(t *testing.T) {
	b := &builder{d: ir.New()}
	// w = 5mm; let h = w * 2 in box(w, w, h)
	w := b.mm(5)
	b.d.AddStatement("w", w, b.d.Span(w))
	two := b.add(&ir.NumberLit{Value: 2})
	h := b.add(&ir.BinaryOp{Op: ir.OpMul, Left: b.add(&ir.VarRef{Name: "w"}), Right: two})
	wref := b.add(&ir.VarRef{Name: "w"})
	box := b.prim(ir.ShapeBox, wref, wref, b.add(&ir.VarRef{Name: "h"}))
	let := b.add(&ir.Let{Name: "h", Value: h, Body: box})
	b.d.AddStatement("", let, b.d.Span(let))

	c := cache.New[eval.Value]()
	_, ev := plan(b.d, c)
	if err := ev.Run(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}
	res, _ := plan(b.d, c)
	for i, st := range res.Status {
		if st != Clean {
			t.Errorf("n%d: got %s, want clean", i, st)
		}
	}

	ctx, ok := res.Context(box)
	if !ok {
		t.Fatal("box has no context")
	}
	if ctx.Statement != 1 || len(ctx.Bindings) != 1 || ctx.Bindings[0] != (Binding{Name: "h", Node: h}) {
		t.Errorf("box context: got %+v", ctx)
	}
	if target, ok := res.Resolve(wref); !ok || target != w {
		t.Errorf("Resolve(w): got %s %v, want %s", target, ok, w)
	}
}

func TestPlan_LambdaBodiesAreDeferred(t *testing.T) {
	b := &builder{d: ir.New()}
	// hole = fn(r) -> cylinder(r, 10mm)
	body := b.prim(ir.ShapeCylinder, b.add(&ir.VarRef{Name: "r"}), b.mm(10))
	lam := b.add(&ir.Lambda{Params: []ir.Param{{Name: "r", Default: ir.NoNode}}, Body: body})
	b.d.AddStatement("hole", lam, b.d.Span(lam))

	res, _ := plan(b.d, cache.New[eval.Value]())
	if got := res.Status[body]; got != Deferred {
		t.Errorf("body: got %s, want deferred", got)
	}
	if got := res.Status[lam]; got != Dirty {
		t.Errorf("lambda: got %s, want dirty", got)
	}
	if slices.Contains(res.Dirty(), body) {
		t.Error("deferred node listed as dirty")
	}
	if _, ok := res.Context(body); ok {
		t.Error("deferred node should have no context")
	}
}
