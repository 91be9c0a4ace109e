package eval

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/chazu/covariant/cache"
	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/geom/csg"
	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
	"github.com/chazu/covariant/thread"
)

func evalRoot(t *testing.T, d *ir.DAG, root ir.NodeID, opts ...Option) (Value, error) {
	t.Helper()
	ev := New(d, nil, opts...)
	return ev.Eval(context.Background(), root, ev.Base())
}

func TestEval_Deterministic(t *testing.T) {
	d, root := plate(5)

	a, err := evalRoot(t, d, root, WithProvider(csg.New()))
	if err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	b, err := evalRoot(t, d, root, WithProvider(csg.New()))
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Errorf("digests differ: %s vs %s", a.Digest().Short(), b.Digest().Short())
	}
	if a.Kind() != KindSolid {
		t.Errorf("kind: got %s, want solid", a.Kind())
	}
}

func TestEval_StructurallyEqualSubgraphsComputeOnce(t *testing.T) {
	d, root := plate(5)
	p := csg.New()
	if _, err := evalRoot(t, d, root, WithProvider(p)); err != nil {
		t.Fatal(err)
	}
	if got := p.Calls("cylinder"); got != 1 {
		t.Errorf("cylinder calls: got %d, want 1", got)
	}
}

func TestEval_EditReusesUnchangedSubgraphs(t *testing.T) {
	c := cache.New[Value]()
	p := csg.New()
	ctx := context.Background()

	d1, root1 := plate(5)
	ev1 := New(d1, c, WithProvider(p))
	if _, err := ev1.Eval(ctx, root1, ev1.Base()); err != nil {
		t.Fatal(err)
	}

	d2, root2 := plate(6)
	ev2 := New(d2, c, WithProvider(p))
	if _, err := ev2.Eval(ctx, root2, ev2.Base()); err != nil {
		t.Fatal(err)
	}

	want := map[string]int{"box": 2, "cylinder": 1, "translate": 1, "union": 1, "difference": 2}
	for op, n := range want {
		if got := p.Calls(op); got != n {
			t.Errorf("%s calls: got %d, want %d", op, got, n)
		}
	}
}

func TestEval_DefaultParameters(t *testing.T) {
	tests := []struct {
		name    string
		args    func(b *builder) []ir.Arg
		want    float64
		wantErr error
	}{
		{
			name: "default fills unsupplied",
			args: func(b *builder) []ir.Arg { return []ir.Arg{pos(b.mm(3))} },
			want: 13,
		},
		{
			name: "positional overrides default",
			args: func(b *builder) []ir.Arg { return []ir.Arg{pos(b.mm(3)), pos(b.mm(1))} },
			want: 4,
		},
		{
			name: "named argument",
			args: func(b *builder) []ir.Arg { return []ir.Arg{named("h", b.mm(2)), pos(b.mm(3))} },
			want: 5,
		},
		{
			name: "second parameter positionally and by name",
			args: func(b *builder) []ir.Arg {
				return []ir.Arg{pos(b.mm(3)), pos(b.mm(1)), named("h", b.mm(2))}
			},
			wantErr: ErrBinding,
		},
		{
			name:    "missing required",
			args:    func(b *builder) []ir.Arg { return nil },
			wantErr: ErrBinding,
		},
		{
			name:    "unknown name",
			args:    func(b *builder) []ir.Arg { return []ir.Arg{pos(b.mm(3)), named("depth", b.mm(1))} },
			wantErr: ErrBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder()
			// fn(r, h = 10mm) -> r + h
			def := b.mm(10)
			body := b.bin(ir.OpAdd, b.ref("r"), b.ref("h"))
			f := b.add(&ir.Lambda{
				Params: []ir.Param{{Name: "r", Default: ir.NoNode}, {Name: "h", Default: def}},
				Body:   body,
			})
			root := b.call(f, tt.args(b)...)

			v, err := evalRoot(t, b.d, root)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			n, ok := v.(*Number)
			if !ok || n.V != tt.want || n.Dim != ir.Length {
				t.Errorf("got %s, want %gmm", v, tt.want)
			}
		})
	}
}

func TestEval_UnitArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      ir.BinOp
		l, r    func(b *builder) ir.NodeID
		want    *Number
		wantErr error
	}{
		{
			name: "cm plus mm",
			op:   ir.OpAdd,
			l:    func(b *builder) ir.NodeID { return b.num(1, ir.Centimeter) },
			r:    func(b *builder) ir.NodeID { return b.mm(5) },
			want: &Number{V: 15, Dim: ir.Length},
		},
		{
			name:    "length plus angle",
			op:      ir.OpAdd,
			l:       func(b *builder) ir.NodeID { return b.mm(1) },
			r:       func(b *builder) ir.NodeID { return b.num(90, ir.Degree) },
			wantErr: ErrUnitMismatch,
		},
		{
			name: "scalar times length",
			op:   ir.OpMul,
			l:    func(b *builder) ir.NodeID { return b.num(2, ir.NoUnit) },
			r:    func(b *builder) ir.NodeID { return b.mm(3) },
			want: &Number{V: 6, Dim: ir.Length},
		},
		{
			name:    "length times length",
			op:      ir.OpMul,
			l:       func(b *builder) ir.NodeID { return b.mm(2) },
			r:       func(b *builder) ir.NodeID { return b.mm(3) },
			wantErr: ErrUnitMismatch,
		},
		{
			name: "length over length",
			op:   ir.OpDiv,
			l:    func(b *builder) ir.NodeID { return b.mm(6) },
			r:    func(b *builder) ir.NodeID { return b.mm(2) },
			want: &Number{V: 3, Dim: ir.Scalar},
		},
		{
			name:    "division by zero",
			op:      ir.OpDiv,
			l:       func(b *builder) ir.NodeID { return b.mm(6) },
			r:       func(b *builder) ir.NodeID { return b.num(0, ir.NoUnit) },
			wantErr: ErrDivisionByZero,
		},
		{
			name:    "compare length with angle",
			op:      ir.OpLt,
			l:       func(b *builder) ir.NodeID { return b.mm(1) },
			r:       func(b *builder) ir.NodeID { return b.num(1, ir.Radian) },
			wantErr: ErrUnitMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder()
			root := b.bin(tt.op, tt.l(b), tt.r(b))
			v, err := evalRoot(t, b.d, root)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !Equal(v, tt.want) {
				t.Errorf("got %s, want %s", v, tt.want)
			}
		})
	}
}

func TestEval_ShortCircuit(t *testing.T) {
	b := newBuilder()
	bad := b.bin(ir.OpAdd, b.mm(1), b.num(1, ir.Degree))
	root := b.bin(ir.OpAnd, b.add(&ir.BoolLit{Value: false}), bad)

	v, err := evalRoot(t, b.d, root)
	if err != nil {
		t.Fatalf("right operand should not be evaluated: %v", err)
	}
	if bv, ok := v.(*Bool); !ok || bv.V {
		t.Errorf("got %s, want false", v)
	}
}

func TestEval_RecordUpdateLeavesSourceUnchanged(t *testing.T) {
	b := newBuilder()
	orig := b.add(&ir.Record{
		TypeName: "Bolt",
		Fields:   []ir.Field{{Name: "d", Value: b.mm(3)}, {Name: "len", Value: b.mm(10)}},
		Base:     ir.NoNode,
	})
	b.stmt("bolt", orig)
	upd := b.add(&ir.Record{Fields: []ir.Field{{Name: "len", Value: b.mm(20)}}, Base: b.ref("bolt")})
	b.stmt("longer", upd)

	ev := New(b.d, nil)
	res := ev.Run(context.Background())
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}

	bolt, _ := res.Lookup("bolt")
	longer, _ := res.Lookup("longer")
	got, _ := bolt.(*Record).Get("len")
	if n := got.(*Number); n.V != 10 {
		t.Errorf("source record len: got %s, want 10mm", n)
	}
	got, _ = longer.(*Record).Get("len")
	if n := got.(*Number); n.V != 20 {
		t.Errorf("updated record len: got %s, want 20mm", n)
	}
	if tn := longer.(*Record).TypeName; tn != "Bolt" {
		t.Errorf("updated record type: got %q, want Bolt", tn)
	}
	if d, _ := longer.(*Record).Get("d"); !Equal(d, &Number{V: 3, Dim: ir.Length}) {
		t.Errorf("copied field d: got %s", d)
	}
}

func TestEval_Match(t *testing.T) {
	build := func(scrutinee float64, u ir.Unit) (*ir.DAG, ir.NodeID) {
		b := newBuilder()
		s := b.num(scrutinee, u)
		one := b.str("one cm")
		two := b.str("two cm")
		root := b.add(&ir.Match{Scrutinee: s, Arms: []ir.Arm{
			{Pattern: &ir.LiteralPat{Literal: &ir.NumberLit{Value: 1, Unit: ir.Centimeter}}, Body: one},
			{Pattern: &ir.LiteralPat{Literal: &ir.NumberLit{Value: 2, Unit: ir.Centimeter}}, Body: two},
		}})
		return b.d, root
	}

	d, root := build(10, ir.Millimeter)
	v, err := evalRoot(t, d, root)
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := v.(*String); !ok || s.V != "one cm" {
		t.Errorf("10mm: got %s, want \"one cm\"", v)
	}

	d, root = build(3, ir.Millimeter)
	_, err = evalRoot(t, d, root)
	if !errors.Is(err, ErrMatchFailure) {
		t.Fatalf("3mm: got %v, want ErrMatchFailure", err)
	}
	if span, ok := SpanOf(err); !ok || span != d.Span(root) {
		t.Errorf("span: got %s, want %s", span, d.Span(root))
	}
}

func TestEval_RecordPatternBinds(t *testing.T) {
	b := newBuilder()
	rec := b.add(&ir.Record{
		TypeName: "Hole",
		Fields:   []ir.Field{{Name: "d", Value: b.mm(4)}},
		Base:     ir.NoNode,
	})
	body := b.bin(ir.OpMul, b.num(2, ir.NoUnit), b.ref("dia"))
	root := b.add(&ir.Match{Scrutinee: rec, Arms: []ir.Arm{
		{Pattern: &ir.RecordPat{TypeName: "Bolt"}, Body: b.mm(0)},
		{Pattern: &ir.RecordPat{TypeName: "Hole", Fields: []ir.FieldPat{
			{Name: "d", Pattern: &ir.BindPat{Name: "dia"}},
		}}, Body: body},
	}})

	v, err := evalRoot(t, b.d, root)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(v, &Number{V: 8, Dim: ir.Length}) {
		t.Errorf("got %s, want 8mm", v)
	}
}

func TestEval_UnboundName(t *testing.T) {
	b := newBuilder()
	root := b.ref("missing")
	_, err := evalRoot(t, b.d, root)
	if !errors.Is(err, ErrUnboundName) {
		t.Fatalf("got %v, want ErrUnboundName", err)
	}
	var ee *Error
	if !errors.As(err, &ee) || ee.Node != root {
		t.Errorf("error node: got %v, want %s", err, root)
	}
}

func TestEval_GeometryErrorCarriesSpan(t *testing.T) {
	b := newBuilder()
	bad := b.box(0, 10, 10)
	root := b.boolean(ir.OpUnion, b.cylinder(2, 2), bad)

	_, err := evalRoot(t, b.d, root, WithProvider(csg.New()))
	if !errors.Is(err, ErrGeometry) {
		t.Fatalf("got %v, want ErrGeometry", err)
	}
	var ge *GeometryError
	if !errors.As(err, &ge) {
		t.Fatalf("%v is not a *GeometryError", err)
	}
	if ge.Reason != geom.Degenerate {
		t.Errorf("reason: got %s, want degenerate", ge.Reason)
	}
	if ge.Span != b.d.Span(bad) {
		t.Errorf("span: got %s, want %s", ge.Span, b.d.Span(bad))
	}
}

func TestEval_NoProvider(t *testing.T) {
	b := newBuilder()
	root := b.cylinder(1, 1)
	if _, err := evalRoot(t, b.d, root); !errors.Is(err, ErrGeometry) {
		t.Fatalf("got %v, want ErrGeometry", err)
	}
}

func TestEval_ThreadedHole(t *testing.T) {
	b := newBuilder()
	ok := b.add(&ir.ThreadedHole{Standard: "ISO", Size: "M3", Hole: ir.HoleClearance, Depth: b.mm(5)})
	bad := b.add(&ir.ThreadedHole{Standard: "ISO", Size: "M7", Hole: ir.HoleTap, Depth: b.mm(5)})

	p := csg.New()
	ev := New(b.d, nil, WithProvider(p))
	ctx := context.Background()

	if _, err := ev.Eval(ctx, ok, ev.Base()); err != nil {
		t.Fatalf("M3: %v", err)
	}
	if got := p.Calls("cylinder"); got != 1 {
		t.Errorf("cylinder calls: got %d, want 1", got)
	}

	_, err := ev.Eval(ctx, bad, ev.Base())
	if !errors.Is(err, ErrUnknownThreadSize) {
		t.Fatalf("M7: got %v, want ErrUnknownThreadSize", err)
	}
	if !errors.Is(err, thread.ErrUnknownSize) {
		t.Errorf("M7: %v does not wrap thread.ErrUnknownSize", err)
	}
	if span, _ := SpanOf(err); span != b.d.Span(bad) {
		t.Errorf("span: got %s, want %s", span, b.d.Span(bad))
	}
}

func TestEval_LoweringError(t *testing.T) {
	b := newBuilder()
	diag := ir.Diagnostic{Message: "unexpected token", Span: ir.NewSpan(7, 9)}
	root := b.add(&ir.ErrorNode{Diagnostic: diag})

	_, err := evalRoot(t, b.d, root)
	if !errors.Is(err, ErrLowering) {
		t.Fatalf("got %v, want ErrLowering", err)
	}
	if span, _ := SpanOf(err); span != diag.Span {
		t.Errorf("span: got %s, want %s", span, diag.Span)
	}
}

func TestEval_SelfApplication(t *testing.T) {
	b := newBuilder()
	// (fn(g) -> g(g))(fn(g) -> g(g))
	omega := func() ir.NodeID {
		body := b.call(b.ref("g"), pos(b.ref("g")))
		return b.add(&ir.Lambda{Params: []ir.Param{{Name: "g", Default: ir.NoNode}}, Body: body})
	}
	root := b.call(omega(), pos(omega()))

	_, err := evalRoot(t, b.d, root)
	if !errors.Is(err, ErrRecursion) {
		t.Fatalf("got %v, want ErrRecursion", err)
	}
}

func TestEval_CancelledContextCommitsNothing(t *testing.T) {
	d, root := plate(5)
	c := cache.New[Value]()
	ev := New(d, c, WithProvider(csg.New()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ev.Eval(ctx, root, ev.Base()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if c.Len() != 0 {
		t.Errorf("cache entries after cancellation: got %d, want 0", c.Len())
	}
}

func TestEval_ClosureOutlivesItsDAG(t *testing.T) {
	c := cache.New[Value]()
	ctx := context.Background()

	build := func(arg float64) *ir.DAG {
		b := newBuilder()
		body := b.bin(ir.OpMul, b.ref("x"), b.num(2, ir.NoUnit))
		f := b.add(&ir.Lambda{Params: []ir.Param{{Name: "x", Default: ir.NoNode}}, Body: body})
		b.stmt("double", f)
		b.stmt("out", b.call(b.ref("double"), pos(b.mm(arg))))
		return b.d
	}

	ev1 := New(build(3), c)
	if err := ev1.Run(ctx).Err(); err != nil {
		t.Fatal(err)
	}
	ev2 := New(build(4), c)
	res := ev2.Run(ctx)
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}

	f, _ := res.Lookup("double")
	if f.(*Closure).prog != ev1.prog {
		t.Errorf("closure should come from the first DAG's cache entry")
	}
	out, _ := res.Lookup("out")
	if !Equal(out, &Number{V: 8, Dim: ir.Length}) {
		t.Errorf("out: got %s, want 8mm", out)
	}
}

func TestEval_ClosureEquality(t *testing.T) {
	b := newBuilder()
	id := b.add(&ir.Lambda{Params: []ir.Param{{Name: "x", Default: ir.NoNode}}, Body: b.ref("x")})
	b.stmt("f", id)

	// let g = f in g == f
	alias := b.stmt("alias", b.add(&ir.Let{
		Name:  "g",
		Value: b.ref("f"),
		Body:  b.bin(ir.OpEq, b.ref("g"), b.ref("f")),
	}))

	// mk = fn(n) -> fn(x) -> x * n; mk(2) == mk(3)
	inner := b.add(&ir.Lambda{
		Params: []ir.Param{{Name: "x", Default: ir.NoNode}},
		Body:   b.bin(ir.OpMul, b.ref("x"), b.ref("n")),
	})
	b.stmt("mk", b.add(&ir.Lambda{Params: []ir.Param{{Name: "n", Default: ir.NoNode}}, Body: inner}))
	distinct := b.stmt("distinct", b.bin(ir.OpEq,
		b.call(b.ref("mk"), pos(b.num(2, ir.NoUnit))),
		b.call(b.ref("mk"), pos(b.num(3, ir.NoUnit))),
	))

	res := New(b.d, nil).Run(context.Background())
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		node ir.NodeID
		want bool
	}{
		{"alias", alias, true},
		{"distinct", distinct, false},
	}
	for _, tt := range tests {
		v, _ := res.Lookup(tt.name)
		if !Equal(v, &Bool{V: tt.want}) {
			t.Errorf("%s (%s): got %v, want %v", tt.name, tt.node, v, tt.want)
		}
	}

	f, _ := res.Lookup("f")
	g := f.withDigest(hash.Sum([]byte("alias")))
	if g.Digest() == f.Digest() || !Equal(f, g) {
		t.Error("a re-stamped closure should keep comparing equal to its source")
	}
}

func TestRun_FailedStatementLeavesNameUnbound(t *testing.T) {
	b := newBuilder()
	b.stmt("a", b.bin(ir.OpAdd, b.mm(1), b.num(1, ir.Degree)))
	b.stmt("b", b.ref("a"))
	b.stmt("c", b.num(2, ir.NoUnit))

	res := New(b.d, nil).Run(context.Background())
	if len(res.Statements) != 3 {
		t.Fatalf("statements: got %d, want 3", len(res.Statements))
	}
	if !errors.Is(res.Statements[0].Err, ErrUnitMismatch) {
		t.Errorf("a: got %v, want ErrUnitMismatch", res.Statements[0].Err)
	}
	if !errors.Is(res.Statements[1].Err, ErrUnboundName) {
		t.Errorf("b: got %v, want ErrUnboundName", res.Statements[1].Err)
	}
	if res.Statements[2].Err != nil {
		t.Errorf("c: %v", res.Statements[2].Err)
	}
	if _, ok := res.Lookup("a"); ok {
		t.Error("a should be unbound")
	}
}

func TestEval_TraceRegistersOnHit(t *testing.T) {
	b := newBuilder()
	root := b.add(&ir.Trace{Label: "wall", Operand: b.mm(2)})
	c := cache.New[Value]()
	ctx := context.Background()

	ev := New(b.d, c)
	for range 2 {
		if _, err := ev.Eval(ctx, root, ev.Base()); err != nil {
			t.Fatal(err)
		}
	}
	if got := ev.Traces().Entries(); len(got) != 1 || got[0].Label != "wall" {
		t.Fatalf("entries: got %+v, want one \"wall\"", got)
	}

	// A fresh evaluator over the same cache hits and still registers.
	ev2 := New(b.d, c)
	if _, err := ev2.Eval(ctx, root, ev2.Base()); err != nil {
		t.Fatal(err)
	}
	if got := ev2.Traces().Entries(); len(got) != 1 {
		t.Errorf("entries after hit: got %d, want 1", len(got))
	}
	if s := c.Stats(); s.Hits == 0 {
		t.Errorf("expected a cache hit, stats %+v", s)
	}
}

func TestEval_Builtins(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args func(b *builder) []ir.Arg
		want Value
	}{
		{"sqrt", "sqrt", func(b *builder) []ir.Arg { return []ir.Arg{pos(b.num(16, ir.NoUnit))} }, &Number{V: 4}},
		{"max", "max", func(b *builder) []ir.Arg { return []ir.Arg{pos(b.mm(2)), pos(b.num(1, ir.Centimeter))} }, &Number{V: 10, Dim: ir.Length}},
		{"abs", "abs", func(b *builder) []ir.Arg { return []ir.Arg{pos(b.num(-3, ir.Millimeter))} }, &Number{V: 3, Dim: ir.Length}},
		{"deg", "deg", func(b *builder) []ir.Arg { return []ir.Arg{pos(b.num(180, ir.NoUnit))} }, &Number{V: ir.Degree.ToCanonical(180), Dim: ir.Angle}},
		{"len", "len", func(b *builder) []ir.Arg {
			return []ir.Arg{pos(b.add(&ir.List{Elems: []ir.NodeID{b.mm(1), b.mm(2)}}))}
		}, &Number{V: 2}},
		{"concat", "concat", func(b *builder) []ir.Arg { return []ir.Arg{pos(b.str("M")), pos(b.str("3"))} }, &String{V: "M3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder()
			root := b.call(b.ref(tt.fn), tt.args(b)...)
			v, err := evalRoot(t, b.d, root)
			if err != nil {
				t.Fatal(err)
			}
			if !Equal(v, tt.want) {
				t.Errorf("got %s, want %s", v, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	b := newBuilder()
	lit := b.mm(2)
	x := b.ref("x")
	ev := New(b.d, nil)

	if got := ev.Key(lit, nil); got != ev.Hasher().Of(lit) {
		t.Errorf("closed node key should equal its digest")
	}
	one := (&Number{V: 1}).withDigest(ev.Key(lit, nil))
	two := (&Number{V: 2}).withDigest(ev.Hasher().Of(x))
	if ev.Key(x, (*Env)(nil).Bind("x", one)) == ev.Key(x, (*Env)(nil).Bind("x", two)) {
		t.Errorf("references bound to different values must have different keys")
	}
	if ev.Key(x, (*Env)(nil).Bind("x", one)) != ev.Key(x, (*Env)(nil).Bind("y", two).Bind("x", one)) {
		t.Errorf("unrelated bindings must not affect the key")
	}
}

func TestReplay_VisitsFunctionBodies(t *testing.T) {
	b := newBuilder()
	// hole = fn(r) -> cylinder(r, 10mm)
	cyl := b.add(&ir.Primitive{Shape: ir.ShapeCylinder, Params: []ir.NodeID{b.ref("r"), b.mm(10)}})
	b.stmt("hole", b.add(&ir.Lambda{Params: []ir.Param{{Name: "r", Default: ir.NoNode}}, Body: cyl}))
	// plate = difference(box(50, 50, 5), hole(3mm))
	box := b.box(50, 50, 5)
	root := b.stmt("plate", b.boolean(ir.OpDifference, box, b.call(b.ref("hole"), pos(b.mm(3)))))

	p := csg.New()
	ev := New(b.d, nil, WithProvider(p))
	ctx := context.Background()
	res := ev.Run(ctx)
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}
	calls := p.TotalCalls()

	var visited []ir.NodeID
	env := ev.Base()
	for _, st := range res.Statements {
		v, err := ev.Replay(ctx, st.Node, env, func(id ir.NodeID, _ *Env, v Value, err error) {
			if err != nil || v.Kind() != KindSolid {
				t.Errorf("visit %s: %v, %v", id, v, err)
			}
			visited = append(visited, id)
		})
		if err != nil {
			t.Fatal(err)
		}
		if want, _ := res.Lookup(st.Name); v.Digest() != want.Digest() {
			t.Errorf("%s: replayed digest %s, want %s", st.Name, v.Digest().Short(), want.Digest().Short())
		}
		env = env.Bind(st.Name, v)
	}

	if want := []ir.NodeID{box, cyl, root}; !slices.Equal(visited, want) {
		t.Errorf("visited %v, want %v", visited, want)
	}
	if p.TotalCalls() != calls {
		t.Errorf("replay called the provider %d times", p.TotalCalls()-calls)
	}
}
