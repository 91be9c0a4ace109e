package ir

import (
	"slices"
	"testing"
)

func TestScopes_Free(t *testing.T) {
	d := sampleDAG()
	s := NewScopes(d)

	stmts := d.Statements()
	plate, lam, root := stmts[0].Node, stmts[1].Node, stmts[2].Node

	if !s.Closed(plate) {
		t.Errorf("box of literals should be closed, free = %v", s.Free(plate))
	}
	if !s.Closed(lam) {
		t.Errorf("lambda binding all its names should be closed, free = %v", s.Free(lam))
	}
	body := d.Node(lam).(*Lambda).Body
	if got := s.Free(body); !slices.Equal(got, []string{"h", "r"}) {
		t.Errorf("lambda body free: got %v, want [h r]", got)
	}
	if got := s.Free(root); !slices.Equal(got, []string{"hole", "plate", "vec3"}) {
		t.Errorf("root free: got %v, want [hole plate vec3]", got)
	}
}

func TestScopes_LetAndMatchBindings(t *testing.T) {
	d := New()
	v := d.Insert(&NumberLit{Value: 2}, Span{})
	x := d.Insert(&VarRef{Name: "x"}, Span{})
	y := d.Insert(&VarRef{Name: "y"}, Span{})
	sum := d.Insert(&BinaryOp{Op: OpAdd, Left: x, Right: y}, Span{})
	let := d.Insert(&Let{Name: "x", Value: v, Body: sum}, Span{})

	q := d.Insert(&VarRef{Name: "q"}, Span{})
	w := d.Insert(&VarRef{Name: "w"}, Span{})
	m := d.Insert(&Match{Scrutinee: q, Arms: []Arm{
		{Pattern: &RecordPat{Fields: []FieldPat{{Name: "width", Pattern: &BindPat{Name: "w"}}}}, Body: w},
		{Pattern: &WildcardPat{}, Body: x},
	}}, Span{})

	s := NewScopes(d)
	if got := s.Free(let); !slices.Equal(got, []string{"y"}) {
		t.Errorf("let free: got %v, want [y]", got)
	}
	if got := s.Free(m); !slices.Equal(got, []string{"q", "x"}) {
		t.Errorf("match free: got %v, want [q x]", got)
	}
}

func TestScopes_LambdaDefaultsSeeOuterScope(t *testing.T) {
	d := New()
	outer := d.Insert(&VarRef{Name: "r"}, Span{})
	body := d.Insert(&VarRef{Name: "r"}, Span{})
	lam := d.Insert(&Lambda{Params: []Param{{Name: "r", Default: outer}}, Body: body}, Span{})

	s := NewScopes(d)
	if got := s.Free(lam); !slices.Equal(got, []string{"r"}) {
		t.Errorf("default expressions are evaluated outside the parameter scope: got %v", got)
	}
}
