package eval

import (
	"fmt"

	"github.com/chazu/covariant/ir"
)

// matchPattern tests v against p. On success it returns env extended with
// the names p binds.
func matchPattern(p ir.Pattern, v Value, env *Env) (*Env, bool, error) {
	switch p := p.(type) {
	case *ir.WildcardPat:
		return env, true, nil

	case *ir.BindPat:
		return env.Bind(p.Name, v), true, nil

	case *ir.LiteralPat:
		ok, err := matchLiteral(p.Literal, v)
		return env, ok, err

	case *ir.RecordPat:
		r, ok := v.(*Record)
		if !ok || p.TypeName != "" && p.TypeName != r.TypeName {
			return env, false, nil
		}
		for _, f := range p.Fields {
			fv, ok := r.Get(f.Name)
			if !ok {
				return env, false, nil
			}
			var matched bool
			var err error
			env, matched, err = matchPattern(f.Pattern, fv, env)
			if err != nil || !matched {
				return env, false, err
			}
		}
		return env, true, nil
	}
	return env, false, errorf(ErrInvariant, "unknown pattern %T", p)
}

// matchLiteral compares v with a literal pattern. Numbers compare in
// canonical units, so 1cm matches a 10mm value; a number of another
// dimension does not match.
func matchLiteral(lit ir.Node, v Value) (bool, error) {
	switch lit := lit.(type) {
	case *ir.NumberLit:
		n, ok := v.(*Number)
		return ok && n.Dim == lit.Unit.Dimension() && n.V == lit.Unit.ToCanonical(lit.Value), nil
	case *ir.StringLit:
		s, ok := v.(*String)
		return ok && s.V == lit.Value, nil
	case *ir.BoolLit:
		b, ok := v.(*Bool)
		return ok && b.V == lit.Value, nil
	}
	return false, errorf(ErrInvariant, "literal pattern holds %s", describe(lit))
}

func describe(n ir.Node) string {
	if n == nil {
		return "nothing"
	}
	return fmt.Sprintf("a %s node", n.Kind())
}
