package eval

import (
	"math"

	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/ir"
)

// binary applies a strict binary operator. && and || short-circuit in the
// evaluator and reach this function only when both sides are needed.
func binary(op ir.BinOp, l, r Value) (Value, error) {
	switch op {
	case ir.OpEq, ir.OpNeq:
		eq, err := equalOperands(l, r)
		if err != nil {
			return nil, err
		}
		return &Bool{V: eq == (op == ir.OpEq)}, nil
	case ir.OpAnd, ir.OpOr:
		lb, lok := l.(*Bool)
		rb, rok := r.(*Bool)
		if !lok || !rok {
			return nil, errorf(ErrType, "%s needs bools, got %s and %s", op, l.Kind(), r.Kind())
		}
		if op == ir.OpAnd {
			return &Bool{V: lb.V && rb.V}, nil
		}
		return &Bool{V: lb.V || rb.V}, nil
	}

	switch l := l.(type) {
	case *Number:
		switch r := r.(type) {
		case *Number:
			return numberOp(op, l, r)
		case *Vec3:
			if op == ir.OpMul {
				return scaleVec(r, l)
			}
		}
	case *Vec3:
		switch r := r.(type) {
		case *Vec3:
			return vecOp(op, l, r)
		case *Number:
			switch op {
			case ir.OpMul:
				return scaleVec(l, r)
			case ir.OpDiv:
				if r.Dim != ir.Scalar {
					return nil, errorf(ErrUnitMismatch, "cannot divide a vector by %s", r.Dim)
				}
				if r.V == 0 {
					return nil, errorf(ErrDivisionByZero, "vector divided by zero")
				}
				return &Vec3{V: l.V.Scale(1 / r.V), Dim: l.Dim}, nil
			}
		}
	case *String:
		if r, ok := r.(*String); ok && op == ir.OpAdd {
			return &String{V: l.V + r.V}, nil
		}
	case *List:
		if r, ok := r.(*List); ok && op == ir.OpAdd {
			return concatLists(l, r), nil
		}
	}
	return nil, errorf(ErrType, "operator %s is not defined for %s and %s", op, l.Kind(), r.Kind())
}

func numberOp(op ir.BinOp, l, r *Number) (Value, error) {
	switch op {
	case ir.OpAdd, ir.OpSub:
		if l.Dim != r.Dim {
			return nil, errorf(ErrUnitMismatch, "%s %s %s", l.Dim, op, r.Dim)
		}
		if op == ir.OpAdd {
			return &Number{V: l.V + r.V, Dim: l.Dim}, nil
		}
		return &Number{V: l.V - r.V, Dim: l.Dim}, nil

	case ir.OpMul:
		dim, ok := productDim(l.Dim, r.Dim)
		if !ok {
			return nil, errorf(ErrUnitMismatch, "%s %s %s", l.Dim, op, r.Dim)
		}
		return &Number{V: l.V * r.V, Dim: dim}, nil

	case ir.OpDiv:
		var dim ir.Dimension
		switch {
		case l.Dim == r.Dim:
			dim = ir.Scalar
		case r.Dim == ir.Scalar:
			dim = l.Dim
		default:
			return nil, errorf(ErrUnitMismatch, "%s %s %s", l.Dim, op, r.Dim)
		}
		if r.V == 0 {
			return nil, errorf(ErrDivisionByZero, "%s divided by zero", l)
		}
		return &Number{V: l.V / r.V, Dim: dim}, nil

	case ir.OpLt, ir.OpLeq, ir.OpGt, ir.OpGeq:
		if l.Dim != r.Dim {
			return nil, errorf(ErrUnitMismatch, "%s %s %s", l.Dim, op, r.Dim)
		}
		var b bool
		switch op {
		case ir.OpLt:
			b = l.V < r.V
		case ir.OpLeq:
			b = l.V <= r.V
		case ir.OpGt:
			b = l.V > r.V
		case ir.OpGeq:
			b = l.V >= r.V
		}
		return &Bool{V: b}, nil
	}
	return nil, errorf(ErrType, "operator %s is not defined for numbers", op)
}

// productDim returns the dimension of a product: at most one factor may
// carry a dimension.
func productDim(a, b ir.Dimension) (ir.Dimension, bool) {
	switch {
	case a == ir.Scalar:
		return b, true
	case b == ir.Scalar:
		return a, true
	}
	return 0, false
}

func vecOp(op ir.BinOp, l, r *Vec3) (Value, error) {
	if op != ir.OpAdd && op != ir.OpSub {
		return nil, errorf(ErrType, "operator %s is not defined for vectors", op)
	}
	if l.Dim != r.Dim {
		return nil, errorf(ErrUnitMismatch, "%s vector %s %s vector", l.Dim, op, r.Dim)
	}
	if op == ir.OpAdd {
		return &Vec3{V: l.V.Add(r.V), Dim: l.Dim}, nil
	}
	return &Vec3{V: l.V.Sub(r.V), Dim: l.Dim}, nil
}

func scaleVec(v *Vec3, n *Number) (Value, error) {
	dim, ok := productDim(v.Dim, n.Dim)
	if !ok {
		return nil, errorf(ErrUnitMismatch, "%s vector * %s", v.Dim, n.Dim)
	}
	return &Vec3{V: v.V.Scale(n.V), Dim: dim}, nil
}

func concatLists(a, b *List) *List {
	elems := make([]Value, 0, len(a.Elems)+len(b.Elems))
	elems = append(elems, a.Elems...)
	return &List{Elems: append(elems, b.Elems...)}
}

// equalOperands implements == and !=. Numbers of different dimensions
// cannot be compared.
func equalOperands(l, r Value) (bool, error) {
	if ln, ok := l.(*Number); ok {
		if rn, ok := r.(*Number); ok && ln.Dim != rn.Dim {
			return false, errorf(ErrUnitMismatch, "%s == %s", ln.Dim, rn.Dim)
		}
	}
	return Equal(l, r), nil
}

func unary(op ir.UnOp, v Value) (Value, error) {
	switch op {
	case ir.OpNeg:
		switch v := v.(type) {
		case *Number:
			return &Number{V: -v.V, Dim: v.Dim}, nil
		case *Vec3:
			return &Vec3{V: v.V.Scale(-1), Dim: v.Dim}, nil
		}
	case ir.OpNot:
		if b, ok := v.(*Bool); ok {
			return &Bool{V: !b.V}, nil
		}
	}
	return nil, errorf(ErrType, "operator %s is not defined for %s", op, v.Kind())
}

// ---------------------------------------------------------------------------
// Conversions used by geometry and builtins
// ---------------------------------------------------------------------------

// asLength reads a length in millimeters. Unitless numbers are taken as
// millimeters.
func asLength(what string, v Value) (float64, error) {
	n, ok := v.(*Number)
	if !ok {
		return 0, errorf(ErrType, "%s must be a length, got %s", what, v.Kind())
	}
	if n.Dim == ir.Angle {
		return 0, errorf(ErrUnitMismatch, "%s must be a length, got an angle", what)
	}
	return n.V, nil
}

// asAngle reads an angle in radians. Unitless numbers are taken as
// radians.
func asAngle(what string, v Value) (float64, error) {
	n, ok := v.(*Number)
	if !ok {
		return 0, errorf(ErrType, "%s must be an angle, got %s", what, v.Kind())
	}
	if n.Dim == ir.Length {
		return 0, errorf(ErrUnitMismatch, "%s must be an angle, got a length", what)
	}
	return n.V, nil
}

func asScalar(what string, v Value) (float64, error) {
	n, ok := v.(*Number)
	if !ok {
		return 0, errorf(ErrType, "%s must be a number, got %s", what, v.Kind())
	}
	if n.Dim != ir.Scalar {
		return 0, errorf(ErrUnitMismatch, "%s must be unitless, got %s", what, n.Dim)
	}
	return n.V, nil
}

// asVector reads a vector whose dimension is dim or Scalar.
func asVector(what string, v Value, dim ir.Dimension) (geom.Vec3, error) {
	vv, ok := v.(*Vec3)
	if !ok {
		return geom.Vec3{}, errorf(ErrType, "%s must be a vec3, got %s", what, v.Kind())
	}
	if vv.Dim != dim && vv.Dim != ir.Scalar {
		return geom.Vec3{}, errorf(ErrUnitMismatch, "%s must be a %s vector, got %s", what, dim, vv.Dim)
	}
	return vv.V, nil
}

func asSolid(what string, v Value) (geom.Handle, error) {
	s, ok := v.(*Solid)
	if !ok {
		return nil, errorf(ErrType, "%s must be a solid, got %s", what, v.Kind())
	}
	return s.Handle, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
