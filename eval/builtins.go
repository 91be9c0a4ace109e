package eval

import (
	"math"
	"unicode/utf8"

	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

func required(names ...string) []BuiltinParam {
	params := make([]BuiltinParam, len(names))
	for i, n := range names {
		params[i] = BuiltinParam{Name: n}
	}
	return params
}

var builtins = []*Builtin{
	{Name: "vec3", Params: required("x", "y", "z"), fn: builtinVec3},
	{Name: "sqrt", Params: required("x"), fn: builtinSqrt},
	{Name: "abs", Params: required("x"), fn: builtinAbs},
	{Name: "min", Params: required("a", "b"), fn: func(args []Value) (Value, error) {
		return pick("min", args, func(a, b float64) bool { return a <= b })
	}},
	{Name: "max", Params: required("a", "b"), fn: func(args []Value) (Value, error) {
		return pick("max", args, func(a, b float64) bool { return a >= b })
	}},
	{Name: "len", Params: required("x"), fn: builtinLen},
	{Name: "concat", Params: required("a", "b"), fn: builtinConcat},
	{Name: "deg", Params: required("x"), fn: builtinDeg},
}

// constants are bound in the base environment next to the builtins.
var constants = map[string]Value{
	"pi": &Number{V: math.Pi, Dim: ir.Scalar},
}

// BaseEnv returns the environment every program starts in: the builtin
// functions and constants, each stamped with its fixed digest.
func BaseEnv() *Env {
	var env *Env
	for _, b := range builtins {
		env = env.Bind(b.Name, b.withDigest(hash.Builtin(b.Name)))
	}
	for _, name := range []string{"pi"} {
		env = env.Bind(name, constants[name].withDigest(hash.Builtin(name)))
	}
	return env
}

// BaseDigests maps every name of BaseEnv to the digest bound to it.
func BaseDigests() map[string]hash.Digest {
	m := make(map[string]hash.Digest)
	for _, name := range BaseEnv().Names() {
		m[name] = hash.Builtin(name)
	}
	return m
}

func builtinVec3(args []Value) (Value, error) {
	var out [3]float64
	dim := ir.Scalar
	for i, a := range args {
		n, ok := a.(*Number)
		if !ok {
			return nil, errorf(ErrType, "vec3 components must be numbers, got %s", a.Kind())
		}
		if n.Dim == ir.Angle {
			return nil, errorf(ErrUnitMismatch, "vec3 components cannot be angles")
		}
		if i > 0 && n.Dim != dim {
			return nil, errorf(ErrUnitMismatch, "vec3 mixes %s and %s components", dim, n.Dim)
		}
		dim = n.Dim
		out[i] = n.V
	}
	v := &Vec3{Dim: dim}
	v.V.X, v.V.Y, v.V.Z = out[0], out[1], out[2]
	return v, nil
}

func builtinSqrt(args []Value) (Value, error) {
	x, err := asScalar("sqrt argument", args[0])
	if err != nil {
		return nil, err
	}
	if x < 0 || !finite(x) {
		return nil, errorf(ErrType, "sqrt of %g", x)
	}
	return &Number{V: math.Sqrt(x)}, nil
}

func builtinAbs(args []Value) (Value, error) {
	switch v := args[0].(type) {
	case *Number:
		return &Number{V: math.Abs(v.V), Dim: v.Dim}, nil
	case *Vec3:
		return &Number{V: v.V.Len(), Dim: v.Dim}, nil
	}
	return nil, errorf(ErrType, "abs needs a number or vec3, got %s", args[0].Kind())
}

func pick(name string, args []Value, first func(a, b float64) bool) (Value, error) {
	a, aok := args[0].(*Number)
	b, bok := args[1].(*Number)
	if !aok || !bok {
		return nil, errorf(ErrType, "%s needs numbers, got %s and %s", name, args[0].Kind(), args[1].Kind())
	}
	if a.Dim != b.Dim {
		return nil, errorf(ErrUnitMismatch, "%s of %s and %s", name, a.Dim, b.Dim)
	}
	if first(a.V, b.V) {
		return &Number{V: a.V, Dim: a.Dim}, nil
	}
	return &Number{V: b.V, Dim: b.Dim}, nil
}

func builtinLen(args []Value) (Value, error) {
	switch v := args[0].(type) {
	case *List:
		return &Number{V: float64(len(v.Elems))}, nil
	case *String:
		return &Number{V: float64(utf8.RuneCountInString(v.V))}, nil
	}
	return nil, errorf(ErrType, "len needs a list or string, got %s", args[0].Kind())
}

func builtinConcat(args []Value) (Value, error) {
	switch a := args[0].(type) {
	case *List:
		if b, ok := args[1].(*List); ok {
			return concatLists(a, b), nil
		}
	case *String:
		if b, ok := args[1].(*String); ok {
			return &String{V: a.V + b.V}, nil
		}
	}
	return nil, errorf(ErrType, "concat needs two lists or two strings, got %s and %s", args[0].Kind(), args[1].Kind())
}

func builtinDeg(args []Value) (Value, error) {
	x, err := asScalar("deg argument", args[0])
	if err != nil {
		return nil, err
	}
	return &Number{V: ir.Degree.ToCanonical(x), Dim: ir.Angle}, nil
}
