package eval

import (
	"context"
	"errors"

	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/ir"
	"github.com/chazu/covariant/thread"
)

// ThreadLookup resolves a thread size to the hole drilled for it.
type ThreadLookup func(standard, size string, kind ir.HoleKind) (thread.Hole, error)

// geometry evaluates the operands of a geometry node and calls the
// provider.
func (ev *Evaluator) geometry(ctx context.Context, p *program, id ir.NodeID, n ir.Node, env *Env) (Value, error) {
	if ev.provider == nil {
		return nil, errorf(ErrGeometry, "no geometry provider configured")
	}
	args, err := ev.evalAll(ctx, p, n.Operands(), env)
	if err != nil {
		return nil, err
	}

	var (
		op string
		h  geom.Handle
	)
	switch n := n.(type) {
	case *ir.Primitive:
		op = n.Shape.String()
		h, err = ev.primitive(ctx, n.Shape, args)
	case *ir.Boolean:
		op = n.Op.String()
		h, err = ev.boolean(ctx, n.Op, args[0], args[1])
	case *ir.Transform:
		op = n.Op.String()
		h, err = ev.transform(ctx, n.Op, args[0], args[1:])
	case *ir.Generate:
		op = n.Op.String()
		h, err = ev.generate(ctx, n.Op, args[:len(n.Profiles)], args[len(n.Profiles):])
	case *ir.ThreadedHole:
		op = "threaded hole"
		h, err = ev.threadedHole(ctx, n, args[0])
	default:
		return nil, errorf(ErrInvariant, "%s is not a geometry node", n.Kind())
	}
	if err != nil {
		return nil, kernelError(err, op, id, p.dag.Span(id))
	}
	log.Debugf("%s %s -> %s", id, op, h)
	return &Solid{Handle: h}, nil
}

// kernelError turns provider failures into *GeometryError. Evaluation
// errors raised while checking arguments and context cancellation pass
// through.
func kernelError(err error, op string, id ir.NodeID, span ir.Span) error {
	var ee *Error
	if errors.As(err, &ee) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	ge := &GeometryError{Node: id, Span: span, Op: op, Failure: err}
	var f *geom.Failure
	if errors.As(err, &f) {
		ge.Reason = f.Reason
	}
	return ge
}

func arity(op string, want string, got int) error {
	return errorf(ErrBinding, "%s takes %s, got %d arguments", op, want, got)
}

func (ev *Evaluator) primitive(ctx context.Context, shape ir.Shape, args []Value) (geom.Handle, error) {
	lengths := func(names ...string) ([]float64, error) {
		if len(args) != len(names) {
			return nil, arity(shape.String(), argList(names), len(args))
		}
		out := make([]float64, len(names))
		for i, a := range args {
			x, err := asLength(shape.String()+" "+names[i], a)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	}

	switch shape {
	case ir.ShapeBox:
		if len(args) == 1 {
			size, err := asVector("box size", args[0], ir.Length)
			if err != nil {
				return nil, err
			}
			return ev.provider.Box(ctx, size)
		}
		xyz, err := lengths("x", "y", "z")
		if err != nil {
			return nil, err
		}
		return ev.provider.Box(ctx, geom.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	case ir.ShapeCylinder:
		rh, err := lengths("radius", "height")
		if err != nil {
			return nil, err
		}
		return ev.provider.Cylinder(ctx, rh[0], rh[1])
	case ir.ShapeSphere:
		r, err := lengths("radius")
		if err != nil {
			return nil, err
		}
		return ev.provider.Sphere(ctx, r[0])
	case ir.ShapeRect:
		wh, err := lengths("width", "height")
		if err != nil {
			return nil, err
		}
		return ev.provider.Rect(ctx, wh[0], wh[1])
	case ir.ShapeCircle:
		r, err := lengths("radius")
		if err != nil {
			return nil, err
		}
		return ev.provider.Circle(ctx, r[0])
	}
	return nil, errorf(ErrInvariant, "unknown shape %s", shape)
}

func argList(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		if i == len(names)-1 {
			s += "and "
		}
		s += n
	}
	return s
}

func (ev *Evaluator) boolean(ctx context.Context, op ir.BoolOp, l, r Value) (geom.Handle, error) {
	a, err := asSolid(op.String()+" left operand", l)
	if err != nil {
		return nil, err
	}
	b, err := asSolid(op.String()+" right operand", r)
	if err != nil {
		return nil, err
	}
	return ev.provider.Boolean(ctx, op, a, b)
}

func (ev *Evaluator) transform(ctx context.Context, op ir.TransformOp, target Value, params []Value) (geom.Handle, error) {
	h, err := asSolid(op.String()+" target", target)
	if err != nil {
		return nil, err
	}
	name := op.String()
	switch op {
	case ir.OpTranslate:
		if len(params) != 1 {
			return nil, arity(name, "an offset", len(params))
		}
		offset, err := asVector("translate offset", params[0], ir.Length)
		if err != nil {
			return nil, err
		}
		return ev.provider.Translate(ctx, h, offset)
	case ir.OpRotate:
		if len(params) != 2 {
			return nil, arity(name, "an axis and an angle", len(params))
		}
		axis, err := asVector("rotate axis", params[0], ir.Scalar)
		if err != nil {
			return nil, err
		}
		angle, err := asAngle("rotate angle", params[1])
		if err != nil {
			return nil, err
		}
		return ev.provider.Rotate(ctx, h, axis, angle)
	case ir.OpScale:
		if len(params) != 1 {
			return nil, arity(name, "a factor", len(params))
		}
		if n, ok := params[0].(*Number); ok {
			f, err := asScalar("scale factor", n)
			if err != nil {
				return nil, err
			}
			return ev.provider.Scale(ctx, h, geom.Vec3{X: f, Y: f, Z: f})
		}
		factors, err := asVector("scale factors", params[0], ir.Scalar)
		if err != nil {
			return nil, err
		}
		return ev.provider.Scale(ctx, h, factors)
	case ir.OpMirror:
		if len(params) != 1 {
			return nil, arity(name, "a plane normal", len(params))
		}
		normal, err := asVector("mirror normal", params[0], ir.Scalar)
		if err != nil {
			return nil, err
		}
		return ev.provider.Mirror(ctx, h, normal)
	}
	return nil, errorf(ErrInvariant, "unknown transform %s", op)
}

func (ev *Evaluator) generate(ctx context.Context, op ir.GenerateOp, profileVals, params []Value) (geom.Handle, error) {
	name := op.String()
	profiles := make([]geom.Handle, len(profileVals))
	for i, v := range profileVals {
		h, err := asSolid(name+" profile", v)
		if err != nil {
			return nil, err
		}
		profiles[i] = h
	}
	switch op {
	case ir.OpSweep:
		if len(profiles) != 1 || len(params) != 1 {
			return nil, arity(name, "a profile and a path", len(profiles)+len(params))
		}
		path, err := asVector("sweep path", params[0], ir.Length)
		if err != nil {
			return nil, err
		}
		return ev.provider.Sweep(ctx, profiles[0], path)
	case ir.OpRevolve:
		if len(profiles) != 1 || len(params) != 2 {
			return nil, arity(name, "a profile, an axis and an angle", len(profiles)+len(params))
		}
		axis, err := asVector("revolve axis", params[0], ir.Scalar)
		if err != nil {
			return nil, err
		}
		angle, err := asAngle("revolve angle", params[1])
		if err != nil {
			return nil, err
		}
		return ev.provider.Revolve(ctx, profiles[0], axis, angle)
	case ir.OpLoft:
		if len(profiles) < 2 || len(params) != 1 {
			return nil, arity(name, "two or more profiles and a height", len(profiles)+len(params))
		}
		height, err := asLength("loft height", params[0])
		if err != nil {
			return nil, err
		}
		return ev.provider.Loft(ctx, profiles, height)
	}
	return nil, errorf(ErrInvariant, "unknown generator %s", op)
}

// threadedHole builds the drill solid for a thread size: a cylinder of the
// hole diameter, Depth deep.
func (ev *Evaluator) threadedHole(ctx context.Context, n *ir.ThreadedHole, depthVal Value) (geom.Handle, error) {
	depth, err := asLength("hole depth", depthVal)
	if err != nil {
		return nil, err
	}
	hole, err := ev.threads(n.Standard, n.Size, n.Hole)
	if err != nil {
		return nil, &Error{Kind: ErrUnknownThreadSize, Node: ir.NoNode, Message: err.Error(), Err: err}
	}
	log.Debugf("%s %s %s hole: %.3fmm", n.Standard, n.Size, n.Hole, hole.Diameter)
	return ev.provider.Cylinder(ctx, hole.Diameter/2, depth)
}
