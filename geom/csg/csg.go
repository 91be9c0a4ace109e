// Package csg is a symbolic geometry provider. It tracks axis-aligned
// bounds instead of boundary representations, which is enough to exercise
// the evaluator deterministically without a geometry kernel.
package csg

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/ir"
)

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max geom.Vec3
}

func (b Bounds) union(o Bounds) Bounds {
	return Bounds{
		Min: geom.Vec3{X: min(b.Min.X, o.Min.X), Y: min(b.Min.Y, o.Min.Y), Z: min(b.Min.Z, o.Min.Z)},
		Max: geom.Vec3{X: max(b.Max.X, o.Max.X), Y: max(b.Max.Y, o.Max.Y), Z: max(b.Max.Z, o.Max.Z)},
	}
}

func (b Bounds) intersect(o Bounds) (Bounds, bool) {
	r := Bounds{
		Min: geom.Vec3{X: max(b.Min.X, o.Min.X), Y: max(b.Min.Y, o.Min.Y), Z: max(b.Min.Z, o.Min.Z)},
		Max: geom.Vec3{X: min(b.Max.X, o.Max.X), Y: min(b.Max.Y, o.Max.Y), Z: min(b.Max.Z, o.Max.Z)},
	}
	ok := r.Min.X < r.Max.X && r.Min.Y < r.Max.Y && r.Min.Z <= r.Max.Z
	return r, ok
}

func (b Bounds) contains(o Bounds) bool {
	return b.Min.X <= o.Min.X && b.Min.Y <= o.Min.Y && b.Min.Z <= o.Min.Z &&
		b.Max.X >= o.Max.X && b.Max.Y >= o.Max.Y && b.Max.Z >= o.Max.Z
}

func (b Bounds) corners() [8]geom.Vec3 {
	var cs [8]geom.Vec3
	for i := range cs {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		cs[i] = c
	}
	return cs
}

func boundsOf(pts []geom.Vec3) Bounds {
	b := Bounds{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b = b.union(Bounds{Min: p, Max: p})
	}
	return b
}

func (b Bounds) mapCorners(f func(geom.Vec3) geom.Vec3) Bounds {
	cs := b.corners()
	for i := range cs {
		cs[i] = f(cs[i])
	}
	return boundsOf(cs[:])
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%s..%s]", b.Min, b.Max)
}

// Shape is the handle type returned by Provider.
type Shape struct {
	ID      uint64
	Op      string
	Bounds  Bounds
	Profile bool // planar profile rather than solid
	Exact   bool // the shape fills its bounds
}

func (s *Shape) String() string {
	return fmt.Sprintf("%s#%d%s", s.Op, s.ID, s.Bounds)
}

// Provider implements geom.Provider symbolically. It is safe for
// concurrent use.
type Provider struct {
	mu     sync.Mutex
	nextID uint64
	calls  map[string]int
}

var _ geom.Provider = (*Provider)(nil)

// New returns a provider with zeroed call counters.
func New() *Provider {
	return &Provider{calls: make(map[string]int)}
}

// Calls returns how many times op was invoked, successful or not.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// TotalCalls returns the number of provider invocations of any kind.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *Provider) record(op string) {
	p.mu.Lock()
	p.calls[op]++
	p.mu.Unlock()
}

func (p *Provider) shape(op string, b Bounds, profile, exact bool) *Shape {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return &Shape{ID: p.nextID, Op: op, Bounds: b, Profile: profile, Exact: exact}
}

func fail(op string, r geom.Reason, format string, args ...any) error {
	return &geom.Failure{Op: op, Reason: r, Detail: fmt.Sprintf(format, args...)}
}

func positive(op string, names []string, vals ...float64) error {
	for i, v := range vals {
		if !(v > 0) || math.IsInf(v, 0) {
			return fail(op, geom.Degenerate, "%s must be positive, got %g", names[i], v)
		}
	}
	return nil
}

func asShape(op string, h geom.Handle) (*Shape, error) {
	s, ok := h.(*Shape)
	if !ok {
		return nil, fail(op, geom.Unsupported, "foreign handle %T", h)
	}
	return s, nil
}

func (p *Provider) Box(_ context.Context, size geom.Vec3) (geom.Handle, error) {
	p.record("box")
	if err := positive("box", []string{"x", "y", "z"}, size.X, size.Y, size.Z); err != nil {
		return nil, err
	}
	return p.shape("box", Bounds{Max: size}, false, true), nil
}

func (p *Provider) Cylinder(_ context.Context, radius, height float64) (geom.Handle, error) {
	p.record("cylinder")
	if err := positive("cylinder", []string{"radius", "height"}, radius, height); err != nil {
		return nil, err
	}
	b := Bounds{Min: geom.Vec3{X: -radius, Y: -radius}, Max: geom.Vec3{X: radius, Y: radius, Z: height}}
	return p.shape("cylinder", b, false, false), nil
}

func (p *Provider) Sphere(_ context.Context, radius float64) (geom.Handle, error) {
	p.record("sphere")
	if err := positive("sphere", []string{"radius"}, radius); err != nil {
		return nil, err
	}
	r := geom.Vec3{X: radius, Y: radius, Z: radius}
	return p.shape("sphere", Bounds{Min: r.Scale(-1), Max: r}, false, false), nil
}

func (p *Provider) Rect(_ context.Context, width, height float64) (geom.Handle, error) {
	p.record("rect")
	if err := positive("rect", []string{"width", "height"}, width, height); err != nil {
		return nil, err
	}
	return p.shape("rect", Bounds{Max: geom.Vec3{X: width, Y: height}}, true, true), nil
}

func (p *Provider) Circle(_ context.Context, radius float64) (geom.Handle, error) {
	p.record("circle")
	if err := positive("circle", []string{"radius"}, radius); err != nil {
		return nil, err
	}
	b := Bounds{Min: geom.Vec3{X: -radius, Y: -radius}, Max: geom.Vec3{X: radius, Y: radius}}
	return p.shape("circle", b, true, false), nil
}

func (p *Provider) Boolean(_ context.Context, op ir.BoolOp, a, b geom.Handle) (geom.Handle, error) {
	name := op.String()
	p.record(name)
	sa, err := asShape(name, a)
	if err != nil {
		return nil, err
	}
	sb, err := asShape(name, b)
	if err != nil {
		return nil, err
	}
	if sa.Profile != sb.Profile {
		return nil, fail(name, geom.Unsupported, "cannot combine a profile with a solid")
	}

	switch op {
	case ir.OpUnion:
		return p.shape(name, sa.Bounds.union(sb.Bounds), sa.Profile, false), nil
	case ir.OpIntersect:
		r, ok := sa.Bounds.intersect(sb.Bounds)
		if !ok {
			return nil, fail(name, geom.Empty, "%s and %s do not overlap", sa, sb)
		}
		return p.shape(name, r, sa.Profile, sa.Exact && sb.Exact), nil
	case ir.OpDifference:
		if sb.Exact && sb.Bounds.contains(sa.Bounds) {
			return nil, fail(name, geom.Empty, "%s removes all of %s", sb, sa)
		}
		return p.shape(name, sa.Bounds, sa.Profile, false), nil
	}
	return nil, fail(name, geom.Unsupported, "unknown boolean %s", op)
}

func (p *Provider) Translate(_ context.Context, h geom.Handle, offset geom.Vec3) (geom.Handle, error) {
	p.record("translate")
	s, err := asShape("translate", h)
	if err != nil {
		return nil, err
	}
	b := Bounds{Min: s.Bounds.Min.Add(offset), Max: s.Bounds.Max.Add(offset)}
	return p.shape("translate", b, s.Profile, s.Exact), nil
}

func (p *Provider) Rotate(_ context.Context, h geom.Handle, axis geom.Vec3, angle float64) (geom.Handle, error) {
	p.record("rotate")
	s, err := asShape("rotate", h)
	if err != nil {
		return nil, err
	}
	if axis.Len() == 0 {
		return nil, fail("rotate", geom.Degenerate, "zero rotation axis")
	}
	k := axis.Scale(1 / axis.Len())
	cos, sin := math.Cos(angle), math.Sin(angle)
	// Rodrigues' rotation about k through the origin.
	b := s.Bounds.mapCorners(func(v geom.Vec3) geom.Vec3 {
		return v.Scale(cos).Add(k.Cross(v).Scale(sin)).Add(k.Scale(k.Dot(v) * (1 - cos)))
	})
	return p.shape("rotate", b, s.Profile, s.Exact && angle == 0), nil
}

func (p *Provider) Scale(_ context.Context, h geom.Handle, factors geom.Vec3) (geom.Handle, error) {
	p.record("scale")
	s, err := asShape("scale", h)
	if err != nil {
		return nil, err
	}
	if factors.X == 0 || factors.Y == 0 || factors.Z == 0 {
		return nil, fail("scale", geom.Degenerate, "zero scale factor %s", factors)
	}
	b := s.Bounds.mapCorners(func(v geom.Vec3) geom.Vec3 {
		return geom.Vec3{X: v.X * factors.X, Y: v.Y * factors.Y, Z: v.Z * factors.Z}
	})
	return p.shape("scale", b, s.Profile, s.Exact), nil
}

func (p *Provider) Mirror(_ context.Context, h geom.Handle, normal geom.Vec3) (geom.Handle, error) {
	p.record("mirror")
	s, err := asShape("mirror", h)
	if err != nil {
		return nil, err
	}
	n2 := normal.Dot(normal)
	if n2 == 0 {
		return nil, fail("mirror", geom.Degenerate, "zero mirror normal")
	}
	b := s.Bounds.mapCorners(func(v geom.Vec3) geom.Vec3 {
		return v.Sub(normal.Scale(2 * v.Dot(normal) / n2))
	})
	return p.shape("mirror", b, s.Profile, false), nil
}

func (p *Provider) profile(op string, h geom.Handle) (*Shape, error) {
	s, err := asShape(op, h)
	if err != nil {
		return nil, err
	}
	if !s.Profile {
		return nil, fail(op, geom.Unsupported, "%s is not a profile", s)
	}
	return s, nil
}

func (p *Provider) Sweep(_ context.Context, profile geom.Handle, path geom.Vec3) (geom.Handle, error) {
	p.record("sweep")
	s, err := p.profile("sweep", profile)
	if err != nil {
		return nil, err
	}
	if path.Len() == 0 {
		return nil, fail("sweep", geom.Degenerate, "zero-length path")
	}
	end := Bounds{Min: s.Bounds.Min.Add(path), Max: s.Bounds.Max.Add(path)}
	return p.shape("sweep", s.Bounds.union(end), false, false), nil
}

func (p *Provider) Revolve(_ context.Context, profile geom.Handle, axis geom.Vec3, angle float64) (geom.Handle, error) {
	p.record("revolve")
	s, err := p.profile("revolve", profile)
	if err != nil {
		return nil, err
	}
	if axis.Len() == 0 {
		return nil, fail("revolve", geom.Degenerate, "zero revolve axis")
	}
	if angle == 0 {
		return nil, fail("revolve", geom.Degenerate, "zero revolve angle")
	}
	r := 0.0
	for _, c := range s.Bounds.corners() {
		r = max(r, c.Len())
	}
	if r == 0 {
		return nil, fail("revolve", geom.Degenerate, "profile lies on the axis")
	}
	ext := geom.Vec3{X: r, Y: r, Z: r}
	return p.shape("revolve", Bounds{Min: ext.Scale(-1), Max: ext}, false, false), nil
}

func (p *Provider) Loft(_ context.Context, profiles []geom.Handle, height float64) (geom.Handle, error) {
	p.record("loft")
	if len(profiles) < 2 {
		return nil, fail("loft", geom.Degenerate, "loft needs at least two profiles, got %d", len(profiles))
	}
	if err := positive("loft", []string{"height"}, height); err != nil {
		return nil, err
	}
	var b Bounds
	for i, h := range profiles {
		s, err := p.profile("loft", h)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			b = s.Bounds
		} else {
			b = b.union(s.Bounds)
		}
	}
	b.Min.Z, b.Max.Z = 0, height
	return p.shape("loft", b, false, false), nil
}

// boxTriangles indexes the corners produced by Bounds.corners.
var boxTriangles = [][3]uint32{
	{0, 2, 3}, {0, 3, 1}, // -z
	{4, 5, 7}, {4, 7, 6}, // +z
	{0, 1, 5}, {0, 5, 4}, // -y
	{2, 6, 7}, {2, 7, 3}, // +y
	{0, 4, 6}, {0, 6, 2}, // -x
	{1, 3, 7}, {1, 7, 5}, // +x
}

// Tessellate returns the mesh of the shape's bounds.
func (p *Provider) Tessellate(_ context.Context, h geom.Handle, tolerance float64) (*geom.Mesh, error) {
	p.record("tessellate")
	s, err := asShape("tessellate", h)
	if err != nil {
		return nil, err
	}
	if err := positive("tessellate", []string{"tolerance"}, tolerance); err != nil {
		return nil, err
	}
	cs := s.Bounds.corners()
	if s.Profile {
		return &geom.Mesh{
			Vertices:  cs[:4],
			Triangles: [][3]uint32{{0, 1, 3}, {0, 3, 2}},
		}, nil
	}
	return &geom.Mesh{Vertices: cs[:], Triangles: boxTriangles}, nil
}
