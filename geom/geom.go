// Package geom defines the boundary between the evaluator and a geometry
// kernel. The evaluator never builds geometry itself: it evaluates numeric
// parameters and hands them to a Provider, keeping the returned Handle as
// an opaque value.
package geom

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/covariant/ir"
)

// Vec3 is a point or direction in canonical units (mm).
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{v.Y*o.Z - v.Z*o.Y, v.Z*o.X - v.X*o.Z, v.X*o.Y - v.Y*o.X}
}

// Len returns the Euclidean length.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Handle is an opaque reference to a kernel-owned shape. Handles are
// immutable; every operation returns a new one.
type Handle interface {
	fmt.Stringer
}

// Mesh is a triangle mesh produced for display or export.
type Mesh struct {
	Vertices  []Vec3
	Triangles [][3]uint32
}

// Provider is implemented by geometry kernels. Lengths are millimeters and
// angles radians. Profiles (rect, circle) are planar and may feed Sweep,
// Revolve and Loft.
//
// Implementations report kernel failures as *Failure.
type Provider interface {
	Box(ctx context.Context, size Vec3) (Handle, error)
	Cylinder(ctx context.Context, radius, height float64) (Handle, error)
	Sphere(ctx context.Context, radius float64) (Handle, error)
	Rect(ctx context.Context, width, height float64) (Handle, error)
	Circle(ctx context.Context, radius float64) (Handle, error)

	Boolean(ctx context.Context, op ir.BoolOp, a, b Handle) (Handle, error)

	Translate(ctx context.Context, h Handle, offset Vec3) (Handle, error)
	Rotate(ctx context.Context, h Handle, axis Vec3, angle float64) (Handle, error)
	Scale(ctx context.Context, h Handle, factors Vec3) (Handle, error)
	Mirror(ctx context.Context, h Handle, normal Vec3) (Handle, error)

	Sweep(ctx context.Context, profile Handle, path Vec3) (Handle, error)
	Revolve(ctx context.Context, profile Handle, axis Vec3, angle float64) (Handle, error)
	Loft(ctx context.Context, profiles []Handle, height float64) (Handle, error)

	Tessellate(ctx context.Context, h Handle, tolerance float64) (*Mesh, error)
}

// Reason classifies a kernel failure.
type Reason uint8

const (
	Degenerate  Reason = iota + 1 // zero or negative extent
	NonManifold                   // result is not a valid solid
	Empty                         // operation removed everything
	Unsupported                   // operand kind the operation cannot take
)

func (r Reason) String() string {
	switch r {
	case Degenerate:
		return "degenerate"
	case NonManifold:
		return "non-manifold"
	case Empty:
		return "empty result"
	case Unsupported:
		return "unsupported operand"
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// Failure is a kernel-reported error.
type Failure struct {
	Op     string
	Reason Reason
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Op, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", f.Op, f.Reason, f.Detail)
}
