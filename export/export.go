// Package export prepares evaluated solids for an export component. The
// file format is the exporter's concern; this package resolves the thread
// rendering mode and tessellation quality and hands over a mesh.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/covariant/geom"
)

var log = commonlog.GetLogger("covariant.export")

// ThreadMode selects how threaded holes are rendered.
type ThreadMode uint8

const (
	ThreadNone     ThreadMode = iota // plain cylindrical holes
	ThreadCosmetic                   // annotation only
	ThreadFull                       // helical geometry
)

func (m ThreadMode) String() string {
	switch m {
	case ThreadNone:
		return "none"
	case ThreadCosmetic:
		return "cosmetic"
	case ThreadFull:
		return "full"
	}
	return fmt.Sprintf("ThreadMode(%d)", uint8(m))
}

// ParseThreadMode parses "none", "cosmetic" or "full".
func ParseThreadMode(s string) (ThreadMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ThreadNone, nil
	case "cosmetic":
		return ThreadCosmetic, nil
	case "full":
		return ThreadFull, nil
	}
	return ThreadNone, fmt.Errorf("unknown thread mode %q", s)
}

// ResolveThreadMode maps a requested mode to the one this core can
// deliver. Cosmetic annotations do not survive mesh export and helical
// geometry is not generated, so both fall back to ThreadNone with a
// warning.
func ResolveThreadMode(m ThreadMode) (ThreadMode, string) {
	switch m {
	case ThreadCosmetic:
		return ThreadNone, "cosmetic thread annotations are not supported in mesh export; falling back to none"
	case ThreadFull:
		return ThreadNone, "full helical thread geometry is not implemented; falling back to none"
	}
	return ThreadNone, ""
}

// Quality is a tessellation tolerance: the maximum chord height in mm.
type Quality float64

const (
	Draft    Quality = 0.2
	Standard Quality = 0.05
	Fine     Quality = 0.01
)

// Tolerance returns the chord height in millimeters.
func (q Quality) Tolerance() float64 {
	return float64(q)
}

func (q Quality) String() string {
	switch q {
	case Draft:
		return "draft"
	case Standard:
		return "standard"
	case Fine:
		return "fine"
	}
	return strconv.FormatFloat(float64(q), 'g', -1, 64)
}

// ParseQuality accepts a preset name or a positive tolerance in mm.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(s) {
	case "", "standard":
		return Standard, nil
	case "draft":
		return Draft, nil
	case "fine":
		return Fine, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !(v > 0) {
		return 0, fmt.Errorf("invalid quality %q: want draft, standard, fine or a positive tolerance", s)
	}
	return Quality(v), nil
}

// Request is what the core hands to an export component.
type Request struct {
	Name       string
	Handle     geom.Handle
	ThreadMode ThreadMode
	Quality    Quality
}

// Exporter writes a mesh in some file format.
type Exporter interface {
	Export(ctx context.Context, name string, mesh *geom.Mesh, w io.Writer) error
}

// Report summarizes a prepared mesh.
type Report struct {
	Vertices   int
	Triangles  int
	ThreadMode ThreadMode
	Warnings   []string
}

// OK reports whether preparation produced no warnings.
func (r Report) OK() bool {
	return len(r.Warnings) == 0
}

// ErrEmptyMesh is returned when tessellation yields no triangles.
var ErrEmptyMesh = errors.New("mesh is empty")

// Prepare resolves the thread mode and tessellates the request's handle.
func Prepare(ctx context.Context, p geom.Provider, req Request) (*geom.Mesh, Report, error) {
	mode, warning := ResolveThreadMode(req.ThreadMode)
	rep := Report{ThreadMode: mode}
	if warning != "" {
		log.Warningf("%s: %s", req.Name, warning)
		rep.Warnings = append(rep.Warnings, warning)
	}
	if req.Handle == nil {
		return nil, rep, fmt.Errorf("export %s: no geometry", req.Name)
	}
	q := req.Quality
	if q == 0 {
		q = Standard
	}
	mesh, err := p.Tessellate(ctx, req.Handle, q.Tolerance())
	if err != nil {
		return nil, rep, fmt.Errorf("export %s: tessellate: %w", req.Name, err)
	}
	rep.Vertices = len(mesh.Vertices)
	rep.Triangles = len(mesh.Triangles)
	if rep.Triangles == 0 {
		return nil, rep, fmt.Errorf("export %s: %w", req.Name, ErrEmptyMesh)
	}
	return mesh, rep, nil
}

// Write prepares req and passes the mesh to e.
func Write(ctx context.Context, p geom.Provider, e Exporter, req Request, w io.Writer) (Report, error) {
	mesh, rep, err := Prepare(ctx, p, req)
	if err != nil {
		return rep, err
	}
	if err := e.Export(ctx, req.Name, mesh, w); err != nil {
		return rep, fmt.Errorf("export %s: %w", req.Name, err)
	}
	log.Infof("exported %s: %d triangles at %s quality", req.Name, rep.Triangles, req.Quality)
	return rep, nil
}
