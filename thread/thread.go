// Package thread holds the standard thread tables used to size threaded
// holes. All dimensions are millimeters.
package thread

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/covariant/ir"
)

// ErrUnknownSize is returned for a standard/size combination not in the
// tables.
var ErrUnknownSize = errors.New("unknown thread size")

// Standard names a thread family.
type Standard string

const (
	ISO Standard = "ISO" // ISO 261 metric
	UTS Standard = "UTS" // ASME B1.1 unified
)

// ParseStandard accepts a standard name in any letter case.
func ParseStandard(s string) (Standard, error) {
	for _, std := range []Standard{ISO, UTS} {
		if strings.EqualFold(s, string(std)) {
			return std, nil
		}
	}
	return "", fmt.Errorf("%w: standard %q", ErrUnknownSize, s)
}

// Dimensions describes one thread size.
type Dimensions struct {
	Pitch           float64
	Major           float64
	Minor           float64
	TapDrill        float64
	ClearanceClose  float64
	ClearanceMedium float64
	ClearanceFree   float64
	InsertHole      float64
}

// HoleDiameter returns the drill diameter for a hole of kind k. Clearance
// holes use the medium fit.
func (d Dimensions) HoleDiameter(k ir.HoleKind) float64 {
	switch k {
	case ir.HoleClearance:
		return d.ClearanceMedium
	case ir.HoleInsert:
		return d.InsertHole
	}
	return d.TapDrill
}

// Hole is the result of a lookup: the diameter to drill and the
// recommended entrance chamfer depth for a 45 degree countersink.
type Hole struct {
	Standard   Standard
	Size       string
	Kind       ir.HoleKind
	Diameter   float64
	Chamfer    float64
	Dimensions Dimensions
}

// Lookup returns hole dimensions for size in standard. It is a pure table
// lookup and never panics.
func Lookup(standard, size string, kind ir.HoleKind) (Hole, error) {
	std, err := ParseStandard(standard)
	if err != nil {
		return Hole{}, err
	}
	d, ok := tables[std][size]
	if !ok {
		return Hole{}, fmt.Errorf("%w: %s %s", ErrUnknownSize, std, size)
	}
	switch kind {
	case ir.HoleTap, ir.HoleClearance, ir.HoleInsert:
	default:
		return Hole{}, fmt.Errorf("%w: hole kind %s", ErrUnknownSize, kind)
	}
	return Hole{
		Standard:   std,
		Size:       size,
		Kind:       kind,
		Diameter:   d.HoleDiameter(kind),
		Chamfer:    d.Pitch / 2,
		Dimensions: d,
	}, nil
}

// Sizes returns the sizes defined for standard, smallest first.
func Sizes(standard Standard) []string {
	t := tables[standard]
	sizes := make([]string, 0, len(t))
	for s := range t {
		sizes = append(sizes, s)
	}
	slices.SortFunc(sizes, func(a, b string) int {
		da, db := t[a], t[b]
		if da.Major != db.Major {
			if da.Major < db.Major {
				return -1
			}
			return 1
		}
		// #10-24 and #10-32 share a major diameter; coarser pitch first.
		if da.Pitch != db.Pitch {
			if da.Pitch > db.Pitch {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return sizes
}

var tables = map[Standard]map[string]Dimensions{
	ISO: isoMetric,
	UTS: unified,
}

// isoMetric per ISO 261 / ISO 262 / ISO 273.
var isoMetric = map[string]Dimensions{
	//        pitch  major  minor   tap   cl_c  cl_m  cl_f  insert
	"M1.6": {0.35, 1.6, 1.221, 1.25, 1.7, 1.8, 2.0, 2.1},
	"M2":   {0.4, 2.0, 1.567, 1.6, 2.2, 2.4, 2.6, 2.7},
	"M2.5": {0.45, 2.5, 2.013, 2.05, 2.7, 2.9, 3.1, 3.3},
	"M3":   {0.5, 3.0, 2.459, 2.5, 3.2, 3.4, 3.6, 4.0},
	"M4":   {0.7, 4.0, 3.242, 3.3, 4.3, 4.5, 4.8, 5.2},
	"M5":   {0.8, 5.0, 4.134, 4.2, 5.3, 5.5, 5.8, 6.4},
	"M6":   {1.0, 6.0, 4.917, 5.0, 6.4, 6.6, 7.0, 7.6},
	"M8":   {1.25, 8.0, 6.647, 6.8, 8.4, 9.0, 10.0, 10.2},
	"M10":  {1.5, 10.0, 8.376, 8.5, 10.5, 11.0, 12.0, 12.7},
	"M12":  {1.75, 12.0, 10.106, 10.2, 13.0, 13.5, 14.5, 15.2},
	"M14":  {2.0, 14.0, 11.835, 12.0, 15.0, 15.5, 16.5, 17.7},
	"M16":  {2.0, 16.0, 13.835, 14.0, 17.0, 17.5, 18.5, 20.2},
	"M20":  {2.5, 20.0, 17.294, 17.5, 21.0, 22.0, 24.0, 25.2},
	"M24":  {3.0, 24.0, 20.752, 21.0, 25.0, 26.0, 28.0, 30.2},
	"M30":  {3.5, 30.0, 26.211, 26.5, 31.0, 33.0, 35.0, 37.7},
}

// unified per ASME B1.1, converted to millimeters.
var unified = map[string]Dimensions{
	//              pitch  major   minor   tap   cl_c  cl_m  cl_f  insert
	"#2-56":    {0.4536, 2.184, 1.628, 1.8, 2.35, 2.5, 2.7, 2.9},
	"#4-40":    {0.635, 2.845, 2.157, 2.35, 3.1, 3.3, 3.6, 3.8},
	"#6-32":    {0.794, 3.505, 2.642, 2.85, 3.8, 4.0, 4.3, 4.6},
	"#8-32":    {0.794, 4.166, 3.302, 3.5, 4.5, 4.7, 5.0, 5.4},
	"#10-24":   {1.058, 4.826, 3.680, 3.9, 5.1, 5.3, 5.6, 6.1},
	"#10-32":   {0.794, 4.826, 3.962, 4.1, 5.1, 5.3, 5.6, 6.1},
	`1/4"-20`:  {1.270, 6.350, 4.976, 5.1, 6.6, 7.0, 7.4, 8.0},
	`5/16"-18`: {1.411, 7.938, 6.401, 6.6, 8.3, 8.7, 9.1, 10.0},
	`3/8"-16`:  {1.588, 9.525, 7.798, 8.0, 9.9, 10.3, 10.7, 12.0},
	`7/16"-14`: {1.814, 11.112, 9.144, 9.4, 11.5, 11.9, 12.3, 14.0},
	`1/2"-13`:  {1.954, 12.700, 10.584, 10.8, 13.0, 13.5, 14.0, 16.0},
	`5/8"-11`:  {2.309, 15.875, 13.386, 13.5, 16.3, 16.7, 17.5, 20.0},
	`3/4"-10`:  {2.540, 19.050, 16.307, 16.5, 19.5, 20.0, 21.0, 24.0},
}
