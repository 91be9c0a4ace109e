package thread

import (
	"errors"
	"testing"

	"github.com/chazu/covariant/ir"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		standard, size string
		kind           ir.HoleKind
		want           float64
	}{
		{"ISO", "M3", ir.HoleTap, 2.5},
		{"iso", "M5", ir.HoleTap, 4.2},
		{"ISO", "M5", ir.HoleClearance, 5.5},
		{"ISO", "M8", ir.HoleInsert, 10.2},
		{"UTS", "#10-24", ir.HoleTap, 3.9},
		{"UTS", `1/4"-20`, ir.HoleClearance, 7.0},
	}
	for _, tc := range tests {
		t.Run(tc.standard+" "+tc.size+" "+tc.kind.String(), func(t *testing.T) {
			h, err := Lookup(tc.standard, tc.size, tc.kind)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if h.Diameter != tc.want {
				t.Errorf("diameter: got %v, want %v", h.Diameter, tc.want)
			}
			if h.Chamfer != h.Dimensions.Pitch/2 {
				t.Errorf("chamfer: got %v, want half pitch", h.Chamfer)
			}
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	tests := []struct {
		name, standard, size string
	}{
		{"size", "ISO", "M7"},
		{"wrong standard", "UTS", "M5"},
		{"standard", "BSW", "1/4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Lookup(tc.standard, tc.size, ir.HoleTap)
			if !errors.Is(err, ErrUnknownSize) {
				t.Errorf("got %v, want ErrUnknownSize", err)
			}
		})
	}
}

func TestTables_DiameterOrdering(t *testing.T) {
	for std, table := range tables {
		for size, d := range table {
			if d.Pitch <= 0 || d.Minor >= d.Major {
				t.Errorf("%s %s: bad pitch or minor diameter", std, size)
			}
			if d.TapDrill <= d.Minor {
				t.Errorf("%s %s: tap drill %v not above minor %v", std, size, d.TapDrill, d.Minor)
			}
			if d.ClearanceClose <= d.Major {
				t.Errorf("%s %s: close clearance %v not above major %v", std, size, d.ClearanceClose, d.Major)
			}
			if d.ClearanceMedium < d.ClearanceClose || d.ClearanceFree < d.ClearanceMedium || d.InsertHole < d.ClearanceFree {
				t.Errorf("%s %s: clearance and insert diameters out of order", std, size)
			}
		}
	}
}

func TestSizes(t *testing.T) {
	iso := Sizes(ISO)
	if len(iso) != 15 || iso[0] != "M1.6" || iso[14] != "M30" {
		t.Errorf("ISO sizes: got %v", iso)
	}
	uts := Sizes(UTS)
	if len(uts) != 13 || uts[4] != "#10-24" || uts[5] != "#10-32" {
		t.Errorf("UTS sizes: got %v", uts)
	}
}
