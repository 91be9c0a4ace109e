package ir

import (
	"fmt"
	"math"
)

// Dimension is the physical dimension of a number. All arithmetic after
// literal evaluation is unit-free within a dimension: lengths are
// millimeters and angles are radians.
type Dimension uint8

const (
	Scalar Dimension = iota
	Length
	Angle
)

func (d Dimension) String() string {
	switch d {
	case Scalar:
		return "Scalar"
	case Length:
		return "Length"
	case Angle:
		return "Angle"
	}
	return fmt.Sprintf("Dimension(%d)", uint8(d))
}

// Unit is the unit written on a numeric literal.
type Unit uint8

const (
	NoUnit Unit = iota
	Millimeter
	Centimeter
	Meter
	Inch
	Degree
	Radian
)

var unitNames = map[Unit]string{
	NoUnit:     "",
	Millimeter: "mm",
	Centimeter: "cm",
	Meter:      "m",
	Inch:       "in",
	Degree:     "deg",
	Radian:     "rad",
}

// ParseUnit maps a literal suffix ("mm", "deg", ...) to its Unit. The empty
// string is NoUnit.
func ParseUnit(s string) (Unit, error) {
	for u, name := range unitNames {
		if name == s {
			return u, nil
		}
	}
	return NoUnit, fmt.Errorf("unknown unit %q", s)
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("Unit(%d)", uint8(u))
}

// Dimension returns the dimension measured by u.
func (u Unit) Dimension() Dimension {
	switch u {
	case Millimeter, Centimeter, Meter, Inch:
		return Length
	case Degree, Radian:
		return Angle
	}
	return Scalar
}

// ToCanonical converts v expressed in u to the canonical unit of u's
// dimension (millimeters or radians).
func (u Unit) ToCanonical(v float64) float64 {
	switch u {
	case Centimeter:
		return v * 10
	case Meter:
		return v * 1000
	case Inch:
		return v * 25.4
	case Degree:
		return v * math.Pi / 180
	}
	return v
}
