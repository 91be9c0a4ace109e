package eval

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

// ErrCorruptValue is returned when persisted value bytes do not decode.
var ErrCorruptValue = errors.New("corrupt persisted value")

var valueEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("eval: failed to create CBOR enc mode: %v", err))
	}
	valueEncMode = em
}

// wireValue is the persisted form of a plain data value. Solids and
// functions hold process-local state and are never persisted.
type wireValue struct {
	Kind   Kind        `cbor:"1,keyasint"`
	Digest []byte      `cbor:"2,keyasint,omitempty"`
	Num    float64     `cbor:"3,keyasint,omitempty"`
	Dim    uint8       `cbor:"4,keyasint,omitempty"`
	Str    string      `cbor:"5,keyasint,omitempty"`
	Bool   bool        `cbor:"6,keyasint,omitempty"`
	Vec    []float64   `cbor:"7,keyasint,omitempty"`
	Elems  []wireValue `cbor:"8,keyasint,omitempty"`
	Names  []string    `cbor:"9,keyasint,omitempty"`
}

// ValueCodec persists data values for a cache tier.
type ValueCodec struct{}

// Encode returns the canonical CBOR form of v, or ok=false when v holds a
// solid or a function.
func (ValueCodec) Encode(v Value) ([]byte, bool, error) {
	w, ok := toWire(v)
	if !ok {
		return nil, false, nil
	}
	data, err := valueEncMode.Marshal(w)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Decode restores a value written by Encode, digest included.
func (ValueCodec) Decode(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	return fromWire(&w)
}

func toWire(v Value) (wireValue, bool) {
	d := v.Digest()
	w := wireValue{Kind: v.Kind(), Digest: d[:]}
	switch v := v.(type) {
	case *Number:
		w.Num, w.Dim = v.V, uint8(v.Dim)
	case *String:
		w.Str = v.V
	case *Bool:
		w.Bool = v.V
	case *Vec3:
		w.Vec, w.Dim = []float64{v.V.X, v.V.Y, v.V.Z}, uint8(v.Dim)
	case *List:
		w.Elems = make([]wireValue, len(v.Elems))
		for i, e := range v.Elems {
			ew, ok := toWire(e)
			if !ok {
				return wireValue{}, false
			}
			w.Elems[i] = ew
		}
	case *Record:
		w.Str = v.TypeName
		w.Names = v.Fields()
		w.Elems = make([]wireValue, len(w.Names))
		for i, name := range w.Names {
			fv, _ := v.Get(name)
			ew, ok := toWire(fv)
			if !ok {
				return wireValue{}, false
			}
			w.Elems[i] = ew
		}
	default:
		return wireValue{}, false
	}
	return w, true
}

func fromWire(w *wireValue) (Value, error) {
	var d hash.Digest
	if len(w.Digest) != len(d) {
		return nil, fmt.Errorf("%w: digest of %d bytes", ErrCorruptValue, len(w.Digest))
	}
	copy(d[:], w.Digest)

	dim := ir.Dimension(w.Dim)
	if dim > ir.Angle {
		return nil, fmt.Errorf("%w: dimension %d", ErrCorruptValue, w.Dim)
	}

	var v Value
	switch w.Kind {
	case KindNumber:
		v = &Number{V: w.Num, Dim: dim}
	case KindString:
		v = &String{V: w.Str}
	case KindBool:
		v = &Bool{V: w.Bool}
	case KindVec3:
		if len(w.Vec) != 3 {
			return nil, fmt.Errorf("%w: vector of %d components", ErrCorruptValue, len(w.Vec))
		}
		v = &Vec3{V: geom.Vec3{X: w.Vec[0], Y: w.Vec[1], Z: w.Vec[2]}, Dim: dim}
	case KindList, KindRecord:
		elems := make([]Value, len(w.Elems))
		for i := range w.Elems {
			e, err := fromWire(&w.Elems[i])
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		if w.Kind == KindList {
			v = &List{Elems: elems}
		} else {
			if len(w.Names) != len(elems) {
				return nil, fmt.Errorf("%w: %d field names for %d values", ErrCorruptValue, len(w.Names), len(elems))
			}
			v = NewRecord(w.Str, w.Names, elems)
		}
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrCorruptValue, w.Kind)
	}
	return v.withDigest(d), nil
}
