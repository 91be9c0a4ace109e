package eval

import (
	"slices"

	"github.com/chazu/covariant/ir"
)

// bindArgs matches call arguments to parameters. Named arguments bind by
// name; positional arguments then bind left to right to the parameters
// still unbound. The result holds, per parameter, the index of the
// argument bound to it or -1 when the parameter falls back to its default.
func bindArgs(fn string, params []string, hasDefault []bool, args []ir.Arg) ([]int, error) {
	slots := make([]int, len(params))
	for i := range slots {
		slots[i] = -1
	}

	var positional []int
	for ai, a := range args {
		if a.Name == "" {
			positional = append(positional, ai)
			continue
		}
		pi := slices.Index(params, a.Name)
		if pi < 0 {
			return nil, errorf(ErrBinding, "%s has no parameter %q", fn, a.Name)
		}
		if slots[pi] >= 0 {
			return nil, errorf(ErrBinding, "%s: parameter %q bound twice", fn, a.Name)
		}
		slots[pi] = ai
	}

	named := slices.Clone(slots)
	next := 0
	for _, ai := range positional {
		for next < len(slots) && slots[next] >= 0 {
			next++
		}
		if next == len(slots) {
			return nil, tooMany(fn, params, named, len(positional))
		}
		slots[next] = ai
	}

	for pi, ai := range slots {
		if ai < 0 && !hasDefault[pi] {
			return nil, errorf(ErrBinding, "%s: missing argument %q", fn, params[pi])
		}
	}
	return slots, nil
}

// tooMany explains an overflow of positional arguments. When a named
// argument took a slot a positional argument would have filled, that
// parameter was supplied both ways.
func tooMany(fn string, params []string, named []int, npos int) error {
	for pi := 0; pi < npos && pi < len(params); pi++ {
		if named[pi] >= 0 {
			return errorf(ErrBinding, "%s: parameter %q given both positionally and by name", fn, params[pi])
		}
	}
	return errorf(ErrBinding, "%s takes %d arguments, got %d positional", fn, len(params), npos)
}
