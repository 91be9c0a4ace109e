package ir

import (
	"slices"
	"sync"
)

// Scopes computes the free variables of each node of a DAG: the names a
// node reads from its environment. A node with no free variables evaluates
// to the same value in every environment.
type Scopes struct {
	dag *DAG

	mu   sync.Mutex
	free [][]string
	done int // nodes [0, done) are computed
}

// NewScopes prepares free-variable analysis for d.
func NewScopes(d *DAG) *Scopes {
	return &Scopes{dag: d, free: make([][]string, d.Len())}
}

// Free returns the sorted free variable names of id. The returned slice
// must not be modified.
func (s *Scopes) Free(id NodeID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Operands precede their users, so filling in id order never reads an
	// uncomputed entry.
	for ; s.done <= int(id); s.done++ {
		s.free[s.done] = s.compute(NodeID(s.done))
	}
	return s.free[id]
}

// Closed reports whether id has no free variables.
func (s *Scopes) Closed(id NodeID) bool {
	return len(s.Free(id)) == 0
}

func (s *Scopes) compute(id NodeID) []string {
	var names []string
	switch n := s.dag.Node(id).(type) {
	case *VarRef:
		return []string{n.Name}

	case *Lambda:
		for _, p := range n.Params {
			if p.Default.Valid() {
				names = append(names, s.free[p.Default]...)
			}
		}
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name
		}
		names = append(names, without(s.free[n.Body], params)...)

	case *Let:
		names = append(names, s.free[n.Value]...)
		names = append(names, without(s.free[n.Body], []string{n.Name})...)

	case *Match:
		names = append(names, s.free[n.Scrutinee]...)
		for _, arm := range n.Arms {
			names = append(names, without(s.free[arm.Body], arm.Pattern.Binds())...)
		}

	default:
		for _, op := range n.Operands() {
			names = append(names, s.free[op]...)
		}
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func without(names, bound []string) []string {
	if len(bound) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(bound, n) {
			out = append(out, n)
		}
	}
	return out
}
