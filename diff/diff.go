// Package diff classifies the nodes of a freshly lowered DAG against a
// result cache, before anything is evaluated.
//
// A node's evaluation key depends only on its content and on the values
// bound to its free variables. Those values are themselves identified by
// the keys they were produced under, so keys can be derived statically by
// following bindings from the top-level statements down. A node whose key
// is already cached is Clean; evaluating it is a cache hit. A node whose
// key is absent is Dirty. A node whose key depends on a lambda argument or
// a destructured field cannot be keyed until it runs and is Deferred.
package diff

import (
	"fmt"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

var log = commonlog.GetLogger("covariant.diff")

// Status is the classification of one node.
type Status uint8

const (
	Clean Status = iota + 1
	Dirty
	Deferred
)

func (s Status) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Deferred:
		return "deferred"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Binding is a name bound inside a statement by a let or a match arm,
// together with the node whose value it holds.
type Binding struct {
	Name string
	Node ir.NodeID
}

// Context locates a node evaluation: the statement it belongs to and the
// bindings, outermost first, introduced between the statement root and the
// node. Conditional is set below lambda bodies and match arms, whose
// evaluation depends on a runtime choice.
type Context struct {
	Statement   int
	Bindings    []Binding
	Conditional bool
}

// Result is the classification of every node of a DAG.
type Result struct {
	Status []Status
	// Keys holds the static evaluation key of each node; zero for
	// Deferred nodes.
	Keys []hash.Digest

	scopes   []*scope
	resolved map[ir.NodeID]ir.NodeID
}

// Dirty returns the nodes that must be computed, in id order.
func (r *Result) Dirty() []ir.NodeID {
	return r.with(Dirty)
}

// Clean returns the nodes whose results are cached, in id order.
func (r *Result) Clean() []ir.NodeID {
	return r.with(Clean)
}

// Deferred returns the nodes keyed only at call time, in id order.
func (r *Result) Deferred() []ir.NodeID {
	return r.with(Deferred)
}

func (r *Result) with(s Status) []ir.NodeID {
	var ids []ir.NodeID
	for i, st := range r.Status {
		if st == s {
			ids = append(ids, ir.NodeID(i))
		}
	}
	return ids
}

// Context returns where id is evaluated. It reports false for Deferred
// nodes and for nodes no statement reaches.
func (r *Result) Context(id ir.NodeID) (Context, bool) {
	if int(id) >= len(r.scopes) || r.scopes[id] == nil || r.Status[id] == Deferred {
		return Context{}, false
	}
	sc := r.scopes[id]
	var bindings []Binding
	for f := sc.frames; f != nil; f = f.parent {
		if f.local {
			bindings = append(bindings, Binding{Name: f.name, Node: f.node})
		}
	}
	slices.Reverse(bindings)
	return Context{Statement: sc.stmt, Bindings: bindings, Conditional: sc.conditional}, true
}

// Resolve returns the node a variable reference statically refers to: the
// root of a statement or the value of a let or matched scrutinee. It
// reports false for builtins, parameters, destructured fields and
// references resolved differently in different contexts.
func (r *Result) Resolve(ref ir.NodeID) (ir.NodeID, bool) {
	id, ok := r.resolved[ref]
	return id, ok && id.Valid()
}

func (r *Result) String() string {
	return fmt.Sprintf("%d clean, %d dirty, %d deferred",
		len(r.Clean()), len(r.Dirty()), len(r.Deferred()))
}

// ---------------------------------------------------------------------------
// Planner
// ---------------------------------------------------------------------------

// frame is one static binding. Unknown frames hold values that exist only
// at call time.
type frame struct {
	parent *frame
	name   string
	node   ir.NodeID
	digest hash.Digest
	known  bool
	local  bool
}

func (f *frame) lookup(name string) *frame {
	for ; f != nil; f = f.parent {
		if f.name == name {
			return f
		}
	}
	return nil
}

type scope struct {
	stmt        int
	frames      *frame
	conditional bool
}

type visitKey struct {
	id          ir.NodeID
	frames      *frame
	conditional bool
}

type visitResult struct {
	key   hash.Digest
	known bool
}

type planner struct {
	dag    *ir.DAG
	hasher *hash.Hasher
	scopes *ir.Scopes

	memo     map[visitKey]visitResult
	seen     []bool
	conflict []bool
	res      *Result
}

// Plan classifies every node of d. base maps the names of the evaluator's
// base environment to the digests bound to them; has reports whether a
// key would be served without computing, from memory or a persistent tier.
func Plan(d *ir.DAG, hasher *hash.Hasher, scopes *ir.Scopes, base map[string]hash.Digest, has func(hash.Digest) bool) *Result {
	n := d.Len()
	p := &planner{
		dag:      d,
		hasher:   hasher,
		scopes:   scopes,
		memo:     make(map[visitKey]visitResult),
		seen:     make([]bool, n),
		conflict: make([]bool, n),
		res: &Result{
			Status:   make([]Status, n),
			Keys:     make([]hash.Digest, n),
			scopes:   make([]*scope, n),
			resolved: make(map[ir.NodeID]ir.NodeID),
		},
	}

	names := make([]string, 0, len(base))
	for name := range base {
		names = append(names, name)
	}
	slices.Sort(names)
	var globals *frame
	for _, name := range names {
		globals = &frame{parent: globals, name: name, node: ir.NoNode, digest: base[name], known: true}
	}

	for i, s := range d.Statements() {
		key, known := p.visit(s.Node, &scope{stmt: i, frames: globals})
		if s.Name != "" {
			globals = &frame{parent: globals, name: s.Name, node: s.Node, digest: key, known: known}
		}
	}

	for i := range n {
		id := ir.NodeID(i)
		if !p.seen[i] {
			// Not reached from any statement; only closed nodes can be keyed.
			if scopes.Closed(id) {
				p.res.Keys[i] = hasher.Of(id)
			} else {
				p.conflict[i] = true
			}
		}
		switch {
		case p.conflict[i]:
			p.res.Status[i] = Deferred
			p.res.Keys[i] = hash.Digest{}
		case has(p.res.Keys[i]):
			p.res.Status[i] = Clean
		default:
			p.res.Status[i] = Dirty
		}
	}

	log.Infof("plan: %s", p.res)
	return p.res
}

func (p *planner) visit(id ir.NodeID, sc *scope) (hash.Digest, bool) {
	vk := visitKey{id: id, frames: sc.frames, conditional: sc.conditional}
	if r, ok := p.memo[vk]; ok {
		return r.key, r.known
	}

	key, known := p.key(id, sc.frames)
	p.record(id, key, known, sc)
	p.memo[vk] = visitResult{key: key, known: known}
	p.descend(id, sc)
	return key, known
}

// key mirrors the evaluator: the node digest alone when the node is
// closed, otherwise bound to the digests of its free names. Names bound
// nowhere contribute the zero digest.
func (p *planner) key(id ir.NodeID, frames *frame) (hash.Digest, bool) {
	digest := p.hasher.Of(id)
	free := p.scopes.Free(id)
	if len(free) == 0 {
		return digest, true
	}
	values := make([]hash.Digest, len(free))
	for i, name := range free {
		f := frames.lookup(name)
		if f == nil {
			continue
		}
		if !f.known {
			return hash.Digest{}, false
		}
		values[i] = f.digest
	}
	return hash.Bind(digest, free, values), true
}

func (p *planner) record(id ir.NodeID, key hash.Digest, known bool, sc *scope) {
	if ref, ok := p.dag.Node(id).(*ir.VarRef); ok {
		target := ir.NoNode
		if f := sc.frames.lookup(ref.Name); f != nil {
			target = f.node
		}
		if prev, ok := p.res.resolved[id]; ok && prev != target {
			target = ir.NoNode
		}
		p.res.resolved[id] = target
	}

	switch {
	case !known:
		p.conflict[id] = true
	case !p.seen[id]:
		p.seen[id] = true
		p.res.Keys[id] = key
		p.res.scopes[id] = sc
	case p.res.Keys[id] != key:
		log.Debugf("%s reached under conflicting bindings", id)
		p.conflict[id] = true
	case p.res.scopes[id].conditional && !sc.conditional:
		// Prefer an unconditional context for the same key.
		p.res.scopes[id] = sc
	}
	p.seen[id] = true
}

func (p *planner) descend(id ir.NodeID, sc *scope) {
	switch n := p.dag.Node(id).(type) {
	case *ir.Lambda:
		inner := &scope{stmt: sc.stmt, frames: sc.frames, conditional: true}
		for _, prm := range n.Params {
			if prm.Default.Valid() {
				p.visit(prm.Default, inner)
			}
		}
		body := &scope{stmt: sc.stmt, frames: sc.frames, conditional: true}
		for _, prm := range n.Params {
			body.frames = &frame{parent: body.frames, name: prm.Name, node: ir.NoNode, local: true}
		}
		p.visit(n.Body, body)

	case *ir.Let:
		key, known := p.visit(n.Value, sc)
		p.visit(n.Body, &scope{
			stmt:        sc.stmt,
			frames:      &frame{parent: sc.frames, name: n.Name, node: n.Value, digest: key, known: known, local: true},
			conditional: sc.conditional,
		})

	case *ir.Match:
		key, known := p.visit(n.Scrutinee, sc)
		for _, arm := range n.Arms {
			frames := sc.frames
			if bp, ok := arm.Pattern.(*ir.BindPat); ok {
				frames = &frame{parent: frames, name: bp.Name, node: n.Scrutinee, digest: key, known: known, local: true}
			} else {
				for _, name := range arm.Pattern.Binds() {
					frames = &frame{parent: frames, name: name, node: ir.NoNode, local: true}
				}
			}
			p.visit(arm.Body, &scope{stmt: sc.stmt, frames: frames, conditional: true})
		}

	default:
		for _, op := range n.Operands() {
			p.visit(op, sc)
		}
	}
}
