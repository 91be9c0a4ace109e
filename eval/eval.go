// Package eval evaluates IR nodes to values, memoizing every node
// evaluation in a content-addressed cache.
//
// The cache key of a node evaluation combines the node's content digest
// with the digests of the values bound to its free variables. Closed
// subgraphs therefore share one entry however often they occur, and an
// edited design re-evaluates only the nodes whose key changed.
package eval

import (
	"context"

	"github.com/tliron/commonlog"

	"github.com/chazu/covariant/cache"
	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
	"github.com/chazu/covariant/thread"
)

var log = commonlog.GetLogger("covariant.eval")

// program is a DAG with its analyses. Closures keep the program they were
// created in, so a closure taken from the cache stays callable after its
// DAG has been superseded.
type program struct {
	dag    *ir.DAG
	hasher *hash.Hasher
	scopes *ir.Scopes
}

func newProgram(d *ir.DAG) *program {
	return &program{dag: d, hasher: hash.New(d), scopes: ir.NewScopes(d)}
}

// key returns the evaluation key of id in env. Unbound free names
// contribute the zero digest; evaluating such a node fails, and failures
// are never cached.
func (p *program) key(id ir.NodeID, env *Env) hash.Digest {
	node := p.hasher.Of(id)
	free := p.scopes.Free(id)
	if len(free) == 0 {
		return node
	}
	values := make([]hash.Digest, len(free))
	for i, name := range free {
		if v, ok := env.Lookup(name); ok {
			values[i] = v.Digest()
		}
	}
	return hash.Bind(node, free, values)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithProvider sets the geometry provider. Without one, geometry nodes
// fail with ErrGeometry.
func WithProvider(p geom.Provider) Option {
	return func(ev *Evaluator) { ev.provider = p }
}

// WithThreads replaces the thread table lookup.
func WithThreads(f ThreadLookup) Option {
	return func(ev *Evaluator) { ev.threads = f }
}

// Evaluator evaluates the nodes of one DAG against a shared cache. It is
// safe for concurrent use.
type Evaluator struct {
	prog     *program
	cache    *cache.Cache[Value]
	provider geom.Provider
	threads  ThreadLookup
	traces   *TraceLog
	base     *Env
}

// New returns an Evaluator for d. A nil cache gets a fresh unbounded one.
func New(d *ir.DAG, c *cache.Cache[Value], opts ...Option) *Evaluator {
	if c == nil {
		c = cache.New[Value]()
	}
	ev := &Evaluator{
		prog:    newProgram(d),
		cache:   c,
		threads: thread.Lookup,
		traces:  NewTraceLog(),
		base:    BaseEnv(),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

func (ev *Evaluator) DAG() *ir.DAG               { return ev.prog.dag }
func (ev *Evaluator) Hasher() *hash.Hasher       { return ev.prog.hasher }
func (ev *Evaluator) Scopes() *ir.Scopes         { return ev.prog.scopes }
func (ev *Evaluator) Cache() *cache.Cache[Value] { return ev.cache }
func (ev *Evaluator) Provider() geom.Provider    { return ev.provider }
func (ev *Evaluator) Traces() *TraceLog          { return ev.traces }

// Base returns the environment statements are evaluated in before any
// statement binds a name.
func (ev *Evaluator) Base() *Env { return ev.base }

// Key returns the evaluation key of id in env.
func (ev *Evaluator) Key(id ir.NodeID, env *Env) hash.Digest {
	return ev.prog.key(id, env)
}

// Eval evaluates node id in env, reusing cached results.
func (ev *Evaluator) Eval(ctx context.Context, id ir.NodeID, env *Env) (Value, error) {
	if !ev.prog.dag.Has(id) {
		return nil, &Error{Kind: ErrInvariant, Node: id, Message: "node is not part of the DAG"}
	}
	return ev.eval(ctx, ev.prog, id, env)
}

func (ev *Evaluator) eval(ctx context.Context, p *program, id ir.NodeID, env *Env) (Value, error) {
	key := p.key(id, env)
	if r := replayFrom(ctx); r != nil && p == ev.prog && !r.seen[key] {
		return ev.replay(ctx, r, p, id, env, key)
	}
	if err := checkStack(ctx, key); err != nil {
		return nil, locate(err, id, p.dag.Span(id))
	}
	v, err := ev.cache.GetOrInsert(ctx, key, ev.computeFunc(p, id, env, key))
	if err != nil {
		return nil, err
	}
	if tr, ok := p.dag.Node(id).(*ir.Trace); ok && p == ev.prog {
		ev.traces.record(tr.Label, id, p.dag.Span(id), v)
	}
	return v, nil
}

// computeFunc returns the cache fill for id in env: it computes the value
// and stamps it with key.
func (ev *Evaluator) computeFunc(p *program, id ir.NodeID, env *Env, key hash.Digest) func(context.Context) (Value, error) {
	return func(ctx context.Context) (Value, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := ev.compute(push(ctx, key), p, id, env)
		if err != nil {
			return nil, locate(err, id, p.dag.Span(id))
		}
		return v.withDigest(key), nil
	}
}

func (ev *Evaluator) evalAll(ctx context.Context, p *program, ids []ir.NodeID, env *Env) ([]Value, error) {
	vals := make([]Value, len(ids))
	for i, id := range ids {
		v, err := ev.eval(ctx, p, id, env)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (ev *Evaluator) compute(ctx context.Context, p *program, id ir.NodeID, env *Env) (Value, error) {
	switch n := p.dag.Node(id).(type) {
	case *ir.NumberLit:
		return &Number{V: n.Unit.ToCanonical(n.Value), Dim: n.Unit.Dimension()}, nil
	case *ir.StringLit:
		return &String{V: n.Value}, nil
	case *ir.BoolLit:
		return &Bool{V: n.Value}, nil

	case *ir.VarRef:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return nil, errorf(ErrUnboundName, "%q is not defined", n.Name)
		}
		return v, nil

	case *ir.Lambda:
		return &Closure{Node: id, Params: n.Params, Body: n.Body, env: env, prog: p}, nil

	case *ir.Call:
		return ev.call(ctx, p, n, env)

	case *ir.Let:
		v, err := ev.eval(ctx, p, n.Value, env)
		if err != nil {
			return nil, err
		}
		return ev.eval(ctx, p, n.Body, env.Bind(n.Name, v))

	case *ir.BinaryOp:
		l, err := ev.eval(ctx, p, n.Left, env)
		if err != nil {
			return nil, err
		}
		if n.Op == ir.OpAnd || n.Op == ir.OpOr {
			lb, ok := l.(*Bool)
			if !ok {
				return nil, errorf(ErrType, "%s needs bools, got %s", n.Op, l.Kind())
			}
			if lb.V == (n.Op == ir.OpOr) {
				return &Bool{V: lb.V}, nil
			}
		}
		r, err := ev.eval(ctx, p, n.Right, env)
		if err != nil {
			return nil, err
		}
		return binary(n.Op, l, r)

	case *ir.UnaryOp:
		v, err := ev.eval(ctx, p, n.Operand, env)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v)

	case *ir.Match:
		s, err := ev.eval(ctx, p, n.Scrutinee, env)
		if err != nil {
			return nil, err
		}
		for _, arm := range n.Arms {
			armEnv, ok, err := matchPattern(arm.Pattern, s, env)
			if err != nil {
				return nil, err
			}
			if ok {
				return ev.eval(ctx, p, arm.Body, armEnv)
			}
		}
		return nil, errorf(ErrMatchFailure, "no arm matches %s", s)

	case *ir.Record:
		return ev.record(ctx, p, n, env)

	case *ir.FieldGet:
		v, err := ev.eval(ctx, p, n.Record, env)
		if err != nil {
			return nil, err
		}
		r, ok := v.(*Record)
		if !ok {
			return nil, errorf(ErrType, "cannot read field %q of %s", n.Name, v.Kind())
		}
		f, ok := r.Get(n.Name)
		if !ok {
			return nil, errorf(ErrType, "%s has no field %q", r.TypeName, n.Name)
		}
		return f, nil

	case *ir.List:
		elems, err := ev.evalAll(ctx, p, n.Elems, env)
		if err != nil {
			return nil, err
		}
		return &List{Elems: elems}, nil

	case *ir.Primitive, *ir.Boolean, *ir.Transform, *ir.Generate, *ir.ThreadedHole:
		return ev.geometry(ctx, p, id, n, env)

	case *ir.Trace:
		return ev.eval(ctx, p, n.Operand, env)

	case *ir.ErrorNode:
		return nil, &Error{
			Kind:    ErrLowering,
			Node:    id,
			Span:    n.Diagnostic.Span,
			Message: n.Diagnostic.Message,
		}
	}
	return nil, errorf(ErrInvariant, "cannot evaluate %T", p.dag.Node(id))
}

func (ev *Evaluator) call(ctx context.Context, p *program, n *ir.Call, env *Env) (Value, error) {
	callee, err := ev.eval(ctx, p, n.Callee, env)
	if err != nil {
		return nil, err
	}
	argIDs := make([]ir.NodeID, len(n.Args))
	for i, a := range n.Args {
		argIDs[i] = a.Value
	}
	args, err := ev.evalAll(ctx, p, argIDs, env)
	if err != nil {
		return nil, err
	}

	switch fn := callee.(type) {
	case *Closure:
		names := make([]string, len(fn.Params))
		defaults := make([]bool, len(fn.Params))
		for i, prm := range fn.Params {
			names[i] = prm.Name
			defaults[i] = prm.Default.Valid()
		}
		slots, err := bindArgs(fn.String(), names, defaults, n.Args)
		if err != nil {
			return nil, err
		}
		body := fn.env
		for i, prm := range fn.Params {
			var v Value
			if slots[i] >= 0 {
				v = args[slots[i]]
			} else if v, err = ev.eval(ctx, fn.prog, prm.Default, fn.env); err != nil {
				return nil, err
			}
			body = body.Bind(prm.Name, v)
		}
		return ev.eval(ctx, fn.prog, fn.Body, body)

	case *Builtin:
		names := make([]string, len(fn.Params))
		defaults := make([]bool, len(fn.Params))
		for i, prm := range fn.Params {
			names[i] = prm.Name
			defaults[i] = prm.Default != nil
		}
		slots, err := bindArgs(fn.Name, names, defaults, n.Args)
		if err != nil {
			return nil, err
		}
		bound := make([]Value, len(fn.Params))
		for i, prm := range fn.Params {
			if slots[i] >= 0 {
				bound[i] = args[slots[i]]
			} else {
				bound[i] = prm.Default
			}
		}
		return fn.fn(bound)
	}
	return nil, errorf(ErrType, "%s is not callable", callee.Kind())
}

func (ev *Evaluator) record(ctx context.Context, p *program, n *ir.Record, env *Env) (Value, error) {
	var base *Record
	if n.Base.Valid() {
		v, err := ev.eval(ctx, p, n.Base, env)
		if err != nil {
			return nil, err
		}
		r, ok := v.(*Record)
		if !ok {
			return nil, errorf(ErrType, "cannot update %s", v.Kind())
		}
		if n.TypeName != "" && n.TypeName != r.TypeName {
			return nil, errorf(ErrType, "cannot update %s as %s", r.TypeName, n.TypeName)
		}
		base = r
	}

	names := make([]string, len(n.Fields))
	ids := make([]ir.NodeID, len(n.Fields))
	for i, f := range n.Fields {
		for _, prev := range names[:i] {
			if prev == f.Name {
				return nil, errorf(ErrType, "field %q given twice", f.Name)
			}
		}
		names[i] = f.Name
		ids[i] = f.Value
	}
	vals, err := ev.evalAll(ctx, p, ids, env)
	if err != nil {
		return nil, err
	}

	if base == nil {
		return NewRecord(n.TypeName, names, vals), nil
	}
	r := base
	for i, name := range names {
		if _, ok := base.Get(name); !ok {
			return nil, errorf(ErrType, "%s has no field %q", base.TypeName, name)
		}
		r = r.With(name, vals[i])
	}
	return r, nil
}
