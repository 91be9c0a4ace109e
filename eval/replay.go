package eval

import (
	"context"

	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

// Visitor receives one evaluation of a geometry or trace node during a
// Replay. err is non-nil when the node failed.
type Visitor func(id ir.NodeID, env *Env, v Value, err error)

type replayKey struct{}

// replayState is shared by one Replay call. A key replayed once is taken
// from the cache after that, since its visits would repeat.
type replayState struct {
	visit Visitor
	seen  map[hash.Digest]bool
}

func replayFrom(ctx context.Context) *replayState {
	r, _ := ctx.Value(replayKey{}).(*replayState)
	return r
}

// Replay evaluates id in env and reports the geometry and trace nodes it
// reaches to visit, in evaluation order, including nodes inside function
// bodies and match arms. Geometry results come from the cache when
// present; the values around them are recomputed so that nodes below a
// cached call are still visited. Only geometry results are committed to
// the cache.
func (ev *Evaluator) Replay(ctx context.Context, id ir.NodeID, env *Env, visit Visitor) (Value, error) {
	if !ev.prog.dag.Has(id) {
		return nil, &Error{Kind: ErrInvariant, Node: id, Message: "node is not part of the DAG"}
	}
	r := &replayState{visit: visit, seen: make(map[hash.Digest]bool)}
	return ev.eval(context.WithValue(ctx, replayKey{}, r), ev.prog, id, env)
}

func (ev *Evaluator) replay(ctx context.Context, r *replayState, p *program, id ir.NodeID, env *Env, key hash.Digest) (Value, error) {
	if err := checkStack(ctx, key); err != nil {
		return nil, locate(err, id, p.dag.Span(id))
	}
	r.seen[key] = true
	n := p.dag.Node(id)
	k := n.Kind()

	var (
		v   Value
		err error
	)
	if k.ProducesGeometry() {
		// Operands first, so nodes below are visited even when this node
		// is a cache hit.
		inner := push(ctx, key)
		for _, op := range n.Operands() {
			if _, err = ev.eval(inner, p, op, env); err != nil {
				break
			}
		}
		if err == nil {
			quiet := context.WithValue(ctx, replayKey{}, (*replayState)(nil))
			v, err = ev.cache.GetOrInsert(quiet, key, ev.computeFunc(p, id, env, key))
		}
	} else {
		v, err = ev.computeFunc(p, id, env, key)(ctx)
	}

	if k.ProducesGeometry() || k == ir.KindTrace {
		r.visit(id, env, v, err)
	}
	return v, err
}
