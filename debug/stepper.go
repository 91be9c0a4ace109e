// Package debug linearizes an evaluated DAG into checkpoints for
// step-by-step playback.
package debug

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/chazu/covariant/diff"
	"github.com/chazu/covariant/eval"
	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

var log = commonlog.GetLogger("covariant.debug")

// ErrInvalidStepIndex is returned by Render for a negative step.
var ErrInvalidStepIndex = errors.New("invalid step index")

// ---------------------------------------------------------------------------
// Checkpoints and frames
// ---------------------------------------------------------------------------

// Checkpoint is one step of playback: a geometry or trace node. A node
// inside a function body or match arm gets one checkpoint per distinct
// evaluation seen while the design ran.
type Checkpoint struct {
	Index int       // Position in the checkpoint sequence
	Node  ir.NodeID // Node evaluated at this step
	Span  ir.Span   // Source span of the node
	Label string    // Trace label, or the operation name
	Kind  ir.Kind

	// Key is set for checkpoints recorded at run time.
	Key hash.Digest
	env *eval.Env
}

// Item is the result of evaluating one checkpoint.
type Item struct {
	Checkpoint
	Value eval.Value
	Err   error
}

// Frame is the cumulative state after a step.
type Frame struct {
	Step  int // -1 when there are no checkpoints
	Node  ir.NodeID
	Span  ir.Span
	Label string

	// Visible holds results not consumed by a later evaluated checkpoint.
	Visible []Item
	// Failed holds checkpoints whose evaluation failed.
	Failed []Item
	// Traces holds every evaluated trace checkpoint.
	Traces []Item
}

// ---------------------------------------------------------------------------
// Stepper
// ---------------------------------------------------------------------------

// Stepper replays the checkpoints of one evaluated DAG. Rendering goes
// through the evaluator's cache, so stepping back and forth recomputes
// nothing that is still cached.
type Stepper struct {
	ev   *eval.Evaluator
	plan *diff.Result
	run  *eval.Result

	checkpoints []Checkpoint
	// consumes[k] lists the earlier checkpoints whose results flow into
	// checkpoint k.
	consumes [][]int
}

// New builds the checkpoint sequence in id order. Nodes evaluated
// unconditionally by some statement are found statically. Nodes below
// lambda bodies or match arms are found by replaying the statements, so
// only the evaluations that actually happened become checkpoints.
func New(ctx context.Context, ev *eval.Evaluator, plan *diff.Result, run *eval.Result) (*Stepper, error) {
	d := ev.DAG()
	s := &Stepper{ev: ev, plan: plan, run: run}
	d.Each(func(id ir.NodeID, e ir.Entry) bool {
		if !interesting(e.Node.Kind()) {
			return true
		}
		if c, ok := plan.Context(id); !ok || c.Conditional {
			return true
		}
		s.checkpoints = append(s.checkpoints, checkpoint(d, id))
		return true
	})

	dynamic, err := s.replay(ctx)
	if err != nil {
		return nil, err
	}
	s.checkpoints = append(s.checkpoints, dynamic...)
	slices.SortStableFunc(s.checkpoints, func(a, b Checkpoint) int {
		return cmp.Compare(a.Node, b.Node)
	})

	index := make(map[ir.NodeID][]int, len(s.checkpoints))
	for i := range s.checkpoints {
		s.checkpoints[i].Index = i
		index[s.checkpoints[i].Node] = append(index[s.checkpoints[i].Node], i)
	}
	s.consumes = make([][]int, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		for _, id := range s.upstream(cp.Node) {
			for _, j := range index[id] {
				if j < cp.Index {
					s.consumes[cp.Index] = append(s.consumes[cp.Index], j)
				}
			}
		}
	}
	log.Debugf("stepper: %d checkpoints (%d recorded at run time) over %d nodes",
		len(s.checkpoints), len(dynamic), d.Len())
	return s, nil
}

func interesting(k ir.Kind) bool {
	return k.ProducesGeometry() || k == ir.KindTrace
}

func checkpoint(d *ir.DAG, id ir.NodeID) Checkpoint {
	e := d.Get(id)
	return Checkpoint{Node: id, Span: e.Span, Label: label(e.Node), Kind: e.Node.Kind()}
}

// replay re-runs the statements and records the conditional geometry and
// trace nodes they evaluate, once per evaluation key.
func (s *Stepper) replay(ctx context.Context) ([]Checkpoint, error) {
	type visit struct {
		node ir.NodeID
		key  hash.Digest
	}
	d := s.ev.DAG()
	seen := make(map[visit]bool)
	var out []Checkpoint
	record := func(id ir.NodeID, env *eval.Env, _ eval.Value, _ error) {
		if c, ok := s.plan.Context(id); ok && !c.Conditional {
			return
		}
		k := visit{node: id, key: s.ev.Key(id, env)}
		if seen[k] {
			return
		}
		seen[k] = true
		cp := checkpoint(d, id)
		cp.Key, cp.env = k.key, env
		out = append(out, cp)
	}

	env := s.ev.Base()
	for _, st := range d.Statements() {
		v, err := s.ev.Replay(ctx, st.Node, env, record)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil && st.Name != "" {
			env = env.Bind(st.Name, v)
		}
	}
	return out, nil
}

func label(n ir.Node) string {
	switch n := n.(type) {
	case *ir.Trace:
		return n.Label
	case *ir.Primitive:
		return n.Shape.String()
	case *ir.Boolean:
		return n.Op.String()
	case *ir.Transform:
		return n.Op.String()
	case *ir.Generate:
		return n.Op.String()
	case *ir.ThreadedHole:
		return fmt.Sprintf("%s %s %s hole", n.Standard, n.Size, n.Hole)
	}
	return n.Kind().String()
}

// upstream returns every node whose value id depends on, following
// operands and statically resolved variable references.
func (s *Stepper) upstream(id ir.NodeID) []ir.NodeID {
	d := s.ev.DAG()
	seen := map[ir.NodeID]bool{id: true}
	stack := []ir.NodeID{id}
	var out []ir.NodeID
	push := func(n ir.NodeID) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, op := range d.Node(n).Operands() {
			push(op)
		}
		if target, ok := s.plan.Resolve(n); ok {
			push(target)
		}
	}
	return out
}

// Checkpoints returns the checkpoint sequence.
func (s *Stepper) Checkpoints() []Checkpoint {
	return append([]Checkpoint(nil), s.checkpoints...)
}

// Len returns the number of checkpoints.
func (s *Stepper) Len() int {
	return len(s.checkpoints)
}

// Render evaluates every checkpoint up to and including step. A step past
// the last checkpoint renders the last one.
func (s *Stepper) Render(ctx context.Context, step int) (*Frame, error) {
	if step < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStepIndex, step)
	}
	if len(s.checkpoints) == 0 {
		return &Frame{Step: -1, Node: ir.NoNode}, nil
	}
	step = min(step, len(s.checkpoints)-1)

	items := make([]Item, step+1)
	for i, cp := range s.checkpoints[:step+1] {
		v, err := s.evaluate(ctx, cp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		items[i] = Item{Checkpoint: cp, Value: v, Err: err}
	}

	consumed := make([]bool, len(items))
	for k, it := range items {
		if it.Err != nil {
			continue
		}
		for _, j := range s.consumes[k] {
			consumed[j] = true
		}
	}

	cur := s.checkpoints[step]
	f := &Frame{Step: step, Node: cur.Node, Span: cur.Span, Label: cur.Label}
	for i, it := range items {
		switch {
		case it.Err != nil:
			f.Failed = append(f.Failed, it)
			continue
		case !consumed[i]:
			f.Visible = append(f.Visible, it)
		}
		if it.Kind == ir.KindTrace {
			f.Traces = append(f.Traces, it)
		}
	}
	return f, nil
}

// evaluate evaluates a checkpoint in its environment. A run-time
// checkpoint kept its own; a static one is rebuilt from its statement
// environment and the let bindings above it.
func (s *Stepper) evaluate(ctx context.Context, cp Checkpoint) (eval.Value, error) {
	if cp.env != nil {
		return s.ev.Eval(ctx, cp.Node, cp.env)
	}
	c, ok := s.plan.Context(cp.Node)
	if !ok || c.Statement >= len(s.run.Statements) {
		return nil, fmt.Errorf("%s has no evaluation context", cp.Node)
	}
	env := s.run.Statements[c.Statement].Env
	for _, b := range c.Bindings {
		v, err := s.ev.Eval(ctx, b.Node, env)
		if err != nil {
			return nil, err
		}
		env = env.Bind(b.Name, v)
	}
	return s.ev.Eval(ctx, cp.Node, env)
}
