package eval

import (
	"context"
	"errors"

	"github.com/chazu/covariant/ir"
)

// StatementResult is the outcome of one top-level statement. Env is the
// environment the statement was evaluated in.
type StatementResult struct {
	Name  string
	Node  ir.NodeID
	Span  ir.Span
	Env   *Env
	Value Value
	Err   error
}

// Result is the outcome of running every statement of a DAG.
type Result struct {
	Statements []StatementResult
	// Env holds the base environment and every successfully bound name.
	Env *Env
}

// Lookup returns the final value bound to a statement name.
func (r *Result) Lookup(name string) (Value, bool) {
	return r.Env.Lookup(name)
}

// Errors returns the statement errors in statement order.
func (r *Result) Errors() []error {
	var errs []error
	for _, s := range r.Statements {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// Err joins every statement error, or returns nil when all succeeded.
func (r *Result) Err() error {
	return errors.Join(r.Errors()...)
}

// Run evaluates the statements of the DAG in order. A failing statement
// records its error and leaves its name unbound; the statements after it
// still run, and any that use the name fail with ErrUnboundName.
func (ev *Evaluator) Run(ctx context.Context) *Result {
	stmts := ev.prog.dag.Statements()
	res := &Result{Statements: make([]StatementResult, 0, len(stmts))}
	env := ev.base
	for _, s := range stmts {
		v, err := ev.Eval(ctx, s.Node, env)
		res.Statements = append(res.Statements, StatementResult{
			Name:  s.Name,
			Node:  s.Node,
			Span:  s.Span,
			Env:   env,
			Value: v,
			Err:   err,
		})
		if err != nil {
			log.Warningf("statement %q at %s: %s", s.Name, s.Span, err)
			continue
		}
		if s.Name != "" {
			env = env.Bind(s.Name, v)
		}
		log.Debugf("statement %q = %s", s.Name, v)
	}
	res.Env = env
	stats := ev.cache.Stats()
	log.Infof("evaluated %d statements (%d errors); %s: %d hits, %d computations",
		len(stmts), len(res.Errors()), ev.cache, stats.Hits, stats.Computations)
	return res
}
