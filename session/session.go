// Package session runs the edit cycle of one open design: each newly
// lowered DAG is hashed, diffed against the session cache and evaluated,
// superseding the previous DAG while the cache carries over.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chazu/covariant/cache"
	"github.com/chazu/covariant/config"
	"github.com/chazu/covariant/debug"
	"github.com/chazu/covariant/diff"
	"github.com/chazu/covariant/eval"
	"github.com/chazu/covariant/export"
	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
	"github.com/chazu/covariant/store"
)

var (
	log    = commonlog.GetLogger("covariant.session")
	tracer = otel.Tracer("covariant.session")
)

var (
	ErrNoSnapshot  = errors.New("no design loaded")
	ErrNoStatement = errors.New("no such statement")
	ErrNotSolid    = errors.New("statement is not a solid")
)

// Snapshot is one evaluated version of the design.
type Snapshot struct {
	Seq         int
	DAG         *ir.DAG
	Plan        *diff.Result
	Result      *eval.Result
	Evaluator   *eval.Evaluator
	Diagnostics []ir.Diagnostic
}

// Statement returns the result of the last statement named name.
func (s *Snapshot) Statement(name string) (eval.StatementResult, bool) {
	for i := len(s.Result.Statements) - 1; i >= 0; i-- {
		if st := s.Result.Statements[i]; st.Name == name {
			return st, true
		}
	}
	return eval.StatementResult{}, false
}

// Option configures a Session.
type Option func(*Session)

// WithThreads replaces the thread table lookup used by evaluators.
func WithThreads(f eval.ThreadLookup) Option {
	return func(s *Session) { s.threads = f }
}

// Session owns the result cache for one open design.
type Session struct {
	ID uuid.UUID

	cfg      *config.Config
	provider geom.Provider
	threads  eval.ThreadLookup
	cache    *cache.Cache[eval.Value]
	store    *store.SQLite

	mu      sync.Mutex
	current *Snapshot
	seq     int
}

// New creates a session. A nil cfg uses config.Default. A non-empty [log]
// section reconfigures the process-wide log backend. When the
// configuration names a persistent cache file, results that can be
// serialized are also written there and survive the session.
func New(cfg *config.Config, provider geom.Provider, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Log != (config.LogConfig{}) {
		config.ConfigureLogging(cfg.Log)
	}
	s := &Session{ID: uuid.New(), cfg: cfg, provider: provider}
	for _, opt := range opts {
		opt(s)
	}

	copts := []cache.Option[eval.Value]{
		cache.WithName[eval.Value](s.ID.String()[:8]),
		cache.WithCapacity[eval.Value](cfg.Cache.Capacity),
	}
	if path := cfg.PersistPath(); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", s.ID, err)
		}
		s.store = st
		copts = append(copts, cache.WithTier[eval.Value](st, eval.ValueCodec{}))
	}
	s.cache = cache.New(copts...)

	log.Infof("session %s opened (%s)", s.ID, s.cache)
	return s, nil
}

// Cache returns the session cache.
func (s *Session) Cache() *cache.Cache[eval.Value] {
	return s.cache
}

// Current returns the latest snapshot, or nil before the first Load.
func (s *Session) Current() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Load evaluates a newly lowered DAG and makes it current. Statement
// failures are reported in the snapshot, not as an error; Load fails only
// for a malformed DAG or a cancelled context, leaving the previous
// snapshot current.
func (s *Session) Load(ctx context.Context, d *ir.DAG) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "session.Load",
		trace.WithAttributes(
			attribute.String("session.id", s.ID.String()),
			attribute.Int("dag.node_count", d.Len()),
			attribute.Int("dag.statement_count", len(d.Statements())),
		),
	)
	defer span.End()

	if err := d.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid DAG")
		return nil, fmt.Errorf("%w: %w", eval.ErrInvariant, err)
	}

	var opts []eval.Option
	if s.provider != nil {
		opts = append(opts, eval.WithProvider(s.provider))
	}
	if s.threads != nil {
		opts = append(opts, eval.WithThreads(s.threads))
	}
	ev := eval.New(d, s.cache, opts...)

	plan := diff.Plan(d, ev.Hasher(), ev.Scopes(), eval.BaseDigests(), func(key hash.Digest) bool {
		return s.cache.Stored(ctx, key)
	})
	span.SetAttributes(
		attribute.Int("plan.dirty", len(plan.Dirty())),
		attribute.Int("plan.deferred", len(plan.Deferred())),
	)

	res := ev.Run(ctx)
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context canceled")
		return nil, err
	}
	errs := res.Errors()
	span.SetAttributes(attribute.Int("result.errors", len(errs)))

	s.mu.Lock()
	s.seq++
	snap := &Snapshot{
		Seq:         s.seq,
		DAG:         d,
		Plan:        plan,
		Result:      res,
		Evaluator:   ev,
		Diagnostics: d.Diagnostics(),
	}
	s.current = snap
	s.mu.Unlock()

	log.Infof("session %s: design %d loaded: %d nodes, %s, %d statement errors",
		s.ID, snap.Seq, d.Len(), plan, len(errs))
	return snap, nil
}

// Stepper returns a debug stepper over the current snapshot.
func (s *Session) Stepper(ctx context.Context) (*debug.Stepper, error) {
	snap := s.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return debug.New(ctx, snap.Evaluator, snap.Plan, snap.Result)
}

// Request builds an export request for the solid bound to statement name,
// using the configured thread mode and quality.
func (s *Session) Request(name string) (export.Request, error) {
	snap := s.Current()
	if snap == nil {
		return export.Request{}, ErrNoSnapshot
	}
	st, ok := snap.Statement(name)
	if !ok {
		return export.Request{}, fmt.Errorf("%w: %q", ErrNoStatement, name)
	}
	if st.Err != nil {
		return export.Request{}, fmt.Errorf("statement %q: %w", name, st.Err)
	}
	solid, ok := st.Value.(*eval.Solid)
	if !ok {
		return export.Request{}, fmt.Errorf("%w: %q is a %s", ErrNotSolid, name, st.Value.Kind())
	}
	return export.Request{
		Name:       name,
		Handle:     solid.Handle,
		ThreadMode: s.cfg.ThreadMode(),
		Quality:    s.cfg.Quality(),
	}, nil
}

// Export tessellates req through the session's provider and writes it
// with e.
func (s *Session) Export(ctx context.Context, req export.Request, e export.Exporter, w io.Writer) (export.Report, error) {
	if s.provider == nil {
		return export.Report{}, fmt.Errorf("export %s: %w", req.Name, eval.ErrGeometry)
	}
	ctx, span := tracer.Start(ctx, "session.Export",
		trace.WithAttributes(attribute.String("export.name", req.Name)),
	)
	defer span.End()

	rep, err := export.Write(ctx, s.provider, e, req, w)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
	}
	return rep, err
}

// Close releases the persistent store, if any.
func (s *Session) Close() error {
	log.Infof("session %s closed: %+v", s.ID, s.cache.Stats())
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
