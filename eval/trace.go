package eval

import (
	"sync"

	"github.com/chazu/covariant/hash"
	"github.com/chazu/covariant/ir"
)

// TraceEntry is one registration of a trace node.
type TraceEntry struct {
	Label string
	Node  ir.NodeID
	Span  ir.Span
	Value Value
}

// TraceLog collects trace registrations in order of first registration.
// A trace node evaluated again under the same key is recorded once,
// whether the value came from the cache or was computed.
type TraceLog struct {
	mu      sync.Mutex
	entries []TraceEntry
	seen    map[traceID]struct{}
}

type traceID struct {
	node   ir.NodeID
	digest hash.Digest
}

func NewTraceLog() *TraceLog {
	return &TraceLog{seen: make(map[traceID]struct{})}
}

func (t *TraceLog) record(label string, id ir.NodeID, span ir.Span, v Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := traceID{node: id, digest: v.Digest()}
	if _, ok := t.seen[k]; ok {
		return
	}
	t.seen[k] = struct{}{}
	t.entries = append(t.entries, TraceEntry{Label: label, Node: id, Span: span, Value: v})
	log.Debugf("trace %q at %s: %s", label, span, v)
}

// Entries returns a copy of the registrations so far.
func (t *TraceLog) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEntry(nil), t.entries...)
}

// Reset forgets every registration.
func (t *TraceLog) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.seen = make(map[traceID]struct{})
}
