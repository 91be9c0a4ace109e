// Package hash computes content digests of IR nodes. A node's digest covers
// its kind, its literal payload and the digests of its operands, so equal
// subgraphs hash equally wherever they appear and whatever their ids.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/chazu/covariant/ir"
)

// Digest is a SHA-256 content digest.
type Digest [32]byte

// String returns the full lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex digits, for logs.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

// IsZero reports whether d is the zero digest, which no content hashes to
// in practice.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Sum hashes raw bytes.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// Hasher computes and memoizes node digests for one DAG. It is safe for
// concurrent use.
type Hasher struct {
	dag *ir.DAG

	mu   sync.Mutex
	memo []Digest
	done int // nodes [0, done) are hashed
}

// New returns a Hasher for d.
func New(d *ir.DAG) *Hasher {
	return &Hasher{dag: d, memo: make([]Digest, d.Len())}
}

// Of returns the digest of id. Digests are computed on first request, in
// id order, so every operand is hashed before the nodes that use it.
func (h *Hasher) Of(id ir.NodeID) Digest {
	h.mu.Lock()
	defer h.mu.Unlock()
	operand := func(op ir.NodeID) Digest { return h.memo[op] }
	for ; h.done <= int(id); h.done++ {
		h.memo[h.done] = Sum(Serialize(h.dag.Node(ir.NodeID(h.done)), operand))
	}
	return h.memo[id]
}

// DAG returns the DAG h hashes.
func (h *Hasher) DAG() *ir.DAG {
	return h.dag
}

// Bind derives the key of a node evaluated under particular bindings of its
// free variables. names must be sorted and values[i] is the digest of the
// value bound to names[i].
func Bind(node Digest, names []string, values []Digest) Digest {
	s := &serializer{buf: make([]byte, 0, 64+len(names)*40)}
	s.writeByte(HashVersion)
	s.writeByte(TagBind)
	s.writeDigest(node)
	s.writeUint32(uint32(len(names)))
	for i, name := range names {
		s.writeString(name)
		s.writeDigest(values[i])
	}
	return Sum(s.buf)
}

// Builtin returns the fixed digest of the builtin function name.
func Builtin(name string) Digest {
	s := &serializer{}
	s.writeByte(HashVersion)
	s.writeByte(TagBuiltin)
	s.writeString(name)
	return Sum(s.buf)
}
