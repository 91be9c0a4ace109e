package cache

import (
	"context"

	"github.com/chazu/covariant/hash"
)

// Tier is a persistent digest → bytes store backing a Cache. Writes must be
// idempotent: the same key is always written with the same bytes.
type Tier interface {
	Get(ctx context.Context, key hash.Digest) ([]byte, bool, error)
	Put(ctx context.Context, key hash.Digest, data []byte) error
}

// Codec converts cached values to and from tier bytes. Encode reports false
// for values that cannot leave the process, such as opaque kernel handles.
type Codec[V any] interface {
	Encode(v V) ([]byte, bool, error)
	Decode(data []byte) (V, error)
}
