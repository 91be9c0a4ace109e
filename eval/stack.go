package eval

import (
	"context"

	"github.com/chazu/covariant/hash"
)

// MaxDepth bounds the nesting of node evaluations.
const MaxDepth = 10000

type stackKey struct{}

// frame records one in-progress evaluation on the current call path.
type frame struct {
	key    hash.Digest
	depth  int
	parent *frame
}

func push(ctx context.Context, key hash.Digest) context.Context {
	parent, _ := ctx.Value(stackKey{}).(*frame)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	return context.WithValue(ctx, stackKey{}, &frame{key: key, depth: depth, parent: parent})
}

// checkStack fails when key is already being evaluated on this call path.
// Evaluation is deterministic, so such a path never terminates; waiting on
// the cache for it would block forever.
func checkStack(ctx context.Context, key hash.Digest) error {
	top, _ := ctx.Value(stackKey{}).(*frame)
	if top == nil {
		return nil
	}
	if top.depth >= MaxDepth {
		return errorf(ErrRecursion, "evaluation nested deeper than %d", MaxDepth)
	}
	for f := top; f != nil; f = f.parent {
		if f.key == key {
			return errorf(ErrRecursion, "evaluation depends on itself")
		}
	}
	return nil
}
