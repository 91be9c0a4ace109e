package eval

import (
	"errors"
	"fmt"

	"github.com/chazu/covariant/geom"
	"github.com/chazu/covariant/ir"
)

// Error kinds. Every evaluation error matches exactly one of these with
// errors.Is.
var (
	ErrLowering          = errors.New("lowering error")
	ErrUnboundName       = errors.New("unbound name")
	ErrBinding           = errors.New("binding error")
	ErrUnitMismatch      = errors.New("unit mismatch")
	ErrMatchFailure      = errors.New("match failure")
	ErrUnknownThreadSize = errors.New("unknown thread size")
	ErrGeometry          = errors.New("geometry error")
	ErrType              = errors.New("type error")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrRecursion         = errors.New("unbounded recursion")
	ErrInvariant         = errors.New("invariant violation")
)

// Error is an evaluation failure at a node. Span is the source span of the
// node the failure originated at; enclosing nodes propagate the error
// unchanged.
type Error struct {
	Kind    error
	Node    ir.NodeID
	Span    ir.Span
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Node == ir.NoNode {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at %s [%s]: %s", e.Kind, e.Node, e.Span, e.Message)
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// GeometryError is a failure reported by the geometry provider.
type GeometryError struct {
	Node    ir.NodeID
	Span    ir.Span
	Op      string
	Reason  geom.Reason
	Failure error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s at %s [%s]: %s: %v", ErrGeometry, e.Node, e.Span, e.Op, e.Failure)
}

func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

func (e *GeometryError) Unwrap() error { return e.Failure }

// SpanOf returns the source span an evaluation error originated at.
func SpanOf(err error) (ir.Span, bool) {
	var ee *Error
	if errors.As(err, &ee) && ee.Node != ir.NoNode {
		return ee.Span, true
	}
	var ge *GeometryError
	if errors.As(err, &ge) {
		return ge.Span, true
	}
	return ir.Span{}, false
}

// errorf creates an unlocated error; the evaluator attaches the node.
func errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Node: ir.NoNode, Message: fmt.Sprintf(format, args...)}
}

// locate attaches node and span to an unlocated *Error. Errors that
// already carry a location pass through unchanged.
func locate(err error, id ir.NodeID, span ir.Span) error {
	var ee *Error
	if errors.As(err, &ee) && ee.Node == ir.NoNode {
		ee.Node = id
		ee.Span = span
	}
	return err
}
