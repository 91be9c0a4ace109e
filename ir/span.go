package ir

import "fmt"

// Span is a byte-offset range in source text. Start is inclusive, End is
// exclusive.
type Span struct {
	Start uint32
	End   uint32
}

// NewSpan returns the span [start, end).
func NewSpan(start, end uint32) Span {
	return Span{Start: start, End: end}
}

// Point returns a zero-length span at offset, used for synthetic nodes.
func Point(offset uint32) Span {
	return Span{Start: offset, End: offset}
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	return Span{Start: min(s.Start, other.Start), End: max(s.End, other.End)}
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() uint32 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// NodeID indexes a node in its DAG. Ids are assigned in insertion order.
type NodeID uint32

// NoNode marks an absent optional operand, such as a parameter without a
// default or a record construction without a base.
const NoNode NodeID = ^NodeID(0)

// Valid reports whether id refers to a node rather than NoNode.
func (id NodeID) Valid() bool {
	return id != NoNode
}

func (id NodeID) String() string {
	if id == NoNode {
		return "n-"
	}
	return fmt.Sprintf("n%d", uint32(id))
}
