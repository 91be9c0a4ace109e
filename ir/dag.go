package ir

import "fmt"

// ---------------------------------------------------------------------------
// DAG: append-only node arena
// ---------------------------------------------------------------------------

// Entry is a node together with the source span it was lowered from.
type Entry struct {
	Node Node
	Span Span
}

// Statement is a top-level statement of a design. A named statement binds
// its value for the statements that follow it.
type Statement struct {
	Name string
	Node NodeID
	Span Span
}

// DAG is an append-only collection of immutable nodes. A node's id is its
// insertion index and every operand id is strictly smaller than the id of
// the node referencing it.
//
// A DAG is never edited: a changed design is lowered into a new DAG.
type DAG struct {
	entries    []Entry
	statements []Statement
}

// InvariantError reports a violated structural invariant. It indicates a
// bug in the component that built the DAG, never a problem with user input.
type InvariantError struct {
	Node    NodeID
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ir invariant violated at %s: %s", e.Node, e.Message)
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{}
}

// Insert appends n and returns its id. It panics with an *InvariantError
// when an operand does not refer to an already inserted node.
func (d *DAG) Insert(n Node, span Span) NodeID {
	id, err := d.append(n, span)
	if err != nil {
		panic(err)
	}
	return id
}

func (d *DAG) append(n Node, span Span) (NodeID, error) {
	id := NodeID(len(d.entries))
	if n == nil {
		return id, &InvariantError{Node: id, Message: "nil node"}
	}
	if err := checkOperands(id, n); err != nil {
		return id, err
	}
	d.entries = append(d.entries, Entry{Node: n, Span: span})
	return id, nil
}

func checkOperands(id NodeID, n Node) error {
	for _, op := range n.Operands() {
		if op >= id {
			return &InvariantError{
				Node:    id,
				Message: fmt.Sprintf("%s operand %s does not precede it", n.Kind(), op),
			}
		}
	}
	if m, ok := n.(*Match); ok {
		for _, arm := range m.Arms {
			if arm.Pattern == nil {
				return &InvariantError{Node: id, Message: "match arm without pattern"}
			}
		}
	}
	return nil
}

// AddStatement appends a top-level statement evaluating node. name may be
// empty for expression statements.
func (d *DAG) AddStatement(name string, node NodeID, span Span) {
	if int(node) >= len(d.entries) {
		panic(&InvariantError{Node: node, Message: "statement refers to a missing node"})
	}
	d.statements = append(d.statements, Statement{Name: name, Node: node, Span: span})
}

// Statements returns the top-level statements in source order.
func (d *DAG) Statements() []Statement {
	return d.statements
}

// Get returns the entry for id. It panics if id is out of range.
func (d *DAG) Get(id NodeID) Entry {
	return d.entries[id]
}

// Node returns the node stored at id.
func (d *DAG) Node(id NodeID) Node {
	return d.entries[id].Node
}

// Span returns the source span of id.
func (d *DAG) Span(id NodeID) Span {
	return d.entries[id].Span
}

// Has reports whether id refers to a node of d.
func (d *DAG) Has(id NodeID) bool {
	return int(id) < len(d.entries)
}

// Len returns the number of nodes.
func (d *DAG) Len() int {
	return len(d.entries)
}

// Each calls fn for every node in id order, which is a topological order.
// Iteration stops early when fn returns false.
func (d *DAG) Each(fn func(id NodeID, e Entry) bool) {
	for i, e := range d.entries {
		if !fn(NodeID(i), e) {
			return
		}
	}
}

// Diagnostics returns the diagnostics carried by error placeholder nodes, in
// id order.
func (d *DAG) Diagnostics() []Diagnostic {
	var diags []Diagnostic
	for _, e := range d.entries {
		if en, ok := e.Node.(*ErrorNode); ok {
			diags = append(diags, en.Diagnostic)
		}
	}
	return diags
}

// Validate re-checks the forward-reference invariant for every node and
// statement.
func (d *DAG) Validate() error {
	for i, e := range d.entries {
		if err := checkOperands(NodeID(i), e.Node); err != nil {
			return err
		}
	}
	for _, s := range d.statements {
		if !d.Has(s.Node) {
			return &InvariantError{Node: s.Node, Message: "statement refers to a missing node"}
		}
	}
	return nil
}
