// Package ir defines the intermediate representation of a covariant design.
//
// A design is lowered into a DAG: an append-only arena of immutable nodes
// addressed by their insertion index. Operands always refer to smaller ids,
// so the arena is acyclic by construction and id order is a topological
// order.
//
// This package contains:
//   - Source spans and node ids
//   - The closed set of node kinds and match patterns
//   - The DAG store and its top-level statements
//   - Free-variable analysis (Scopes)
//   - Length and angle units
//   - A canonical CBOR wire format for DAGs
package ir
