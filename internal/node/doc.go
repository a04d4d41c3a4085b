// Package node implements the structural layer of a rooted, ordered tree.
//
// Nodes live in an Arena and are addressed by ID handles. A node's parent is
// stored as an ID back-reference, never as an aliasing pointer, so relocating
// a subtree is a matter of rewriting two indices and one children slice.
//
// INVARIANTS:
//
// Every public mutator keeps both sides of the parent/child relation
// consistent in a single step:
//   - A node appears in at most one children list
//   - A node's parent field names exactly the node whose children list holds it
//   - Attaching a node under itself or one of its descendants is refused
//
// Failed calls (IndexOutOfBounds, Cycle, UnknownNode) leave the arena exactly
// as it was before the call. Identifiers (uids) are assigned when a node is
// created and never change; no structural mutator allocates one.
//
// The arena carries no payload. Higher layers (see internal/mutree) keep
// their per-node data in slices indexed by ID.
//
// Thread-safety: Arena is not safe for concurrent use. A single owner mutates
// a given arena at any moment.
package node
