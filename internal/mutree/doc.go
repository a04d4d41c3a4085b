// Package mutree implements mutation trees and their random structural moves.
//
// A mutation tree is rooted at a synthetic germline node. Every other node
// carries one mutation event: the gain of a mutation (a genotype matrix
// column) or, for loss nodes, a back mutation cancelling an earlier gain on
// the same root path.
//
// OPERATORS:
//
// The random operators each draw from an injected Rand and either apply one
// legal move or fail with ErrInvalidMove when the current shape offers no
// candidate:
//
//   - RandomAddBackMutation / RandomBackMutation: insert a loss node
//   - RandomDeleteBackMutation: remove a loss node, splicing its children up
//   - RandomDeleteNode: remove any non-root node, splicing its children up
//   - RandomPruneRegraft: move a subtree under a node outside it
//   - RandomSwitchNodes: exchange the payload of two nodes
//
// Candidates are enumerated in preorder, so a fixed seed and a fixed call
// sequence reproduce the same trees. A failed call leaves the tree exactly as
// it was. Each random operator is built on a deterministic primitive
// (AddBackMutation, Remove, Regraft, Switch) that tests and scenarios can
// call directly.
//
// LOSS RULES:
//
// A loss of mutation k is valid only below an active gain of k, and no root
// path may lose k twice. RandomAddBackMutation enforces both. Switch and
// Regraft move payload and subtrees without looking at losses; callers run
// PruneInvalidLosses afterwards to drop losses the move orphaned.
package mutree
