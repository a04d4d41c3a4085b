// Package harness runs mutation tree scenarios: a starting tree, a list of
// moves and assertions on the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: regraft_into_own_subtree
//	description: "Regrafting a node below its descendant splices it out first"
//	mutations: ["1", "2", "3", "4"]
//	tree: "germline(1(3(4(2))))"
//	seed: 7
//	steps:
//	  - op: prune_regraft
//	    node: n3
//	    target: n5
//	assertions:
//	  - type: shape
//	    shape: "germline(1(4(2(3))))"
//	  - type: valid
//
// The starting tree is either written out in shape notation (tree) or built
// by init (chain, flat or random). In shape notation every node is written
// as its mutation name, loss nodes carry a leading '-', children follow in
// parentheses and the root is always "germline". Nodes get sequential uids
// n1, n2, ... in preorder.
//
// A step with a node runs the deterministic primitive for its op. A step
// without one draws the move from the scenario's seeded source, exactly as
// a walk would. Steps may repeat.
//
// # Assertion Types
//
//   - shape: the final tree in shape notation
//   - valid: structural invariants hold and every loss sits below a gain
//   - node_count: number of nodes, root included
//   - loss_count: number of loss nodes, optionally of one mutation
//   - applied_count: number of steps that changed the tree
//   - op_count: applied and rejected attempts of one op, read back from
//     the move log
//
// # Deterministic Testing
//
// Every run uses sequential uids, a source seeded from the scenario and a
// fresh in-memory move log. Running a scenario twice yields the same trace
// and the same tree hash; CheckDeterminism verifies that, and
// RunWithGolden snapshots the trace for golden file comparison.
package harness
