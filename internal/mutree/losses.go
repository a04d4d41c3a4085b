package mutree

import (
	"github.com/roach88/mutree/internal/node"
)

// ActiveAt reports whether mutation k is carried at id: the nearest event
// for k on the path from id up to the root is a gain.
func (t *Tree) ActiveAt(id node.ID, k int) bool {
	for n := id; n != node.None; n = t.arena.Parent(n) {
		m := t.payload[n]
		if m.ID != k {
			continue
		}
		return !m.Loss
	}
	return false
}

// lossValid reports whether the loss node id sits below an active gain of
// its mutation with no other loss of it in between.
func (t *Tree) lossValid(id node.ID) bool {
	return t.ActiveAt(t.arena.Parent(id), t.payload[id].ID)
}

// InvalidLosses returns the loss nodes, in preorder, that have no active
// gain above them or that lose a mutation already lost on their path.
func (t *Tree) InvalidLosses() []node.ID {
	var out []node.ID
	for _, id := range t.Losses() {
		if !t.lossValid(id) {
			out = append(out, id)
		}
	}
	return out
}

// PruneInvalidLosses removes every invalid loss node, splicing its children
// into its place, and returns the removed uids in preorder. Nodes are
// checked against the tree as it stands after earlier removals.
func (t *Tree) PruneInvalidLosses() []string {
	var removed []string
	for _, id := range t.Losses() {
		if t.lossValid(id) {
			continue
		}
		removed = append(removed, t.UID(id))
		t.drop(id)
	}
	return removed
}

// BackMutationCandidates returns the nodes, in preorder, under which a new
// loss of k may be inserted: k is active at the node and no loss of k sits
// anywhere in its subtree. Loss limits are not considered.
func (t *Tree) BackMutationCandidates(k int) []node.ID {
	if k < 0 || k >= len(t.names) {
		return nil
	}
	lostBelow := make(map[node.ID]bool)
	for _, id := range t.Losses() {
		if t.payload[id].ID != k {
			continue
		}
		for _, a := range t.arena.Ancestors(id) {
			lostBelow[a] = true
		}
	}

	var out []node.ID
	for _, id := range t.Preorder() {
		if !lostBelow[id] && t.ActiveAt(id, k) {
			out = append(out, id)
		}
	}
	return out
}

// lossLimitReached reports which Dollo(k) limit, if any, blocks another
// loss of k.
func (t *Tree) lossLimitReached(k int) (string, bool) {
	if t.limits.MaxLosses > 0 && len(t.Losses()) >= t.limits.MaxLosses {
		return "tree already holds the maximum number of losses", true
	}
	if t.limits.MaxLossesPerMutation > 0 && t.LossCount(k) >= t.limits.MaxLossesPerMutation {
		return "mutation already lost the maximum number of times", true
	}
	return "", false
}
