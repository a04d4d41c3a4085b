package mutree

import (
	"fmt"

	"github.com/roach88/mutree/internal/node"
)

// Operation identifies a structural move.
type Operation int

const (
	OpAddBackMutation Operation = iota
	OpDeleteBackMutation
	OpDeleteNode
	OpPruneRegraft
	OpSwitchNodes
)

// Operations lists every move in declaration order.
var Operations = []Operation{
	OpAddBackMutation,
	OpDeleteBackMutation,
	OpDeleteNode,
	OpPruneRegraft,
	OpSwitchNodes,
}

// DefaultMix is the operator mix of the tree search: back mutation,
// loss deletion, switch and prune-regraft, each equally likely.
var DefaultMix = []Operation{
	OpAddBackMutation,
	OpDeleteBackMutation,
	OpSwitchNodes,
	OpPruneRegraft,
}

var opNames = map[Operation]string{
	OpAddBackMutation:    "add_back_mutation",
	OpDeleteBackMutation: "delete_back_mutation",
	OpDeleteNode:         "delete_node",
	OpPruneRegraft:       "prune_regraft",
	OpSwitchNodes:        "switch_nodes",
}

func (o Operation) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// ParseOperation maps a name produced by String back to its Operation.
func ParseOperation(s string) (Operation, error) {
	for op, name := range opNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// MarshalText encodes the operation by name.
func (o Operation) MarshalText() ([]byte, error) {
	if _, ok := opNames[o]; !ok {
		return nil, fmt.Errorf("unknown %s", o)
	}
	return []byte(o.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (o *Operation) UnmarshalText(b []byte) error {
	op, err := ParseOperation(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Move describes an applied move. Node is the node inserted, removed,
// pruned or first switched; Target is the regraft target, the second
// switched node, or the parent the new or removed node hangs off. UIDs are
// captured at apply time because removed nodes no longer exist afterwards.
type Move struct {
	Op        Operation `json:"op"`
	Node      node.ID   `json:"node"`
	Target    node.ID   `json:"target"`
	NodeUID   string    `json:"node_uid"`
	TargetUID string    `json:"target_uid"`
	Mutation  int       `json:"mutation"`
}

func (m Move) String() string {
	return fmt.Sprintf("%s node=%s target=%s mutation=%d", m.Op, m.NodeUID, m.TargetUID, m.Mutation)
}

func (t *Tree) move(op Operation, n, target node.ID, k int) Move {
	return Move{
		Op:        op,
		Node:      n,
		Target:    target,
		NodeUID:   t.UID(n),
		TargetUID: t.UID(target),
		Mutation:  k,
	}
}

// AddBackMutation inserts a loss of k as the only child of v; v's former
// children move, in order, under the new node.
func (t *Tree) AddBackMutation(v node.ID, k int) (Move, error) {
	op := OpAddBackMutation
	if k < 0 || k >= len(t.names) {
		return Move{}, invalid(op, "mutation %d out of range [0,%d)", k, len(t.names))
	}
	if !t.inTree(v) {
		return Move{}, invalid(op, "node %d is not in the tree", v)
	}
	if reason, hit := t.lossLimitReached(k); hit {
		return Move{}, invalid(op, "%s", reason)
	}
	if !t.ActiveAt(v, k) {
		return Move{}, invalid(op, "mutation %d is not active at %s", k, t.UID(v))
	}
	for _, id := range t.arena.Preorder(v)[1:] {
		if m := t.payload[id]; m.Loss && m.ID == k {
			return Move{}, invalid(op, "mutation %d is already lost below %s", k, t.UID(v))
		}
	}

	loss, err := t.newNode(Mutation{ID: k, Name: t.names[k], Loss: true})
	if err != nil {
		return Move{}, fmt.Errorf("add back mutation: %w", err)
	}
	if err := t.arena.Adopt(loss, v); err != nil {
		return Move{}, fmt.Errorf("add back mutation: %w", err)
	}
	if _, err := t.arena.AppendChild(v, loss); err != nil {
		return Move{}, fmt.Errorf("add back mutation: %w", err)
	}
	return t.move(op, loss, v, k), nil
}

// RandomAddBackMutation inserts a loss of k under a node drawn uniformly
// from BackMutationCandidates(k).
func (t *Tree) RandomAddBackMutation(rng Rand, k int) (Move, error) {
	op := OpAddBackMutation
	if k < 0 || k >= len(t.names) {
		return Move{}, invalid(op, "mutation %d out of range [0,%d)", k, len(t.names))
	}
	if reason, hit := t.lossLimitReached(k); hit {
		return Move{}, invalid(op, "%s", reason)
	}
	candidates := t.BackMutationCandidates(k)
	if len(candidates) == 0 {
		return Move{}, invalid(op, "no node carries an active gain of mutation %d", k)
	}
	return t.AddBackMutation(candidates[rng.IntN(len(candidates))], k)
}

// RandomBackMutation draws a mutation uniformly among those that can still
// be lost somewhere, then behaves as RandomAddBackMutation.
func (t *Tree) RandomBackMutation(rng Rand) (Move, error) {
	var eligible []int
	for k := range t.names {
		if _, hit := t.lossLimitReached(k); hit {
			continue
		}
		if len(t.BackMutationCandidates(k)) > 0 {
			eligible = append(eligible, k)
		}
	}
	if len(eligible) == 0 {
		return Move{}, invalid(OpAddBackMutation, "no mutation can be lost")
	}
	return t.RandomAddBackMutation(rng, eligible[rng.IntN(len(eligible))])
}

// RandomDeleteBackMutation removes a loss node drawn uniformly.
func (t *Tree) RandomDeleteBackMutation(rng Rand) (Move, error) {
	losses := t.Losses()
	if len(losses) == 0 {
		return Move{}, invalid(OpDeleteBackMutation, "tree has no loss nodes")
	}
	return t.RemoveLoss(losses[rng.IntN(len(losses))])
}

// RemoveLoss deletes the loss node v with the splice semantics of Remove.
func (t *Tree) RemoveLoss(v node.ID) (Move, error) {
	if !t.inTree(v) || !t.payload[v].Loss {
		return Move{}, invalid(OpDeleteBackMutation, "node %d is not a loss node", v)
	}
	mv, err := t.Remove(v)
	mv.Op = OpDeleteBackMutation
	return mv, err
}

// RandomDeleteNode removes a non-root node drawn uniformly.
func (t *Tree) RandomDeleteNode(rng Rand) (Move, error) {
	nodes := t.Preorder()[1:]
	if len(nodes) == 0 {
		return Move{}, invalid(OpDeleteNode, "tree has only a root")
	}
	return t.Remove(nodes[rng.IntN(len(nodes))])
}

// Remove deletes v, putting its children in its place in order.
func (t *Tree) Remove(v node.ID) (Move, error) {
	op := OpDeleteNode
	if !t.inTree(v) || v == t.root {
		return Move{}, invalid(op, "node %d is not a non-root tree node", v)
	}
	mv := t.move(op, v, t.arena.Parent(v), t.payload[v].ID)
	t.drop(v)
	return mv, nil
}

// drop splices v out and releases it. v must be a non-root tree node.
func (t *Tree) drop(v node.ID) {
	// both calls only fail for roots and unknown IDs
	_ = t.arena.Splice(v)
	_ = t.arena.Release(v)
}

// RegraftTargets returns the nodes, in preorder, that v may be pruned and
// regrafted under: everything outside v's subtree except v's parent.
func (t *Tree) RegraftTargets(v node.ID) []node.ID {
	if !t.inTree(v) || v == t.root {
		return nil
	}
	parent := t.arena.Parent(v)
	var out []node.ID
	t.arena.Walk(t.root, func(id node.ID, _ int) bool {
		if id == v {
			return false
		}
		if id != parent {
			out = append(out, id)
		}
		return true
	})
	return out
}

// RandomPruneRegraft draws v uniformly among non-root nodes that have at
// least one regraft target, then u uniformly among v's targets, and moves
// v's subtree under u.
func (t *Tree) RandomPruneRegraft(rng Rand) (Move, error) {
	all := t.Preorder()
	total := len(all)
	var prunable []node.ID
	for _, v := range all[1:] {
		// targets = total - subtree(v) - parent
		if total-t.arena.NodeCount(v)-1 > 0 {
			prunable = append(prunable, v)
		}
	}
	if len(prunable) == 0 {
		return Move{}, invalid(OpPruneRegraft, "no node has a regraft target")
	}
	v := prunable[rng.IntN(len(prunable))]
	targets := t.RegraftTargets(v)
	return t.Regraft(v, targets[rng.IntN(len(targets))])
}

// Regraft moves v under u as u's last child. When u lies outside v's
// subtree the whole subtree moves. When u lies inside it, v is first
// spliced out (its children take its place under its former parent) and
// then attached alone under u.
func (t *Tree) Regraft(v, u node.ID) (Move, error) {
	op := OpPruneRegraft
	switch {
	case !t.inTree(v) || v == t.root:
		return Move{}, invalid(op, "node %d is not a non-root tree node", v)
	case !t.inTree(u):
		return Move{}, invalid(op, "target %d is not in the tree", u)
	case u == v:
		return Move{}, invalid(op, "cannot regraft %s under itself", t.UID(v))
	case u == t.arena.Parent(v):
		return Move{}, invalid(op, "%s is already a child of %s", t.UID(v), t.UID(u))
	}

	if t.arena.IsAncestor(v, u) {
		if err := t.arena.Splice(v); err != nil {
			return Move{}, fmt.Errorf("regraft: %w", err)
		}
	}
	if _, err := t.arena.AppendChild(u, v); err != nil {
		return Move{}, fmt.Errorf("regraft: %w", err)
	}
	return t.move(op, v, u, t.payload[v].ID), nil
}

// RandomSwitchNodes exchanges the payloads of two distinct non-root nodes
// drawn uniformly.
func (t *Tree) RandomSwitchNodes(rng Rand) (Move, error) {
	nodes := t.Preorder()[1:]
	if len(nodes) < 2 {
		return Move{}, invalid(OpSwitchNodes, "need at least two non-root nodes, have %d", len(nodes))
	}
	i := rng.IntN(len(nodes))
	j := rng.IntN(len(nodes) - 1)
	if j >= i {
		j++
	}
	return t.Switch(nodes[i], nodes[j])
}

// Switch exchanges mutation id, name and loss flag between a and b. uids
// and topology stay put.
func (t *Tree) Switch(a, b node.ID) (Move, error) {
	op := OpSwitchNodes
	switch {
	case !t.inTree(a) || a == t.root:
		return Move{}, invalid(op, "node %d is not a non-root tree node", a)
	case !t.inTree(b) || b == t.root:
		return Move{}, invalid(op, "node %d is not a non-root tree node", b)
	case a == b:
		return Move{}, invalid(op, "cannot switch %s with itself", t.UID(a))
	}
	t.payload[a], t.payload[b] = t.payload[b], t.payload[a]
	return t.move(op, a, b, t.payload[a].ID), nil
}

// Apply runs the random variant of op. Add-back-mutation draws its mutation
// as RandomBackMutation does.
func (t *Tree) Apply(op Operation, rng Rand) (Move, error) {
	switch op {
	case OpAddBackMutation:
		return t.RandomBackMutation(rng)
	case OpDeleteBackMutation:
		return t.RandomDeleteBackMutation(rng)
	case OpDeleteNode:
		return t.RandomDeleteNode(rng)
	case OpPruneRegraft:
		return t.RandomPruneRegraft(rng)
	case OpSwitchNodes:
		return t.RandomSwitchNodes(rng)
	}
	return Move{}, fmt.Errorf("apply: unknown %s", op)
}

// RandomOperation draws an operation uniformly from mix, or from
// DefaultMix when mix is empty.
func RandomOperation(rng Rand, mix []Operation) Operation {
	if len(mix) == 0 {
		mix = DefaultMix
	}
	return mix[rng.IntN(len(mix))]
}

// inTree reports whether id is a live node connected to the root.
func (t *Tree) inTree(id node.ID) bool {
	if !t.arena.Contains(id) {
		return false
	}
	return id == t.root || t.arena.IsAncestor(t.root, id)
}
