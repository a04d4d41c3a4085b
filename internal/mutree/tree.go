package mutree

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/mutree/internal/node"
	"github.com/roach88/mutree/internal/uid"
)

// Germline is the mutation id of the synthetic root.
const Germline = -1

// GermlineName labels the root node.
const GermlineName = "germline"

// Mutation is the payload of a tree node.
type Mutation struct {
	ID   int    `json:"mutation_id"`
	Name string `json:"name"`
	Loss bool   `json:"loss"`
}

// Rand is the slice of a random source the operators draw from.
type Rand interface {
	IntN(n int) int
}

// Limits bounds the number of loss nodes (the Dollo(k) model). Zero means
// unlimited.
type Limits struct {
	MaxLosses            int `json:"max_losses" yaml:"max_losses"`
	MaxLossesPerMutation int `json:"max_losses_per_mutation" yaml:"max_losses_per_mutation"`
}

// Option configures a Tree at construction.
type Option func(*Tree)

// WithLimits sets the loss limits enforced by AddBackMutation.
func WithLimits(l Limits) Option {
	return func(t *Tree) { t.limits = l }
}

// Tree is a mutation tree over a fixed set of mutations.
//
// Thread-safety: Tree is not safe for concurrent use.
type Tree struct {
	arena   *node.Arena
	root    node.ID
	payload []Mutation // indexed by node.ID
	names   []string   // indexed by mutation id
	gen     uid.Generator
	limits  Limits
}

// DefaultNames returns "1".."n", the labels used when no names are given.
func DefaultNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i + 1)
	}
	return names
}

// New creates a tree holding only the germline root. names fixes the
// mutation set; it must not be empty.
func New(names []string, gen uid.Generator, opts ...Option) (*Tree, error) {
	if len(names) == 0 {
		return nil, errors.New("new tree: at least one mutation is required")
	}
	if gen == nil {
		return nil, errors.New("new tree: nil uid generator")
	}
	t := &Tree{
		arena: node.NewArena(),
		names: slices.Clone(names),
		gen:   gen,
	}
	for _, opt := range opts {
		opt(t)
	}
	root, err := t.newNode(Mutation{ID: Germline, Name: GermlineName})
	if err != nil {
		return nil, fmt.Errorf("new tree: %w", err)
	}
	t.root = root
	return t, nil
}

// NewChain creates root -> m0 -> m1 -> ... -> m(n-1).
func NewChain(names []string, gen uid.Generator, opts ...Option) (*Tree, error) {
	t, err := New(names, gen, opts...)
	if err != nil {
		return nil, err
	}
	parent := t.root
	for k := range names {
		id, err := t.attachGain(parent, k)
		if err != nil {
			return nil, err
		}
		parent = id
	}
	return t, nil
}

// NewFlat creates a root with one gain child per mutation.
func NewFlat(names []string, gen uid.Generator, opts ...Option) (*Tree, error) {
	t, err := New(names, gen, opts...)
	if err != nil {
		return nil, err
	}
	for k := range names {
		if _, err := t.attachGain(t.root, k); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewRandom shuffles the mutations and lays them out breadth first, two
// children per node, under the root.
func NewRandom(names []string, rng Rand, gen uid.Generator, opts ...Option) (*Tree, error) {
	t, err := New(names, gen, opts...)
	if err != nil {
		return nil, err
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	placed := []node.ID{t.root}
	for i, k := range order {
		id, err := t.attachGain(placed[i/2], k)
		if err != nil {
			return nil, err
		}
		placed = append(placed, id)
	}
	return t, nil
}

func (t *Tree) attachGain(parent node.ID, k int) (node.ID, error) {
	id, err := t.newNode(Mutation{ID: k, Name: t.names[k]})
	if err != nil {
		return node.None, err
	}
	if _, err := t.arena.AppendChild(parent, id); err != nil {
		return node.None, err
	}
	return id, nil
}

// newNode allocates a detached node with a fresh uid.
func (t *Tree) newNode(m Mutation) (node.ID, error) {
	id, err := t.arena.New(t.gen.Next())
	if err != nil {
		return node.None, err
	}
	for len(t.payload) <= int(id) {
		t.payload = append(t.payload, Mutation{})
	}
	t.payload[id] = m
	return id, nil
}

// NewNode adds a detached node with the given payload. It becomes part of
// the tree once attached with Attach.
func (t *Tree) NewNode(m Mutation) (node.ID, error) {
	if m.ID < 0 || m.ID >= len(t.names) {
		return node.None, fmt.Errorf("new node: mutation %d out of range [0,%d)", m.ID, len(t.names))
	}
	return t.newNode(m)
}

// Attach appends c (and its subtree) as the last child of parent.
func (t *Tree) Attach(parent, c node.ID) error {
	_, err := t.arena.AppendChild(parent, c)
	return err
}

// Root returns the germline node.
func (t *Tree) Root() node.ID { return t.root }

// Len returns the number of nodes in the tree, root included.
func (t *Tree) Len() int { return t.arena.NodeCount(t.root) }

// Mutations returns the number of mutations (matrix columns).
func (t *Tree) Mutations() int { return len(t.names) }

// Names returns a copy of the mutation names.
func (t *Tree) Names() []string { return slices.Clone(t.names) }

// Limits returns the loss limits.
func (t *Tree) Limits() Limits { return t.limits }

// Mutation returns the payload of id.
func (t *Tree) Mutation(id node.ID) Mutation {
	if id < 0 || int(id) >= len(t.payload) {
		return Mutation{ID: Germline}
	}
	return t.payload[id]
}

// UID returns the identifier of id.
func (t *Tree) UID(id node.ID) string { return t.arena.UID(id) }

// FindByUID looks a node up by identifier.
func (t *Tree) FindByUID(u string) (node.ID, bool) { return t.arena.Lookup(u) }

// Parent returns the parent of id, or node.None for the root.
func (t *Tree) Parent(id node.ID) node.ID { return t.arena.Parent(id) }

// Children returns a copy of id's ordered children.
func (t *Tree) Children(id node.ID) []node.ID { return t.arena.Children(id) }

// IsLeaf reports whether id has no children.
func (t *Tree) IsLeaf(id node.ID) bool { return t.arena.IsLeaf(id) }

// NodeCount returns the size of the subtree rooted at id.
func (t *Tree) NodeCount(id node.ID) int { return t.arena.NodeCount(id) }

// IsAncestor reports whether anc lies strictly above n.
func (t *Tree) IsAncestor(anc, n node.ID) bool { return t.arena.IsAncestor(anc, n) }

// Ancestors returns the chain from id's parent up to the root.
func (t *Tree) Ancestors(id node.ID) []node.ID { return t.arena.Ancestors(id) }

// Preorder returns every node in depth-first, children-ordered sequence.
func (t *Tree) Preorder() []node.ID { return t.arena.Preorder(t.root) }

// Walk visits the tree in preorder with node depths.
func (t *Tree) Walk(fn func(id node.ID, depth int) bool) { t.arena.Walk(t.root, fn) }

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	h := 0
	t.Walk(func(_ node.ID, depth int) bool {
		h = max(h, depth+1)
		return true
	})
	return h
}

// Losses returns the loss nodes in preorder.
func (t *Tree) Losses() []node.ID {
	var out []node.ID
	for _, id := range t.Preorder() {
		if t.payload[id].Loss {
			out = append(out, id)
		}
	}
	return out
}

// LossCount returns the number of loss nodes for mutation k.
func (t *Tree) LossCount(k int) int {
	n := 0
	for _, id := range t.Losses() {
		if t.payload[id].ID == k {
			n++
		}
	}
	return n
}

// Genotype returns, for every mutation, whether a cell attached at id
// carries it: gains on the root path count up, losses count down.
func (t *Tree) Genotype(id node.ID) []bool {
	counts := make([]int, len(t.names))
	for _, n := range append([]node.ID{id}, t.arena.Ancestors(id)...) {
		m := t.payload[n]
		if m.ID == Germline {
			continue
		}
		if m.Loss {
			counts[m.ID]--
		} else {
			counts[m.ID]++
		}
	}
	out := make([]bool, len(counts))
	for k, c := range counts {
		out[k] = c > 0
	}
	return out
}

// Clone returns a deep copy sharing the uid generator, so nodes created in
// either copy never collide.
func (t *Tree) Clone() *Tree {
	return &Tree{
		arena:   t.arena.Clone(),
		root:    t.root,
		payload: slices.Clone(t.payload),
		names:   t.names,
		gen:     t.gen,
		limits:  t.limits,
	}
}

// Equal reports whether both trees have the same shape, uids and payloads,
// with children compared in order.
func (t *Tree) Equal(o *Tree) bool {
	a, b := t.Preorder(), o.Preorder()
	if len(a) != len(b) || !slices.Equal(t.names, o.names) {
		return false
	}
	for i := range a {
		if t.UID(a[i]) != o.UID(b[i]) || t.payload[a[i]] != o.payload[b[i]] {
			return false
		}
		if t.UID(t.Parent(a[i])) != o.UID(o.Parent(b[i])) {
			return false
		}
		if t.arena.ChildrenCount(a[i]) != o.arena.ChildrenCount(b[i]) {
			return false
		}
	}
	return true
}

// ErrInvariant is wrapped by every error Validate returns.
var ErrInvariant = errors.New("tree invariant violated")

// Validate checks the structural invariants: single root, connectivity,
// unique parentage with consistent back-references, unique uids and
// well-formed payloads. It does not check loss placement; see InvalidLosses.
func (t *Tree) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...)))
	}

	if !t.arena.Contains(t.root) || !t.arena.IsRoot(t.root) {
		fail("root %d is missing or has a parent", t.root)
		return errors.Join(errs...)
	}
	if root := t.payload[t.root]; root.ID != Germline || root.Loss {
		fail("root payload %+v is not germline", root)
	}

	seen := make(map[node.ID]bool)
	for _, id := range t.Preorder() {
		if seen[id] {
			fail("node %s reachable twice", t.UID(id))
			continue
		}
		seen[id] = true
		if got, ok := t.arena.Lookup(t.UID(id)); !ok || got != id {
			fail("uid %q does not resolve to node %d", t.UID(id), id)
		}
		for _, c := range t.arena.Children(id) {
			if t.arena.Parent(c) != id {
				fail("child %s of %s points at parent %d", t.UID(c), t.UID(id), t.arena.Parent(c))
			}
		}
		if id == t.root {
			continue
		}
		if m := t.payload[id]; m.ID < 0 || m.ID >= len(t.names) {
			fail("node %s has mutation %d out of range", t.UID(id), m.ID)
		}
	}
	if len(seen) != t.arena.Len() {
		fail("%d live nodes but %d reachable from root", t.arena.Len(), len(seen))
	}
	return errors.Join(errs...)
}
