package node

import (
	"fmt"
	"slices"
)

// ID addresses a node inside an Arena.
type ID int

// None is the parent of a root (or detached) node.
const None ID = -1

// NotFound is returned by EraseChild and Detach when there was nothing to remove.
const NotFound = -1

type entry struct {
	uid      string
	parent   ID
	children []ID
}

// Arena owns a forest of nodes. Released slots are never reused, so an ID
// stays unambiguous for the arena's lifetime.
type Arena struct {
	nodes []*entry
	byUID map[string]ID
	live  int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{byUID: make(map[string]ID)}
}

// New creates a parentless node with the given uid.
func (a *Arena) New(uid string) (ID, error) {
	if uid == "" {
		return None, fmt.Errorf("new node: empty uid")
	}
	if id, ok := a.byUID[uid]; ok {
		return None, &StructureError{Code: ErrCodeDuplicateUID, Op: "New", Node: id}
	}
	id := ID(len(a.nodes))
	a.nodes = append(a.nodes, &entry{uid: uid, parent: None})
	a.byUID[uid] = id
	a.live++
	return id, nil
}

// Contains reports whether id names a live node.
func (a *Arena) Contains(id ID) bool {
	return a.get(id) != nil
}

// Len returns the number of live nodes.
func (a *Arena) Len() int {
	return a.live
}

// UID returns the node's identifier, or "" for an unknown ID.
func (a *Arena) UID(id ID) string {
	if e := a.get(id); e != nil {
		return e.uid
	}
	return ""
}

// Lookup finds a live node by uid.
func (a *Arena) Lookup(uid string) (ID, bool) {
	id, ok := a.byUID[uid]
	return id, ok
}

// Parent returns the node's parent, or None for roots and unknown IDs.
func (a *Arena) Parent(id ID) ID {
	if e := a.get(id); e != nil {
		return e.parent
	}
	return None
}

// SetParent moves n under parent as its last child, detaching it from its
// previous parent first. A parent of None just detaches n.
func (a *Arena) SetParent(n, parent ID) error {
	if a.get(n) == nil {
		return unknownNode("SetParent", n)
	}
	if parent == None {
		a.Detach(n)
		return nil
	}
	_, err := a.AppendChild(parent, n)
	return err
}

// Children returns a copy of the node's ordered children.
func (a *Arena) Children(id ID) []ID {
	if e := a.get(id); e != nil {
		return slices.Clone(e.children)
	}
	return nil
}

// ChildAt returns the child at position.
func (a *Arena) ChildAt(n ID, position int) (ID, error) {
	e := a.get(n)
	if e == nil {
		return None, unknownNode("ChildAt", n)
	}
	if position < 0 || position >= len(e.children) {
		return None, indexError("ChildAt", n, position, len(e.children))
	}
	return e.children[position], nil
}

// ChildrenCount returns the number of direct children.
func (a *Arena) ChildrenCount(id ID) int {
	if e := a.get(id); e != nil {
		return len(e.children)
	}
	return 0
}

// IsLeaf reports whether the node has no children.
func (a *Arena) IsLeaf(id ID) bool {
	return a.ChildrenCount(id) == 0
}

// IsRoot reports whether the node has no parent.
func (a *Arena) IsRoot(id ID) bool {
	return a.Parent(id) == None
}

// Position returns the node's index among its parent's children, or
// NotFound for roots.
func (a *Arena) Position(id ID) int {
	e := a.get(id)
	if e == nil || e.parent == None {
		return NotFound
	}
	return slices.Index(a.nodes[e.parent].children, id)
}

// InsertChild makes c the first child of n.
func (a *Arena) InsertChild(n, c ID) error {
	if err := a.checkAttach("InsertChild", n, c); err != nil {
		return err
	}
	a.Detach(c)
	a.attach(n, c, 0)
	return nil
}

// AddChildAt inserts c at position among n's children. Position may equal
// the children count, which appends. If c is already a child of n the
// count excludes c itself.
func (a *Arena) AddChildAt(n, c ID, position int) error {
	if err := a.checkAttach("AddChildAt", n, c); err != nil {
		return err
	}
	count := len(a.nodes[n].children)
	if a.nodes[c].parent == n {
		count--
	}
	if position < 0 || position > count {
		return indexError("AddChildAt", n, position, count)
	}
	a.Detach(c)
	a.attach(n, c, position)
	return nil
}

// AppendChild makes c the last child of n and returns n's new children count.
func (a *Arena) AppendChild(n, c ID) (int, error) {
	if err := a.checkAttach("AppendChild", n, c); err != nil {
		return 0, err
	}
	a.Detach(c)
	a.attach(n, c, len(a.nodes[n].children))
	return len(a.nodes[n].children), nil
}

// EraseChild removes c from n's children by identity and returns the
// position it occupied. If c is not a direct child of n nothing changes and
// NotFound is returned.
func (a *Arena) EraseChild(n, c ID) int {
	e := a.get(n)
	if e == nil {
		return NotFound
	}
	pos := slices.Index(e.children, c)
	if pos < 0 {
		return NotFound
	}
	a.removeAt(n, pos)
	return pos
}

// PopChildAt removes and returns the child at position.
func (a *Arena) PopChildAt(n ID, position int) (ID, error) {
	e := a.get(n)
	if e == nil {
		return None, unknownNode("PopChildAt", n)
	}
	if position < 0 || position >= len(e.children) {
		return None, indexError("PopChildAt", n, position, len(e.children))
	}
	return a.removeAt(n, position), nil
}

// PopChild removes the last child and returns the position it occupied.
func (a *Arena) PopChild(n ID) (int, error) {
	e := a.get(n)
	if e == nil {
		return NotFound, unknownNode("PopChild", n)
	}
	if len(e.children) == 0 {
		return NotFound, indexError("PopChild", n, 0, 0)
	}
	pos := len(e.children) - 1
	a.removeAt(n, pos)
	return pos, nil
}

// Detach removes n from its parent's children and returns the position it
// occupied, or NotFound if n was already a root.
func (a *Arena) Detach(n ID) int {
	e := a.get(n)
	if e == nil || e.parent == None {
		return NotFound
	}
	return a.EraseChild(e.parent, n)
}

// Splice removes n from the tree, putting its children in its place in
// order. n is left detached and childless. Splicing a root is refused.
func (a *Arena) Splice(n ID) error {
	e := a.get(n)
	if e == nil {
		return unknownNode("Splice", n)
	}
	if e.parent == None {
		return &StructureError{Code: ErrCodeRoot, Op: "Splice", Node: n}
	}
	parent := e.parent
	pos := a.Detach(n)
	promoted := e.children
	e.children = nil

	p := a.nodes[parent]
	tail := slices.Clone(p.children[pos:])
	p.children = append(append(p.children[:pos], promoted...), tail...)
	for _, c := range promoted {
		a.nodes[c].parent = parent
	}
	return nil
}

// Adopt moves every child of from under to, appended in order.
func (a *Arena) Adopt(to, from ID) error {
	if to == from {
		if a.get(from) == nil {
			return unknownNode("Adopt", from)
		}
		return nil
	}
	// to inside from's subtree would end up as its own ancestor
	if err := a.checkAttach("Adopt", to, from); err != nil {
		return err
	}
	moved := a.nodes[from].children
	a.nodes[from].children = nil
	for _, c := range moved {
		a.nodes[c].parent = to
	}
	a.nodes[to].children = append(a.nodes[to].children, moved...)
	return nil
}

// Release destroys a detached subtree. Its IDs become unknown and its uids
// free for reuse.
func (a *Arena) Release(n ID) error {
	e := a.get(n)
	if e == nil {
		return unknownNode("Release", n)
	}
	if e.parent != None {
		return &StructureError{Code: ErrCodeNotDetached, Op: "Release", Node: n}
	}
	for _, id := range a.Preorder(n) {
		delete(a.byUID, a.nodes[id].uid)
		a.nodes[id] = nil
		a.live--
	}
	return nil
}

// IsAncestor reports whether anc lies strictly above n.
func (a *Arena) IsAncestor(anc, n ID) bool {
	for p := a.Parent(n); p != None; p = a.Parent(p) {
		if p == anc {
			return true
		}
	}
	return false
}

// Depth returns the number of edges between n and its root.
func (a *Arena) Depth(n ID) int {
	d := 0
	for p := a.Parent(n); p != None; p = a.Parent(p) {
		d++
	}
	return d
}

// Ancestors returns the chain from n's parent up to the root.
func (a *Arena) Ancestors(n ID) []ID {
	var out []ID
	for p := a.Parent(n); p != None; p = a.Parent(p) {
		out = append(out, p)
	}
	return out
}

// NodeCount returns the size of the subtree rooted at n, n included.
func (a *Arena) NodeCount(n ID) int {
	return len(a.Preorder(n))
}

// Preorder returns the subtree rooted at n in depth-first, children-ordered
// sequence. The order is deterministic, which the random operators rely on
// for reproducible sampling.
func (a *Arena) Preorder(n ID) []ID {
	if a.get(n) == nil {
		return nil
	}
	var out []ID
	a.Walk(n, func(id ID, _ int) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Walk visits the subtree rooted at n in preorder with each node's depth
// relative to n. Returning false from fn skips that node's descendants.
func (a *Arena) Walk(n ID, fn func(id ID, depth int) bool) {
	type frame struct {
		id    ID
		depth int
	}
	if a.get(n) == nil {
		return
	}
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.id, f.depth) {
			continue
		}
		children := a.nodes[f.id].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], f.depth + 1})
		}
	}
}

// Clone returns a deep copy. IDs and uids are preserved.
func (a *Arena) Clone() *Arena {
	out := &Arena{
		nodes: make([]*entry, len(a.nodes)),
		byUID: make(map[string]ID, len(a.byUID)),
		live:  a.live,
	}
	for i, e := range a.nodes {
		if e == nil {
			continue
		}
		out.nodes[i] = &entry{uid: e.uid, parent: e.parent, children: slices.Clone(e.children)}
	}
	for k, v := range a.byUID {
		out.byUID[k] = v
	}
	return out
}

func (a *Arena) get(id ID) *entry {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

// checkAttach validates an attach of c under n before anything is mutated.
func (a *Arena) checkAttach(op string, n, c ID) error {
	if a.get(n) == nil {
		return unknownNode(op, n)
	}
	if a.get(c) == nil {
		return unknownNode(op, c)
	}
	if n == c || a.IsAncestor(c, n) {
		return cycleError(op, c)
	}
	return nil
}

func (a *Arena) attach(n, c ID, position int) {
	p := a.nodes[n]
	p.children = slices.Insert(p.children, position, c)
	a.nodes[c].parent = n
}

func (a *Arena) removeAt(n ID, position int) ID {
	p := a.nodes[n]
	c := p.children[position]
	p.children = slices.Delete(p.children, position, position+1)
	a.nodes[c].parent = None
	return c
}
