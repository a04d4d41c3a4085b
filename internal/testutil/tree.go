// Package testutil holds helpers shared by tests across packages: tree
// builders, a scripted random source and invariant assertions.
package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/node"
	"github.com/roach88/mutree/internal/uid"
)

// Chain builds germline -> "1" -> "2" -> ... -> "n" with sequential uids
// n1..n(n+1), the root taking n1.
func Chain(t testing.TB, n int, opts ...mutree.Option) *mutree.Tree {
	t.Helper()
	tree, err := mutree.NewChain(mutree.DefaultNames(n), uid.NewSequential("n"), opts...)
	require.NoError(t, err)
	return tree
}

// Flat builds germline with children "1".."n" and sequential uids.
func Flat(t testing.TB, n int, opts ...mutree.Option) *mutree.Tree {
	t.Helper()
	tree, err := mutree.NewFlat(mutree.DefaultNames(n), uid.NewSequential("n"), opts...)
	require.NoError(t, err)
	return tree
}

// Find returns the first gain node named name, failing the test if absent.
func Find(t testing.TB, tree *mutree.Tree, name string) node.ID {
	t.Helper()
	for _, id := range tree.Preorder() {
		if m := tree.Mutation(id); m.Name == name && !m.Loss {
			return id
		}
	}
	require.Failf(t, "node not found", "no gain node named %q in %s", name, Shape(tree))
	return node.None
}

// Shape renders the tree as nested names, e.g. "germline(1(2),3)". Loss
// nodes are prefixed with '-'.
func Shape(tree *mutree.Tree) string {
	var b strings.Builder
	var write func(id node.ID)
	write = func(id node.ID) {
		m := tree.Mutation(id)
		if m.Loss {
			b.WriteByte('-')
		}
		b.WriteString(m.Name)
		children := tree.Children(id)
		if len(children) == 0 {
			return
		}
		b.WriteByte('(')
		for i, c := range children {
			if i > 0 {
				b.WriteByte(',')
			}
			write(c)
		}
		b.WriteByte(')')
	}
	write(tree.Root())
	return b.String()
}

// RequireValid asserts the structural invariants plus the closure and
// single-ownership properties on every node.
func RequireValid(t testing.TB, tree *mutree.Tree) {
	t.Helper()
	require.NoError(t, tree.Validate())

	owned := make(map[node.ID]int)
	for _, id := range tree.Preorder() {
		sum := 1
		for _, c := range tree.Children(id) {
			owned[c]++
			sum += tree.NodeCount(c)
		}
		require.Equal(t, sum, tree.NodeCount(id), "closure broken at %s", tree.UID(id))
	}
	for _, id := range tree.Preorder() {
		if id == tree.Root() {
			require.Zero(t, owned[id], "root is owned")
			continue
		}
		require.Equal(t, 1, owned[id], "node %s owned %d times", tree.UID(id), owned[id])
		count := 0
		for _, c := range tree.Children(tree.Parent(id)) {
			if c == id {
				count++
			}
		}
		require.Equal(t, 1, count, "node %s appears %d times under its parent", tree.UID(id), count)
	}
}

// RequireValidLosses asserts that every loss sits below an active gain.
func RequireValidLosses(t testing.TB, tree *mutree.Tree) {
	t.Helper()
	require.Empty(t, tree.InvalidLosses(), "invalid losses in %s", Shape(tree))
}
