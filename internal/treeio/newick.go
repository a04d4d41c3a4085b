package treeio

import (
	"strings"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/node"
)

// LossPrefix marks back mutation labels in Newick output.
const LossPrefix = "-"

// Newick renders t in Newick format, terminated by ';'. Every node is
// labelled, internal ones included. Labels containing Newick punctuation
// or whitespace are single-quoted.
func Newick(t *mutree.Tree) string {
	var b strings.Builder
	var visit func(id node.ID)
	visit = func(id node.ID) {
		if children := t.Children(id); len(children) > 0 {
			b.WriteByte('(')
			for i, c := range children {
				if i > 0 {
					b.WriteByte(',')
				}
				visit(c)
			}
			b.WriteByte(')')
		}
		m := t.Mutation(id)
		label := m.Name
		if m.Loss {
			label = LossPrefix + label
		}
		b.WriteString(newickLabel(label))
	}
	visit(t.Root())
	b.WriteByte(';')
	return b.String()
}

func newickLabel(s string) string {
	if !strings.ContainsAny(s, "()[]':;, \t\n") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
