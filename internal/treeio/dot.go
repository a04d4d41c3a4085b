package treeio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/node"
)

// LossColor marks back mutation nodes in DOT output.
const LossColor = "red"

// WriteDOT renders t as an undirected Graphviz graph. Each child is
// declared before the edge from its parent, in preorder.
func WriteDOT(w io.Writer, t *mutree.Tree) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("graph {\n\trankdir=UD;\n\tsplines=line;\n\tnode [shape=circle]\n")
	fmt.Fprintf(bw, "\t%s [label=%s];\n", dotQuote(t.UID(t.Root())), dotQuote(t.Mutation(t.Root()).Name))

	var visit func(id node.ID)
	visit = func(id node.ID) {
		for _, c := range t.Children(id) {
			m := t.Mutation(c)
			if m.Loss {
				fmt.Fprintf(bw, "\t%s [label=%s,color=%s];\n", dotQuote(t.UID(c)), dotQuote(m.Name), dotQuote(LossColor))
			} else {
				fmt.Fprintf(bw, "\t%s [label=%s];\n", dotQuote(t.UID(c)), dotQuote(m.Name))
			}
			fmt.Fprintf(bw, "\t%s -- %s;\n", dotQuote(t.UID(id)), dotQuote(t.UID(c)))
			visit(c)
		}
	}
	visit(t.Root())

	bw.WriteString("}\n")
	return bw.Flush()
}

// DOT returns WriteDOT's output as a string.
func DOT(t *mutree.Tree) string {
	var b strings.Builder
	_ = WriteDOT(&b, t) // strings.Builder never fails
	return b.String()
}

func dotQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
