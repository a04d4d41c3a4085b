package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/node"
	"github.com/roach88/mutree/internal/uid"
)

// lossPrefix marks a loss node in shape notation.
const lossPrefix = '-'

// FormatShape renders t in shape notation, e.g. "germline(1(-1),2)".
func FormatShape(t *mutree.Tree) string {
	var b strings.Builder
	var write func(id node.ID)
	write = func(id node.ID) {
		m := t.Mutation(id)
		if m.Loss {
			b.WriteByte(lossPrefix)
		}
		b.WriteString(m.Name)
		children := t.Children(id)
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
	write(t.Root())
	return b.String()
}

// ParseShape builds a tree from shape notation over the given mutation
// names. Node uids come from gen in preorder. Whitespace around names and
// punctuation is ignored.
func ParseShape(shape string, names []string, gen uid.Generator, opts ...mutree.Option) (*mutree.Tree, error) {
	t, err := mutree.New(names, gen, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse shape: %w", err)
	}
	p := &shapeParser{src: shape, names: names, tree: t}

	label, loss := p.label()
	if label != mutree.GermlineName || loss {
		return nil, p.errorf("root must be %q", mutree.GermlineName)
	}
	if err := p.children(t.Root()); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("parse shape: %w", err)
	}
	return t, nil
}

type shapeParser struct {
	src   string
	pos   int
	names []string
	tree  *mutree.Tree
}

func (p *shapeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("parse shape at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *shapeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *shapeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// label reads an optional loss prefix and a name.
func (p *shapeParser) label() (string, bool) {
	loss := false
	if p.peek() == lossPrefix {
		loss = true
		p.pos++
	}
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("(),", rune(p.src[p.pos])) {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos]), loss
}

// children parses an optional parenthesised child list under parent.
func (p *shapeParser) children(parent node.ID) error {
	if p.peek() != '(' {
		return nil
	}
	p.pos++
	for {
		if err := p.node(parent); err != nil {
			return err
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return nil
		default:
			return p.errorf("expected ',' or ')'")
		}
	}
}

func (p *shapeParser) node(parent node.ID) error {
	name, loss := p.label()
	if name == "" {
		return p.errorf("missing node name")
	}
	k := slices.Index(p.names, name)
	if k < 0 {
		return p.errorf("unknown mutation %q", name)
	}
	id, err := p.tree.NewNode(mutree.Mutation{ID: k, Name: name, Loss: loss})
	if err != nil {
		return p.errorf("%v", err)
	}
	if err := p.tree.Attach(parent, id); err != nil {
		return p.errorf("%v", err)
	}
	return p.children(id)
}
