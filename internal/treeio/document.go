// Package treeio converts mutation trees to and from external forms:
// a JSON document, RFC 8785 canonical JSON with a content hash, Graphviz
// DOT and Newick.
package treeio

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/node"
	"github.com/roach88/mutree/internal/uid"
)

// FormatVersion is written into every Document.
const FormatVersion = 1

// Document is the serialised form of a tree.
type Document struct {
	Version   int           `json:"version"`
	Mutations []string      `json:"mutations"`
	Limits    mutree.Limits `json:"limits"`
	Root      Node          `json:"root"`
}

// Node is one tree node in a Document.
type Node struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	MutationID int    `json:"mutation_id"`
	Loss       bool   `json:"loss"`
	Children   []Node `json:"children"`
}

// FromTree captures t as a Document.
func FromTree(t *mutree.Tree) Document {
	var build func(id node.ID) Node
	build = func(id node.ID) Node {
		m := t.Mutation(id)
		n := Node{
			UID:        t.UID(id),
			Name:       m.Name,
			MutationID: m.ID,
			Loss:       m.Loss,
			Children:   []Node{},
		}
		for _, c := range t.Children(id) {
			n.Children = append(n.Children, build(c))
		}
		return n
	}
	return Document{
		Version:   FormatVersion,
		Mutations: t.Names(),
		Limits:    t.Limits(),
		Root:      build(t.Root()),
	}
}

// Tree rebuilds the tree with its recorded uids. Nodes created later draw
// their uids from gen, which must not reissue a recorded uid; a nil gen
// makes any later insertion panic.
func (d Document) Tree(gen uid.Generator) (*mutree.Tree, error) {
	if d.Version != FormatVersion {
		return nil, fmt.Errorf("tree document: unsupported version %d", d.Version)
	}
	if d.Root.MutationID != mutree.Germline || d.Root.Loss {
		return nil, fmt.Errorf("tree document: root %q is not a germline node", d.Root.UID)
	}

	var uids []string
	var collect func(n Node)
	collect = func(n Node) {
		uids = append(uids, n.UID)
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(d.Root)

	t, err := mutree.New(d.Mutations, uid.NewReplay(uids, gen), mutree.WithLimits(d.Limits))
	if err != nil {
		return nil, fmt.Errorf("tree document: %w", err)
	}

	var attach func(parent node.ID, children []Node) error
	attach = func(parent node.ID, children []Node) error {
		for _, c := range children {
			if c.MutationID >= 0 && c.MutationID < len(d.Mutations) && c.Name != d.Mutations[c.MutationID] {
				return fmt.Errorf("node %q: name %q does not match mutation %d (%q)",
					c.UID, c.Name, c.MutationID, d.Mutations[c.MutationID])
			}
			id, err := t.NewNode(mutree.Mutation{ID: c.MutationID, Name: c.Name, Loss: c.Loss})
			if err != nil {
				return err
			}
			if err := t.Attach(parent, id); err != nil {
				return err
			}
			if err := attach(id, c.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := attach(t.Root(), d.Root.Children); err != nil {
		return nil, fmt.Errorf("tree document: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tree document: %w", err)
	}
	return t, nil
}

// MarshalTree renders t as indented JSON.
func MarshalTree(t *mutree.Tree) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromTree(t)); err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a document written by MarshalTree.
func UnmarshalTree(data []byte, gen uid.Generator) (*mutree.Tree, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	return d.Tree(gen)
}
