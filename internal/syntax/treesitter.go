package syntax

import (
	"context"
	"fmt"

	phpforest "github.com/alexaandru/go-sitter-forest/php"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Tree owns a parsed tree-sitter PHP tree and exposes its root through the
// Node contract.
type Tree struct {
	tree    *sitter.Tree
	content []byte
	root    Node
}

// Parse parses PHP source with the tree-sitter PHP grammar.
func Parse(ctx context.Context, content []byte) (*Tree, error) {
	parser := sitter.NewParser()
	lang := sitter.NewLanguage(phpforest.GetLanguage())
	if !parser.SetLanguage(lang) {
		return nil, fmt.Errorf("could not load php grammar")
	}

	tree, err := parser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("could not parse php source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("could not parse php source: no tree produced")
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()
		return nil, fmt.Errorf("could not parse php source: empty tree")
	}

	return &Tree{
		tree:    tree,
		content: content,
		root:    wrap(root, content),
	}, nil
}

// Root returns the program node.
func (t *Tree) Root() Node {
	if t == nil {
		return nil
	}
	return t.root
}

// Content returns the source the tree was parsed from.
func (t *Tree) Content() []byte {
	if t == nil {
		return nil
	}
	return t.content
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t == nil || t.tree == nil {
		return
	}
	t.tree.Close()
	t.tree = nil
}

type tsNode struct {
	node     sitter.Node
	content  []byte
	children []Node
	fields   []string
	loaded   bool
}

func wrap(n sitter.Node, content []byte) Node {
	if n.IsNull() {
		return nil
	}
	return &tsNode{node: n, content: content}
}

func (n *tsNode) Kind() string { return n.node.Type() }

func (n *tsNode) Range() Range {
	start, end := n.node.StartPoint(), n.node.EndPoint()
	return Range{
		StartByte:   uint32(n.node.StartByte()),
		EndByte:     uint32(n.node.EndByte()),
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column),
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column),
	}
}

func (n *tsNode) load() {
	if n.loaded {
		return
	}
	n.loaded = true
	count := n.node.NamedChildCount()
	n.children = make([]Node, 0, count)
	n.fields = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		child := n.node.NamedChild(i)
		if child.IsNull() {
			continue
		}
		n.children = append(n.children, &tsNode{node: child, content: n.content})
		n.fields = append(n.fields, n.node.FieldNameForNamedChild(i))
	}
}

func (n *tsNode) Children() []Node {
	n.load()
	return n.children
}

func (n *tsNode) FieldName(i int) string {
	n.load()
	if i < 0 || i >= len(n.fields) {
		return ""
	}
	return n.fields[i]
}

func (n *tsNode) Field(name string) Node {
	n.load()
	for i, field := range n.fields {
		if field == name {
			return n.children[i]
		}
	}
	// Anonymous tokens (operators) are not among the named children.
	return wrap(n.node.ChildByFieldName(name), n.content)
}

func (n *tsNode) Text() string { return n.node.Content(n.content) }

func (n *tsNode) IsError() bool { return n.node.Type() == "ERROR" }
