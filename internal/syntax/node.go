package syntax

import "strings"

// Node is the capability contract the analyzer needs from a syntax tree.
// Children only ever returns named children; anonymous tokens such as
// operators are reachable through Field.
type Node interface {
	Kind() string
	Range() Range
	Children() []Node
	// Field returns the first child stored under the given grammar field name, or nil.
	Field(name string) Node
	// FieldName returns the field name of the i-th named child, or "".
	FieldName(i int) string
	Text() string
	IsError() bool
}

// Range captures a source span using byte offsets, 1-based lines and 0-based columns.
type Range struct {
	StartByte   uint32
	EndByte     uint32
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Contains reports whether the byte offset lies within the range.
func (r Range) Contains(offset uint32) bool {
	return offset >= r.StartByte && offset <= r.EndByte
}

// ChildOfKind returns the first named child of n with one of the given kinds.
func ChildOfKind(n Node, kinds ...string) Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children() {
		for _, k := range kinds {
			if child.Kind() == k {
				return child
			}
		}
	}
	return nil
}

// ChildrenOfField returns every named child stored under the given field.
func ChildrenOfField(n Node, field string) []Node {
	if n == nil {
		return nil
	}
	var out []Node
	for i, child := range n.Children() {
		if n.FieldName(i) == field {
			out = append(out, child)
		}
	}
	return out
}

// FirstChild returns the first named child that is not a comment.
func FirstChild(n Node) Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children() {
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	stack := []Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		children := cur.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// VariableName extracts the PHP variable identifier from a variable node,
// without the leading dollar sign.
func VariableName(n Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "variable_name":
		if name := ChildOfKind(n, "name"); name != nil {
			return name.Text()
		}
		return strings.TrimPrefix(strings.TrimSpace(n.Text()), "$")
	case "by_ref", "reference_modifier":
		if inner := ChildOfKind(n, "variable_name"); inner != nil {
			return VariableName(inner)
		}
		return ""
	case "name":
		return n.Text()
	}
	return ""
}

// OperatorText returns the operator token of a binary, unary, augmented
// assignment or update expression.
func OperatorText(n Node) string {
	if n == nil {
		return ""
	}
	if op := n.Field("operator"); op != nil {
		return strings.ToLower(strings.TrimSpace(op.Text()))
	}
	return ""
}

// DescendantAt returns the innermost named node whose range contains offset.
func DescendantAt(n Node, offset uint32) Node {
	if n == nil || !n.Range().Contains(offset) {
		return nil
	}
	cur := n
	for {
		var next Node
		for _, child := range cur.Children() {
			if child.Range().Contains(offset) {
				next = child
				break
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}
