package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func findKind(root Node, kind string) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() == kind {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestParseExposesFieldsAndOperators(t *testing.T) {
	tree, err := Parse(context.Background(), []byte("<?php\n$total = 3 + 4;\n"))
	require.NoError(t, err)
	defer tree.Close()

	root := tree.Root()
	require.Equal(t, "program", root.Kind())

	assign := findKind(root, "assignment_expression")
	require.NotNil(t, assign)
	require.Equal(t, "total", VariableName(assign.Field("left")))

	bin := assign.Field("right")
	require.NotNil(t, bin)
	require.Equal(t, "binary_expression", bin.Kind())
	require.Equal(t, "+", OperatorText(bin))
	require.Equal(t, "3", bin.Field("left").Text())
	require.Equal(t, "4", bin.Field("right").Text())

	rng := bin.Range()
	require.Equal(t, 2, rng.StartLine)
	require.Equal(t, 9, rng.StartColumn)
}

func TestParseMarksErrors(t *testing.T) {
	tree, err := Parse(context.Background(), []byte("<?php\n$a = );\n"))
	require.NoError(t, err)
	defer tree.Close()

	var sawError bool
	Walk(tree.Root(), func(n Node) bool {
		if n.IsError() {
			sawError = true
		}
		return true
	})
	require.True(t, sawError)
}

func TestDescendantAt(t *testing.T) {
	src := []byte("<?php\n$name = 'x';\n")
	tree, err := Parse(context.Background(), src)
	require.NoError(t, err)
	defer tree.Close()

	node := DescendantAt(tree.Root(), 8)
	require.NotNil(t, node)
	require.Equal(t, "name", node.Kind())
	require.Equal(t, "variable_name", findKind(tree.Root(), "variable_name").Kind())
}

func TestSyntheticNodes(t *testing.T) {
	left := NewNode("integer", "1")
	right := NewNode("integer", "2")
	bin := NewNode("binary_expression", "1 + 2",
		Child{Field: "left", Node: left},
		Child{Field: "operator", Node: NewNode("+", "+")},
		Child{Field: "right", Node: right},
	)
	require.Equal(t, "+", OperatorText(bin))
	require.Equal(t, left, bin.Field("left"))
	require.Len(t, ChildrenOfField(bin, "right"), 1)
	require.Nil(t, bin.Field("missing"))
}
