package analysis

import (
	"testing"

	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/stretchr/testify/require"
)

var at = syntax.Range{StartLine: 1}

func TestForkDoesNotLeakIntoParent(t *testing.T) {
	root := NewScope()
	root.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.Int), types.IntValue(1), false, at)

	branch := root.Fork(SideTrue)
	branch.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.String), types.StringValue("a"), true, at)
	branch.GetOrCreateVar("y").SingleWriteTo(types.NewUnion(types.Bool), nil, true, at)

	x, _ := root.GetVar("x")
	require.Equal(t, 1, x.WriteCount)
	require.Equal(t, "1", x.Value().String())
	_, ok := root.GetVar("y")
	require.False(t, ok)
	require.True(t, branch.IsBranch())
	require.Equal(t, SideTrue, branch.Side())
	require.Same(t, root, branch.Parent())
}

func TestConditionalWriteDropsValue(t *testing.T) {
	v := newVarData("x")
	v.SingleWriteTo(types.NewUnion(types.Int), types.IntValue(3), true, at)
	require.Nil(t, v.Value())
	require.True(t, v.Type().Equal(types.NewUnion(types.Int)))
	require.True(t, v.Defined())
}

func TestTypePrecedence(t *testing.T) {
	v := newVarData("x")
	v.NativeType = types.NewUnion(types.Int)
	v.SingleWriteTo(types.Union{}, nil, false, at)
	require.True(t, v.Type().Equal(types.NewUnion(types.Int)))

	v.CommentType = types.NewUnion(types.String)
	require.True(t, v.Type().Equal(types.NewUnion(types.String)))

	v.SingleWriteTo(types.NewUnion(types.Bool), nil, true, at)
	require.True(t, v.Type().Equal(types.NewUnion(types.String)))

	v.SingleWriteTo(types.NewUnion(types.FloatType), types.FloatValue(1.5), false, at)
	require.True(t, v.Type().Equal(types.NewUnion(types.FloatType)))

	v.Narrow(types.NewUnion(types.Null))
	require.True(t, v.Type().Equal(types.NewUnion(types.Null)))
	v.SingleWriteTo(types.NewUnion(types.Int), nil, false, at)
	_, narrowed := v.Narrowed()
	require.False(t, narrowed)
}

func TestMergeOneSidedWrite(t *testing.T) {
	root := NewScope()
	root.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.Int), types.IntValue(1), false, at)

	tb, fb := root.Fork(SideTrue), root.Fork(SideFalse)
	tb.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.String), nil, true, at)
	tb.GetOrCreateVar("y").SingleWriteTo(types.NewUnion(types.Bool), nil, true, at)
	root.Merge(tb, fb)

	x, _ := root.GetVar("x")
	require.Nil(t, x.Value())
	require.Equal(t, 2, x.WriteCount)
	require.False(t, x.IsPartial)
	require.True(t, x.Type().Equal(types.NewUnion(types.Int)), x.Type().String())
	require.Len(t, x.Writes(), 2)
	require.True(t, x.Writes()[1].Conditional)

	y, ok := root.GetVar("y")
	require.True(t, ok)
	require.True(t, y.Defined())
	require.True(t, y.IsPartial)
	require.True(t, y.Type().Equal(types.NewUnion(types.Bool)))
}

func TestMergeWritesOnEveryPath(t *testing.T) {
	root := NewScope()
	tb, fb := root.Fork(SideTrue), root.Fork(SideFalse)
	tb.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.Int), nil, true, at)
	fb.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.String), nil, true, at)
	root.Merge(tb, fb)

	x, _ := root.GetVar("x")
	require.False(t, x.IsPartial)
	require.True(t, x.Type().Equal(types.NewUnion(types.Int, types.String)), x.Type().String())
}

func TestMergeIgnoresTerminatedBranches(t *testing.T) {
	root := NewScope()
	root.GetOrCreateVar("n").SingleWriteTo(types.NewUnion(types.Int), nil, false, at)

	tb, fb := root.Fork(SideTrue), root.Fork(SideFalse)
	tv := tb.GetOrCreateVar("x")
	tv.SingleWriteTo(types.NewUnion(types.Int), nil, true, at)
	n, _ := tb.GetVar("n")
	n.ReadFrom(at)
	tb.terminate(exitFunction)
	fb.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.String), nil, true, at)
	root.Merge(tb, fb)

	x, _ := root.GetVar("x")
	require.False(t, x.IsPartial)
	require.True(t, x.Type().Equal(types.NewUnion(types.String)), x.Type().String())
	rn, _ := root.GetVar("n")
	require.Equal(t, 1, rn.ReadCount)
	require.False(t, root.Terminated())

	dead := NewScope()
	a, b := dead.Fork(SideTrue), dead.Fork(SideFalse)
	a.terminate(exitFunction)
	b.terminate(exitLoop)
	dead.Merge(a, b)
	require.True(t, dead.Terminated())
}

func TestMergeKeepsNarrowingOnlyWhenEveryPathNarrows(t *testing.T) {
	root := NewScope()
	root.GetOrCreateVar("x").SingleWriteTo(types.NewUnion(types.Int, types.Null), nil, false, at)

	tb, fb := root.Fork(SideTrue), root.Fork(SideFalse)
	tb.GetOrCreateVar("x").Narrow(types.NewUnion(types.Int))
	root.Merge(tb, fb)
	x, _ := root.GetVar("x")
	require.True(t, x.Type().Equal(types.NewUnion(types.Int, types.Null)))
}

func TestUnsetClearsDefinedness(t *testing.T) {
	v := newVarData("x")
	v.SingleWriteTo(types.NewUnion(types.Int), types.IntValue(1), false, at)
	v.Unset()
	require.False(t, v.Defined())
	require.Nil(t, v.Value())
}
