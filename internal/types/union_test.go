package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHierarchy map[string][]string

func (h fakeHierarchy) IsA(class, target string) bool {
	if sameClass(class, target) {
		return true
	}
	for _, parent := range h[class] {
		if h.IsA(parent, target) {
			return true
		}
	}
	return false
}

func TestUnionMergeIsIdempotent(t *testing.T) {
	u := NewUnion(Int, String, Named("Foo", "App\\Foo"))
	merged := Merge(u, u)
	require.True(t, merged.Equal(u))
	require.Equal(t, 3, merged.Len())
}

func TestUnionMergeIsCommutativeAndAssociative(t *testing.T) {
	a := NewUnion(Int, FloatType)
	b := NewUnion(String, Int)
	c := NewUnion(Null, Named("B", "App\\B"))

	require.True(t, Merge(a, b).Equal(Merge(b, a)))
	require.True(t, Merge(Merge(a, b), c).Equal(Merge(a, Merge(b, c))))
	require.True(t, Reduce(a, b, c).Equal(Merge(Merge(a, b), c)))
}

func TestUnionDeduplicatesNamedTypesByFQN(t *testing.T) {
	u := NewUnion(Named("Alias", "App\\Model\\User"), Named("User", "\\App\\Model\\user"))
	require.Equal(t, 1, u.Len())

	single, ok := u.SingleType()
	require.True(t, ok)
	require.Equal(t, "App\\Model\\User", single.FQN)
}

func TestSingleType(t *testing.T) {
	_, ok := Union{}.SingleType()
	require.False(t, ok)

	one, ok := NewUnion(Int).SingleType()
	require.True(t, ok)
	require.Equal(t, KindInt, one.Kind)

	_, ok = NewUnion(Int, String).SingleType()
	require.False(t, ok)
}

func TestUnionEmptyMeansAbsent(t *testing.T) {
	var u Union
	require.True(t, u.IsEmpty())
	require.Equal(t, "unknown", u.String())
	require.True(t, Reduce().IsEmpty())
	require.True(t, Merge(u, u).IsEmpty())
}

func TestVectorIdentityIncludesElements(t *testing.T) {
	ints := Vector(NewUnion(Int))
	strs := Vector(NewUnion(String))
	u := NewUnion(ints, strs, Vector(NewUnion(Int)))
	require.Equal(t, 2, u.Len())
	require.Equal(t, "int[]", ints.String())
	require.Equal(t, Array, Vector(Union{}))
}

func TestUnionIsInstanceOf(t *testing.T) {
	h := fakeHierarchy{
		"App\\Dog": {"App\\Animal"},
	}
	animals := NewUnion(Named("Dog", "App\\Dog"), Null)
	require.True(t, animals.IsInstanceOf("App\\Animal", h))
	require.False(t, animals.IsInstanceOf("App\\Car", h))
	require.False(t, NewUnion(Int, String).IsInstanceOf("App\\Animal", h))
	require.True(t, NewUnion(Mixed).IsInstanceOf("App\\Animal", h))
}

func TestUnionStringAndFilters(t *testing.T) {
	u := NewUnion(Int, Null, Named("Foo", "App\\Foo"))
	require.Equal(t, "int|null|\\App\\Foo", u.String())
	require.True(t, u.IsNullable())
	require.False(t, u.WithoutNull().IsNullable())
	require.True(t, NewUnion(Int, FloatType).OnlyKinds(KindInt, KindFloat))
	require.False(t, u.OnlyKinds(KindInt))
}
