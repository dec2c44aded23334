package docblock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	block := Parse(`/**
	 * Does a thing.
	 *
	 * @param int|string $id
	 * @param ?User ...$users
	 * @return Foo[]
	 * @var Bar $bar
	 */`)

	typ, ok := block.Param("id")
	require.True(t, ok)
	require.Equal(t, "int|string", typ)

	typ, ok = block.Param("users")
	require.True(t, ok)
	require.Equal(t, "?User", typ)

	typ, ok = block.Return()
	require.True(t, ok)
	require.Equal(t, "Foo[]", typ)

	typ, ok = block.Var("bar")
	require.True(t, ok)
	require.Equal(t, "Bar", typ)
	require.Equal(t, []string{"bar"}, block.VarNames())

	_, ok = block.Param("missing")
	require.False(t, ok)
}

func TestAnonymousVarTag(t *testing.T) {
	block := Parse(`/** @var \App\Entity\User */`)
	typ, ok := block.Var("anything")
	require.True(t, ok)
	require.Equal(t, `\App\Entity\User`, typ)
	require.True(t, IsDocComment(`/** @var int */`))
	require.False(t, IsDocComment(`// @var int $x`))
}

func TestParseType(t *testing.T) {
	cases := map[string]string{
		"int":                   "int",
		"?Foo":                  "?Foo",
		"int|string|null":       "int|string|null",
		"Foo[]":                 "Foo[]",
		"(int|string)[]":        "(int|string)[]",
		"array<string,Foo>":     "array<string, Foo>",
		"list<int>":             "list<int>",
		"A&B":                   "A&B",
		`\App\Model\User|false`: `\App\Model\User|false`,
		"array{id: int}":        "array",
		"'a'|'b'":               "'a'|'b'",
	}
	for src, want := range cases {
		expr, err := ParseType(src)
		require.NoError(t, err, src)
		require.Equal(t, want, expr.String(), src)
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, src := range []string{"", "|int", "Foo[", "array<int", "(int"} {
		_, err := ParseType(src)
		require.Error(t, err, src)
	}
}
