package analysis

import (
	"math"
	"testing"

	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/stretchr/testify/require"
)

func binary(t *testing.T, op string, l, r Eval) Eval {
	t.Helper()
	b, ok := LookupBinary(op)
	require.True(t, ok, "no operator %q", op)
	return applyBinary(b, StaticOperands{Left: l, Right: r})
}

func TestBinaryOperators(t *testing.T) {
	i := func(n int64) Eval { return known(types.IntValue(n)) }
	f := func(x float64) Eval { return known(types.FloatValue(x)) }
	str := func(s string) Eval { return known(types.StringValue(s)) }
	intOnly := types.NewUnion(types.Int)
	floatOnly := types.NewUnion(types.FloatType)

	tests := []struct {
		name  string
		op    string
		l, r  Eval
		typ   types.Union
		value string
	}{
		{"add", "+", i(3), i(4), intOnly, "7"},
		{"add overflow", "+", i(math.MaxInt64), i(1), intOrFloat, "9.2233720368548E+18"},
		{"sub", "-", i(3), i(4), intOnly, "-1"},
		{"mul", "*", i(6), i(7), intOnly, "42"},
		{"float mix", "+", i(1), f(0.5), floatOnly, "1.5"},
		{"numeric string", "-", str("10"), i(3), intOrFloat, "7"},
		{"exact division", "/", i(8), i(2), intOrFloat, "4"},
		{"inexact division", "/", i(7), i(2), intOrFloat, "3.5"},
		{"division by zero", "/", i(1), i(0), intOrFloat, "?"},
		{"modulo", "%", i(7), i(3), intOnly, "1"},
		{"modulo by zero", "%", i(7), i(0), intOnly, "?"},
		{"power", "**", i(2), i(10), intOrFloat, "1024"},
		{"negative power", "**", i(2), i(-1), intOrFloat, "0.5"},
		{"concat", ".", str("a"), i(1), types.NewUnion(types.String), "'a1'"},
		{"loose equal", "==", str("1"), i(1), boolUnion, "true"},
		{"strict equal", "===", str("1"), i(1), boolUnion, "false"},
		{"less", "<", i(1), i(2), boolUnion, "true"},
		{"spaceship", "<=>", i(3), i(2), intOnly, "1"},
		{"and", "&&", known(types.BoolValue(true)), known(types.BoolValue(false)), boolUnion, "false"},
		{"xor", "xor", known(types.BoolValue(true)), known(types.BoolValue(false)), boolUnion, "true"},
		{"bit and", "&", i(6), i(3), intOnly, "2"},
		{"shift left", "<<", i(1), i(3), intOnly, "8"},
		{"shift overflow", "<<", i(1), i(100), intOnly, "?"},
		{"shift negative", ">>", i(8), i(-1), intOnly, "?"},
		{"compound", "+=", i(1), i(1), intOnly, "2"},
		{"coalesce null", "??", known(types.NullValue()), i(2), intOnly, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := binary(t, tt.op, tt.l, tt.r)
			require.True(t, e.Type.Equal(tt.typ), "type %s", e.Type.String())
			require.Equal(t, tt.value, e.Value.String())
		})
	}
}

func TestUnknownOperandsPropagate(t *testing.T) {
	unknown := typed(types.Unknown)
	e := binary(t, "+", unknown, known(types.IntValue(1)))
	require.True(t, e.Type.IsEmpty())
	require.Nil(t, e.Value)

	e = binary(t, "*", Eval{}, known(types.IntValue(1)))
	require.True(t, e.Type.IsEmpty())
	require.Nil(t, e.Value)

	// Comparisons always produce a bool.
	e = binary(t, "<", Eval{}, Eval{})
	require.True(t, e.Type.Equal(boolUnion))
	require.Nil(t, e.Value)
}

func TestOperatorsWithOneSideAbsent(t *testing.T) {
	// A known non-null left side decides ?? on its own.
	e := binary(t, "??", known(types.IntValue(5)), Eval{})
	require.True(t, e.Type.Equal(types.NewUnion(types.Int)), e.Type.String())
	require.Equal(t, "5", e.Value.String())

	e = binary(t, "??", known(types.NullValue()), Eval{})
	require.True(t, e.Type.IsEmpty())
	require.Nil(t, e.Value)

	// Concatenation always yields a string.
	e = binary(t, ".", known(types.StringValue("a")), Eval{})
	require.True(t, e.Type.Equal(types.NewUnion(types.String)), e.Type.String())
	require.Nil(t, e.Value)

	e = binary(t, ".", Eval{}, Eval{})
	require.True(t, e.Type.IsEmpty())
}

func TestOperatorTypesWithoutValues(t *testing.T) {
	ints := typed(types.Int)
	strs := typed(types.String)
	require.True(t, binary(t, "+", ints, typed(types.Int, types.FloatType)).Type.Equal(intOrFloat))
	require.True(t, binary(t, "+", ints, strs).Type.Equal(intOrFloat))
	require.True(t, binary(t, "|", strs, strs).Type.Equal(types.NewUnion(types.String)))
	require.True(t, binary(t, "??", typed(types.Int, types.Null), strs).Type.Equal(types.NewUnion(types.Int, types.String)))

	vec := func(elem types.DiscreteType) Eval { return typed(types.Vector(types.NewUnion(elem))) }
	sum := binary(t, "+", vec(types.Int), vec(types.String))
	require.True(t, sum.Type.Equal(types.NewUnion(types.Vector(types.NewUnion(types.Int, types.String)))), sum.Type.String())
}

func TestLookupRejectsComparisonsAsCompound(t *testing.T) {
	for _, op := range []string{"==", "!=", "<=", ">="} {
		b, ok := LookupBinary(op)
		require.True(t, ok)
		require.IsType(t, comparison{}, b)
	}
	_, ok := LookupBinary("=")
	require.False(t, ok)
	_, ok = LookupBinary("@@")
	require.False(t, ok)
}

func TestUnaryOperators(t *testing.T) {
	neg, ok := LookupUnary("-")
	require.True(t, ok)
	e := applyUnary(neg, known(types.IntValue(math.MinInt64)))
	require.Equal(t, types.ValueFloat, e.Value.Kind())

	bang, _ := LookupUnary("!")
	e = applyUnary(bang, known(types.StringValue("")))
	require.Equal(t, "true", e.Value.String())

	tilde, _ := LookupUnary("~")
	e = applyUnary(tilde, known(types.IntValue(0)))
	require.Equal(t, "-1", e.Value.String())

	plus, _ := LookupUnary("+")
	e = applyUnary(plus, known(types.StringValue("12")))
	require.Equal(t, "12", e.Value.String())
	require.True(t, e.Type.Equal(intOrFloat))
}

func TestUpdateResult(t *testing.T) {
	e := updateResult(known(types.IntValue(math.MaxInt64)), true)
	require.Equal(t, types.ValueFloat, e.Value.Kind())

	e = updateResult(known(types.NullValue()), true)
	require.Equal(t, "1", e.Value.String())

	e = updateResult(known(types.NullValue()), false)
	require.Equal(t, types.ValueNull, e.Value.Kind())
}
