package analysis

import (
	"math"

	"github.com/shinyvision/phpinfer/internal/types"
)

// Integer arithmetic that overflows int64 continues in float, as PHP does.

func addInts(a, b int64) *types.Value {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return types.FloatValue(float64(a) + float64(b))
	}
	return types.IntValue(sum)
}

func subInts(a, b int64) *types.Value {
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
		return types.FloatValue(float64(a) - float64(b))
	}
	return types.IntValue(diff)
}

func mulInts(a, b int64) *types.Value {
	if a == 0 || b == 0 {
		return types.IntValue(0)
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return types.FloatValue(float64(a) * float64(b))
	}
	return types.IntValue(p)
}

func powInts(base, exp int64) *types.Value {
	if exp < 0 {
		return types.FloatValue(math.Pow(float64(base), float64(exp)))
	}
	switch base {
	case 0:
		if exp == 0 {
			return types.IntValue(1)
		}
		return types.IntValue(0)
	case 1:
		return types.IntValue(1)
	case -1:
		if exp%2 == 0 {
			return types.IntValue(1)
		}
		return types.IntValue(-1)
	}
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		next := mulInts(result, base)
		if next.Kind() != types.ValueInt {
			return types.FloatValue(math.Pow(float64(base), float64(exp)))
		}
		result, _ = next.AsInt()
	}
	return types.IntValue(result)
}

// checkedShl returns no value when the count is negative or not below the
// integer width.
func checkedShl(a, count int64) *types.Value {
	if count < 0 || count >= 64 {
		return nil
	}
	return types.IntValue(a << uint(count))
}

func checkedShr(a, count int64) *types.Value {
	if count < 0 || count >= 64 {
		return nil
	}
	return types.IntValue(a >> uint(count))
}

// intOperand returns the integer a bitwise operator would use. Floats must
// be integral and in range.
func intOperand(v *types.Value) (int64, bool) {
	num := v.AsNum()
	if num == nil {
		return 0, false
	}
	if num.Kind() == types.ValueFloat {
		f, _ := num.AsFloat()
		if f != math.Trunc(f) {
			return 0, false
		}
	}
	return num.AsInt()
}

// numericPair coerces both operands the way arithmetic operators do.
func numericPair(l, r *types.Value) (*types.Value, *types.Value, bool) {
	a, b := l.AsNum(), r.AsNum()
	if a == nil || b == nil {
		return nil, nil, false
	}
	return a, b, true
}

func floatOp(a, b *types.Value, op func(x, y float64) float64) *types.Value {
	x, ok1 := a.AsFloat()
	y, ok2 := b.AsFloat()
	if !ok1 || !ok2 {
		return nil
	}
	return types.FloatValue(op(x, y))
}
