package analysis

import (
	"math"
	"strings"

	"github.com/shinyvision/phpinfer/internal/types"
)

// Operands gives an operator access to what is known about its operands.
type Operands interface {
	LeftType() types.Union
	RightType() types.Union
	LeftValue() *types.Value
	RightValue() *types.Value
	// RightSymbol is the resolved class name on the right of instanceof.
	RightSymbol() string
}

// StaticOperands is an Operands backed by plain evaluations.
type StaticOperands struct {
	Left, Right Eval
	Symbol      string
}

func (o StaticOperands) LeftType() types.Union    { return o.Left.Type }
func (o StaticOperands) RightType() types.Union   { return o.Right.Type }
func (o StaticOperands) LeftValue() *types.Value  { return o.Left.Value }
func (o StaticOperands) RightValue() *types.Value { return o.Right.Value }
func (o StaticOperands) RightSymbol() string      { return o.Symbol }

// BinaryOperator computes the result of a binary operator. UType works from
// operand types alone; Value needs both operand values and returns nil for
// anything it does not model.
type BinaryOperator interface {
	UType(o Operands) types.Union
	Value(o Operands) *types.Value
}

// UnaryOperator is the single operand counterpart of BinaryOperator.
type UnaryOperator interface {
	UType(operand Eval) types.Union
	Value(operand Eval) *types.Value
}

var binaryOperators = map[string]BinaryOperator{
	"+":          arithmetic{op: "+"},
	"-":          arithmetic{op: "-"},
	"*":          arithmetic{op: "*"},
	"/":          division{},
	"%":          modulo{},
	"**":         power{},
	".":          concat{},
	"==":         comparison{op: "=="},
	"!=":         comparison{op: "!="},
	"<>":         comparison{op: "!="},
	"===":        comparison{op: "==="},
	"!==":        comparison{op: "!=="},
	"<":          comparison{op: "<"},
	"<=":         comparison{op: "<="},
	">":          comparison{op: ">"},
	">=":         comparison{op: ">="},
	"<=>":        spaceship{},
	"&&":         logical{op: "and"},
	"and":        logical{op: "and"},
	"||":         logical{op: "or"},
	"or":         logical{op: "or"},
	"xor":        logical{op: "xor"},
	"&":          bitwise{op: "&"},
	"|":          bitwise{op: "|"},
	"^":          bitwise{op: "^"},
	"<<":         shift{left: true},
	">>":         shift{},
	"instanceof": instanceOf{},
	"??":         coalesce{},
}

var unaryOperators = map[string]UnaryOperator{
	"!": not{},
	"-": sign{negate: true},
	"+": sign{},
	"~": complement{},
}

// LookupBinary returns the strategy for a binary or compound-assignment
// operator, e.g. "+" or "+=".
func LookupBinary(op string) (BinaryOperator, bool) {
	op = strings.ToLower(strings.TrimSpace(op))
	if b, ok := binaryOperators[op]; ok {
		return b, true
	}
	if base, ok := strings.CutSuffix(op, "="); ok && base != "" {
		switch base {
		case "=", "!", "<", ">":
			return nil, false
		}
		b, ok := binaryOperators[base]
		return b, ok
	}
	return nil, false
}

// LookupUnary returns the strategy for a prefix operator.
func LookupUnary(op string) (UnaryOperator, bool) {
	u, ok := unaryOperators[strings.TrimSpace(op)]
	return u, ok
}

// operandKinds groups union members for operator typing. ok is false when a
// side is absent or carries the unknown type.
func operandKinds(u types.Union) ([]types.DiscreteType, bool) {
	if u.IsEmpty() || u.ContainsKind(types.KindUnknown) {
		return nil, false
	}
	return u.Types(), true
}

func pairwise(l, r types.Union, rule func(a, b types.DiscreteType) types.Union) types.Union {
	ls, ok := operandKinds(l)
	if !ok {
		return types.Union{}
	}
	rs, ok := operandKinds(r)
	if !ok {
		return types.Union{}
	}
	var out types.Union
	for _, a := range ls {
		for _, b := range rs {
			out.MergeInto(rule(a, b))
		}
	}
	return out
}

// numericClass reduces a discrete type to how arithmetic treats it.
type numericClass uint8

const (
	numNone numericClass = iota
	numInt
	numFloat
	numString
	numMixed
)

func classify(t types.DiscreteType) numericClass {
	switch t.Kind {
	case types.KindInt, types.KindBool, types.KindNull:
		return numInt
	case types.KindFloat:
		return numFloat
	case types.KindString:
		return numString
	case types.KindMixed:
		return numMixed
	}
	return numNone
}

var intOrFloat = types.NewUnion(types.Int, types.FloatType)

type arithmetic struct{ op string }

func (a arithmetic) UType(o Operands) types.Union {
	return pairwise(o.LeftType(), o.RightType(), func(l, r types.DiscreteType) types.Union {
		if a.op == "+" && l.IsArrayLike() && r.IsArrayLike() {
			if l.Kind == types.KindVector && r.Kind == types.KindVector {
				return types.NewUnion(types.Vector(types.Merge(*l.Elem, *r.Elem)))
			}
			return types.NewUnion(types.Array)
		}
		lc, rc := classify(l), classify(r)
		switch {
		case lc == numNone || rc == numNone:
			return types.Union{}
		case lc == numInt && rc == numInt:
			return types.NewUnion(types.Int)
		case lc == numFloat || rc == numFloat:
			return types.NewUnion(types.FloatType)
		}
		// Numeric strings and mixed operands: int or float depending on the value.
		return intOrFloat
	})
}

func (a arithmetic) Value(o Operands) *types.Value {
	l, r := o.LeftValue(), o.RightValue()
	if l == nil || r == nil {
		return nil
	}
	if a.op == "+" && l.Kind() == types.ValueArray && r.Kind() == types.ValueArray {
		entries := l.Entries()
		for _, e := range r.Entries() {
			if l.Lookup(e.Key) == nil {
				entries = append(entries, e)
			}
		}
		return types.ArrayValue(entries...)
	}
	x, y, ok := numericPair(l, r)
	if !ok {
		return nil
	}
	if x.Kind() == types.ValueInt && y.Kind() == types.ValueInt {
		xi, _ := x.AsInt()
		yi, _ := y.AsInt()
		switch a.op {
		case "+":
			return addInts(xi, yi)
		case "-":
			return subInts(xi, yi)
		case "*":
			return mulInts(xi, yi)
		}
		return nil
	}
	switch a.op {
	case "+":
		return floatOp(x, y, func(p, q float64) float64 { return p + q })
	case "-":
		return floatOp(x, y, func(p, q float64) float64 { return p - q })
	case "*":
		return floatOp(x, y, func(p, q float64) float64 { return p * q })
	}
	return nil
}

type division struct{}

func (division) UType(o Operands) types.Union {
	return pairwise(o.LeftType(), o.RightType(), func(l, r types.DiscreteType) types.Union {
		lc, rc := classify(l), classify(r)
		switch {
		case lc == numNone || rc == numNone:
			return types.Union{}
		case lc == numFloat || rc == numFloat:
			return types.NewUnion(types.FloatType)
		}
		return intOrFloat
	})
}

func (division) Value(o Operands) *types.Value {
	x, y, ok := numericPair(o.LeftValue(), o.RightValue())
	if !ok {
		return nil
	}
	if f, _ := y.AsFloat(); f == 0 {
		return nil
	}
	if x.Kind() == types.ValueInt && y.Kind() == types.ValueInt {
		xi, _ := x.AsInt()
		yi, _ := y.AsInt()
		if !(xi == math.MinInt64 && yi == -1) && xi%yi == 0 {
			return types.IntValue(xi / yi)
		}
	}
	return floatOp(x, y, func(p, q float64) float64 { return p / q })
}

type modulo struct{}

func (modulo) UType(o Operands) types.Union {
	return pairwise(o.LeftType(), o.RightType(), func(l, r types.DiscreteType) types.Union {
		if classify(l) == numNone || classify(r) == numNone {
			return types.Union{}
		}
		return types.NewUnion(types.Int)
	})
}

func (modulo) Value(o Operands) *types.Value {
	x, y, ok := numericPair(o.LeftValue(), o.RightValue())
	if !ok {
		return nil
	}
	xi, ok1 := x.AsInt()
	yi, ok2 := y.AsInt()
	if !ok1 || !ok2 || yi == 0 {
		return nil
	}
	if yi == -1 {
		return types.IntValue(0)
	}
	return types.IntValue(xi % yi)
}

type power struct{}

func (power) UType(o Operands) types.Union {
	return pairwise(o.LeftType(), o.RightType(), func(l, r types.DiscreteType) types.Union {
		lc, rc := classify(l), classify(r)
		switch {
		case lc == numNone || rc == numNone:
			return types.Union{}
		case lc == numFloat || rc == numFloat:
			return types.NewUnion(types.FloatType)
		}
		return intOrFloat
	})
}

func (power) Value(o Operands) *types.Value {
	x, y, ok := numericPair(o.LeftValue(), o.RightValue())
	if !ok {
		return nil
	}
	if x.Kind() == types.ValueInt && y.Kind() == types.ValueInt {
		xi, _ := x.AsInt()
		yi, _ := y.AsInt()
		return powInts(xi, yi)
	}
	return floatOp(x, y, math.Pow)
}

type concat struct{}

func (concat) UType(o Operands) types.Union {
	if o.LeftType().IsEmpty() && o.RightType().IsEmpty() {
		return types.Union{}
	}
	return types.NewUnion(types.String)
}

func (concat) Value(o Operands) *types.Value {
	l, ok1 := o.LeftValue().AsString()
	r, ok2 := o.RightValue().AsString()
	if !ok1 || !ok2 {
		return nil
	}
	return types.StringValue(l + r)
}

var boolUnion = types.NewUnion(types.Bool)

type comparison struct{ op string }

func (comparison) UType(Operands) types.Union { return boolUnion }

func (c comparison) Value(o Operands) *types.Value {
	l, r := o.LeftValue(), o.RightValue()
	switch c.op {
	case "===", "!==":
		same, ok := l.IdenticalTo(r)
		if !ok {
			return nil
		}
		return types.BoolValue(same == (c.op == "==="))
	case "==", "!=":
		eq, ok := l.EqualTo(r)
		if !ok {
			return nil
		}
		return types.BoolValue(eq == (c.op == "=="))
	}
	cmp, ok := l.Compare(r)
	if !ok {
		return nil
	}
	switch c.op {
	case "<":
		return types.BoolValue(cmp < 0)
	case "<=":
		return types.BoolValue(cmp <= 0)
	case ">":
		return types.BoolValue(cmp > 0)
	case ">=":
		return types.BoolValue(cmp >= 0)
	}
	return nil
}

type spaceship struct{}

func (spaceship) UType(Operands) types.Union { return types.NewUnion(types.Int) }

func (spaceship) Value(o Operands) *types.Value {
	cmp, ok := o.LeftValue().Compare(o.RightValue())
	if !ok {
		return nil
	}
	return types.IntValue(int64(cmp))
}

// logical combines truth values. Both sides are always evaluated by the
// walker; the result follows the plain truth table.
type logical struct{ op string }

func (logical) UType(Operands) types.Union { return boolUnion }

func (l logical) Value(o Operands) *types.Value {
	a, ok1 := o.LeftValue().AsBool()
	b, ok2 := o.RightValue().AsBool()
	if !ok1 || !ok2 {
		return nil
	}
	switch l.op {
	case "and":
		return types.BoolValue(a && b)
	case "or":
		return types.BoolValue(a || b)
	case "xor":
		return types.BoolValue(a != b)
	}
	return nil
}

type bitwise struct{ op string }

func (bitwise) UType(o Operands) types.Union {
	l, r := o.LeftType(), o.RightType()
	if l.OnlyKinds(types.KindString) && r.OnlyKinds(types.KindString) {
		return types.NewUnion(types.String)
	}
	return pairwise(l, r, func(a, b types.DiscreteType) types.Union {
		if classify(a) == numNone || classify(b) == numNone {
			return types.Union{}
		}
		return types.NewUnion(types.Int)
	})
}

func (b bitwise) Value(o Operands) *types.Value {
	l, r := o.LeftValue(), o.RightValue()
	if l.Kind() == types.ValueString && r.Kind() == types.ValueString {
		// Byte-wise string operations are not modelled.
		return nil
	}
	x, ok1 := intOperand(l)
	y, ok2 := intOperand(r)
	if !ok1 || !ok2 {
		return nil
	}
	switch b.op {
	case "&":
		return types.IntValue(x & y)
	case "|":
		return types.IntValue(x | y)
	case "^":
		return types.IntValue(x ^ y)
	}
	return nil
}

type shift struct{ left bool }

func (shift) UType(o Operands) types.Union {
	return pairwise(o.LeftType(), o.RightType(), func(a, b types.DiscreteType) types.Union {
		if classify(a) == numNone || classify(b) == numNone {
			return types.Union{}
		}
		return types.NewUnion(types.Int)
	})
}

func (s shift) Value(o Operands) *types.Value {
	x, ok1 := intOperand(o.LeftValue())
	n, ok2 := intOperand(o.RightValue())
	if !ok1 || !ok2 {
		return nil
	}
	if s.left {
		return checkedShl(x, n)
	}
	return checkedShr(x, n)
}

type instanceOf struct{}

func (instanceOf) UType(Operands) types.Union { return boolUnion }

// Value is only known for operands with a known scalar or array value,
// which are never objects.
func (instanceOf) Value(o Operands) *types.Value {
	if o.LeftValue() != nil {
		return types.BoolValue(false)
	}
	return nil
}

type coalesce struct{}

func (coalesce) UType(o Operands) types.Union {
	l, r := o.LeftType(), o.RightType()
	if l.IsEmpty() || r.IsEmpty() {
		return types.Union{}
	}
	if !l.IsNullable() {
		return l
	}
	return types.Merge(l.WithoutNull(), r)
}

func (coalesce) Value(o Operands) *types.Value {
	l := o.LeftValue()
	if l == nil {
		return nil
	}
	if l.Kind() == types.ValueNull {
		return o.RightValue()
	}
	return l
}

type not struct{}

func (not) UType(Eval) types.Union { return boolUnion }

func (not) Value(e Eval) *types.Value {
	b, ok := e.Value.AsBool()
	if !ok {
		return nil
	}
	return types.BoolValue(!b)
}

type sign struct{ negate bool }

func (sign) UType(e Eval) types.Union {
	kinds, ok := operandKinds(e.Type)
	if !ok {
		return types.Union{}
	}
	var out types.Union
	for _, t := range kinds {
		switch classify(t) {
		case numInt:
			out = out.Add(types.Int)
		case numFloat:
			out = out.Add(types.FloatType)
		case numString, numMixed:
			out.MergeInto(intOrFloat)
		}
	}
	return out
}

func (s sign) Value(e Eval) *types.Value {
	num := e.Value.AsNum()
	if num == nil {
		return nil
	}
	if !s.negate {
		return num
	}
	if num.Kind() == types.ValueInt {
		i, _ := num.AsInt()
		return subInts(0, i)
	}
	f, _ := num.AsFloat()
	return types.FloatValue(-f)
}

type complement struct{}

func (complement) UType(e Eval) types.Union {
	if e.Type.OnlyKinds(types.KindString) {
		return types.NewUnion(types.String)
	}
	kinds, ok := operandKinds(e.Type)
	if !ok {
		return types.Union{}
	}
	for _, t := range kinds {
		if c := classify(t); c == numInt || c == numFloat {
			return types.NewUnion(types.Int)
		}
	}
	return types.Union{}
}

func (complement) Value(e Eval) *types.Value {
	switch e.Value.Kind() {
	case types.ValueInt, types.ValueFloat:
		i, ok := intOperand(e.Value)
		if !ok {
			return nil
		}
		return types.IntValue(^i)
	}
	return nil
}

// updateResult computes ++ and -- on an operand.
func updateResult(e Eval, increment bool) Eval {
	var t types.Union
	for _, m := range e.Type.Types() {
		switch m.Kind {
		case types.KindInt:
			t = t.Add(types.Int)
		case types.KindFloat:
			t = t.Add(types.FloatType)
		case types.KindNull:
			if increment {
				t = t.Add(types.Int)
			} else {
				t = t.Add(types.Null)
			}
		case types.KindString:
			t.MergeInto(types.NewUnion(types.String, types.Int, types.FloatType))
		case types.KindBool:
			t = t.Add(types.Bool)
		default:
			t = t.Add(m)
		}
	}

	v := e.Value
	var out *types.Value
	switch v.Kind() {
	case types.ValueInt:
		i, _ := v.AsInt()
		if increment {
			out = addInts(i, 1)
		} else {
			out = subInts(i, 1)
		}
	case types.ValueFloat:
		f, _ := v.AsFloat()
		if increment {
			out = types.FloatValue(f + 1)
		} else {
			out = types.FloatValue(f - 1)
		}
	case types.ValueNull:
		if increment {
			out = types.IntValue(1)
		} else {
			out = v
		}
	case types.ValueBool:
		out = v
	}
	return consistent(Eval{Type: t, Value: out})
}

// consistent makes sure the type of an evaluation admits its value.
func consistent(e Eval) Eval {
	if e.Value == nil {
		return e
	}
	vt := e.Value.Type()
	if vt.IsArrayLike() && (e.Type.ContainsKind(types.KindArray) || e.Type.ContainsKind(types.KindVector)) {
		return e
	}
	if e.Type.ContainsKind(vt.Kind) {
		return e
	}
	e.Type = e.Type.Add(vt)
	return e
}

// applyBinary runs a binary operator and keeps the result consistent.
func applyBinary(op BinaryOperator, o Operands) Eval {
	return consistent(Eval{Type: op.UType(o), Value: op.Value(o)})
}

func applyUnary(op UnaryOperator, e Eval) Eval {
	return consistent(Eval{Type: op.UType(e), Value: op.Value(e)})
}
