package analysis

import (
	"strings"

	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// harden forks the active scope into the scopes seen when cond is true and
// when it is false, narrowing variables the condition tests. impossible is
// set when an instanceof test can never hold given the known types.
func (s *State) harden(cond syntax.Node) (t, f *Scope, impossible bool) {
	cur := s.Scope()
	t, f = cur.Fork(SideTrue), cur.Fork(SideFalse)
	impossible = s.narrow(cond, cur, t, f)
	return t, f, impossible
}

// narrow reads the tested variables' types from src and records what holds
// when cond is true in t and when it is false in f. Either target may be nil
// when nothing is learned for that side. The result reports an instanceof
// on the true side that can never hold.
func (s *State) narrow(cond syntax.Node, src, t, f *Scope) bool {
	if cond == nil || (t == nil && f == nil) {
		return false
	}
	switch cond.Kind() {
	case "parenthesized_expression":
		return s.narrow(syntax.FirstChild(cond), src, t, f)
	case "unary_op_expression":
		if unaryOperator(cond) == "!" {
			s.narrow(unaryOperand(cond), src, f, t)
		}
		return false
	case "binary_expression":
		left, right := cond.Field("left"), cond.Field("right")
		switch binaryOperator(cond, left, right) {
		case "instanceof":
			return s.narrowInstanceof(left, right, src, t, f)
		case "&&", "and":
			// Both operands hold on the true side; the right one is tested
			// against what the left one already established.
			if t == nil {
				return false
			}
			a := s.narrow(left, src, t, nil)
			b := s.narrow(right, t, t, nil)
			return a || b
		case "||", "or":
			if f == nil {
				return false
			}
			s.narrow(left, src, nil, f)
			s.narrow(right, f, nil, f)
		case "===":
			s.narrowNull(left, right, src, t, f)
		case "!==":
			s.narrowNull(left, right, src, f, t)
		}
	case "function_call_expression":
		s.narrowTypeCheck(cond, src, t, f)
	case "variable_name":
		name := syntax.VariableName(cond)
		if cur := scopeVarType(src, name); t != nil && cur.IsNullable() && cur.Len() > 1 {
			t.GetOrCreateVar(name).Narrow(cur.WithoutNull())
		}
	}
	return false
}

// narrowTo records u as the type of name in scope, if there is a scope and
// something to record.
func narrowTo(scope *Scope, name string, u types.Union) {
	if scope == nil || u.IsEmpty() {
		return
	}
	scope.GetOrCreateVar(name).Narrow(u)
}

func scopeVarType(scope *Scope, name string) types.Union {
	if v, ok := scope.GetVar(name); ok {
		return v.Type()
	}
	return types.Union{}
}

func (s *State) narrowInstanceof(left, right syntax.Node, src, t, f *Scope) bool {
	if left == nil || right == nil || left.Kind() != "variable_name" {
		return false
	}
	switch right.Kind() {
	case "name", "qualified_name", "relative_name":
	default:
		return false
	}
	name := syntax.VariableName(left)
	target, ok := s.classType(right.Text())
	if name == "" || !ok {
		return false
	}

	var current types.Union
	if name == "this" {
		if s.class != "" {
			current = types.NewUnion(types.Named(s.class, s.class))
		}
	} else {
		current = scopeVarType(src, name)
	}

	truthy, falsy, impossible := s.NarrowInstanceOf(current, target)
	if name != "this" {
		narrowTo(t, name, truthy)
		narrowTo(f, name, falsy)
	}
	return impossible && t != nil
}

// NarrowInstanceOf splits u into the members that survive a successful and a
// failed instanceof test against target. When no member can pass, target is
// used for the true side and impossible reports whether u was known.
func (s *State) NarrowInstanceOf(u types.Union, target types.DiscreteType) (truthy, falsy types.Union, impossible bool) {
	if u.IsEmpty() {
		return types.NewUnion(target), types.Union{}, false
	}
	for _, m := range u.Types() {
		switch {
		case types.MustBeInstanceOf(m, target.FQN, s.store):
			truthy = truthy.Add(m)
		case s.canBeInstance(m, target.FQN):
			truthy = truthy.Add(target)
			falsy = falsy.Add(m)
		default:
			falsy = falsy.Add(m)
		}
	}
	if truthy.IsEmpty() {
		return types.NewUnion(target), falsy, u.IsKnown()
	}
	return truthy, falsy, false
}

// canBeInstance widens types.CanBeInstanceOf with what the hierarchy cannot
// rule out: unknown classes, and interfaces that a subclass may implement.
func (s *State) canBeInstance(m types.DiscreteType, target string) bool {
	if types.CanBeInstanceOf(m, target, s.store) {
		return true
	}
	if m.Kind != types.KindNamed {
		return false
	}
	mc, ok := s.classInfo(m.FQN)
	if !ok {
		return true
	}
	tc, ok := s.classInfo(target)
	if !ok {
		return true
	}
	if tc.Kind == symbols.KindInterface && !mc.Final && mc.Kind != symbols.KindEnum {
		return true
	}
	return mc.Kind == symbols.KindInterface && !tc.Final && tc.Kind != symbols.KindEnum
}

type classSummary struct {
	Kind  symbols.ClassKind
	Final bool
}

func (s *State) classInfo(fqn string) (classSummary, bool) {
	h, ok := s.store.Class(fqn)
	if !ok {
		return classSummary{}, false
	}
	var out classSummary
	h.Read(func(c *symbols.ClassData) { out = classSummary{Kind: c.Kind, Final: c.Final} })
	return out, true
}

// narrowNull handles `$x === null` in either operand order. t receives the
// null side.
func (s *State) narrowNull(left, right syntax.Node, src, t, f *Scope) {
	if isNullLiteral(left) {
		left, right = right, left
	}
	if left == nil || left.Kind() != "variable_name" || !isNullLiteral(right) {
		return
	}
	name := syntax.VariableName(left)
	cur := scopeVarType(src, name)
	if cur.IsEmpty() {
		return
	}
	narrowTo(t, name, types.NewUnion(types.Null))
	narrowTo(f, name, cur.WithoutNull())
}

func isNullLiteral(n syntax.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case "null":
		return true
	case "name":
		return strings.EqualFold(strings.TrimSpace(n.Text()), "null")
	}
	return false
}

var typeChecks = map[string]types.Kind{
	"is_int":      types.KindInt,
	"is_integer":  types.KindInt,
	"is_long":     types.KindInt,
	"is_float":    types.KindFloat,
	"is_double":   types.KindFloat,
	"is_string":   types.KindString,
	"is_bool":     types.KindBool,
	"is_null":     types.KindNull,
	"is_array":    types.KindArray,
	"is_callable": types.KindCallable,
}

// narrowTypeCheck narrows the argument of is_int() and friends.
func (s *State) narrowTypeCheck(call syntax.Node, src, t, f *Scope) {
	fn := call.Field("function")
	if fn == nil || fn.Kind() != "name" {
		return
	}
	kind, ok := typeChecks[strings.ToLower(fn.Text())]
	if !ok {
		return
	}
	args := callArguments(call.Field("arguments"))
	if len(args) != 1 || args[0].Kind() != "variable_name" {
		return
	}
	name := syntax.VariableName(args[0])
	cur := scopeVarType(src, name)
	if cur.IsEmpty() {
		return
	}

	matches := func(m types.DiscreteType) bool {
		if kind == types.KindArray {
			return m.IsArrayLike()
		}
		return m.Kind == kind
	}
	truthy := cur.Filter(matches)
	if truthy.IsEmpty() {
		if cur.ContainsKind(types.KindMixed) || !cur.IsKnown() {
			truthy = types.NewUnion(kindType(kind))
		} else {
			return
		}
	}
	narrowTo(t, name, truthy)
	narrowTo(f, name, cur.Filter(func(m types.DiscreteType) bool { return !matches(m) }))
}

func kindType(k types.Kind) types.DiscreteType {
	switch k {
	case types.KindInt:
		return types.Int
	case types.KindFloat:
		return types.FloatType
	case types.KindString:
		return types.String
	case types.KindBool:
		return types.Bool
	case types.KindNull:
		return types.Null
	case types.KindArray:
		return types.Array
	case types.KindCallable:
		return types.Callable
	}
	return types.Unknown
}
