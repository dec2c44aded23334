package analysis

import (
	"fmt"
	"strings"

	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

type exprFunc func(s *State, n syntax.Node) Eval

var exprHandlers map[string]exprFunc

func init() {
	exprHandlers = map[string]exprFunc{
		"integer":                                evalInteger,
		"float":                                  evalFloat,
		"boolean":                                evalBoolean,
		"null":                                   evalNull,
		"string":                                 evalString,
		"encapsed_string":                        evalEncapsed,
		"heredoc":                                evalHeredoc,
		"nowdoc":                                 evalHeredoc,
		"shell_command_expression":               evalHeredoc,
		"name":                                   evalConstant,
		"qualified_name":                         evalConstant,
		"relative_name":                          evalConstant,
		"variable_name":                          evalVariable,
		"dynamic_variable_name":                  evalDynamicVariable,
		"assignment_expression":                  evalAssignment,
		"reference_assignment_expression":        evalAssignment,
		"augmented_assignment_expression":        evalAugmented,
		"binary_expression":                      evalBinary,
		"unary_op_expression":                    evalUnary,
		"update_expression":                      evalUpdate,
		"parenthesized_expression":               evalInner,
		"error_suppression_expression":           evalInner,
		"by_ref":                                 evalInner,
		"conditional_expression":                 evalConditional,
		"cast_expression":                        evalCast,
		"subscript_expression":                   evalSubscript,
		"array_creation_expression":              evalArray,
		"sequence_expression":                    evalSequence,
		"match_expression":                       evalMatch,
		"throw_expression":                       evalThrow,
		"clone_expression":                       evalClone,
		"print_intrinsic":                        evalPrint,
		"include_expression":                     evalInclude,
		"include_once_expression":                evalInclude,
		"require_expression":                     evalInclude,
		"require_once_expression":                evalInclude,
		"yield_expression":                       evalYield,
		"function_call_expression":               evalFunctionCall,
		"member_call_expression":                 evalMemberCall,
		"nullsafe_member_call_expression":        evalMemberCall,
		"scoped_call_expression":                 evalScopedCall,
		"member_access_expression":               evalMemberAccess,
		"nullsafe_member_access_expression":      evalMemberAccess,
		"scoped_property_access_expression":      evalScopedProperty,
		"class_constant_access_expression":       evalClassConstant,
		"object_creation_expression":             evalNew,
		"anonymous_function":                     evalClosure,
		"anonymous_function_creation_expression": evalClosure,
		"arrow_function":                         evalArrowFunction,
		"ERROR":                                  evalError,
	}
}

// evalExpr computes the type and value of an expression, recording reads
// and writes in the active scope.
func (s *State) evalExpr(n syntax.Node) Eval {
	if n == nil {
		return Eval{}
	}
	if n.Kind() == "comment" {
		return Eval{}
	}
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.opts.MaxDepth {
		s.missing("expression depth", n)
		return Eval{}
	}

	h, ok := exprHandlers[n.Kind()]
	if !ok {
		s.missing("expression "+n.Kind(), n)
		s.readChildren(n)
		return Eval{}
	}
	e := consistent(h(s, n))
	s.observe(n, e)
	return e
}

// readChildren evaluates the sub-expressions of an unsupported node so that
// the variables it uses still count as read.
func (s *State) readChildren(n syntax.Node) {
	for _, child := range n.Children() {
		switch child.Kind() {
		case "name", "qualified_name", "relative_name", "comment":
			continue
		}
		if _, ok := exprHandlers[child.Kind()]; ok {
			s.evalExpr(child)
		}
	}
}

func evalInner(s *State, n syntax.Node) Eval {
	return s.evalExpr(syntax.FirstChild(n))
}

// evalError gives up on a region the parser could not make sense of. The
// region itself is reported by reportSyntaxErrors.
func evalError(s *State, n syntax.Node) Eval {
	s.missing("syntax error", n)
	return Eval{}
}

func abbreviate(text string) string {
	if len(text) > 40 {
		return text[:40] + "..."
	}
	return text
}

var superglobals = map[string]struct{}{
	"GLOBALS":  {},
	"_SERVER":  {},
	"_GET":     {},
	"_POST":    {},
	"_FILES":   {},
	"_COOKIE":  {},
	"_SESSION": {},
	"_REQUEST": {},
	"_ENV":     {},
}

func evalVariable(s *State, n syntax.Node) Eval {
	name := syntax.VariableName(n)
	if name == "" {
		s.missing("variable name", n)
		return Eval{}
	}
	if name == "this" {
		return s.thisType(n)
	}
	if _, ok := superglobals[name]; ok {
		return typed(types.Array)
	}
	return s.readVar(name, n)
}

func (s *State) thisType(n syntax.Node) Eval {
	if s.class == "" || (s.fn != nil && s.fn.static) {
		s.emit(IssueUnknownVariable, n, "this", "$this used outside of an object context")
		return Eval{}
	}
	return typed(types.Named(symbols.ShortName(s.class), s.class))
}

func (s *State) readVar(name string, n syntax.Node) Eval {
	scope := s.Scope()
	v, ok := scope.GetVar(name)
	if !ok || !v.Defined() {
		if s.quietUndefined == 0 {
			s.emit(IssueUnknownVariable, n, name, fmt.Sprintf("undefined variable $%s", name))
		}
		if !ok {
			v = scope.GetOrCreateVar(name)
		}
		v.ReadFrom(n.Range())
		return Eval{Type: v.Type()}
	}
	if v.IsPartial && s.quietUndefined == 0 {
		s.emit(IssueVariableNotInitializedInAllBranches, n, name,
			fmt.Sprintf("variable $%s might not be defined on every path", name))
	}
	v.ReadFrom(n.Range())
	return Eval{Type: v.Type(), Value: v.Value()}
}

func evalDynamicVariable(s *State, n syntax.Node) Eval {
	s.missing("variable variable", n)
	s.readChildren(n)
	return Eval{}
}

func evalConstant(s *State, n syntax.Node) Eval {
	text := strings.TrimSpace(n.Text())
	switch strings.ToLower(text) {
	case "true":
		return known(types.BoolValue(true))
	case "false":
		return known(types.BoolValue(false))
	case "null":
		return known(types.NullValue())
	}
	if e, ok := s.magicConstant(n, text); ok {
		return e
	}
	for _, fqn := range s.constantCandidates(text) {
		h, ok := s.store.Constant(fqn)
		if !ok {
			continue
		}
		var e Eval
		h.Read(func(c *symbols.ConstantData) { e = Eval{Type: c.Type, Value: c.Value} })
		return e
	}
	s.emit(IssueUnknownConstant, n, text, fmt.Sprintf("undefined constant %s", text))
	return Eval{}
}

func evalAssignment(s *State, n syntax.Node) Eval {
	left, right := n.Field("left"), n.Field("right")
	if left == nil || right == nil {
		s.emit(IssueParseAnomaly, n, "", "assignment without both sides")
		return Eval{}
	}
	e := s.evalExpr(right)
	if n.Kind() == "reference_assignment_expression" {
		e.Value = nil
	}
	s.writeTo(left, e)
	return e
}

func evalAugmented(s *State, n syntax.Node) Eval {
	left, right := n.Field("left"), n.Field("right")
	if left == nil || right == nil {
		s.emit(IssueParseAnomaly, n, "", "assignment without both sides")
		return Eval{}
	}
	op := binaryOperator(n, left, right)
	var cur Eval
	if op == "??=" {
		s.quietUndefined++
		cur = s.evalExpr(left)
		s.quietUndefined--
	} else {
		cur = s.evalExpr(left)
	}
	r := s.evalExpr(right)

	bin, ok := LookupBinary(op)
	if !ok {
		s.missing("operator "+op, n)
		s.writeTo(left, Eval{})
		return Eval{}
	}
	res := applyBinary(bin, StaticOperands{Left: cur, Right: r})
	s.writeTo(left, res)
	return res
}

// binaryOperator returns the operator token, falling back to the source
// text between the operands when the grammar exposes no operator field.
func binaryOperator(n, left, right syntax.Node) string {
	if op := syntax.OperatorText(n); op != "" {
		return op
	}
	if left == nil || right == nil {
		return ""
	}
	start := n.Range().StartByte
	from, to := left.Range().EndByte-start, right.Range().StartByte-start
	text := n.Text()
	if from > to || int(to) > len(text) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(text[from:to]))
}

func unaryOperator(n syntax.Node) string {
	if op := syntax.OperatorText(n); op != "" {
		return op
	}
	text := strings.TrimSpace(n.Text())
	if text == "" {
		return ""
	}
	return text[:1]
}

func unaryOperand(n syntax.Node) syntax.Node {
	if arg := n.Field("argument"); arg != nil {
		return arg
	}
	if arg := n.Field("operand"); arg != nil {
		return arg
	}
	return syntax.FirstChild(n)
}

func evalBinary(s *State, n syntax.Node) Eval {
	left, right := n.Field("left"), n.Field("right")
	op := binaryOperator(n, left, right)
	switch op {
	case "instanceof":
		return s.evalInstanceof(left, right)
	case "&&", "and", "||", "or":
		return s.evalShortCircuit(op, left, right)
	case "??":
		return s.evalCoalesce(left, right)
	}
	l, r := s.evalExpr(left), s.evalExpr(right)
	bin, ok := LookupBinary(op)
	if !ok {
		s.missing("binary operator "+op, n)
		return Eval{}
	}
	return applyBinary(bin, StaticOperands{Left: l, Right: r})
}

func (s *State) evalInstanceof(left, right syntax.Node) Eval {
	l := s.evalExpr(left)
	symbol := ""
	if right != nil {
		switch right.Kind() {
		case "name", "qualified_name", "relative_name":
			symbol = s.resolveClassName(right.Text())
			s.checkClass(right, symbol)
		default:
			s.evalExpr(right)
		}
	}
	return applyBinary(instanceOf{}, StaticOperands{Left: l, Symbol: symbol})
}

// evalShortCircuit evaluates the right operand only on the path where it
// runs, with the left operand's narrowing applied.
func (s *State) evalShortCircuit(op string, left, right syntax.Node) Eval {
	l := s.evalExpr(left)
	t, f, _ := s.harden(left)
	taken, skipped := t, f
	if op == "||" || op == "or" {
		taken, skipped = f, t
	}
	var r Eval
	s.runIn(taken, func() { r = s.evalExpr(right) })
	s.Scope().Merge(taken, skipped)
	bin, _ := LookupBinary(op)
	return applyBinary(bin, StaticOperands{Left: l, Right: r})
}

func (s *State) evalCoalesce(left, right syntax.Node) Eval {
	s.quietUndefined++
	l := s.evalExpr(left)
	s.quietUndefined--

	fallback := s.Scope().Fork(SideFalse)
	var r Eval
	s.runIn(fallback, func() { r = s.evalExpr(right) })
	s.Scope().Merge(fallback, s.Scope().Fork(SideTrue))
	return applyBinary(coalesce{}, StaticOperands{Left: l, Right: r})
}

func evalUnary(s *State, n syntax.Node) Eval {
	op := unaryOperator(n)
	operand := s.evalExpr(unaryOperand(n))
	if op == "@" {
		return operand
	}
	un, ok := LookupUnary(op)
	if !ok {
		s.missing("unary operator "+op, n)
		return Eval{}
	}
	return applyUnary(un, operand)
}

func evalUpdate(s *State, n syntax.Node) Eval {
	target := unaryOperand(n)
	text := strings.TrimSpace(n.Text())
	increment := strings.Contains(text, "++")
	prefix := strings.HasPrefix(text, "++") || strings.HasPrefix(text, "--")

	before := s.evalExpr(target)
	after := updateResult(before, increment)
	s.writeTo(target, after)
	if prefix {
		return after
	}
	return before
}

func evalConditional(s *State, n syntax.Node) Eval {
	cond, body, alt := n.Field("condition"), n.Field("body"), n.Field("alternative")
	if cond == nil || alt == nil {
		s.emit(IssueParseAnomaly, n, "", "ternary without condition or alternative")
		return Eval{}
	}
	c := s.evalExpr(cond)
	t, f, _ := s.harden(cond)
	var b, a Eval
	if body == nil {
		b = c
	} else {
		s.runIn(t, func() { b = s.evalExpr(body) })
	}
	s.runIn(f, func() { a = s.evalExpr(alt) })
	s.Scope().Merge(t, f)

	out := Eval{}
	if !b.Type.IsEmpty() && !a.Type.IsEmpty() {
		out.Type = types.Merge(b.Type, a.Type)
	}
	if truth, ok := c.Value.AsBool(); ok {
		if truth {
			return b
		}
		return a
	}
	return out
}

var castTypes = map[string]types.DiscreteType{
	"int":     types.Int,
	"integer": types.Int,
	"float":   types.FloatType,
	"double":  types.FloatType,
	"real":    types.FloatType,
	"string":  types.String,
	"binary":  types.String,
	"bool":    types.Bool,
	"boolean": types.Bool,
	"array":   types.Array,
	"object":  types.Named("stdClass", "stdClass"),
	"unset":   types.Null,
}

func evalCast(s *State, n syntax.Node) Eval {
	typeNode, valueNode := n.Field("type"), n.Field("value")
	if valueNode == nil {
		children := n.Children()
		if len(children) > 0 {
			valueNode = children[len(children)-1]
		}
	}
	e := s.evalExpr(valueNode)
	if typeNode == nil {
		s.missing("cast", n)
		return Eval{}
	}
	name := strings.ToLower(strings.Trim(strings.TrimSpace(typeNode.Text()), "() \t"))
	t, ok := castTypes[name]
	if !ok {
		s.missing("cast "+name, n)
		return Eval{}
	}
	return Eval{Type: types.NewUnion(t), Value: castValue(t, e)}
}

func castValue(t types.DiscreteType, e Eval) *types.Value {
	v := e.Value
	if v == nil {
		return nil
	}
	switch t.Kind {
	case types.KindInt:
		if i, ok := v.AsInt(); ok {
			return types.IntValue(i)
		}
	case types.KindFloat:
		if f, ok := v.AsFloat(); ok {
			return types.FloatValue(f)
		}
	case types.KindString:
		if str, ok := v.AsString(); ok {
			return types.StringValue(str)
		}
	case types.KindBool:
		if b, ok := v.AsBool(); ok {
			return types.BoolValue(b)
		}
	case types.KindNull:
		return types.NullValue()
	case types.KindArray:
		switch v.Kind() {
		case types.ValueArray:
			return v
		case types.ValueNull:
			return types.ArrayValue()
		}
		return types.ArrayValue(types.ArrayEntry{Value: v})
	}
	return nil
}

// elementType is the type of one element of a value of type u.
func elementType(u types.Union) types.Union {
	var out types.Union
	for _, m := range u.Types() {
		switch m.Kind {
		case types.KindVector:
			out.MergeInto(*m.Elem)
		case types.KindString:
			out = out.Add(types.String)
		case types.KindNull:
		default:
			return types.Union{}
		}
	}
	return out
}

func evalSubscript(s *State, n syntax.Node) Eval {
	children := nonComments(n)
	if len(children) == 0 {
		return Eval{}
	}
	base := s.evalExpr(children[0])
	var idx Eval
	if len(children) > 1 {
		idx = s.evalExpr(children[1])
	}
	out := Eval{Type: elementType(base.Type)}
	switch base.Value.Kind() {
	case types.ValueArray:
		out.Value = base.Value.Lookup(idx.Value)
	case types.ValueString:
		str, _ := base.Value.AsString()
		if i, ok := idx.Value.AsInt(); ok && idx.Value.Kind() == types.ValueInt {
			if i < 0 {
				i += int64(len(str))
			}
			if i >= 0 && i < int64(len(str)) {
				out.Value = types.StringValue(str[i : i+1])
			}
		}
	}
	return out
}

func nonComments(n syntax.Node) []syntax.Node {
	var out []syntax.Node
	for _, child := range n.Children() {
		if child.Kind() != "comment" {
			out = append(out, child)
		}
	}
	return out
}

func evalArray(s *State, n syntax.Node) Eval {
	var elem types.Union
	var entries []types.ArrayEntry
	valueKnown, elemKnown, count := true, true, 0

	for _, child := range n.Children() {
		if child.Kind() != "array_element_initializer" {
			continue
		}
		count++
		parts := nonComments(child)
		switch len(parts) {
		case 1:
			if parts[0].Kind() == "variadic_unpacking" {
				spread := s.evalExpr(syntax.FirstChild(parts[0]))
				inner := elementType(spread.Type)
				if inner.IsEmpty() {
					elemKnown = false
				}
				elem.MergeInto(inner)
				valueKnown = false
				continue
			}
			v := s.evalExpr(parts[0])
			if v.Type.IsEmpty() {
				elemKnown = false
			}
			elem.MergeInto(v.Type)
			if v.Value == nil {
				valueKnown = false
			}
			entries = append(entries, types.ArrayEntry{Value: v.Value})
		case 2:
			k, v := s.evalExpr(parts[0]), s.evalExpr(parts[1])
			if v.Type.IsEmpty() {
				elemKnown = false
			}
			elem.MergeInto(v.Type)
			if k.Value == nil || v.Value == nil || types.NormalizeKey(k.Value) == nil {
				valueKnown = false
			}
			entries = append(entries, types.ArrayEntry{Key: k.Value, Value: v.Value})
		default:
			s.missing("array element", child)
			valueKnown, elemKnown = false, false
		}
	}

	out := Eval{Type: types.NewUnion(types.Array)}
	if count > 0 && elemKnown {
		out.Type = types.NewUnion(types.Vector(elem))
	}
	if valueKnown {
		out.Value = types.ArrayValue(entries...)
	}
	return out
}

func evalSequence(s *State, n syntax.Node) Eval {
	var last Eval
	for _, child := range nonComments(n) {
		last = s.evalExpr(child)
	}
	return last
}

type matchArm struct {
	conds  []Eval
	result Eval
	deflt  bool
	scope  *Scope
}

func evalMatch(s *State, n syntax.Node) Eval {
	subject := s.evalExpr(n.Field("condition"))
	body := n.Field("body")
	if body == nil {
		s.emit(IssueParseAnomaly, n, "", "match without arms")
		return Eval{}
	}

	var arms []matchArm
	for _, arm := range body.Children() {
		var a matchArm
		switch arm.Kind() {
		case "match_conditional_expression":
			if list := arm.Field("conditional_expressions"); list != nil {
				for _, c := range nonComments(list) {
					a.conds = append(a.conds, s.evalExpr(c))
				}
			}
		case "match_default_expression":
			a.deflt = true
		default:
			continue
		}
		a.scope = s.Scope().Fork(SideTrue)
		s.runIn(a.scope, func() { a.result = s.evalExpr(arm.Field("return_expression")) })
		arms = append(arms, a)
	}

	scopes := make([]*Scope, 0, len(arms))
	var out Eval
	complete := true
	for _, a := range arms {
		scopes = append(scopes, a.scope)
		if a.result.Type.IsEmpty() {
			complete = false
		}
		out.Type.MergeInto(a.result.Type)
	}
	s.Scope().Merge(scopes...)
	if !complete {
		out.Type = types.Union{}
	}

	if subject.Value != nil {
		for _, a := range arms {
			if a.deflt {
				continue
			}
			for _, c := range a.conds {
				if same, ok := subject.Value.IdenticalTo(c.Value); ok && same {
					return a.result
				}
			}
		}
	}
	return out
}

func evalThrow(s *State, n syntax.Node) Eval {
	s.evalExpr(syntax.FirstChild(n))
	s.Scope().terminate(exitFunction)
	return typed(types.Never)
}

func evalClone(s *State, n syntax.Node) Eval {
	e := s.evalExpr(syntax.FirstChild(n))
	return Eval{Type: e.Type}
}

func evalPrint(s *State, n syntax.Node) Eval {
	s.evalExpr(syntax.FirstChild(n))
	return known(types.IntValue(1))
}

func evalInclude(s *State, n syntax.Node) Eval {
	s.evalExpr(syntax.FirstChild(n))
	return typed(types.Mixed)
}

func evalYield(s *State, n syntax.Node) Eval {
	if s.fn != nil {
		s.fn.generator = true
	}
	for _, child := range nonComments(n) {
		if child.Kind() == "array_element_initializer" {
			for _, part := range nonComments(child) {
				s.evalExpr(part)
			}
			continue
		}
		s.evalExpr(child)
	}
	return Eval{}
}

// checkClass reports a class reference that resolves to nothing known.
func (s *State) checkClass(n syntax.Node, fqn string) {
	if fqn == "" || s.store.HasClass(fqn) {
		return
	}
	if _, ok := types.PrimitiveFromName(fqn); ok {
		return
	}
	s.emit(IssueUnknownClass, n, fqn, fmt.Sprintf("unknown class %s", fqn))
}
