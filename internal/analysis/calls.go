package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// callArguments returns the argument expressions of an arguments node, in
// order. Named arguments yield their value expression.
func callArguments(args syntax.Node) []syntax.Node {
	if args == nil {
		return nil
	}
	var out []syntax.Node
	for _, arg := range args.Children() {
		switch arg.Kind() {
		case "comment":
			continue
		case "argument":
			var value syntax.Node
			for i, child := range arg.Children() {
				if arg.FieldName(i) == "name" || child.Kind() == "comment" {
					continue
				}
				value = child
			}
			if value != nil {
				out = append(out, value)
			}
		default:
			out = append(out, arg)
		}
	}
	return out
}

// evalArgs evaluates call arguments. Arguments passed by reference to a
// variable are written instead of read.
func (s *State) evalArgs(args syntax.Node, byRef func(i int) (types.Union, bool)) []Eval {
	nodes := callArguments(args)
	out := make([]Eval, 0, len(nodes))
	for i, arg := range nodes {
		if byRef != nil {
			if t, ok := byRef(i); ok && isWritable(arg) {
				if arg.Kind() == "variable_name" {
					if v, exists := s.Scope().GetVar(syntax.VariableName(arg)); exists && v.Defined() {
						v.ReadFrom(arg.Range())
					}
				}
				s.writeTo(arg, Eval{Type: t})
				out = append(out, Eval{Type: t})
				continue
			}
		}
		if arg.Kind() == "variadic_unpacking" {
			s.evalExpr(syntax.FirstChild(arg))
			out = append(out, Eval{})
			continue
		}
		out = append(out, s.evalExpr(arg))
	}
	return out
}

func isWritable(n syntax.Node) bool {
	switch n.Kind() {
	case "variable_name", "subscript_expression", "member_access_expression":
		return true
	}
	return false
}

// Builtins that write through reference parameters, by zero-based position.
var builtinRefParams = map[string]map[int]types.Union{
	"preg_match":     {2: types.NewUnion(types.Vector(types.NewUnion(types.String)))},
	"preg_match_all": {2: types.NewUnion(types.Array)},
	"parse_str":      {1: types.NewUnion(types.Array)},
	"exec":           {1: types.NewUnion(types.Vector(types.NewUnion(types.String))), 2: types.NewUnion(types.Int)},
	"str_replace":    {3: types.NewUnion(types.Int)},
	"str_ireplace":   {3: types.NewUnion(types.Int)},
	"preg_replace":   {4: types.NewUnion(types.Int)},
	"similar_text":   {2: types.NewUnion(types.FloatType)},
	"settype":        {0: types.Union{}},
	"sort":           {0: types.Union{}},
	"rsort":          {0: types.Union{}},
	"usort":          {0: types.Union{}},
	"uasort":         {0: types.Union{}},
	"uksort":         {0: types.Union{}},
	"ksort":          {0: types.Union{}},
	"krsort":         {0: types.Union{}},
	"asort":          {0: types.Union{}},
	"arsort":         {0: types.Union{}},
	"shuffle":        {0: types.Union{}},
	"array_push":     {0: types.Union{}},
	"array_unshift":  {0: types.Union{}},
	"array_pop":      {0: types.Union{}},
	"array_shift":    {0: types.Union{}},
	"array_splice":   {0: types.Union{}},
}

// refParams reports, per argument position, whether a call writes through
// the argument and which type it writes.
func (s *State) refParams(name string, params []symbols.ParamData) func(int) (types.Union, bool) {
	if refs, ok := builtinRefParams[strings.ToLower(name)]; ok {
		return func(i int) (types.Union, bool) {
			t, ok := refs[i]
			return t, ok
		}
	}
	if len(params) == 0 {
		return nil
	}
	return func(i int) (types.Union, bool) {
		if i >= len(params) {
			last := params[len(params)-1]
			if last.Variadic && last.ByRef {
				return last.Type(), true
			}
			return types.Union{}, false
		}
		return params[i].Type(), params[i].ByRef
	}
}

func evalFunctionCall(s *State, n syntax.Node) Eval {
	fn, args := n.Field("function"), n.Field("arguments")
	if fn == nil {
		s.emit(IssueParseAnomaly, n, "", "call without callee")
		return Eval{}
	}
	switch fn.Kind() {
	case "name", "qualified_name", "relative_name":
	default:
		s.evalExpr(fn)
		s.evalArgs(args, nil)
		return Eval{}
	}

	name := strings.TrimSpace(fn.Text())
	switch strings.ToLower(strings.TrimLeft(name, "\\")) {
	case "isset", "empty":
		s.quietUndefined++
		s.evalArgs(args, nil)
		s.quietUndefined--
		return typed(types.Bool)
	case "compact":
		return s.evalCompact(args)
	case "extract":
		s.missing("extract", n)
		s.evalArgs(args, nil)
		return typed(types.Int)
	case "exit", "die":
		s.evalArgs(args, nil)
		s.Scope().terminate(exitFunction)
		return typed(types.Never)
	}

	data, ok := s.lookupFunction(name)
	var params []symbols.ParamData
	if ok {
		params = data.Params
	}
	argEvals := s.evalArgs(args, s.refParams(symbols.ShortName(name), params))
	if !ok {
		s.emit(IssueUnknownFunction, fn, name, fmt.Sprintf("unknown function %s", name))
		return Eval{}
	}
	ret := data.ReturnType()
	if v := foldBuiltin(strings.ToLower(data.FQN), argEvals); v != nil && data.File == "" {
		return Eval{Type: ret, Value: v}
	}
	return Eval{Type: ret}
}

func (s *State) lookupFunction(raw string) (*symbols.FunctionData, bool) {
	for _, fqn := range s.functionCandidates(raw) {
		h, ok := s.store.Function(fqn)
		if !ok {
			continue
		}
		var copied symbols.FunctionData
		h.Read(func(f *symbols.FunctionData) { copied = *f })
		return &copied, true
	}
	return nil, false
}

// evalCompact marks the named variables as read.
func (s *State) evalCompact(args syntax.Node) Eval {
	for _, arg := range callArguments(args) {
		e := s.evalExpr(arg)
		name, ok := e.Value.AsString()
		if !ok || e.Value.Kind() != types.ValueString {
			continue
		}
		if v, exists := s.Scope().GetVar(name); exists {
			v.ReadFrom(arg.Range())
		}
	}
	return typed(types.Array)
}

// foldBuiltin computes the result of pure builtins on known arguments.
func foldBuiltin(name string, args []Eval) *types.Value {
	arg := func(i int) *types.Value {
		if i >= len(args) {
			return nil
		}
		return args[i].Value
	}
	str := func(i int) (string, bool) {
		v := arg(i)
		if v.Kind() == types.ValueArray {
			return "", false
		}
		return v.AsString()
	}

	switch name {
	case "strlen":
		if s, ok := str(0); ok && len(args) == 1 {
			return types.IntValue(int64(len(s)))
		}
	case "strtolower":
		if s, ok := str(0); ok {
			return types.StringValue(strings.ToLower(s))
		}
	case "strtoupper":
		if s, ok := str(0); ok {
			return types.StringValue(strings.ToUpper(s))
		}
	case "trim":
		if s, ok := str(0); ok && len(args) == 1 {
			return types.StringValue(strings.Trim(s, " \t\n\r\x00\x0B"))
		}
	case "str_repeat":
		s, ok := str(0)
		times, ok2 := arg(1).AsInt()
		if ok && ok2 && times >= 0 && times <= 1<<16 && int64(len(s))*times <= 1<<16 {
			return types.StringValue(strings.Repeat(s, int(times)))
		}
	case "intval":
		if i, ok := arg(0).AsInt(); ok && len(args) == 1 {
			return types.IntValue(i)
		}
	case "floatval":
		if f, ok := arg(0).AsFloat(); ok {
			return types.FloatValue(f)
		}
	case "strval":
		if s, ok := str(0); ok {
			return types.StringValue(s)
		}
	case "boolval":
		if b, ok := arg(0).AsBool(); ok {
			return types.BoolValue(b)
		}
	case "abs":
		switch v := arg(0).AsNum(); v.Kind() {
		case types.ValueInt:
			i, _ := v.AsInt()
			if i == math.MinInt64 {
				return types.FloatValue(-float64(i))
			}
			if i < 0 {
				return types.IntValue(-i)
			}
			return v
		case types.ValueFloat:
			f, _ := v.AsFloat()
			return types.FloatValue(math.Abs(f))
		}
	case "count", "sizeof":
		if v := arg(0); v.Kind() == types.ValueArray && len(args) == 1 {
			return types.IntValue(int64(len(v.Entries())))
		}
	}
	return nil
}

func evalMemberCall(s *State, n syntax.Node) Eval {
	obj := s.evalExpr(n.Field("object"))
	nameNode := n.Field("name")
	if nameNode == nil || nameNode.Kind() != "name" {
		s.evalExpr(nameNode)
		s.evalArgs(n.Field("arguments"), nil)
		return Eval{}
	}
	method := strings.TrimSpace(nameNode.Text())
	m, ok := s.methodOn(obj.Type, method)
	var params []symbols.ParamData
	if ok {
		params = m.Params
	}
	s.evalArgs(n.Field("arguments"), s.refParams("", params))
	if !ok {
		return Eval{}
	}
	ret := s.boundReturn(m, obj.Type)
	if n.Kind() == "nullsafe_member_call_expression" && obj.Type.IsNullable() && !ret.IsEmpty() {
		ret = ret.Add(types.Null)
	}
	return Eval{Type: ret}
}

// methodOn resolves a method for every object member of recv. It succeeds
// only when every non-null member is a known class declaring the method; the
// result is the method found on the first member.
func (s *State) methodOn(recv types.Union, method string) (*symbols.FunctionData, bool) {
	var found *symbols.FunctionData
	for _, t := range recv.Types() {
		switch t.Kind {
		case types.KindNull:
			continue
		case types.KindNamed:
			m, ok := s.store.LookupMethod(t.FQN, method)
			if !ok {
				return nil, false
			}
			if found == nil {
				found = m
			}
		default:
			return nil, false
		}
	}
	return found, found != nil
}

// boundReturn resolves a method's return type against the receiver: a
// method returning its own class returns the receiver's type instead, which
// covers `static` and fluent setters declared on a parent.
func (s *State) boundReturn(m *symbols.FunctionData, recv types.Union) types.Union {
	ret := m.ReturnType()
	if m.Class == "" || ret.IsEmpty() {
		return ret
	}
	self := types.Named(m.Class, m.Class)
	if !ret.Contains(self) {
		return ret
	}
	var out types.Union
	for _, t := range ret.Types() {
		if t.Key() != self.Key() {
			out = out.Add(t)
			continue
		}
		for _, r := range recv.Types() {
			if r.Kind == types.KindNamed {
				out = out.Add(r)
			}
		}
	}
	return out
}

// scopeClass resolves the class named by the scope of a `::` expression.
// Variables and expressions evaluate to the class of their value.
func (s *State) scopeClass(scope syntax.Node) (types.Union, bool) {
	if scope == nil {
		return types.Union{}, false
	}
	switch scope.Kind() {
	case "name", "qualified_name", "relative_name", "relative_scope":
		raw := strings.TrimSpace(scope.Text())
		fqn := s.resolveClassName(raw)
		if fqn == "" {
			return types.Union{}, false
		}
		s.checkClass(scope, fqn)
		return types.NewUnion(types.Named(strings.TrimLeft(raw, "\\"), fqn)), true
	}
	e := s.evalExpr(scope)
	return e.Type, false
}

func evalScopedCall(s *State, n syntax.Node) Eval {
	recv, _ := s.scopeClass(n.Field("scope"))
	nameNode := n.Field("name")
	if nameNode == nil || nameNode.Kind() != "name" {
		s.evalExpr(nameNode)
		s.evalArgs(n.Field("arguments"), nil)
		return Eval{}
	}
	m, ok := s.methodOn(recv, nameNode.Text())
	var params []symbols.ParamData
	if ok {
		params = m.Params
	}
	s.evalArgs(n.Field("arguments"), s.refParams("", params))
	if !ok {
		return Eval{}
	}
	return Eval{Type: s.boundReturn(m, recv)}
}

func evalMemberAccess(s *State, n syntax.Node) Eval {
	obj := s.evalExpr(n.Field("object"))
	nameNode := n.Field("name")
	if nameNode == nil || nameNode.Kind() != "name" {
		s.evalExpr(nameNode)
		return Eval{}
	}
	t := s.propertyType(obj.Type, strings.TrimSpace(nameNode.Text()))
	if n.Kind() == "nullsafe_member_access_expression" && obj.Type.IsNullable() && !t.IsEmpty() {
		t = t.Add(types.Null)
	}
	return Eval{Type: t}
}

func (s *State) propertyType(recv types.Union, name string) types.Union {
	var out types.Union
	for _, t := range recv.Types() {
		switch t.Kind {
		case types.KindNull:
			continue
		case types.KindNamed:
			p, ok := s.store.LookupProperty(t.FQN, name)
			if !ok {
				return types.Union{}
			}
			pt := p.Type()
			if pt.IsEmpty() {
				return types.Union{}
			}
			out.MergeInto(pt)
		default:
			return types.Union{}
		}
	}
	return out
}

func evalScopedProperty(s *State, n syntax.Node) Eval {
	recv, _ := s.scopeClass(n.Field("scope"))
	nameNode := n.Field("name")
	if nameNode == nil {
		return Eval{}
	}
	name := strings.TrimPrefix(strings.TrimSpace(nameNode.Text()), "$")
	return Eval{Type: s.propertyType(recv, name)}
}

func evalClassConstant(s *State, n syntax.Node) Eval {
	parts := nonComments(n)
	if len(parts) < 2 {
		s.emit(IssueParseAnomaly, n, "", "class constant access without name")
		return Eval{}
	}
	scope, nameNode := parts[0], parts[len(parts)-1]
	name := strings.TrimSpace(nameNode.Text())
	recv, static := s.scopeClass(scope)

	if strings.EqualFold(name, "class") {
		if t, ok := recv.SingleType(); ok && static && t.Kind == types.KindNamed {
			return known(types.StringValue(t.FQN))
		}
		return typed(types.String)
	}

	var out Eval
	for i, t := range recv.Types() {
		if t.Kind != types.KindNamed {
			return Eval{}
		}
		c, ok := s.store.LookupClassConstant(t.FQN, name)
		if !ok {
			if static && s.store.HasClass(t.FQN) {
				s.emit(IssueUnknownConstant, nameNode, t.FQN+"::"+name,
					fmt.Sprintf("undefined class constant %s::%s", t.FQN, name))
			}
			return Eval{}
		}
		if i == 0 {
			out = Eval{Type: c.Type, Value: c.Value}
		} else {
			out = Eval{Type: types.Merge(out.Type, c.Type)}
		}
	}
	return out
}

func evalNew(s *State, n syntax.Node) Eval {
	var out Eval
	for _, child := range nonComments(n) {
		switch child.Kind() {
		case "name", "qualified_name", "relative_name", "relative_scope":
			raw := strings.TrimSpace(child.Text())
			fqn := s.resolveClassName(raw)
			if fqn == "" {
				out = typed(types.Object)
				continue
			}
			s.checkClass(child, fqn)
			out = typed(types.Named(strings.TrimLeft(raw, "\\"), fqn))
		case "arguments":
			s.evalArgs(child, nil)
		case "anonymous_class", "declaration_list":
			out = typed(types.Object)
		case "attribute_list":
		default:
			s.evalExpr(child)
			out = typed(types.Object)
		}
	}
	return out
}

// evalClosure analyzes a closure body in its own scope. Captured variables
// are read from the enclosing scope at creation time.
func evalClosure(s *State, n syntax.Node) Eval {
	scope := NewScope()
	outer := s.Scope()
	if uses := syntax.ChildOfKind(n, "anonymous_function_use_clause"); uses != nil {
		for _, u := range nonComments(uses) {
			name := syntax.VariableName(u)
			if name == "" {
				continue
			}
			inner := scope.GetOrCreateVar(name)
			if u.Kind() == "by_ref" {
				ov := outer.GetOrCreateVar(name)
				if !ov.Defined() {
					ov.SingleWriteTo(types.Union{}, nil, s.inBranch(), u.Range())
				}
				ov.ReadFrom(u.Range())
				inner.SingleWriteTo(ov.Type(), nil, false, u.Range())
				continue
			}
			e := s.readVar(name, u)
			inner.SingleWriteTo(e.Type, e.Value, false, u.Range())
		}
	}

	fc := &funcContext{class: s.class, static: isStaticClosure(n)}
	params := s.paramsFromNode(n.Field("parameters"), s.doc)
	s.analyzeBody(scope, params, n.Field("body"), fc)
	return typed(types.Named("Closure", "Closure"))
}

func isStaticClosure(n syntax.Node) bool {
	for _, child := range n.Children() {
		if child.Kind() == "static_modifier" {
			return true
		}
	}
	return strings.HasPrefix(strings.TrimSpace(n.Text()), "static")
}

// evalArrowFunction analyzes `fn() => expr`, which captures the enclosing
// scope by value.
func evalArrowFunction(s *State, n syntax.Node) Eval {
	outer := s.Scope()
	scope := NewScope()
	for _, v := range outer.Vars() {
		if !v.Defined() {
			continue
		}
		c := scope.GetOrCreateVar(v.Name)
		c.SingleWriteTo(v.Type(), v.Value(), false, v.lastRange())
		c.ReadCount = 1
	}
	fc := &funcContext{class: s.class, static: isStaticClosure(n)}
	params := s.paramsFromNode(n.Field("parameters"), s.doc)
	s.analyzeBody(scope, params, n.Field("body"), fc)

	for _, v := range scope.Vars() {
		if ov, ok := outer.GetVar(v.Name); ok && v.ReadCount > 1 {
			ov.ReadFrom(v.lastRange())
		}
	}
	return typed(types.Named("Closure", "Closure"))
}
