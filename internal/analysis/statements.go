package analysis

import (
	"fmt"
	"strings"

	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// stmtFunc analyzes one statement. Returning false stops the analysis of
// the statements that follow it in the same block.
type stmtFunc func(s *State, n syntax.Node) bool

var stmtHandlers map[string]stmtFunc

func init() {
	stmtHandlers = map[string]stmtFunc{
		"program":                     walkBlock,
		"compound_statement":          walkBlock,
		"colon_block":                 walkBlock,
		"expression_statement":        walkExpressionStatement,
		"echo_statement":              walkEcho,
		"if_statement":                walkIf,
		"while_statement":             walkWhile,
		"do_statement":                walkDo,
		"for_statement":               walkFor,
		"foreach_statement":           walkForeach,
		"switch_statement":            walkSwitch,
		"try_statement":               walkTry,
		"return_statement":            walkReturn,
		"break_statement":             walkBreak,
		"continue_statement":          walkBreak,
		"exit_statement":              walkExit,
		"global_declaration":          walkGlobal,
		"function_static_declaration": walkStatic,
		"unset_statement":             walkUnset,
		"namespace_definition":        walkNamespace,
		"namespace_use_declaration":   walkUse,
		"function_definition":         walkFunctionDefinition,
		"class_declaration":           walkClassLike,
		"interface_declaration":       walkClassLike,
		"trait_declaration":           walkClassLike,
		"enum_declaration":            walkClassLike,
		"const_declaration":           walkConstDeclaration,
		"comment":                     walkComment,
		"ERROR":                       walkError,
		"empty_statement":             skipStatement,
		"text":                        skipStatement,
		"text_interpolation":          skipStatement,
		"php_tag":                     skipStatement,
		"declare_statement":           skipStatement,
		"named_label_statement":       skipStatement,
		"goto_statement":              skipStatement,
	}
}

func (s *State) walkStatement(n syntax.Node) bool {
	if n == nil {
		return true
	}
	if n.Kind() != "comment" {
		s.applyVarDocs()
		defer s.takeDoc()
	}
	h, ok := stmtHandlers[n.Kind()]
	if !ok {
		if _, isExpr := exprHandlers[n.Kind()]; isExpr {
			s.evalExpr(n)
			return true
		}
		s.missing("statement "+n.Kind(), n)
		s.readChildren(n)
		return true
	}
	return h(s, n)
}

// applyVarDocs attaches `@var Type $name` annotations to variables that
// already exist.
func (s *State) applyVarDocs() {
	if !s.hasDoc {
		return
	}
	for _, name := range s.doc.VarNames() {
		v, ok := s.Scope().GetVar(name)
		if !ok {
			continue
		}
		raw, _ := s.doc.Var(name)
		if t := s.resolveDocType(raw); !t.IsEmpty() {
			v.CommentType = t
		}
	}
}

func skipStatement(*State, syntax.Node) bool { return true }

// walkBlock runs the statements of a block in order. A statement that
// cannot be analyzed ends the block, not the enclosing one.
func walkBlock(s *State, n syntax.Node) bool {
	for _, child := range n.Children() {
		if !s.walkStatement(child) {
			break
		}
	}
	return true
}

func walkComment(s *State, n syntax.Node) bool {
	s.setDoc(n)
	return true
}

func walkError(s *State, n syntax.Node) bool {
	evalError(s, n)
	return true
}

func walkExpressionStatement(s *State, n syntax.Node) bool {
	s.evalExpr(syntax.FirstChild(n))
	return true
}

func walkEcho(s *State, n syntax.Node) bool {
	for _, child := range nonComments(n) {
		s.evalExpr(child)
	}
	return true
}

func (s *State) reportImpossible(cond syntax.Node) {
	text := strings.TrimSpace(cond.Text())
	s.emit(IssueAlwaysFalseCondition, cond, text, fmt.Sprintf("condition %s can never be true", abbreviate(text)))
}

func walkIf(s *State, n syntax.Node) bool {
	cond := n.Field("condition")
	if cond == nil {
		s.emit(IssueParseAnomaly, n, "", "if statement without condition")
		return false
	}
	s.evalExpr(cond)
	t, f, impossible := s.harden(cond)
	if impossible {
		s.reportImpossible(cond)
	}
	s.runIn(t, func() { s.walkStatement(n.Field("body")) })

	branches := []*Scope{t}
	rest := f
	for _, alt := range syntax.ChildrenOfField(n, "alternative") {
		if rest == nil {
			break
		}
		switch alt.Kind() {
		case "else_if_clause":
			c := alt.Field("condition")
			if c == nil {
				s.emit(IssueParseAnomaly, alt, "", "elseif without condition")
				return false
			}
			var t2, f2 *Scope
			s.runIn(rest, func() {
				s.evalExpr(c)
				var bad bool
				t2, f2, bad = s.harden(c)
				if bad {
					s.reportImpossible(c)
				}
			})
			// Forks of the false side still share the parent's history prefix.
			t2.parent, f2.parent = s.Scope(), s.Scope()
			s.runIn(t2, func() { s.walkStatement(alt.Field("body")) })
			branches = append(branches, t2)
			rest = f2
		case "else_clause":
			body := alt.Field("body")
			if body == nil {
				body = syntax.FirstChild(alt)
			}
			s.runIn(rest, func() { s.walkStatement(body) })
			branches = append(branches, rest)
			rest = nil
		}
	}
	if rest != nil {
		branches = append(branches, rest)
	}
	s.Scope().Merge(branches...)
	return true
}

// loopBody returns the statement a loop repeats.
func loopBody(n syntax.Node) syntax.Node {
	if body := n.Field("body"); body != nil {
		return body
	}
	children := n.Children()
	for i := len(children) - 1; i >= 0; i-- {
		if n.FieldName(i) == "" && children[i].Kind() != "comment" {
			return children[i]
		}
	}
	return nil
}

// assignedNames lists the variables written anywhere inside the nodes,
// without entering nested functions.
func assignedNames(nodes ...syntax.Node) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(n syntax.Node) {
		name := syntax.VariableName(n)
		if n == nil || name == "" {
			return
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	var target func(n syntax.Node)
	target = func(n syntax.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "variable_name", "by_ref":
			add(n)
		case "subscript_expression":
			target(syntax.FirstChild(n))
		case "list_literal", "array_creation_expression", "array_element_initializer", "pair":
			for _, c := range n.Children() {
				target(c)
			}
		}
	}
	for _, root := range nodes {
		syntax.Walk(root, func(n syntax.Node) bool {
			switch n.Kind() {
			case "anonymous_function", "anonymous_function_creation_expression", "arrow_function",
				"function_definition", "class_declaration":
				return false
			case "assignment_expression", "reference_assignment_expression", "augmented_assignment_expression":
				target(n.Field("left"))
			case "update_expression":
				target(unaryOperand(n))
			case "foreach_statement":
				parts := nonComments(n)
				if len(parts) > 1 {
					target(parts[1])
				}
			}
			return true
		})
	}
	return out
}

// enterLoop forgets the values of variables the loop may overwrite, since
// the body can run after those writes.
func (s *State) enterLoop(nodes ...syntax.Node) {
	for _, name := range assignedNames(nodes...) {
		if v, ok := s.Scope().GetVar(name); ok && v.Defined() {
			v.forgetValue()
		}
	}
}

// leaveLoop turns a break or continue into normal completion of the body.
func leaveLoop(scope *Scope) {
	if scope.exit == exitLoop {
		scope.exit = exitNone
	}
}

func walkWhile(s *State, n syntax.Node) bool {
	cond, body := n.Field("condition"), loopBody(n)
	if cond == nil {
		s.emit(IssueParseAnomaly, n, "", "while without condition")
		return false
	}
	s.enterLoop(cond, body)
	c := s.evalExpr(cond)
	t, f, impossible := s.harden(cond)
	if impossible {
		s.reportImpossible(cond)
	}
	s.runIn(t, func() { s.walkStatement(body) })
	leaveLoop(t)
	if truth, ok := c.Value.AsBool(); ok && truth {
		s.Scope().Merge(t)
		return true
	}
	s.Scope().Merge(t, f)
	return true
}

func walkDo(s *State, n syntax.Node) bool {
	cond, body := n.Field("condition"), n.Field("body")
	if body == nil {
		body = syntax.FirstChild(n)
	}
	s.enterLoop(body, cond)
	loop := s.Scope().Fork(SideNone)
	s.runIn(loop, func() {
		s.walkStatement(body)
		leaveLoop(loop)
		if !loop.Terminated() {
			s.evalExpr(cond)
		}
	})
	s.Scope().Merge(loop)
	return true
}

func walkFor(s *State, n syntax.Node) bool {
	inits := syntax.ChildrenOfField(n, "initialize")
	conds := syntax.ChildrenOfField(n, "condition")
	updates := append(syntax.ChildrenOfField(n, "update"), syntax.ChildrenOfField(n, "increment")...)
	body := loopBody(n)
	for _, i := range inits {
		if i.IsError() {
			evalError(s, i)
			return false
		}
		s.evalExpr(i)
	}
	s.enterLoop(append(append([]syntax.Node{body}, conds...), updates...)...)

	var t, f *Scope
	if len(conds) == 0 {
		t = s.Scope().Fork(SideTrue)
	} else {
		for _, c := range conds {
			s.evalExpr(c)
		}
		var impossible bool
		t, f, impossible = s.harden(conds[len(conds)-1])
		if impossible {
			s.reportImpossible(conds[len(conds)-1])
		}
	}
	s.runIn(t, func() {
		s.walkStatement(body)
		leaveLoop(t)
		if !t.Terminated() {
			for _, u := range updates {
				s.evalExpr(u)
			}
		}
	})
	leaveLoop(t)
	if f == nil {
		s.Scope().Merge(t)
		return true
	}
	s.Scope().Merge(t, f)
	return true
}

// iterationTypes returns the key and value types produced by iterating u.
func iterationTypes(u types.Union) (key, value types.Union) {
	value = elementType(u)
	if !u.IsEmpty() && u.Filter(func(t types.DiscreteType) bool { return !t.IsArrayLike() }).IsEmpty() {
		key = types.NewUnion(types.Int, types.String)
	}
	return key, value
}

func walkForeach(s *State, n syntax.Node) bool {
	parts := nonComments(n)
	if len(parts) < 2 {
		s.emit(IssueParseAnomaly, n, "", "foreach without subject")
		return false
	}
	subjectNode, binding := parts[0], parts[1]
	var keyNode, valueNode syntax.Node
	switch binding.Kind() {
	case "pair", "foreach_pair":
		kv := nonComments(binding)
		if len(kv) != 2 {
			s.emit(IssueParseAnomaly, binding, "", "malformed foreach binding")
			return false
		}
		keyNode, valueNode = kv[0], kv[1]
	default:
		valueNode = binding
	}
	var body syntax.Node
	if b := n.Field("body"); b != nil {
		body = b
	} else if len(parts) > 2 {
		body = parts[len(parts)-1]
	}

	subject := s.evalExpr(subjectNode)
	s.enterLoop(body)
	keyType, valueType := iterationTypes(subject.Type)

	iter := s.Scope().Fork(SideTrue)
	s.runIn(iter, func() {
		if keyNode != nil {
			s.writeTo(keyNode, Eval{Type: keyType})
		}
		s.writeTo(valueNode, Eval{Type: valueType})
		s.walkStatement(body)
	})
	leaveLoop(iter)

	if subject.Value.Kind() == types.ValueArray && len(subject.Value.Entries()) > 0 {
		s.Scope().Merge(iter)
		return true
	}
	s.Scope().Merge(iter, s.Scope().Fork(SideFalse))
	return true
}

func walkSwitch(s *State, n syntax.Node) bool {
	cond, body := n.Field("condition"), n.Field("body")
	if cond == nil || body == nil {
		s.emit(IssueParseAnomaly, n, "", "switch without subject")
		return false
	}
	s.evalExpr(cond)

	var branches []*Scope
	hasDefault := false
	for _, c := range body.Children() {
		switch c.Kind() {
		case "case_statement":
			s.evalExpr(c.Field("value"))
		case "default_statement":
			hasDefault = true
		default:
			continue
		}
		var stmts []syntax.Node
		for i, child := range c.Children() {
			if c.FieldName(i) != "value" {
				stmts = append(stmts, child)
			}
		}
		if len(nonCommentNodes(stmts)) == 0 {
			// Empty cases fall through into the next one.
			continue
		}
		b := s.Scope().Fork(SideTrue)
		s.runIn(b, func() {
			for _, st := range stmts {
				if !s.walkStatement(st) {
					break
				}
			}
		})
		leaveLoop(b)
		branches = append(branches, b)
	}
	if !hasDefault {
		branches = append(branches, s.Scope().Fork(SideFalse))
	}
	s.Scope().Merge(branches...)
	return true
}

func nonCommentNodes(nodes []syntax.Node) []syntax.Node {
	var out []syntax.Node
	for _, n := range nodes {
		if n.Kind() != "comment" {
			out = append(out, n)
		}
	}
	return out
}

func walkTry(s *State, n syntax.Node) bool {
	body := n.Field("body")
	if body == nil {
		s.emit(IssueParseAnomaly, n, "", "try without body")
		return false
	}
	try := s.Scope().Fork(SideNone)
	s.runIn(try, func() { s.walkStatement(body) })
	branches := []*Scope{try}

	var finally syntax.Node
	for _, clause := range n.Children() {
		switch clause.Kind() {
		case "catch_clause":
			// The exception may come from anywhere in the try body, so its
			// writes are possible but not certain inside the handler.
			handler := s.Scope().Fork(SideFalse)
			thrown := try.Fork(SideNone)
			handler.Merge(thrown, handler.Fork(SideFalse))
			s.runIn(handler, func() {
				if name := clause.Field("name"); name != nil {
					s.writeVar(syntax.VariableName(name), name, Eval{Type: s.catchTypes(clause.Field("type"))})
				}
				s.walkStatement(clause.Field("body"))
			})
			branches = append(branches, handler)
		case "finally_clause":
			finally = clause
		}
	}
	s.Scope().Merge(branches...)
	if finally != nil {
		body := finally.Field("body")
		if body == nil {
			body = syntax.FirstChild(finally)
		}
		s.walkStatement(body)
	}
	return true
}

func (s *State) catchTypes(n syntax.Node) types.Union {
	var out types.Union
	syntax.Walk(n, func(c syntax.Node) bool {
		switch c.Kind() {
		case "name", "qualified_name", "relative_name":
			fqn := s.resolveClassName(c.Text())
			s.checkClass(c, fqn)
			if fqn != "" {
				out = out.Add(types.Named(strings.TrimLeft(strings.TrimSpace(c.Text()), "\\"), fqn))
			}
			return false
		}
		return true
	})
	return out
}

func walkReturn(s *State, n syntax.Node) bool {
	expr := syntax.FirstChild(n)
	if s.fn != nil {
		if expr == nil {
			s.fn.bare = true
		} else {
			e := s.evalExpr(expr)
			s.fn.returned = true
			if e.Type.IsEmpty() {
				s.fn.opaque = true
			}
			s.fn.returns.MergeInto(e.Type)
		}
	} else {
		s.evalExpr(expr)
	}
	s.Scope().terminate(exitFunction)
	return true
}

func walkBreak(s *State, n syntax.Node) bool {
	s.Scope().terminate(exitLoop)
	return true
}

func walkExit(s *State, n syntax.Node) bool {
	s.evalExpr(syntax.FirstChild(n))
	s.Scope().terminate(exitFunction)
	return true
}

func walkGlobal(s *State, n syntax.Node) bool {
	for _, child := range nonComments(n) {
		name := syntax.VariableName(child)
		if name == "" {
			s.missing("global "+child.Kind(), child)
			continue
		}
		var t types.Union
		if g, ok := s.globals.GetVar(name); ok && s.globals != s.Scope() {
			t = g.Type()
		}
		v := s.Scope().GetOrCreateVar(name)
		v.IsGlobal = true
		v.SingleWriteTo(t, nil, s.inBranch(), child.Range())
	}
	return true
}

func walkStatic(s *State, n syntax.Node) bool {
	for _, decl := range nonComments(n) {
		nameNode := decl.Field("name")
		if nameNode == nil {
			nameNode = syntax.ChildOfKind(decl, "variable_name")
		}
		name := syntax.VariableName(nameNode)
		if name == "" {
			continue
		}
		var e Eval
		if value := decl.Field("value"); value != nil {
			e = s.evalExpr(value)
		}
		v := s.Scope().GetOrCreateVar(name)
		v.IsGlobal = true
		if s.hasDoc {
			if raw, ok := s.doc.Var(name); ok {
				v.CommentType = s.resolveDocType(raw)
			}
		}
		// The initializer only runs on the first call.
		v.SingleWriteTo(e.Type, nil, s.inBranch(), nameNode.Range())
	}
	return true
}

func walkUnset(s *State, n syntax.Node) bool {
	for _, child := range nonComments(n) {
		switch child.Kind() {
		case "variable_name":
			name := syntax.VariableName(child)
			if v, ok := s.Scope().GetVar(name); ok {
				v.Unset()
				v.Refs = append(v.Refs, child.Range())
			}
		case "subscript_expression":
			parts := nonComments(child)
			if len(parts) > 1 {
				s.evalExpr(parts[1])
			}
			if len(parts) > 0 && parts[0].Kind() == "variable_name" {
				if v, ok := s.Scope().GetVar(syntax.VariableName(parts[0])); ok && v.Defined() {
					v.ReadFrom(parts[0].Range())
					v.forgetValue()
				}
				continue
			}
			if len(parts) > 0 {
				s.evalExpr(parts[0])
			}
		default:
			s.readChildren(child)
		}
	}
	return true
}

func walkNamespace(s *State, n syntax.Node) bool {
	name := ""
	if nameNode := n.Field("name"); nameNode != nil {
		name = nameNode.Text()
	}
	s.setNamespace(name)
	if body := n.Field("body"); body != nil {
		s.walkStatement(body)
		s.setNamespace("")
	}
	return true
}

func walkUse(s *State, n syntax.Node) bool {
	s.collectUses(n)
	return true
}

func walkConstDeclaration(s *State, n syntax.Node) bool {
	for _, el := range nonComments(n) {
		if el.Kind() != "const_element" {
			continue
		}
		parts := nonComments(el)
		if len(parts) > 1 {
			s.runIn(NewScope(), func() { s.evalExpr(parts[len(parts)-1]) })
		}
	}
	return true
}
