package analysis

import (
	"fmt"
	"strings"

	"github.com/shinyvision/phpinfer/internal/docblock"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// analyzeBody binds params in scope and walks body with scope active. An
// expression body, as in arrow functions, is its own return value.
func (s *State) analyzeBody(scope *Scope, params []symbols.ParamData, body syntax.Node, fc *funcContext) {
	prevFn, prevClass := s.fn, s.class
	prevDoc, prevHas := s.doc, s.hasDoc
	s.fn, s.class = fc, fc.class
	s.doc, s.hasDoc = docblock.Block{}, false
	defer func() {
		s.fn, s.class = prevFn, prevClass
		s.doc, s.hasDoc = prevDoc, prevHas
	}()

	for _, p := range params {
		v := scope.GetOrCreateVar(p.Name)
		v.IsArgument = true
		v.NativeType = p.NativeType
		v.CommentType = p.CommentType
		if p.Variadic {
			v.NativeType = vectorOf(p.NativeType)
			if !p.CommentType.IsEmpty() {
				v.CommentType = vectorOf(p.CommentType)
			}
		}
		v.Default = p.Default
		v.SingleWriteTo(types.Union{}, nil, false, syntax.Range{})
	}
	if body == nil {
		return
	}

	s.runIn(scope, func() {
		switch body.Kind() {
		case "compound_statement":
			s.walkStatement(body)
		default:
			e := s.evalExpr(body)
			fc.returned = true
			if e.Type.IsEmpty() {
				fc.opaque = true
			}
			fc.returns.MergeInto(e.Type)
		}
	})
	s.reportUnused(scope)
}

func vectorOf(t types.Union) types.Union {
	if t.IsEmpty() {
		return types.NewUnion(types.Array)
	}
	return types.NewUnion(types.Vector(t))
}

// reportUnused flags function-local variables that are written and never
// read.
func (s *State) reportUnused(scope *Scope) {
	if !s.opts.ReportUnused || scope == s.globals {
		return
	}
	for _, v := range scope.Vars() {
		if v.IsArgument || v.IsGlobal || v.Name == "this" || strings.HasPrefix(v.Name, "_") {
			continue
		}
		if v.WriteCount == 0 || v.ReadCount > 0 {
			continue
		}
		r := v.Writes()[0].Range
		at := syntax.NewNode("variable_name", "$"+v.Name).WithRange(r)
		s.emit(IssueUnusedVariable, at, v.Name, fmt.Sprintf("variable $%s is assigned but never used", v.Name))
	}
}

func walkFunctionDefinition(s *State, n syntax.Node) bool {
	nameNode := n.Field("name")
	if nameNode == nil {
		s.emit(IssueParseAnomaly, n, "", "function without a name")
		return true
	}
	fqn := s.qualify(strings.TrimSpace(nameNode.Text()))
	h, ok := s.store.Function(fqn)
	if !ok {
		s.missing("undeclared function", n)
		return true
	}
	var f symbols.FunctionData
	h.Read(func(data *symbols.FunctionData) { f = *data })

	scope := NewScope()
	s.analyzeBody(scope, f.Params, n.Field("body"), &funcContext{fqn: f.FQN})
	s.functionScopes[f.FQN] = scope
	return true
}

// walkClassLike analyzes the members of a class, interface, trait or enum:
// method bodies, property defaults and constant values.
func walkClassLike(s *State, n syntax.Node) bool {
	nameNode, body := n.Field("name"), classBody(n)
	if nameNode == nil {
		s.emit(IssueParseAnomaly, n, "", n.Kind()+" without a name")
		return true
	}
	fqn := s.qualify(strings.TrimSpace(nameNode.Text()))
	for _, parent := range s.namesInClauses(n) {
		s.checkClass(parent.node, parent.fqn)
	}
	if body == nil {
		return true
	}
	h, ok := s.store.Class(fqn)
	if !ok {
		s.missing("undeclared class", n)
		return true
	}

	prevClass, prevDoc, prevHas := s.class, s.doc, s.hasDoc
	s.class = fqn
	s.doc, s.hasDoc = docblock.Block{}, false
	defer func() { s.class, s.doc, s.hasDoc = prevClass, prevDoc, prevHas }()

	for _, member := range body.Children() {
		switch member.Kind() {
		case "comment":
			s.setDoc(member)
			continue
		case "method_declaration":
			s.walkMethod(h, fqn, member)
		case "property_declaration":
			for _, el := range member.Children() {
				if el.Kind() != "property_element" {
					continue
				}
				if def := propertyDefault(el); def != nil {
					s.runIn(NewScope(), func() { s.evalExpr(def) })
				}
			}
		case "const_declaration":
			s.runIn(NewScope(), func() {
				for _, el := range nonComments(member) {
					if parts := nonComments(el); el.Kind() == "const_element" && len(parts) > 1 {
						s.evalExpr(parts[len(parts)-1])
					}
				}
			})
		case "enum_case":
			if value := member.Field("value"); value != nil {
				s.runIn(NewScope(), func() { s.evalExpr(value) })
			}
		case "use_declaration":
			for _, t := range s.namesInNode(member) {
				s.checkClass(t.node, t.fqn)
			}
		}
		s.takeDoc()
	}
	return true
}

func (s *State) walkMethod(h *symbols.Handle[symbols.ClassData], class string, n syntax.Node) {
	nameNode := n.Field("name")
	if nameNode == nil {
		return
	}
	var m *symbols.FunctionData
	h.Read(func(c *symbols.ClassData) {
		if found, ok := c.Method(nameNode.Text()); ok {
			copied := *found
			m = &copied
		}
	})
	if m == nil || n.Field("body") == nil {
		return
	}
	scope := NewScope()
	s.analyzeBody(scope, m.Params, n.Field("body"), &funcContext{fqn: m.FQN, class: class, static: m.Static})
	s.functionScopes[m.FQN] = scope
}

type classRef struct {
	node syntax.Node
	fqn  string
}

// namesInClauses lists the extends and implements references of a class.
func (s *State) namesInClauses(n syntax.Node) []classRef {
	var out []classRef
	for _, child := range n.Children() {
		switch child.Kind() {
		case "base_clause", "class_interface_clause":
			out = append(out, s.namesInNode(child)...)
		}
	}
	return out
}

func (s *State) namesInNode(n syntax.Node) []classRef {
	var out []classRef
	syntax.Walk(n, func(c syntax.Node) bool {
		switch c.Kind() {
		case "name", "qualified_name", "relative_name":
			if fqn := s.resolveClassName(c.Text()); fqn != "" {
				out = append(out, classRef{node: c, fqn: fqn})
			}
			return false
		}
		return true
	})
	return out
}
