package analysis

import (
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// writeTo assigns e to an assignment target.
func (s *State) writeTo(target syntax.Node, e Eval) {
	if target == nil {
		return
	}
	switch target.Kind() {
	case "variable_name":
		s.writeVar(syntax.VariableName(target), target, e)
	case "by_ref", "parenthesized_expression":
		s.writeTo(syntax.FirstChild(target), Eval{Type: e.Type})
	case "list_literal", "array_creation_expression":
		s.destructure(target, e)
	case "subscript_expression":
		s.writeSubscript(target, e)
	case "member_access_expression", "nullsafe_member_access_expression":
		s.evalExpr(target.Field("object"))
	case "scoped_property_access_expression":
		if scope := target.Field("scope"); scope != nil && scope.Kind() == "variable_name" {
			s.evalExpr(scope)
		}
	default:
		s.missing("write to "+target.Kind(), target)
	}
}

func (s *State) writeVar(name string, n syntax.Node, e Eval) {
	if name == "" {
		s.missing("dynamic write target", n)
		return
	}
	if name == "this" {
		return
	}
	if _, ok := superglobals[name]; ok {
		return
	}
	v := s.Scope().GetOrCreateVar(name)
	if s.hasDoc {
		if raw, ok := s.doc.Var(name); ok {
			v.CommentType = s.resolveDocType(raw)
		}
	}
	v.SingleWriteTo(e.Type, e.Value, s.inBranch(), n.Range())
}

// destructure handles `[$a, 'k' => $b] = ...` and `list(...) = ...`.
func (s *State) destructure(n syntax.Node, e Eval) {
	elem := elementType(e.Type)
	var next int64
	for _, child := range n.Children() {
		target := child
		var key *types.Value
		keyed := false
		switch child.Kind() {
		case "comment":
			continue
		case "array_element_initializer", "pair":
			parts := nonComments(child)
			switch len(parts) {
			case 1:
				target = parts[0]
			case 2:
				key, keyed = s.evalExpr(parts[0]).Value, true
				target = parts[1]
			default:
				continue
			}
		}
		if !keyed {
			key = types.IntValue(next)
			next++
		}
		var value *types.Value
		if key != nil && e.Value.Kind() == types.ValueArray {
			value = e.Value.Lookup(key)
		}
		s.writeTo(target, Eval{Type: elem, Value: value})
	}
}

// writeSubscript handles `$a[k] = v` and `$a[] = v`, updating the array's
// element type and, where both are known, its value.
func (s *State) writeSubscript(n syntax.Node, e Eval) {
	parts := nonComments(n)
	if len(parts) == 0 {
		return
	}
	base := parts[0]
	var idx Eval
	appending := len(parts) < 2
	if !appending {
		idx = s.evalExpr(parts[1])
	}

	switch base.Kind() {
	case "variable_name":
	case "subscript_expression":
		s.writeSubscript(base, Eval{Type: types.NewUnion(types.Array)})
		return
	default:
		s.evalExpr(base)
		return
	}

	name := syntax.VariableName(base)
	if name == "" || name == "this" {
		return
	}
	if _, ok := superglobals[name]; ok {
		return
	}
	var cur Eval
	if v, ok := s.Scope().GetVar(name); ok && v.Defined() {
		cur = Eval{Type: v.Type(), Value: v.Value()}
	}

	elem := e.Type
	if !cur.Type.IsEmpty() {
		prev := elementType(cur.Type)
		if prev.IsEmpty() && !cur.Type.OnlyKinds(types.KindNull) {
			elem = types.Union{}
		} else {
			elem = types.Merge(prev, e.Type)
		}
	}
	t := types.NewUnion(types.Array)
	if !elem.IsEmpty() {
		t = types.NewUnion(types.Vector(elem))
	}
	if cur.Type.OnlyKinds(types.KindString) && !appending {
		t = cur.Type
	}

	var value *types.Value
	if e.Value != nil && (appending || idx.Value != nil) {
		var key *types.Value
		if !appending {
			key = idx.Value
		}
		switch {
		case cur.Value.Kind() == types.ValueArray:
			value = types.ArrayValue(append(cur.Value.Entries(), types.ArrayEntry{Key: key, Value: e.Value})...)
		case cur.Type.IsEmpty() || cur.Value.Kind() == types.ValueNull:
			value = types.ArrayValue(types.ArrayEntry{Key: key, Value: e.Value})
		}
	}
	s.writeVar(name, base, Eval{Type: t, Value: value})
}
