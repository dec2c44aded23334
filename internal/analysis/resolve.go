package analysis

import (
	"strings"

	"github.com/shinyvision/phpinfer/internal/docblock"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

type useKind uint8

const (
	useClass useKind = iota
	useFunction
	useConst
)

func useKindOf(typeNode syntax.Node, fallback useKind) useKind {
	if typeNode == nil {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(typeNode.Text())) {
	case "function":
		return useFunction
	case "const":
		return useConst
	}
	return fallback
}

func (s *State) useTable(kind useKind) map[string]string {
	switch kind {
	case useFunction:
		return s.funcUses
	case useConst:
		return s.constUses
	}
	return s.uses
}

// collectUses records the imports of a namespace_use_declaration.
func (s *State) collectUses(node syntax.Node) {
	kind := useKindOf(node.Field("type"), useClass)

	prefix := ""
	for i, child := range node.Children() {
		if node.FieldName(i) == "type" {
			continue
		}
		switch child.Kind() {
		case "namespace_name", "namespace_name_as_prefix":
			prefix = symbols.NormalizeFQN(strings.TrimSuffix(strings.TrimSpace(child.Text()), "\\"))
		case "namespace_use_group":
			for _, clause := range child.Children() {
				switch clause.Kind() {
				case "namespace_use_clause", "namespace_use_group_clause":
					s.addUseClause(clause, prefix, kind)
				}
			}
		case "namespace_use_clause":
			s.addUseClause(child, "", kind)
		}
	}
}

func (s *State) addUseClause(clause syntax.Node, prefix string, kind useKind) {
	kind = useKindOf(clause.Field("type"), kind)
	table := s.useTable(kind)

	alias := ""
	if aliasNode := clause.Field("alias"); aliasNode != nil {
		alias = strings.TrimSpace(aliasNode.Text())
	}

	var nameNode syntax.Node
	for i, child := range clause.Children() {
		if clause.FieldName(i) == "alias" {
			continue
		}
		switch child.Kind() {
		case "qualified_name", "relative_name", "name", "namespace_name":
			nameNode = child
		}
		if nameNode != nil {
			break
		}
	}
	if nameNode == nil {
		return
	}

	full := strings.TrimSpace(nameNode.Text())
	if prefix != "" {
		full = prefix + "\\" + strings.TrimLeft(full, "\\")
	}
	full = symbols.NormalizeFQN(full)
	if full == "" {
		return
	}
	if alias == "" {
		alias = symbols.ShortName(full)
	}
	// Class and function aliases are case-insensitive, constant aliases are not.
	if kind == useConst {
		table[alias] = full
		return
	}
	table[strings.ToLower(alias)] = full
}

// resolveClassName resolves a class reference as written in source to its
// fully qualified name. self, static and parent resolve against the class
// being walked.
func (s *State) resolveClassName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	switch strings.ToLower(raw) {
	case "self", "static", "$this":
		return s.class
	case "parent":
		if c, ok := s.currentClass(); ok && len(c.Extends) > 0 {
			return symbols.NormalizeFQN(c.Extends[0])
		}
		return ""
	}
	if strings.HasPrefix(raw, "\\") {
		return symbols.NormalizeFQN(raw)
	}
	if rest, ok := cutPrefixFold(raw, "namespace\\"); ok {
		return s.qualify(rest)
	}

	first, rest, qualified := strings.Cut(raw, "\\")
	if full, ok := s.uses[strings.ToLower(first)]; ok {
		if qualified {
			return full + "\\" + rest
		}
		return full
	}
	return s.qualify(raw)
}

func (s *State) qualify(name string) string {
	name = symbols.NormalizeFQN(name)
	if s.namespace == "" {
		return name
	}
	return s.namespace + "\\" + name
}

// functionCandidates lists the FQNs an unqualified function call may refer
// to: the namespaced name first, then the global fallback.
func (s *State) functionCandidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "\\") {
		return []string{symbols.NormalizeFQN(raw)}
	}
	if rest, ok := cutPrefixFold(raw, "namespace\\"); ok {
		return []string{s.qualify(rest)}
	}
	first, rest, qualified := strings.Cut(raw, "\\")
	if qualified {
		if full, ok := s.uses[strings.ToLower(first)]; ok {
			return []string{full + "\\" + rest}
		}
		return []string{s.qualify(raw)}
	}
	if full, ok := s.funcUses[strings.ToLower(raw)]; ok {
		return []string{full}
	}
	if s.namespace == "" {
		return []string{raw}
	}
	return []string{s.qualify(raw), raw}
}

// constantCandidates mirrors functionCandidates for global constants.
func (s *State) constantCandidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "\\") {
		return []string{symbols.NormalizeFQN(raw)}
	}
	if rest, ok := cutPrefixFold(raw, "namespace\\"); ok {
		return []string{s.qualify(rest)}
	}
	first, rest, qualified := strings.Cut(raw, "\\")
	if qualified {
		if full, ok := s.uses[strings.ToLower(first)]; ok {
			return []string{full + "\\" + rest}
		}
		return []string{s.qualify(raw)}
	}
	if full, ok := s.constUses[raw]; ok {
		return []string{full}
	}
	if s.namespace == "" {
		return []string{raw}
	}
	return []string{s.qualify(raw), raw}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// classType builds a Named type for a class reference.
func (s *State) classType(raw string) (types.DiscreteType, bool) {
	fqn := s.resolveClassName(raw)
	if fqn == "" {
		return types.DiscreteType{}, false
	}
	return types.Named(strings.TrimLeft(strings.TrimSpace(raw), "\\"), fqn), true
}

// resolveTypeNode converts a native type declaration into a union.
func (s *State) resolveTypeNode(n syntax.Node) types.Union {
	var out types.Union
	var collect func(syntax.Node)
	collect = func(n syntax.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "primitive_type", "bottom_type":
			if t, ok := types.PrimitiveFromName(n.Text()); ok {
				out = out.Add(t)
			}
		case "named_type":
			inner := syntax.ChildOfKind(n, "qualified_name", "relative_name", "name")
			raw := n.Text()
			if inner != nil {
				raw = inner.Text()
			}
			if t, ok := types.PrimitiveFromName(raw); ok {
				out = out.Add(t)
				return
			}
			if t, ok := s.classType(raw); ok {
				out = out.Add(t)
			}
		case "qualified_name", "relative_name", "name":
			if t, ok := types.PrimitiveFromName(n.Text()); ok {
				out = out.Add(t)
				return
			}
			if t, ok := s.classType(n.Text()); ok {
				out = out.Add(t)
			}
		case "optional_type", "nullable_type":
			for _, child := range n.Children() {
				collect(child)
			}
			out = out.Add(types.Null)
		default:
			for _, child := range n.Children() {
				collect(child)
			}
		}
	}
	collect(n)
	return out
}

// resolveDocType converts a doc-comment type string into a union. Types
// that do not parse yield the empty union.
func (s *State) resolveDocType(src string) types.Union {
	expr, err := docblock.ParseType(src)
	if err != nil {
		s.log.Debugf("ignoring doc type %q: %v", src, err)
		return types.Union{}
	}
	return s.docExprType(expr)
}

var pseudoTypes = map[string][]types.DiscreteType{
	"positive-int":     {types.Int},
	"negative-int":     {types.Int},
	"non-negative-int": {types.Int},
	"non-positive-int": {types.Int},
	"non-zero-int":     {types.Int},
	"int-mask":         {types.Int},
	"non-empty-string": {types.String},
	"numeric-string":   {types.String},
	"class-string":     {types.String},
	"literal-string":   {types.String},
	"lowercase-string": {types.String},
	"callable-string":  {types.String},
	"array-key":        {types.Int, types.String},
	"scalar":           {types.Int, types.FloatType, types.String, types.Bool},
	"numeric":          {types.Int, types.FloatType, types.String},
	"number":           {types.Int, types.FloatType},
	"non-empty-array":  {types.Array},
	"list":             {types.Array},
	"non-empty-list":   {types.Array},
	"closure":          {types.Named("Closure", "Closure")},
	"empty":            {types.Null},
}

func (s *State) docExprType(e docblock.TypeExpr) types.Union {
	switch e.Kind {
	case docblock.ExprName:
		name := strings.TrimSpace(e.Name)
		lower := strings.ToLower(name)
		if ts, ok := pseudoTypes[lower]; ok {
			return types.NewUnion(ts...)
		}
		if t, ok := types.PrimitiveFromName(name); ok {
			return types.NewUnion(t)
		}
		if lower == "$this" || lower == "static" || lower == "self" {
			if s.class == "" {
				return types.Union{}
			}
			return types.NewUnion(types.Named(s.class, s.class))
		}
		if t, ok := s.classType(name); ok {
			return types.NewUnion(t)
		}
	case docblock.ExprLiteral:
		if strings.HasPrefix(e.Name, "'") || strings.HasPrefix(e.Name, "\"") {
			return types.NewUnion(types.String)
		}
		if strings.ContainsAny(e.Name, ".eE") {
			return types.NewUnion(types.FloatType)
		}
		return types.NewUnion(types.Int)
	case docblock.ExprNullable:
		return s.docExprType(e.Items[0]).Add(types.Null)
	case docblock.ExprArray:
		return types.NewUnion(types.Vector(s.docExprType(e.Items[0])))
	case docblock.ExprUnion, docblock.ExprIntersection:
		var out types.Union
		for _, item := range e.Items {
			out.MergeInto(s.docExprType(item))
		}
		return out
	case docblock.ExprGeneric:
		switch strings.ToLower(e.Name) {
		case "array", "list", "non-empty-array", "non-empty-list", "iterable":
			elem := s.docExprType(e.Items[len(e.Items)-1])
			if strings.EqualFold(e.Name, "iterable") && elem.IsEmpty() {
				return types.NewUnion(types.Iterable)
			}
			return types.NewUnion(types.Vector(elem))
		case "class-string":
			return types.NewUnion(types.String)
		case "int":
			return types.NewUnion(types.Int)
		}
		// Generic user classes resolve to the container; parameters are dropped.
		return s.docExprType(docblock.TypeExpr{Kind: docblock.ExprName, Name: e.Name})
	}
	return types.Union{}
}
