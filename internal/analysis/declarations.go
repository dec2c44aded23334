package analysis

import (
	"strings"

	"github.com/shinyvision/phpinfer/internal/docblock"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

var classKinds = map[string]symbols.ClassKind{
	"class_declaration":     symbols.KindClass,
	"interface_declaration": symbols.KindInterface,
	"trait_declaration":     symbols.KindTrait,
	"enum_declaration":      symbols.KindEnum,
}

// eachDeclaration visits the declarations of the unit in source order,
// keeping the namespace, imports and pending doc comment current. It
// descends into conditional blocks, where functions are often declared.
func (s *State) eachDeclaration(visit func(n syntax.Node)) {
	s.setNamespace("")
	var walk func(n syntax.Node)
	walk = func(n syntax.Node) {
		for _, child := range n.Children() {
			switch child.Kind() {
			case "comment":
				s.setDoc(child)
				continue
			case "namespace_definition":
				name := ""
				if nameNode := child.Field("name"); nameNode != nil {
					name = nameNode.Text()
				}
				s.setNamespace(name)
				if body := child.Field("body"); body != nil {
					walk(body)
					s.setNamespace("")
				}
			case "namespace_use_declaration":
				s.collectUses(child)
			case "function_definition", "const_declaration", "expression_statement",
				"class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
				visit(child)
			case "compound_statement", "colon_block", "if_statement", "else_clause", "else_if_clause":
				walk(child)
			}
			s.takeDoc()
		}
	}
	walk(s.root)
	s.setNamespace("")
}

// collectDeclarations is the first pass: it registers the skeleton of every
// class, function and constant declared by the unit.
func (s *State) collectDeclarations() {
	s.pass = PassDeclarations
	s.eachDeclaration(func(n syntax.Node) {
		switch n.Kind() {
		case "function_definition":
			s.declareFunction(n)
		case "const_declaration":
			s.declareConstants(n, nil)
		case "expression_statement":
			s.declareDefine(n)
		default:
			s.declareClass(n)
		}
	})
}

func (s *State) declareFunction(n syntax.Node) {
	nameNode := n.Field("name")
	if nameNode == nil {
		return
	}
	name := strings.TrimSpace(nameNode.Text())
	s.store.AddFunction(&symbols.FunctionData{
		Name:  name,
		FQN:   s.qualify(name),
		File:  s.opts.File,
		Range: n.Range(),
	})
}

// declareConstants registers `const` elements, globally or on class when it
// is non-nil. Values are computed in the second pass.
func (s *State) declareConstants(n syntax.Node, class *symbols.ClassData) {
	for _, el := range nonComments(n) {
		if el.Kind() != "const_element" {
			continue
		}
		nameNode := syntax.ChildOfKind(el, "name")
		if nameNode == nil {
			continue
		}
		name := strings.TrimSpace(nameNode.Text())
		c := &symbols.ConstantData{Name: name, File: s.opts.File, Range: el.Range()}
		if class != nil {
			c.FQN = class.FQN + "::" + name
			class.Constants[name] = c
			continue
		}
		c.FQN = s.qualify(name)
		s.store.AddConstant(c)
	}
}

// defineCall recognizes `define('NAME', value)` and returns the constant name
// and the value expression.
func defineCall(n syntax.Node) (string, syntax.Node, bool) {
	call := syntax.FirstChild(n)
	if call == nil || call.Kind() != "function_call_expression" {
		return "", nil, false
	}
	fn := call.Field("function")
	if fn == nil || !strings.EqualFold(strings.TrimLeft(strings.TrimSpace(fn.Text()), "\\"), "define") {
		return "", nil, false
	}
	args := callArguments(call.Field("arguments"))
	if len(args) < 2 {
		return "", nil, false
	}
	switch args[0].Kind() {
	case "string", "encapsed_string":
	default:
		return "", nil, false
	}
	raw := strings.TrimSpace(args[0].Text())
	if len(raw) < 2 {
		return "", nil, false
	}
	name := symbols.NormalizeFQN(unquoteSingle(raw[1 : len(raw)-1]))
	if name == "" {
		return "", nil, false
	}
	return name, args[1], true
}

func (s *State) declareDefine(n syntax.Node) {
	name, _, ok := defineCall(n)
	if !ok {
		return
	}
	s.store.AddConstant(&symbols.ConstantData{Name: symbols.ShortName(name), FQN: name, File: s.opts.File, Range: n.Range()})
}

func classBody(n syntax.Node) syntax.Node {
	if body := n.Field("body"); body != nil {
		return body
	}
	return syntax.ChildOfKind(n, "declaration_list", "enum_declaration_list")
}

func hasModifier(n syntax.Node, kinds ...string) bool {
	for _, child := range n.Children() {
		for _, k := range kinds {
			if child.Kind() == k {
				return true
			}
		}
	}
	return false
}

func visibilityOf(n syntax.Node) string {
	if v := syntax.ChildOfKind(n, "visibility_modifier"); v != nil {
		return strings.ToLower(strings.TrimSpace(v.Text()))
	}
	return "public"
}

// namesIn resolves every class name listed below n.
func (s *State) namesIn(n syntax.Node) []string {
	refs := s.namesInNode(n)
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.fqn)
	}
	return out
}

func (s *State) declareClass(n syntax.Node) {
	kind, ok := classKinds[n.Kind()]
	nameNode := n.Field("name")
	if !ok || nameNode == nil {
		return
	}
	name := strings.TrimSpace(nameNode.Text())
	c := symbols.NewClassData(name, s.qualify(name), kind)
	c.Namespace = s.namespace
	c.File = s.opts.File
	c.Range = n.Range()
	c.Abstract = hasModifier(n, "abstract_modifier")
	c.Final = hasModifier(n, "final_modifier")

	for _, child := range n.Children() {
		switch child.Kind() {
		case "base_clause":
			if kind == symbols.KindInterface {
				c.Implements = append(c.Implements, s.namesIn(child)...)
			} else {
				c.Extends = append(c.Extends, s.namesIn(child)...)
			}
		case "class_interface_clause":
			c.Implements = append(c.Implements, s.namesIn(child)...)
		}
	}
	if kind == symbols.KindEnum {
		c.Implements = append(c.Implements, "UnitEnum")
		if n.Field("type") != nil || syntax.ChildOfKind(n, "primitive_type") != nil {
			c.Implements = append(c.Implements, "BackedEnum")
		}
	}

	prev := s.class
	s.class = c.FQN
	defer func() { s.class = prev }()

	if body := classBody(n); body != nil {
		for _, member := range body.Children() {
			switch member.Kind() {
			case "method_declaration":
				if m := s.declareMethod(member, c); m != nil {
					c.Methods[strings.ToLower(m.Name)] = m
				}
			case "property_declaration":
				for _, p := range s.declareProperties(member) {
					c.Properties[p.Name] = p
				}
			case "const_declaration":
				s.declareConstants(member, c)
			case "use_declaration":
				c.Traits = append(c.Traits, s.namesIn(member)...)
			case "enum_case":
				if caseName := member.Field("name"); caseName != nil {
					cn := strings.TrimSpace(caseName.Text())
					c.Constants[cn] = &symbols.ConstantData{
						Name:  cn,
						FQN:   c.FQN + "::" + cn,
						Type:  types.NewUnion(types.Named(c.Name, c.FQN)),
						File:  s.opts.File,
						Range: member.Range(),
					}
				}
			}
		}
	}
	s.store.AddClass(c)
}

func (s *State) declareMethod(n syntax.Node, c *symbols.ClassData) *symbols.FunctionData {
	nameNode := n.Field("name")
	if nameNode == nil {
		return nil
	}
	name := strings.TrimSpace(nameNode.Text())
	m := &symbols.FunctionData{
		Name:       name,
		FQN:        c.FQN + "::" + name,
		Class:      c.FQN,
		Visibility: visibilityOf(n),
		Static:     hasModifier(n, "static_modifier"),
		Abstract:   hasModifier(n, "abstract_modifier") || c.Kind == symbols.KindInterface,
		File:       s.opts.File,
		Range:      n.Range(),
	}
	if strings.EqualFold(name, "__construct") {
		for _, p := range promotedParams(n.Field("parameters")) {
			name := syntax.VariableName(p.Field("name"))
			if name == "" {
				continue
			}
			c.Properties[name] = &symbols.PropertyData{
				Name:       name,
				Visibility: visibilityOf(p),
				Readonly:   hasModifier(p, "readonly_modifier"),
				Range:      p.Range(),
			}
		}
	}
	return m
}

func promotedParams(params syntax.Node) []syntax.Node {
	if params == nil {
		return nil
	}
	var out []syntax.Node
	for _, p := range params.Children() {
		if p.Kind() == "property_promotion_parameter" {
			out = append(out, p)
		}
	}
	return out
}

func (s *State) declareProperties(n syntax.Node) []*symbols.PropertyData {
	var out []*symbols.PropertyData
	for _, el := range n.Children() {
		if el.Kind() != "property_element" {
			continue
		}
		name := syntax.VariableName(syntax.ChildOfKind(el, "variable_name"))
		if name == "" {
			continue
		}
		out = append(out, &symbols.PropertyData{
			Name:       name,
			Visibility: visibilityOf(n),
			Static:     hasModifier(n, "static_modifier"),
			Readonly:   hasModifier(n, "readonly_modifier"),
			Range:      el.Range(),
		})
	}
	return out
}

// resolveSignatures is the second pass: it resolves parameter, return,
// property and constant types now that every unit has declared its symbols.
func (s *State) resolveSignatures() {
	s.pass = PassSignatures
	s.eachDeclaration(func(n syntax.Node) {
		doc := s.doc
		switch n.Kind() {
		case "function_definition":
			s.resolveFunction(n, doc)
		case "const_declaration":
			s.resolveConstants(n, "")
		case "expression_statement":
			s.resolveDefine(n)
		default:
			s.resolveClass(n)
		}
	})
}

func (s *State) resolveFunction(n syntax.Node, doc docblock.Block) {
	nameNode := n.Field("name")
	if nameNode == nil {
		return
	}
	h, ok := s.store.Function(s.qualify(strings.TrimSpace(nameNode.Text())))
	if !ok {
		return
	}
	params := s.paramsFromNode(n.Field("parameters"), doc)
	native, comment := s.returnTypes(n, doc)
	h.Write(func(f *symbols.FunctionData) {
		f.Params = params
		f.NativeReturn = native
		f.CommentReturn = comment
	})
}

func (s *State) returnTypes(n syntax.Node, doc docblock.Block) (native, comment types.Union) {
	if rt := n.Field("return_type"); rt != nil {
		native = s.resolveTypeNode(rt)
	}
	if raw, ok := doc.Return(); ok {
		comment = s.resolveDocType(raw)
	}
	return native, comment
}

// paramsFromNode reads a formal_parameters node, taking doc types from the
// @param tags of doc.
func (s *State) paramsFromNode(n syntax.Node, doc docblock.Block) []symbols.ParamData {
	if n == nil {
		return nil
	}
	var out []symbols.ParamData
	for _, p := range n.Children() {
		switch p.Kind() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		nameNode := p.Field("name")
		if nameNode == nil {
			nameNode = syntax.ChildOfKind(p, "variable_name")
		}
		name := syntax.VariableName(nameNode)
		if name == "" {
			continue
		}
		param := symbols.ParamData{
			Name:     name,
			Variadic: p.Kind() == "variadic_parameter",
			Promoted: p.Kind() == "property_promotion_parameter",
			ByRef:    p.Field("reference_modifier") != nil || syntax.ChildOfKind(p, "reference_modifier") != nil,
		}
		if t := p.Field("type"); t != nil {
			param.NativeType = s.resolveTypeNode(t)
		}
		if raw, ok := doc.Param(name); ok {
			param.CommentType = s.resolveDocType(raw)
		}
		if def := p.Field("default_value"); def != nil {
			param.HasDefault = true
			var e Eval
			s.quietly(func() { s.runIn(NewScope(), func() { e = s.evalExpr(def) }) })
			param.Default = e.Value
			if e.Value.Kind() == types.ValueNull && !param.NativeType.IsEmpty() {
				param.NativeType = param.NativeType.Add(types.Null)
			}
		}
		out = append(out, param)
	}
	return out
}

func (s *State) resolveConstants(n syntax.Node, class string) {
	for _, el := range nonComments(n) {
		if el.Kind() != "const_element" {
			continue
		}
		parts := nonComments(el)
		nameNode := syntax.ChildOfKind(el, "name")
		if nameNode == nil || len(parts) < 2 {
			continue
		}
		name := strings.TrimSpace(nameNode.Text())
		var e Eval
		s.quietly(func() { s.runIn(NewScope(), func() { e = consistent(s.evalExpr(parts[len(parts)-1])) }) })
		if class != "" {
			h, ok := s.store.Class(class)
			if !ok {
				continue
			}
			h.Write(func(c *symbols.ClassData) {
				if k, ok := c.Constants[name]; ok {
					k.Value, k.Type = e.Value, e.Type
				}
			})
			continue
		}
		if h, ok := s.store.Constant(s.qualify(name)); ok {
			h.Write(func(c *symbols.ConstantData) { c.Value, c.Type = e.Value, e.Type })
		}
	}
}

func (s *State) resolveDefine(n syntax.Node) {
	name, valueNode, ok := defineCall(n)
	if !ok {
		return
	}
	h, ok := s.store.Constant(name)
	if !ok {
		return
	}
	var e Eval
	s.quietly(func() { s.runIn(NewScope(), func() { e = consistent(s.evalExpr(valueNode)) }) })
	h.Write(func(c *symbols.ConstantData) { c.Value, c.Type = e.Value, e.Type })
}

func (s *State) resolveClass(n syntax.Node) {
	nameNode := n.Field("name")
	body := classBody(n)
	if nameNode == nil || body == nil {
		return
	}
	fqn := s.qualify(strings.TrimSpace(nameNode.Text()))
	h, ok := s.store.Class(fqn)
	if !ok {
		return
	}
	prev := s.class
	s.class = fqn
	defer func() { s.class = prev }()

	type methodSig struct {
		params          []symbols.ParamData
		native, comment types.Union
	}
	methods := make(map[string]methodSig)
	props := make(map[string]*symbols.PropertyData)

	for _, member := range body.Children() {
		switch member.Kind() {
		case "comment":
			s.setDoc(member)
			continue
		case "method_declaration":
			nameNode := member.Field("name")
			if nameNode == nil {
				break
			}
			params := s.paramsFromNode(member.Field("parameters"), s.doc)
			native, comment := s.returnTypes(member, s.doc)
			methods[strings.ToLower(strings.TrimSpace(nameNode.Text()))] = methodSig{params, native, comment}
			for _, p := range params {
				if p.Promoted {
					props[p.Name] = &symbols.PropertyData{NativeType: p.NativeType, CommentType: p.CommentType, Default: p.Default}
				}
			}
		case "property_declaration":
			var native types.Union
			if t := member.Field("type"); t != nil {
				native = s.resolveTypeNode(t)
			}
			for _, el := range member.Children() {
				if el.Kind() != "property_element" {
					continue
				}
				name := syntax.VariableName(syntax.ChildOfKind(el, "variable_name"))
				p := &symbols.PropertyData{NativeType: native}
				if raw, ok := s.doc.Var(name); ok {
					p.CommentType = s.resolveDocType(raw)
				}
				if def := propertyDefault(el); def != nil {
					var e Eval
					s.quietly(func() { s.runIn(NewScope(), func() { e = s.evalExpr(def) }) })
					p.Default = e.Value
				}
				props[name] = p
			}
		case "const_declaration":
			s.resolveConstants(member, fqn)
		}
		s.takeDoc()
	}

	h.Write(func(c *symbols.ClassData) {
		for key, sig := range methods {
			if m, ok := c.Methods[key]; ok {
				m.Params, m.NativeReturn, m.CommentReturn = sig.params, sig.native, sig.comment
			}
		}
		for name, resolved := range props {
			if p, ok := c.Properties[name]; ok {
				p.NativeType, p.CommentType, p.Default = resolved.NativeType, resolved.CommentType, resolved.Default
			}
		}
	})
}

func propertyDefault(el syntax.Node) syntax.Node {
	if def := el.Field("default_value"); def != nil {
		return def
	}
	if init := syntax.ChildOfKind(el, "property_initializer"); init != nil {
		return syntax.FirstChild(init)
	}
	return nil
}

// inferenceRounds bounds how often return types are re-inferred, so that
// functions returning the result of functions declared later settle.
const inferenceRounds = 2

// inferReturns analyzes function bodies without reporting anything and
// records the inferred return type of each.
func (s *State) inferReturns() {
	s.pass = PassSignatures
	s.quietly(func() {
		s.eachDeclaration(func(n syntax.Node) {
			switch n.Kind() {
			case "function_definition":
				nameNode := n.Field("name")
				if nameNode == nil {
					return
				}
				if h, ok := s.store.Function(s.qualify(strings.TrimSpace(nameNode.Text()))); ok {
					s.inferInto(h, n)
				}
			case "class_declaration", "trait_declaration", "enum_declaration":
				s.inferClass(n)
			}
		})
	})
}

func (s *State) inferClass(n syntax.Node) {
	nameNode, body := n.Field("name"), classBody(n)
	if nameNode == nil || body == nil {
		return
	}
	fqn := s.qualify(strings.TrimSpace(nameNode.Text()))
	ch, ok := s.store.Class(fqn)
	if !ok {
		return
	}
	prev := s.class
	s.class = fqn
	defer func() { s.class = prev }()

	for _, member := range body.Children() {
		if member.Kind() != "method_declaration" {
			continue
		}
		nameNode := member.Field("name")
		if nameNode == nil {
			continue
		}
		var m *symbols.FunctionData
		ch.Read(func(c *symbols.ClassData) {
			if found, ok := c.Method(nameNode.Text()); ok {
				copied := *found
				m = &copied
			}
		})
		if m == nil || member.Field("body") == nil {
			continue
		}
		fc := &funcContext{fqn: m.FQN, class: fqn, static: m.Static}
		scope := NewScope()
		s.analyzeBody(scope, m.Params, member.Field("body"), fc)
		inferred := fc.inferred(!scope.Terminated())
		key := strings.ToLower(m.Name)
		ch.Write(func(c *symbols.ClassData) {
			if target, ok := c.Methods[key]; ok {
				target.InferredReturn = inferred
			}
		})
	}
}

func (s *State) inferInto(h *symbols.Handle[symbols.FunctionData], n syntax.Node) {
	var f symbols.FunctionData
	h.Read(func(data *symbols.FunctionData) { f = *data })
	fc := &funcContext{fqn: f.FQN}
	scope := NewScope()
	s.analyzeBody(scope, f.Params, n.Field("body"), fc)
	inferred := fc.inferred(!scope.Terminated())
	h.Write(func(data *symbols.FunctionData) { data.InferredReturn = inferred })
}
