package symbols

import (
	"strings"

	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// ClassKind distinguishes class-like declarations.
type ClassKind uint8

const (
	KindClass ClassKind = iota + 1
	KindInterface
	KindTrait
	KindEnum
)

func (k ClassKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

// ClassData describes a class, interface, trait or enum declaration.
type ClassData struct {
	Name       string
	FQN        string
	Namespace  string
	Kind       ClassKind
	Extends    []string
	Implements []string
	Traits     []string
	Abstract   bool
	Final      bool
	Properties map[string]*PropertyData
	Methods    map[string]*FunctionData
	Constants  map[string]*ConstantData
	File       string
	Range      syntax.Range
}

// NewClassData builds an empty class record.
func NewClassData(name, fqn string, kind ClassKind) *ClassData {
	return &ClassData{
		Name:       name,
		FQN:        NormalizeFQN(fqn),
		Kind:       kind,
		Properties: make(map[string]*PropertyData),
		Methods:    make(map[string]*FunctionData),
		Constants:  make(map[string]*ConstantData),
	}
}

// Parents returns the direct supertypes: extended classes, implemented
// interfaces and used traits.
func (c *ClassData) Parents() []string {
	out := make([]string, 0, len(c.Extends)+len(c.Implements)+len(c.Traits))
	out = append(out, c.Extends...)
	out = append(out, c.Implements...)
	out = append(out, c.Traits...)
	return out
}

// Method returns the method declared directly on the class.
func (c *ClassData) Method(name string) (*FunctionData, bool) {
	m, ok := c.Methods[strings.ToLower(name)]
	return m, ok
}

// PropertyData describes a declared or promoted property.
type PropertyData struct {
	Name        string
	Visibility  string
	Static      bool
	Readonly    bool
	NativeType  types.Union
	CommentType types.Union
	Default     *types.Value
	Range       syntax.Range
}

// Type returns the declared property type, preferring the doc comment.
func (p *PropertyData) Type() types.Union {
	if !p.CommentType.IsEmpty() {
		return p.CommentType
	}
	return p.NativeType
}

// ParamData describes one function parameter.
type ParamData struct {
	Name        string
	NativeType  types.Union
	CommentType types.Union
	Default     *types.Value
	HasDefault  bool
	Variadic    bool
	ByRef       bool
	Promoted    bool
}

// Type returns the declared parameter type, preferring the doc comment.
// Variadic parameters are arrays of the declared type.
func (p ParamData) Type() types.Union {
	t := p.CommentType
	if t.IsEmpty() {
		t = p.NativeType
	}
	if p.Variadic && !t.IsEmpty() {
		return types.NewUnion(types.Vector(t))
	}
	return t
}

// FunctionData describes a function or method signature together with the
// return type inferred from its body.
type FunctionData struct {
	Name           string
	FQN            string
	Class          string
	Visibility     string
	Static         bool
	Abstract       bool
	Params         []ParamData
	NativeReturn   types.Union
	CommentReturn  types.Union
	InferredReturn types.Union
	File           string
	Range          syntax.Range
}

// ReturnType resolves the return type: doc comment, then native hint, then
// the type inferred from return statements.
func (f *FunctionData) ReturnType() types.Union {
	switch {
	case !f.CommentReturn.IsEmpty():
		return f.CommentReturn
	case !f.NativeReturn.IsEmpty():
		return f.NativeReturn
	}
	return f.InferredReturn
}

// ConstantData describes a global or class constant.
type ConstantData struct {
	Name  string
	FQN   string
	Value *types.Value
	Type  types.Union
	File  string
	Range syntax.Range
}

// NormalizeFQN strips leading backslashes and nullable markers, as in `?\Foo\Bar`.
func NormalizeFQN(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\\\", "\\"))
	return strings.TrimLeft(name, "?\\")
}

// ShortName returns the last segment of a qualified name.
func ShortName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '\\'); i >= 0 && i+1 < len(qualified) {
		return qualified[i+1:]
	}
	return qualified
}

// NamespaceOf returns the namespace part of a qualified name.
func NamespaceOf(qualified string) string {
	qualified = NormalizeFQN(qualified)
	if i := strings.LastIndexByte(qualified, '\\'); i >= 0 {
		return qualified[:i]
	}
	return ""
}
