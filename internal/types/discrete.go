package types

import "strings"

// Kind is the tag of a DiscreteType.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindArray
	KindNull
	KindVoid
	KindCallable
	KindMixed
	KindObject
	KindIterable
	KindNever
	KindResource
	KindNamed
	KindVector
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindBool:     "bool",
	KindArray:    "array",
	KindNull:     "null",
	KindVoid:     "void",
	KindCallable: "callable",
	KindMixed:    "mixed",
	KindObject:   "object",
	KindIterable: "iterable",
	KindNever:    "never",
	KindResource: "resource",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	switch k {
	case KindNamed:
		return "named"
	case KindVector:
		return "vector"
	}
	return "unknown"
}

// DiscreteType is one concrete type tag. Named types carry both the name as
// written in source and the fully qualified name it resolved to; Vector types
// carry the union of their element types.
type DiscreteType struct {
	Kind Kind
	Name string
	FQN  string
	Elem *Union
}

var (
	Unknown   = DiscreteType{Kind: KindUnknown}
	Int       = DiscreteType{Kind: KindInt}
	FloatType = DiscreteType{Kind: KindFloat}
	String    = DiscreteType{Kind: KindString}
	Bool      = DiscreteType{Kind: KindBool}
	Array     = DiscreteType{Kind: KindArray}
	Null      = DiscreteType{Kind: KindNull}
	Void      = DiscreteType{Kind: KindVoid}
	Callable  = DiscreteType{Kind: KindCallable}
	Mixed     = DiscreteType{Kind: KindMixed}
	Object    = DiscreteType{Kind: KindObject}
	Iterable  = DiscreteType{Kind: KindIterable}
	Never     = DiscreteType{Kind: KindNever}
	Resource  = DiscreteType{Kind: KindResource}
)

// Named builds a class/interface type. The FQN is stored without a leading
// backslash.
func Named(name, fqn string) DiscreteType {
	fqn = strings.TrimLeft(strings.TrimSpace(fqn), "\\")
	if name == "" {
		name = fqn
	}
	return DiscreteType{Kind: KindNamed, Name: name, FQN: fqn}
}

// Vector builds an array type parameterized by its element union.
func Vector(elem Union) DiscreteType {
	if elem.IsEmpty() {
		return Array
	}
	e := elem.clone()
	return DiscreteType{Kind: KindVector, Elem: &e}
}

// Key identifies the type for deduplication. Named types are identified by
// their fully qualified name, case-insensitively, never by their local spelling.
func (d DiscreteType) Key() string {
	switch d.Kind {
	case KindNamed:
		return "\\" + strings.ToLower(d.FQN)
	case KindVector:
		if d.Elem == nil {
			return "array"
		}
		return "array<" + d.Elem.key() + ">"
	}
	return d.Kind.String()
}

// IsScalar reports whether the type is int, float, string or bool.
func (d DiscreteType) IsScalar() bool {
	switch d.Kind {
	case KindInt, KindFloat, KindString, KindBool:
		return true
	}
	return false
}

// IsArrayLike reports whether the type is array or a vector.
func (d DiscreteType) IsArrayLike() bool {
	return d.Kind == KindArray || d.Kind == KindVector
}

// String renders the type as it would be written in a PHP type hint or docblock.
func (d DiscreteType) String() string {
	switch d.Kind {
	case KindNamed:
		return "\\" + d.FQN
	case KindVector:
		if d.Elem == nil || d.Elem.IsEmpty() {
			return "array"
		}
		if single, ok := d.Elem.SingleType(); ok {
			return single.String() + "[]"
		}
		return "array<" + d.Elem.String() + ">"
	}
	return d.Kind.String()
}

var primitiveNames = map[string]DiscreteType{
	"int":      Int,
	"integer":  Int,
	"float":    FloatType,
	"double":   FloatType,
	"string":   String,
	"bool":     Bool,
	"boolean":  Bool,
	"true":     Bool,
	"false":    Bool,
	"array":    Array,
	"null":     Null,
	"void":     Void,
	"callable": Callable,
	"mixed":    Mixed,
	"object":   Object,
	"iterable": Iterable,
	"never":    Never,
	"resource": Resource,
}

// PrimitiveFromName maps a builtin type keyword to its DiscreteType.
func PrimitiveFromName(name string) (DiscreteType, bool) {
	t, ok := primitiveNames[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
