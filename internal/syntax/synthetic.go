package syntax

// Synthetic is an in-memory Node for trees produced without tree-sitter,
// e.g. by code generators or tests.
type Synthetic struct {
	kind     string
	text     string
	rng      Range
	children []Node
	fields   []string
}

// Child pairs a node with the grammar field it is stored under.
type Child struct {
	Field string
	Node  Node
}

// NewNode builds a synthetic node. Unnamed children use an empty field.
func NewNode(kind, text string, children ...Child) *Synthetic {
	s := &Synthetic{kind: kind, text: text}
	for _, c := range children {
		if c.Node == nil {
			continue
		}
		s.children = append(s.children, c.Node)
		s.fields = append(s.fields, c.Field)
	}
	return s
}

// WithRange sets the node's source range.
func (s *Synthetic) WithRange(r Range) *Synthetic {
	s.rng = r
	return s
}

func (s *Synthetic) Kind() string     { return s.kind }
func (s *Synthetic) Range() Range     { return s.rng }
func (s *Synthetic) Children() []Node { return s.children }
func (s *Synthetic) Text() string     { return s.text }
func (s *Synthetic) IsError() bool    { return s.kind == "ERROR" }

func (s *Synthetic) Field(name string) Node {
	for i, f := range s.fields {
		if f == name {
			return s.children[i]
		}
	}
	return nil
}

func (s *Synthetic) FieldName(i int) string {
	if i < 0 || i >= len(s.fields) {
		return ""
	}
	return s.fields[i]
}
