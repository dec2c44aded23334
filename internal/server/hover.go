package server

import (
	"fmt"
	"strings"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) onHover(_ *glsp.Context, p *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.state.GetDocument(p.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	var hover *protocol.Hover
	doc.Read(func(text string, result *analysis.Result) {
		hover = hoverAt(text, result, p.Position)
	})
	return hover, nil
}

// hoverAt describes the innermost analyzed expression under pos.
func hoverAt(text string, result *analysis.Result, pos protocol.Position) *protocol.Hover {
	if result == nil {
		return nil
	}
	offset := pos.IndexIn(text)
	if offset < 0 {
		return nil
	}
	o, ok := result.At(uint32(offset))
	if !ok {
		return nil
	}
	r := toRange(text, o.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: describe(o)},
		Range:    &r,
	}
}

func describe(o analysis.Observation) string {
	var b strings.Builder
	typ := "mixed"
	if !o.Type.IsEmpty() {
		typ = o.Type.String()
	}
	b.WriteString("```php\n")
	if strings.HasPrefix(o.Text, "$") {
		fmt.Fprintf(&b, "%s %s", typ, o.Text)
	} else {
		b.WriteString(typ)
	}
	b.WriteString("\n```")
	if o.Value != nil {
		fmt.Fprintf(&b, "\n\nvalue: `%s`", o.Value.String())
	}
	return b.String()
}
