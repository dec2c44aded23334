package server

import (
	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/shinyvision/phpinfer/internal/utils"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// onDefinition jumps to the declarations of the classes the expression
// under the cursor may hold.
func (s *Server) onDefinition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc, ok := s.state.GetDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	var o analysis.Observation
	found := false
	doc.Read(func(text string, result *analysis.Result) {
		if result == nil {
			return
		}
		if offset := params.Position.IndexIn(text); offset >= 0 {
			o, found = result.At(uint32(offset))
		}
	})
	if !found {
		return nil, nil
	}

	locations := classLocations(s.state.Project().Store(), o.Type, s.sourceOf)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

// sourceOf returns the text of a file the project knows, preferring the
// open buffer.
func (s *Server) sourceOf(path string) (string, bool) {
	doc, ok := s.state.GetDocument(protocol.DocumentUri(utils.PathToURI(path)))
	if !ok {
		return "", false
	}
	var text string
	doc.Read(func(t string, _ *analysis.Result) { text = t })
	return text, true
}

func classLocations(store *symbols.Store, typ types.Union, source func(string) (string, bool)) []protocol.Location {
	var locations []protocol.Location
	for _, t := range typ.Types() {
		if t.Kind != types.KindNamed {
			continue
		}
		h, ok := store.Class(t.FQN)
		if !ok {
			continue
		}
		h.Read(func(c *symbols.ClassData) {
			if c.File == "" {
				return
			}
			loc := protocol.Location{URI: protocol.DocumentUri(utils.PathToURI(c.File))}
			if text, ok := source(c.File); ok {
				loc.Range = toRange(text, c.Range)
			} else {
				loc.Range.Start = linePosition(c.Range.StartLine, c.Range.StartColumn)
				loc.Range.End = linePosition(c.Range.EndLine, c.Range.EndColumn)
			}
			locations = append(locations, loc)
		})
	}
	return locations
}

// linePosition converts a one-based line and byte column without the file
// text at hand. Columns are exact only for ASCII lines.
func linePosition(line, col int) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(max(line-1, 0)), Character: protocol.UInteger(max(col, 0))}
}
