package server

import (
	"context"
	"strings"
	"testing"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const greeterSource = "<?php\nclass Greeter {}\n$g = new Greeter();\n$n = 40 + 2;\necho $g, $n, $missing;\n"

func analyze(t *testing.T, src string) *analysis.Result {
	t.Helper()
	result, err := analysis.AnalyzeSource(context.Background(), []byte(src), analysis.Options{File: "/w/greeter.php"})
	require.NoError(t, err)
	return result
}

func positionOf(t *testing.T, text, needle string, nth int) protocol.Position {
	t.Helper()
	offset := -1
	for i := 0; i <= nth; i++ {
		next := strings.Index(text[offset+1:], needle)
		require.GreaterOrEqual(t, next, 0)
		offset += next + 1
	}
	return toPosition(text, offset)
}

func TestToDiagnostic(t *testing.T) {
	text := "<?php\necho '😀', $missing;\n"
	start := strings.Index(text, "$missing")
	issue := analysis.Issue{
		Kind:    analysis.IssueUnknownVariable,
		Range:   syntax.Range{StartByte: uint32(start), EndByte: uint32(start + len("$missing"))},
		Name:    "missing",
		Message: "undefined variable $missing",
	}
	d := toDiagnostic(text, issue)
	require.Equal(t, protocol.Position{Line: 1, Character: 11}, d.Range.Start)
	require.Equal(t, protocol.Position{Line: 1, Character: 19}, d.Range.End)
	require.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)
	require.Equal(t, "UnknownVariable", d.Code.Value)
	require.Equal(t, "phpinfer", *d.Source)
	require.Empty(t, d.Tags)

	issue.Kind = analysis.IssueUnusedVariable
	d = toDiagnostic(text, issue)
	require.Equal(t, protocol.DiagnosticSeverityHint, *d.Severity)
	require.Equal(t, []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}, d.Tags)
}

func TestDiagnosticsFor(t *testing.T) {
	result := analyze(t, greeterSource)
	params := diagnosticsFor("file:///w/greeter.php", greeterSource, result)
	require.Len(t, params.Diagnostics, 1)
	require.Equal(t, "undefined variable $missing", params.Diagnostics[0].Message)
	require.Equal(t, protocol.UInteger(4), params.Diagnostics[0].Range.Start.Line)

	empty := diagnosticsFor("file:///w/greeter.php", greeterSource, nil)
	require.NotNil(t, empty.Diagnostics)
	require.Empty(t, empty.Diagnostics)
}

func TestHoverShowsTypeAndValue(t *testing.T) {
	result := analyze(t, greeterSource)

	hover := hoverAt(greeterSource, result, positionOf(t, greeterSource, "$n", 1))
	require.NotNil(t, hover)
	content := hover.Contents.(protocol.MarkupContent)
	require.Equal(t, "```php\nint $n\n```\n\nvalue: `42`", content.Value)

	hover = hoverAt(greeterSource, result, positionOf(t, greeterSource, "$g", 1))
	require.NotNil(t, hover)
	require.Contains(t, hover.Contents.(protocol.MarkupContent).Value, "Greeter $g")

	require.Nil(t, hoverAt(greeterSource, result, protocol.Position{Line: 0, Character: 1}))
	require.Nil(t, hoverAt(greeterSource, nil, protocol.Position{}))
}

func TestClassLocations(t *testing.T) {
	store := symbols.NewStore()
	c := symbols.NewClassData("Greeter", "Greeter", symbols.KindClass)
	c.File = "/w/greeter.php"
	c.Range = syntax.Range{StartByte: 6, EndByte: 22, StartLine: 2, EndLine: 2, EndColumn: 16}
	store.AddClass(c)

	typ := types.NewUnion(types.Named("Greeter", "Greeter"), types.Named("Exception", "Exception"), types.Int)
	open := func(string) (string, bool) { return greeterSource, true }
	locs := classLocations(store, typ, open)
	require.Len(t, locs, 1)
	require.Equal(t, protocol.DocumentUri("file:///w/greeter.php"), locs[0].URI)
	require.Equal(t, protocol.Position{Line: 1, Character: 0}, locs[0].Range.Start)

	closed := func(string) (string, bool) { return "", false }
	locs = classLocations(store, typ, closed)
	require.Equal(t, protocol.Position{Line: 1, Character: 16}, locs[0].Range.End)
}
