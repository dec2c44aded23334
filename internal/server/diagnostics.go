package server

import (
	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/utils"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var severities = map[analysis.Severity]protocol.DiagnosticSeverity{
	analysis.SeverityError:   protocol.DiagnosticSeverityError,
	analysis.SeverityWarning: protocol.DiagnosticSeverityWarning,
	analysis.SeverityHint:    protocol.DiagnosticSeverityHint,
}

func diagnosticsFor(uri protocol.DocumentUri, text string, result *analysis.Result) protocol.PublishDiagnosticsParams {
	params := protocol.PublishDiagnosticsParams{URI: uri, Diagnostics: []protocol.Diagnostic{}}
	if result == nil {
		return params
	}
	for _, issue := range result.Issues {
		params.Diagnostics = append(params.Diagnostics, toDiagnostic(text, issue))
	}
	return params
}

func toDiagnostic(text string, issue analysis.Issue) protocol.Diagnostic {
	severity, ok := severities[issue.Kind.Severity()]
	if !ok {
		severity = protocol.DiagnosticSeverityInformation
	}
	source := lsName
	d := protocol.Diagnostic{
		Range:    toRange(text, issue.Range),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: issue.Kind.String()},
		Source:   &source,
		Message:  issue.Message,
	}
	if issue.Kind == analysis.IssueUnusedVariable {
		d.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}
	}
	return d
}

func toRange(text string, r syntax.Range) protocol.Range {
	return protocol.Range{
		Start: toPosition(text, int(r.StartByte)),
		End:   toPosition(text, int(r.EndByte)),
	}
}

func toPosition(text string, offset int) protocol.Position {
	line, col := utils.LineAndUTF16Column(text, offset)
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}
