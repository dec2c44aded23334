package analysis

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shinyvision/phpinfer/internal/syntax"
)

// IssueKind tags a diagnostic.
type IssueKind uint8

const (
	IssueParseError IssueKind = iota + 1
	IssueParseAnomaly
	IssueUnknownVariable
	IssueUnknownConstant
	IssueUnknownClass
	IssueUnknownFunction
	IssueVariableNotInitializedInAllBranches
	IssueAlwaysFalseCondition
	IssueUnusedVariable
)

var issueNames = map[IssueKind]string{
	IssueParseError:                          "ParseError",
	IssueParseAnomaly:                        "ParseAnomaly",
	IssueUnknownVariable:                     "UnknownVariable",
	IssueUnknownConstant:                     "UnknownConstant",
	IssueUnknownClass:                        "UnknownClass",
	IssueUnknownFunction:                     "UnknownFunction",
	IssueVariableNotInitializedInAllBranches: "VariableNotInitializedInAllBranches",
	IssueAlwaysFalseCondition:                "AlwaysFalseCondition",
	IssueUnusedVariable:                      "UnusedVariable",
}

func (k IssueKind) String() string {
	if name, ok := issueNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IssueKind(%d)", uint8(k))
}

// ParseIssueKind maps an issue name, as printed by String, back to its kind.
// Matching is case-insensitive.
func ParseIssueKind(name string) (IssueKind, bool) {
	for kind, n := range issueNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return kind, true
		}
	}
	return 0, false
}

// Severity orders issues for presentation.
type Severity uint8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityHint:
		return "hint"
	}
	return "unknown"
}

// Severity returns how serious an issue of this kind is.
func (k IssueKind) Severity() Severity {
	switch k {
	case IssueParseError, IssueUnknownVariable, IssueUnknownClass, IssueUnknownFunction, IssueUnknownConstant:
		return SeverityError
	case IssueUnusedVariable:
		return SeverityHint
	}
	return SeverityWarning
}

// Issue is one diagnostic, positioned at the node that triggered it.
type Issue struct {
	Kind    IssueKind
	File    string
	Range   syntax.Range
	Name    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", i.File, i.Range.StartLine, i.Range.StartColumn+1, i.Kind, i.Message)
}

// Sink receives diagnostics as they are found.
type Sink interface {
	Emit(Issue)
}

// Collector is a Sink that keeps every issue that is not disabled.
type Collector struct {
	mu       sync.Mutex
	issues   []Issue
	disabled map[IssueKind]struct{}
}

// NewCollector returns a collector that drops the given kinds.
func NewCollector(disabled ...IssueKind) *Collector {
	c := &Collector{disabled: make(map[IssueKind]struct{}, len(disabled))}
	for _, k := range disabled {
		c.disabled[k] = struct{}{}
	}
	return c
}

// Accepts reports whether issues of kind k are kept.
func (c *Collector) Accepts(k IssueKind) bool {
	_, off := c.disabled[k]
	return !off
}

func (c *Collector) Emit(issue Issue) {
	if !c.Accepts(issue.Kind) {
		return
	}
	c.mu.Lock()
	c.issues = append(c.issues, issue)
	c.mu.Unlock()
}

// Issues returns the collected issues ordered by file and position.
func (c *Collector) Issues() []Issue {
	c.mu.Lock()
	out := append([]Issue(nil), c.issues...)
	c.mu.Unlock()
	SortIssues(out)
	return out
}

// SortIssues orders issues by file, then source position, then kind.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Range.StartByte != y.Range.StartByte {
			return x.Range.StartByte < y.Range.StartByte
		}
		return x.Kind < y.Kind
	})
}

type discardSink struct{}

func (discardSink) Emit(Issue) {}
