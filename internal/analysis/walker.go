package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/shinyvision/phpinfer/internal/docblock"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
)

// Result is the outcome of analyzing one compilation unit.
type Result struct {
	File   string
	Issues []Issue
	Store  *symbols.Store
	// Globals is the file-level scope after the walk.
	Globals *Scope
	// Scopes holds the final scope of every function and method body, by FQN.
	Scopes       map[string]*Scope
	Observations []Observation
	Unsupported  map[string]int
}

// Expr returns the last observation of an expression of the given kind
// whose source text is text.
func (r *Result) Expr(kind, text string) (Observation, bool) {
	for i := len(r.Observations) - 1; i >= 0; i-- {
		o := r.Observations[i]
		if o.Kind == kind && o.Text == text {
			return o, true
		}
	}
	return Observation{}, false
}

// VarReads returns every observed read of $name, in source order.
func (r *Result) VarReads(name string) []Observation {
	want := "$" + strings.TrimPrefix(name, "$")
	var out []Observation
	for _, o := range r.Observations {
		if o.Kind == "variable_name" && o.Text == want {
			out = append(out, o)
		}
	}
	return out
}

// At returns the innermost observed expression spanning offset.
func (r *Result) At(offset uint32) (Observation, bool) {
	var best Observation
	found := false
	for _, o := range r.Observations {
		if !o.Range.Contains(offset) {
			continue
		}
		if !found || o.Range.EndByte-o.Range.StartByte < best.Range.EndByte-best.Range.StartByte {
			best, found = o, true
		}
	}
	return best, found
}

// HasIssue reports whether an issue of kind k was raised for name.
func (r *Result) HasIssue(k IssueKind, name string) bool {
	for _, issue := range r.Issues {
		if issue.Kind == k && issue.Name == name {
			return true
		}
	}
	return false
}

type teeSink struct {
	collector *Collector
	next      Sink
}

func (t teeSink) Emit(issue Issue) {
	if !t.collector.Accepts(issue.Kind) {
		return
	}
	t.collector.Emit(issue)
	if t.next != nil {
		t.next.Emit(issue)
	}
}

type unit struct {
	state     *State
	collector *Collector
}

func newUnit(root syntax.Node, source []byte, opts Options) *unit {
	collector := NewCollector(opts.Disabled...)
	return &unit{
		state:     newState(root, source, opts, teeSink{collector: collector, next: opts.Sink}),
		collector: collector,
	}
}

// walkBodies is the third pass: it walks the unit top to bottom, reporting
// issues and recording observations.
func (s *State) walkBodies(ctx context.Context) {
	s.pass = PassBodies
	s.setNamespace("")
	s.doc, s.hasDoc = docblock.Block{}, false
	if err := ctx.Err(); err != nil {
		s.log.Warningf("skipping %s: %s", s.opts.File, err.Error())
		return
	}
	s.reportSyntaxErrors()
	s.walkStatement(s.root)
}

// reportSyntaxErrors raises one ParseError per unparsable region, wherever
// the parser placed it.
func (s *State) reportSyntaxErrors() {
	syntax.Walk(s.root, func(n syntax.Node) bool {
		if !n.IsError() {
			return true
		}
		text := strings.TrimSpace(n.Text())
		s.emit(IssueParseError, n, text, fmt.Sprintf("syntax error near %q", abbreviate(text)))
		return false
	})
}

func (u *unit) result() *Result {
	s := u.state
	return &Result{
		File:         s.opts.File,
		Issues:       u.collector.Issues(),
		Store:        s.store,
		Globals:      s.globals,
		Scopes:       s.functionScopes,
		Observations: s.observations,
		Unsupported:  s.unsupported.Snapshot(),
	}
}

// Analyze runs the three passes over one compilation unit. Symbols of
// other units are visible when opts.Store already holds them.
func Analyze(ctx context.Context, root syntax.Node, source []byte, opts Options) *Result {
	if opts.Store == nil {
		opts.Store = symbols.NewStore()
	}
	if root == nil {
		return &Result{File: opts.File, Store: opts.Store, Globals: NewScope(), Scopes: map[string]*Scope{}}
	}
	opts.Store.RemoveFile(opts.File)
	u := newUnit(root, source, opts)
	u.state.collectDeclarations()
	u.state.resolveSignatures()
	for i := 0; i < inferenceRounds; i++ {
		u.state.inferReturns()
	}
	u.state.walkBodies(ctx)
	return u.result()
}

// AnalyzeSource parses source with the PHP grammar and analyzes it.
func AnalyzeSource(ctx context.Context, source []byte, opts Options) (*Result, error) {
	tree, err := syntax.Parse(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("could not analyze %s: %w", opts.File, err)
	}
	defer tree.Close()
	return Analyze(ctx, tree.Root(), source, opts), nil
}
