package analysis

import (
	"strings"

	"github.com/shinyvision/phpinfer/internal/docblock"
	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/tliron/commonlog"
)

// DefaultMaxDepth bounds expression recursion when Options.MaxDepth is unset.
const DefaultMaxDepth = 512

// Pass numbers the ordered traversals over a compilation unit.
type Pass uint8

const (
	PassDeclarations Pass = iota + 1
	PassSignatures
	PassBodies
)

func (p Pass) String() string {
	switch p {
	case PassDeclarations:
		return "declarations"
	case PassSignatures:
		return "signatures"
	case PassBodies:
		return "bodies"
	}
	return "none"
}

// Options tunes a single analysis run.
type Options struct {
	// File names the unit in issues and symbol records.
	File string
	// MaxDepth bounds expression nesting; deeper expressions degrade to unknown.
	MaxDepth int
	// ReportUnused enables UnusedVariable issues.
	ReportUnused bool
	// Disabled issue kinds are dropped before reaching the sink.
	Disabled []IssueKind
	// Store is shared between runs of a project. A fresh store with builtins
	// is created when nil.
	Store *symbols.Store
	// Sink receives issues in addition to the Result. Optional.
	Sink Sink
}

// Eval is what the engine knows about an expression: a union type, empty when
// nothing can be inferred, and a value when it is known at compile time.
type Eval struct {
	Type  types.Union
	Value *types.Value
}

func known(v *types.Value) Eval {
	if v == nil {
		return Eval{}
	}
	return Eval{Type: types.NewUnion(v.Type()), Value: v}
}

func typed(ts ...types.DiscreteType) Eval {
	return Eval{Type: types.NewUnion(ts...)}
}

// Observation records what pass three inferred for one expression.
type Observation struct {
	Kind  string
	Text  string
	Range syntax.Range
	Type  types.Union
	Value *types.Value
}

type funcContext struct {
	fqn       string
	class     string
	static    bool
	returns   types.Union
	returned  bool
	bare      bool
	opaque    bool
	generator bool
}

// inferred is the return type implied by the return statements seen. fell
// reports whether control can reach the end of the body.
func (fc *funcContext) inferred(fell bool) types.Union {
	switch {
	case fc.generator:
		return types.NewUnion(types.Named("Generator", "Generator"))
	case fc.opaque:
		return types.Union{}
	case !fc.returned:
		if fc.bare || fell {
			return types.NewUnion(types.Void)
		}
		return types.NewUnion(types.Never)
	}
	out := fc.returns
	if fc.bare || fell {
		out = out.Add(types.Null)
	}
	return out
}

// State is the mutable context threaded through every analysis step of one
// compilation unit.
type State struct {
	store  *symbols.Store
	sink   Sink
	opts   Options
	source []byte
	root   syntax.Node
	pass   Pass

	namespace string
	uses      map[string]string
	funcUses  map[string]string
	constUses map[string]string

	scopes  []*Scope
	globals *Scope
	class   string
	fn      *funcContext

	doc    docblock.Block
	hasDoc bool

	depth          int
	quiet          bool
	quietUndefined int

	unsupported    *Unsupported
	observations   []Observation
	functionScopes map[string]*Scope
	log            commonlog.Logger
}

func newState(root syntax.Node, source []byte, opts Options, sink Sink) *State {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Store == nil {
		opts.Store = symbols.NewStore()
	}
	globals := NewScope()
	return &State{
		store:          opts.Store,
		sink:           sink,
		opts:           opts,
		source:         source,
		root:           root,
		uses:           make(map[string]string),
		funcUses:       make(map[string]string),
		constUses:      make(map[string]string),
		scopes:         []*Scope{globals},
		globals:        globals,
		unsupported:    newUnsupported(),
		functionScopes: make(map[string]*Scope),
		log:            commonlog.GetLoggerf("phpinfer.analysis"),
	}
}

func (s *State) Pass() Pass                { return s.pass }
func (s *State) Namespace() string         { return s.namespace }
func (s *State) Store() *symbols.Store     { return s.store }
func (s *State) Unsupported() *Unsupported { return s.unsupported }

// Scope returns the innermost active scope.
func (s *State) Scope() *Scope { return s.scopes[len(s.scopes)-1] }

// runIn makes scope the active scope while fn runs.
func (s *State) runIn(scope *Scope, fn func()) {
	s.scopes = append(s.scopes, scope)
	defer func() { s.scopes = s.scopes[:len(s.scopes)-1] }()
	fn()
}

// inBranch reports whether writes in the active scope are conditional.
func (s *State) inBranch() bool { return s.Scope().IsBranch() }

func (s *State) setNamespace(ns string) {
	s.namespace = symbols.NormalizeFQN(ns)
	s.uses = make(map[string]string)
	s.funcUses = make(map[string]string)
	s.constUses = make(map[string]string)
}

func (s *State) emit(kind IssueKind, n syntax.Node, name, message string) {
	if s.quiet || s.pass != PassBodies {
		return
	}
	issue := Issue{Kind: kind, File: s.opts.File, Name: name, Message: message}
	if n != nil {
		issue.Range = n.Range()
	}
	s.sink.Emit(issue)
}

// missing records a construct the engine does not model. It never reaches
// the user as a diagnostic.
func (s *State) missing(what string, n syntax.Node) {
	if s.quiet {
		return
	}
	s.unsupported.Mark(what, n)
}

func (s *State) observe(n syntax.Node, e Eval) {
	if s.quiet || s.pass != PassBodies || n == nil {
		return
	}
	s.observations = append(s.observations, Observation{
		Kind:  n.Kind(),
		Text:  strings.TrimSpace(n.Text()),
		Range: n.Range(),
		Type:  e.Type,
		Value: e.Value,
	})
}

// quietly runs fn with diagnostics, observations and markers suppressed.
func (s *State) quietly(fn func()) {
	prev := s.quiet
	s.quiet = true
	defer func() { s.quiet = prev }()
	fn()
}

func (s *State) setDoc(comment syntax.Node) {
	text := comment.Text()
	if !docblock.IsDocComment(text) {
		return
	}
	s.doc = docblock.Parse(text)
	s.hasDoc = true
}

// takeDoc returns the doc comment preceding the current statement and clears it.
func (s *State) takeDoc() (docblock.Block, bool) {
	doc, ok := s.doc, s.hasDoc
	s.doc, s.hasDoc = docblock.Block{}, false
	return doc, ok
}

// currentClass returns a snapshot of the class being walked.
func (s *State) currentClass() (*symbols.ClassData, bool) {
	if s.class == "" {
		return nil, false
	}
	h, ok := s.store.Class(s.class)
	if !ok {
		return nil, false
	}
	var snapshot symbols.ClassData
	h.Read(func(c *symbols.ClassData) { snapshot = *c })
	return &snapshot, true
}
