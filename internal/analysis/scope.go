package analysis

import "github.com/shinyvision/phpinfer/internal/types"

// BranchSide tells which outcome of a condition a branch scope represents.
type BranchSide uint8

const (
	SideNone BranchSide = iota
	SideTrue
	SideFalse
)

type exitKind uint8

const (
	exitNone exitKind = iota
	// exitLoop: the path left through break or continue.
	exitLoop
	// exitFunction: the path left through return, throw or exit.
	exitFunction
)

// Scope maps variable names to their tracking records. Branch scopes are
// forks of their parent: they own cloned records, so tentative writes stay
// local until Merge re-unions their types into the parent.
type Scope struct {
	vars   map[string]*VarData
	order  []string
	parent *Scope
	branch bool
	side   BranchSide
	exit   exitKind
}

// NewScope returns an empty function or file scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]*VarData)}
}

// GetVar looks up a variable without creating it.
func (s *Scope) GetVar(name string) (*VarData, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// GetOrCreateVar returns the record for name, creating it on first use.
func (s *Scope) GetOrCreateVar(name string) *VarData {
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := newVarData(name)
	s.vars[name] = v
	s.order = append(s.order, name)
	return v
}

// Vars returns the records in creation order.
func (s *Scope) Vars() []*VarData {
	out := make([]*VarData, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.vars[name])
	}
	return out
}

func (s *Scope) Parent() *Scope       { return s.parent }
func (s *Scope) IsBranch() bool       { return s.branch }
func (s *Scope) Side() BranchSide     { return s.side }
func (s *Scope) Terminated() bool     { return s.exit != exitNone }
func (s *Scope) terminate(k exitKind) { s.exit = k }

// Fork creates a branch scope seeded with clones of every record.
func (s *Scope) Fork(side BranchSide) *Scope {
	f := &Scope{
		vars:   make(map[string]*VarData, len(s.vars)),
		order:  append([]string(nil), s.order...),
		parent: s,
		branch: true,
		side:   side,
	}
	for name, v := range s.vars {
		f.vars[name] = v.clone()
	}
	return f
}

type branchState struct {
	v     *VarData
	wrote bool
}

// Merge folds the branches, which must be forks of s covering every path
// out of the construct, back into s. Types written in the branches are
// unioned in; values are dropped. Branches that left through return or
// break only contribute their reads.
func (s *Scope) Merge(branches ...*Scope) {
	var live []*Scope
	for _, b := range branches {
		if b.exit == exitNone {
			live = append(live, b)
		}
	}

	names := append([]string(nil), s.order...)
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	for _, b := range branches {
		for _, n := range b.order {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}

	for _, name := range names {
		s.mergeVar(name, branches, live)
	}

	if len(live) == 0 && len(branches) > 0 {
		s.exit = exitFunction
		for _, b := range branches {
			if b.exit == exitLoop {
				s.exit = exitLoop
			}
		}
	}
}

func (s *Scope) mergeVar(name string, all, live []*Scope) {
	base, hadBase := s.vars[name]
	var baseWrites, baseReads, baseRefs, baseWriteCount int
	var baseDefined bool
	if hadBase {
		baseWrites, baseReads, baseRefs = len(base.writes), base.ReadCount, len(base.Refs)
		baseWriteCount, baseDefined = base.WriteCount, base.Defined()
	}

	var target *VarData
	if hadBase {
		target = base
	}
	for _, b := range all {
		bv, ok := b.vars[name]
		if !ok {
			continue
		}
		if target == nil {
			target = s.GetOrCreateVar(name)
			target.NativeType = bv.NativeType
			target.IsArgument = bv.IsArgument
			target.IsGlobal = bv.IsGlobal
			target.Default = bv.Default
		}
		if target.CommentType.IsEmpty() {
			target.CommentType = bv.CommentType
		}
		target.ReadCount += bv.ReadCount - baseReads
		if len(bv.Refs) > baseRefs {
			target.Refs = append(target.Refs, bv.Refs[baseRefs:]...)
		}
	}
	if target == nil || len(live) == 0 {
		return
	}

	states := make([]branchState, 0, len(live))
	allWrote, definedAll, definedAny, partialAny := true, true, false, false
	allNarrowed := true
	for _, b := range live {
		bv, ok := b.vars[name]
		if !ok {
			allWrote, definedAll, allNarrowed = false, false, false
			continue
		}
		st := branchState{v: bv}
		for _, w := range bv.writes[min(baseWrites, len(bv.writes)):] {
			if !w.clobber {
				st.wrote = true
			}
		}
		if !st.wrote {
			allWrote = false
		}
		if bv.Defined() {
			definedAny = true
			if bv.IsPartial {
				partialAny = true
			}
		} else {
			definedAll = false
		}
		if bv.narrowed.IsEmpty() {
			allNarrowed = false
		}
		states = append(states, st)
	}

	conditional := s.branch || !allWrote
	for _, st := range states {
		if len(st.v.writes) <= baseWrites {
			continue
		}
		for _, w := range st.v.writes[baseWrites:] {
			target.writes = append(target.writes, Write{
				Type:        w.Type,
				Conditional: conditional || w.clobber,
				Range:       w.Range,
				clobber:     w.clobber,
			})
		}
		if st.v.WriteCount > baseWriteCount {
			target.WriteCount += st.v.WriteCount - baseWriteCount
		}
	}

	target.defined = definedAny
	target.unset = !definedAny && baseDefined
	target.IsPartial = definedAny && (!definedAll || partialAny)

	target.narrowed = types.Union{}
	if allNarrowed {
		for _, st := range states {
			target.narrowed.MergeInto(st.v.narrowed)
		}
	}
}
