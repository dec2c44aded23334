package analysis

import (
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

// Write is one entry of a variable's write history.
type Write struct {
	Type  types.Union
	Value *types.Value
	// Conditional writes happened on a path that does not dominate later reads.
	Conditional bool
	Range       syntax.Range

	clobber bool
}

// VarData tracks one variable inside one scope.
type VarData struct {
	Name        string
	NativeType  types.Union
	CommentType types.Union
	Default     *types.Value

	writes     []Write
	WriteCount int
	ReadCount  int
	Refs       []syntax.Range

	IsArgument bool
	// IsPartial is set when only some branches reaching a use initialize the variable.
	IsPartial bool
	// IsGlobal marks variables bound by `global` or `static`, which are
	// defined without a visible write.
	IsGlobal bool

	defined  bool
	unset    bool
	narrowed types.Union
}

func newVarData(name string) *VarData {
	return &VarData{Name: name}
}

func (v *VarData) clone() *VarData {
	c := *v
	c.writes = append([]Write(nil), v.writes...)
	c.Refs = append([]syntax.Range(nil), v.Refs...)
	return &c
}

// Writes returns the write history, oldest first.
func (v *VarData) Writes() []Write {
	return append([]Write(nil), v.writes...)
}

// Defined reports whether the variable holds a value on at least one path.
func (v *VarData) Defined() bool {
	return v.defined && !v.unset
}

// SingleWriteTo appends a write. Values written on a conditional path are
// dropped since they do not dominate later reads.
func (v *VarData) SingleWriteTo(t types.Union, value *types.Value, conditional bool, r syntax.Range) {
	if conditional {
		value = nil
	}
	v.writes = append(v.writes, Write{Type: t, Value: value, Conditional: conditional, Range: r})
	v.WriteCount++
	v.Refs = append(v.Refs, r)
	v.defined = true
	v.unset = false
	v.narrowed = types.Union{}
	if !conditional {
		v.IsPartial = false
	}
}

// ReadFrom records a read of the variable at r.
func (v *VarData) ReadFrom(r syntax.Range) {
	v.ReadCount++
	v.Refs = append(v.Refs, r)
}

func (v *VarData) lastRange() syntax.Range {
	if len(v.Refs) == 0 {
		return syntax.Range{}
	}
	return v.Refs[len(v.Refs)-1]
}

// Unset marks the variable as no longer holding a value.
func (v *VarData) Unset() {
	v.unset = true
	v.IsPartial = false
	v.narrowed = types.Union{}
}

// forgetValue makes the current value unknown without adding a type, used
// for variables that a loop body may overwrite.
func (v *VarData) forgetValue() {
	v.writes = append(v.writes, Write{Conditional: true, clobber: true})
}

// Narrow overrides the resolved type until the next write.
func (v *VarData) Narrow(t types.Union) {
	v.narrowed = t
}

// Narrowed returns the narrowing in effect, if any.
func (v *VarData) Narrowed() (types.Union, bool) {
	return v.narrowed, !v.narrowed.IsEmpty()
}

// Type resolves the variable type. Precedence: a narrowing in effect, the
// union of unconditional writes, the doc comment type, the native type, and
// finally every write regardless of conditionality.
func (v *VarData) Type() types.Union {
	if !v.narrowed.IsEmpty() {
		return v.narrowed
	}
	var unconditional types.Union
	for _, w := range v.writes {
		if !w.Conditional {
			unconditional.MergeInto(w.Type)
		}
	}
	switch {
	case !unconditional.IsEmpty():
		return unconditional
	case !v.CommentType.IsEmpty():
		return v.CommentType
	case !v.NativeType.IsEmpty():
		return v.NativeType
	}
	var all types.Union
	for _, w := range v.writes {
		all.MergeInto(w.Type)
	}
	return all
}

// Value returns the known value of the latest write, if that write is
// unconditional and carries one.
func (v *VarData) Value() *types.Value {
	if len(v.writes) == 0 || v.unset {
		return nil
	}
	last := v.writes[len(v.writes)-1]
	if last.Conditional {
		return nil
	}
	return last.Value
}
