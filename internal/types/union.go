package types

import (
	"sort"
	"strings"
)

// Union is a deduplicated set of discrete types an expression may evaluate
// to. The zero value is the empty union, which means "no inferable type";
// callers treat it as absence and never as a meaningful empty set.
type Union struct {
	members []DiscreteType
}

// Hierarchy answers class relationship questions for instanceof checks.
type Hierarchy interface {
	// IsA reports whether classFQN is targetFQN or extends/implements it.
	IsA(classFQN, targetFQN string) bool
}

// NewUnion builds a union from the given members, dropping duplicates.
func NewUnion(members ...DiscreteType) Union {
	var u Union
	for _, m := range members {
		u.addInPlace(m)
	}
	return u
}

func (u Union) IsEmpty() bool { return len(u.members) == 0 }
func (u Union) Len() int      { return len(u.members) }

// Types returns a copy of the members.
func (u Union) Types() []DiscreteType {
	return append([]DiscreteType(nil), u.members...)
}

func (u Union) clone() Union {
	return Union{members: append([]DiscreteType(nil), u.members...)}
}

func (u *Union) addInPlace(t DiscreteType) {
	key := t.Key()
	for _, m := range u.members {
		if m.Key() == key {
			return
		}
	}
	u.members = append(u.members, t)
}

// Add returns a new union that also contains t.
func (u Union) Add(t DiscreteType) Union {
	out := u.clone()
	out.addInPlace(t)
	return out
}

// MergeInto adds every member of other into u.
func (u *Union) MergeInto(other Union) {
	for _, m := range other.members {
		u.addInPlace(m)
	}
}

// Merge returns the set union of a and b.
func Merge(a, b Union) Union {
	out := a.clone()
	out.MergeInto(b)
	return out
}

// Reduce merges all unions into one.
func Reduce(unions ...Union) Union {
	var out Union
	for _, u := range unions {
		out.MergeInto(u)
	}
	return out
}

// SingleType returns the lone member when the union has exactly one.
func (u Union) SingleType() (DiscreteType, bool) {
	if len(u.members) != 1 {
		return DiscreteType{}, false
	}
	return u.members[0], true
}

// Contains reports whether t (by identity) is a member.
func (u Union) Contains(t DiscreteType) bool {
	key := t.Key()
	for _, m := range u.members {
		if m.Key() == key {
			return true
		}
	}
	return false
}

// ContainsKind reports whether any member has the given kind.
func (u Union) ContainsKind(k Kind) bool {
	for _, m := range u.members {
		if m.Kind == k {
			return true
		}
	}
	return false
}

// OnlyKinds reports whether every member has one of the given kinds.
func (u Union) OnlyKinds(kinds ...Kind) bool {
	if u.IsEmpty() {
		return false
	}
outer:
	for _, m := range u.members {
		for _, k := range kinds {
			if m.Kind == k {
				continue outer
			}
		}
		return false
	}
	return true
}

// Equal reports set equality, independent of member order.
func (u Union) Equal(o Union) bool {
	if len(u.members) != len(o.members) {
		return false
	}
	for _, m := range u.members {
		if !o.Contains(m) {
			return false
		}
	}
	return true
}

// Filter returns the members for which keep returns true.
func (u Union) Filter(keep func(DiscreteType) bool) Union {
	var out Union
	for _, m := range u.members {
		if keep(m) {
			out.members = append(out.members, m)
		}
	}
	return out
}

func (u Union) IsNullable() bool { return u.ContainsKind(KindNull) }

// WithoutNull drops null from the union.
func (u Union) WithoutNull() Union {
	return u.Filter(func(t DiscreteType) bool { return t.Kind != KindNull })
}

// IsKnown reports whether the union carries at least one member that is not
// unknown or mixed.
func (u Union) IsKnown() bool {
	for _, m := range u.members {
		if m.Kind != KindUnknown && m.Kind != KindMixed {
			return true
		}
	}
	return false
}

// CanBeInstanceOf reports whether a value of type t could be an instance of
// the class targetFQN.
func CanBeInstanceOf(t DiscreteType, targetFQN string, h Hierarchy) bool {
	switch t.Kind {
	case KindNamed:
		if sameClass(t.FQN, targetFQN) {
			return true
		}
		if h == nil {
			return false
		}
		return h.IsA(t.FQN, targetFQN) || h.IsA(targetFQN, t.FQN)
	case KindUnknown, KindMixed, KindObject:
		return true
	case KindCallable:
		return sameClass(targetFQN, "Closure")
	case KindIterable:
		return h != nil && h.IsA(targetFQN, "Traversable") || sameClass(targetFQN, "Traversable")
	}
	return false
}

// MustBeInstanceOf reports whether every value of type t is an instance of targetFQN.
func MustBeInstanceOf(t DiscreteType, targetFQN string, h Hierarchy) bool {
	if t.Kind != KindNamed {
		return false
	}
	if sameClass(t.FQN, targetFQN) {
		return true
	}
	return h != nil && h.IsA(t.FQN, targetFQN)
}

// IsInstanceOf reports whether at least one member could be an instance of targetFQN.
func (u Union) IsInstanceOf(targetFQN string, h Hierarchy) bool {
	for _, m := range u.members {
		if CanBeInstanceOf(m, targetFQN, h) {
			return true
		}
	}
	return false
}

func sameClass(a, b string) bool {
	return strings.EqualFold(strings.TrimLeft(a, "\\"), strings.TrimLeft(b, "\\"))
}

func (u Union) key() string {
	keys := make([]string, 0, len(u.members))
	for _, m := range u.members {
		keys = append(keys, m.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// String renders the union as a PHP union type, e.g. "int|string|\App\User".
func (u Union) String() string {
	if u.IsEmpty() {
		return "unknown"
	}
	parts := make([]string, 0, len(u.members))
	for _, m := range u.members {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "|")
}
