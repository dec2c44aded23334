package symbols

import (
	"sort"
	"strings"
	"sync"
)

// Handle guards one symbol record. Readers may run concurrently; writers
// are exclusive.
type Handle[T any] struct {
	mu   sync.RWMutex
	data *T
}

func newHandle[T any](data *T) *Handle[T] {
	return &Handle[T]{data: data}
}

// Read executes fn while holding a read lock on the record. The callback
// must not retain the pointer beyond its scope.
func (h *Handle[T]) Read(fn func(*T)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.data)
}

// Write executes fn while holding the write lock on the record.
func (h *Handle[T]) Write(fn func(*T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.data)
}

// Store holds the class, function and constant tables shared by every
// compilation unit of a run. Tables are keyed by fully qualified name.
type Store struct {
	mu        sync.RWMutex
	classes   map[string]*Handle[ClassData]
	functions map[string]*Handle[FunctionData]
	constants map[string]*Handle[ConstantData]
}

// NewStore returns a store seeded with the builtin PHP symbols.
func NewStore() *Store {
	s := NewEmptyStore()
	seedBuiltins(s)
	return s
}

// NewEmptyStore returns a store without builtins.
func NewEmptyStore() *Store {
	return &Store{
		classes:   make(map[string]*Handle[ClassData]),
		functions: make(map[string]*Handle[FunctionData]),
		constants: make(map[string]*Handle[ConstantData]),
	}
}

func classKey(fqn string) string { return strings.ToLower(NormalizeFQN(fqn)) }

// constantKey lowers the namespace but keeps the constant name case-sensitive.
func constantKey(fqn string) string {
	fqn = NormalizeFQN(fqn)
	ns := NamespaceOf(fqn)
	if ns == "" {
		return fqn
	}
	return strings.ToLower(ns) + "\\" + ShortName(fqn)
}

// AddClass registers or replaces a class record and returns its handle.
func (s *Store) AddClass(c *ClassData) *Handle[ClassData] {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := classKey(c.FQN)
	if h, ok := s.classes[key]; ok {
		h.Write(func(existing *ClassData) { *existing = *c })
		return h
	}
	h := newHandle(c)
	s.classes[key] = h
	return h
}

// Class looks up a class, interface, trait or enum by FQN.
func (s *Store) Class(fqn string) (*Handle[ClassData], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.classes[classKey(fqn)]
	return h, ok
}

// HasClass reports whether the class is known.
func (s *Store) HasClass(fqn string) bool {
	_, ok := s.Class(fqn)
	return ok
}

// AddFunction registers or replaces a global function.
func (s *Store) AddFunction(f *FunctionData) *Handle[FunctionData] {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := classKey(f.FQN)
	if h, ok := s.functions[key]; ok {
		h.Write(func(existing *FunctionData) { *existing = *f })
		return h
	}
	h := newHandle(f)
	s.functions[key] = h
	return h
}

// Function looks up a global function by FQN. Function names are case-insensitive.
func (s *Store) Function(fqn string) (*Handle[FunctionData], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.functions[classKey(fqn)]
	return h, ok
}

// AddConstant registers or replaces a global constant.
func (s *Store) AddConstant(c *ConstantData) *Handle[ConstantData] {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := constantKey(c.FQN)
	if h, ok := s.constants[key]; ok {
		h.Write(func(existing *ConstantData) { *existing = *c })
		return h
	}
	h := newHandle(c)
	s.constants[key] = h
	return h
}

// Constant looks up a global constant by FQN.
func (s *Store) Constant(fqn string) (*Handle[ConstantData], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.constants[constantKey(fqn)]
	return h, ok
}

// ClassNames returns the FQNs of all known classes, sorted.
func (s *Store) ClassNames() []string {
	s.mu.RLock()
	handles := make([]*Handle[ClassData], 0, len(s.classes))
	for _, h := range s.classes {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(handles))
	for _, h := range handles {
		h.Read(func(c *ClassData) { names = append(names, c.FQN) })
	}
	sort.Strings(names)
	return names
}

// FunctionNames returns the FQNs of all known functions, sorted.
func (s *Store) FunctionNames() []string {
	s.mu.RLock()
	handles := make([]*Handle[FunctionData], 0, len(s.functions))
	for _, h := range s.functions {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(handles))
	for _, h := range handles {
		h.Read(func(f *FunctionData) { names = append(names, f.FQN) })
	}
	sort.Strings(names)
	return names
}

// RemoveFile drops every symbol declared in the given file, so that the
// file can be analyzed again.
func (s *Store) RemoveFile(file string) {
	if file == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, h := range s.classes {
		var match bool
		h.Read(func(c *ClassData) { match = c.File == file })
		if match {
			delete(s.classes, key)
		}
	}
	for key, h := range s.functions {
		var match bool
		h.Read(func(f *FunctionData) { match = f.File == file })
		if match {
			delete(s.functions, key)
		}
	}
	for key, h := range s.constants {
		var match bool
		h.Read(func(c *ConstantData) { match = c.File == file })
		if match {
			delete(s.constants, key)
		}
	}
}

func (s *Store) directParents(fqn string) []string {
	h, ok := s.Class(fqn)
	if !ok {
		return nil
	}
	var parents []string
	h.Read(func(c *ClassData) { parents = c.Parents() })
	return parents
}

// Ancestors returns every supertype of the class, nearest first.
func (s *Store) Ancestors(fqn string) []string {
	queue := s.directParents(fqn)
	seen := map[string]struct{}{classKey(fqn): {}}
	var result []string

	for len(queue) > 0 {
		cur := NormalizeFQN(queue[0])
		queue = queue[1:]
		if cur == "" {
			continue
		}
		key := classKey(cur)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, cur)
		queue = append(queue, s.directParents(cur)...)
	}
	return result
}

// IsA reports whether classFQN is targetFQN or one of its descendants.
func (s *Store) IsA(classFQN, targetFQN string) bool {
	target := classKey(targetFQN)
	if classKey(classFQN) == target {
		return true
	}
	for _, ancestor := range s.Ancestors(classFQN) {
		if classKey(ancestor) == target {
			return true
		}
	}
	return false
}

// LookupMethod finds a method on the class or its ancestors.
func (s *Store) LookupMethod(classFQN, name string) (*FunctionData, bool) {
	for _, fqn := range append([]string{classFQN}, s.Ancestors(classFQN)...) {
		h, ok := s.Class(fqn)
		if !ok {
			continue
		}
		var found *FunctionData
		h.Read(func(c *ClassData) {
			if m, ok := c.Method(name); ok {
				copied := *m
				found = &copied
			}
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// LookupProperty finds a property on the class or its ancestors.
func (s *Store) LookupProperty(classFQN, name string) (*PropertyData, bool) {
	for _, fqn := range append([]string{classFQN}, s.Ancestors(classFQN)...) {
		h, ok := s.Class(fqn)
		if !ok {
			continue
		}
		var found *PropertyData
		h.Read(func(c *ClassData) {
			if p, ok := c.Properties[name]; ok {
				copied := *p
				found = &copied
			}
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// LookupClassConstant finds a class constant on the class or its ancestors.
func (s *Store) LookupClassConstant(classFQN, name string) (*ConstantData, bool) {
	for _, fqn := range append([]string{classFQN}, s.Ancestors(classFQN)...) {
		h, ok := s.Class(fqn)
		if !ok {
			continue
		}
		var found *ConstantData
		h.Read(func(c *ClassData) {
			if k, ok := c.Constants[name]; ok {
				copied := *k
				found = &copied
			}
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}
