// Package symtab is the engine's entity repository: Symbol, Scope, and
// Namespace. It owns identity, versioning, and parent/child edges; only the
// tracer adapter and the static analyzer mutate it, and only during
// host-initiated events (spec.md §5).
package symtab

import "github.com/viant/dflow/clock"

// Store is the symbol arena plus the union-find alias index. One Store is
// owned by one engine instance — no ambient global state (spec.md §9).
type Store struct {
	arena []*Symbol
}

// NewStore returns an empty symbol store.
func NewStore() *Store {
	return &Store{}
}

// Get dereferences a SymbolID into its Symbol, or nil if id is out of range
// or InvalidSymbolID.
func (st *Store) Get(id SymbolID) *Symbol {
	if id < 0 || int(id) >= len(st.arena) {
		return nil
	}
	return st.arena[id]
}

func (st *Store) alloc(name string, scope *Scope) *Symbol {
	sym := &Symbol{
		ID:              SymbolID(len(st.arena)),
		Name:            name,
		ContainingScope: scope,
		UpdatedDeps:     make(map[SymbolID]bool),
	}
	st.arena = append(st.arena, sym)
	return sym
}

// Upsert returns the existing symbol bound to name in scope, or allocates a
// fresh one. Rebinding an existing name to a different value handle bumps
// DefinedAt to ts and detaches the symbol from its previous alias
// equivalence class (spec.md §4.2): the new value is, by definition, not
// the same object the old aliases pointed at. The caller is responsible for
// re-establishing aliasing (via Alias) and for migrating/discarding the
// previous Namespace, since only the caller (the tracer, which sees the
// runtime value) knows whether the new value's class is compatible enough
// to keep reusing the old namespace.
func (st *Store) Upsert(scope *Scope, name string, handle ValueHandle, ts clock.Tick) *Symbol {
	if sym, ok := scope.Names[name]; ok && !sym.deleted {
		switch {
		case !sym.hasValue:
			sym.ValueHandle = handle
			sym.hasValue = true
			sym.DefinedAt = ts
		case sym.ValueHandle != handle:
			sym.ValueHandle = handle
			sym.DefinedAt = ts
			sym.UpdatedDeps = make(map[SymbolID]bool)
			st.detachAlias(sym)
		}
		return sym
	}
	sym := st.alloc(name, scope)
	sym.ValueHandle = handle
	sym.hasValue = true
	sym.DefinedAt = ts
	scope.Bind(name, sym)
	return sym
}

// UpsertItem is Upsert's subscript-entry counterpart: it resolves or
// allocates the symbol at key within ns, using ns's underlying Scope for
// naming/identity purposes but ns.Items (keyed by the hashed subscript Key,
// not a name string) for storage.
func (st *Store) UpsertItem(ns *Namespace, key Key, handle ValueHandle, ts clock.Tick) *Symbol {
	if sym, ok := ns.Items[key]; ok && !sym.deleted {
		switch {
		case !sym.hasValue:
			sym.ValueHandle = handle
			sym.hasValue = true
			sym.DefinedAt = ts
		case sym.ValueHandle != handle:
			sym.ValueHandle = handle
			sym.DefinedAt = ts
			sym.UpdatedDeps = make(map[SymbolID]bool)
			st.detachAlias(sym)
		}
		return sym
	}
	sym := st.alloc(key.String(), ns.Scope)
	sym.ValueHandle = handle
	sym.hasValue = true
	sym.DefinedAt = ts
	ns.Items[key] = sym
	return sym
}

// NewAnonymous allocates a symbol bound to no scope, for transient
// expression results (a call's return value) that later statements may
// still reference structurally through edges even though no name is ever
// bound to them (spec.md §4.4, call_return).
func (st *Store) NewAnonymous(handle ValueHandle, ts clock.Tick) *Symbol {
	sym := st.alloc("", nil)
	sym.Kind = Anonymous
	sym.ValueHandle = handle
	sym.hasValue = true
	sym.DefinedAt = ts
	return sym
}

// Lookup walks scope's parent chain exactly like Scope.Find; it is the
// read-only counterpart to Upsert, used to resolve a live reference without
// creating or rebinding anything.
func (st *Store) Lookup(scope *Scope, name string) *Symbol {
	return scope.Find(name)
}

// Mutate bumps s's DefinedAt to ts and propagates an update notification to
// every symbol in s's alias equivalence class. It does not touch s's
// children: their staleness is derived lazily from parent/child edges plus
// UpdatedDeps, never stored forward (spec.md §4.2).
func (st *Store) Mutate(s *Symbol, ts clock.Tick) {
	s.DefinedAt = ts
	for _, id := range s.Aliases() {
		if alias := st.Get(id); alias != nil {
			alias.UpdatedDeps[s.ID] = true
		}
	}
}

// AddParent records a p->s edge tagged at ts and kind, and its reverse
// child edge on p.
func (st *Store) AddParent(s, p *Symbol, ts clock.Tick, kind EdgeKind) {
	edge := Edge{From: p.ID, To: s.ID, At: ts, Kind: kind}
	switch kind {
	case Static:
		s.StaticParents = append(s.StaticParents, edge)
		p.StaticChildren = append(p.StaticChildren, edge)
	default:
		s.DynamicParents = append(s.DynamicParents, edge)
		p.DynamicChildren = append(p.DynamicChildren, edge)
	}
}

// Kill marks name unbound in s's scope without destroying the Symbol
// object: existing children keep a valid (if now-dangling) parent.
func (st *Store) Kill(s *Symbol) {
	s.deleted = true
}

// Alias merges a and b into the same equivalence class, so future
// Mutate/Stale calls on either are visible through both
// (spec.md §3: "Aliasing is an equivalence relation").
func (st *Store) Alias(a, b *Symbol) {
	switch {
	case a.aliasGroup == nil && b.aliasGroup == nil:
		g := &aliasGroup{members: map[SymbolID]bool{a.ID: true, b.ID: true}}
		a.aliasGroup, b.aliasGroup = g, g
	case a.aliasGroup == nil:
		b.aliasGroup.members[a.ID] = true
		a.aliasGroup = b.aliasGroup
	case b.aliasGroup == nil:
		a.aliasGroup.members[b.ID] = true
		b.aliasGroup = a.aliasGroup
	case a.aliasGroup != b.aliasGroup:
		src, dst := a.aliasGroup, b.aliasGroup
		for id := range src.members {
			dst.members[id] = true
			if sym := st.Get(id); sym != nil {
				sym.aliasGroup = dst
			}
		}
	}
}

func (st *Store) detachAlias(sym *Symbol) {
	if sym.aliasGroup == nil {
		return
	}
	delete(sym.aliasGroup.members, sym.ID)
	if len(sym.aliasGroup.members) <= 1 {
		for id := range sym.aliasGroup.members {
			if other := st.Get(id); other != nil {
				other.aliasGroup = nil
			}
		}
	}
	sym.aliasGroup = nil
}

// Symbols returns every symbol ever allocated, including deleted ones, in
// allocation order, for callers that walk the whole arena.
func (st *Store) Symbols() []*Symbol {
	return st.arena
}
