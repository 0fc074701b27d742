package symtab

import "github.com/viant/dflow/clock"

// SymbolID is an arena index into Store's symbol table. Edges reference
// symbols by ID rather than pointer so the graph can be a flat index-based
// structure (see DESIGN.md, "arena indices").
type SymbolID int

// InvalidSymbolID marks the absence of a symbol.
const InvalidSymbolID SymbolID = -1

// Kind classifies what a Symbol currently holds.
type Kind int

const (
	Regular Kind = iota
	Class
	Function
	Module
	Import
	Anonymous
)

func (k Kind) String() string {
	switch k {
	case Class:
		return "class"
	case Function:
		return "function"
	case Module:
		return "module"
	case Import:
		return "import"
	case Anonymous:
		return "anonymous"
	default:
		return "regular"
	}
}

// EdgeKind distinguishes evidence the static analyzer produced from evidence
// the dynamic tracer observed. Either presence induces a dataflow edge.
type EdgeKind int

const (
	Static EdgeKind = iota
	Dynamic
)

// Edge is a single directed parent->child dataflow edge, tagged with the
// timestamp at which it was induced (spec.md §3: "For every edge p -> s,
// p.defined_at is recorded on the edge").
type Edge struct {
	From SymbolID
	To   SymbolID
	At   clock.Tick
	Kind EdgeKind
}

// ValueHandle is an opaque, comparable identity for a runtime value as
// reported by the host language runtime's tracer. The engine never
// inspects the value itself, only whether two handles are the same value
// (identity) across observations.
type ValueHandle any

// Symbol is the fundamental versioned datum: a named value, attribute, or
// subscript entry, per spec.md §3.
type Symbol struct {
	ID   SymbolID
	Name string

	ContainingScope *Scope
	Namespace       *Namespace // non-nil if this symbol owns attributes/items

	DefinedAt  clock.Tick
	RequiredAt clock.Tick

	// UpdatedDeps holds the IDs of aliases mutated (via Store.Mutate) since
	// this symbol was last bound; staleness checks treat a non-empty set as
	// stale. Upsert clears it on rebinding.
	UpdatedDeps map[SymbolID]bool

	StaticParents   []Edge
	StaticChildren  []Edge
	DynamicParents  []Edge
	DynamicChildren []Edge

	// aliasGroup points at the shared equivalence-class record; nil until the
	// symbol has ever been aliased.
	aliasGroup *aliasGroup

	// ClassOf points at the prototype namespace used at call sites when this
	// symbol holds a callable/class.
	ClassOf *Namespace

	Kind Kind

	// ValueHandle is the last runtime value handle bound to this symbol,
	// used by Store.Upsert to detect rebinding vs. in-place mutation.
	ValueHandle ValueHandle
	hasValue    bool

	// deleted marks a symbol killed from its scope; the object and its
	// history are retained so existing children keep a valid parent.
	deleted bool
}

// aliasGroup is a union-find-style equivalence class of symbols that share
// the same underlying value. Mutating the namespace of any member is
// visible through every other member (spec.md §3: "Aliasing is an
// equivalence relation").
type aliasGroup struct {
	members map[SymbolID]bool
}

// Aliases returns the IDs of every symbol in s's alias equivalence class,
// excluding s itself. An un-aliased symbol returns nil.
func (s *Symbol) Aliases() []SymbolID {
	if s.aliasGroup == nil {
		return nil
	}
	out := make([]SymbolID, 0, len(s.aliasGroup.members)-1)
	for id := range s.aliasGroup.members {
		if id != s.ID {
			out = append(out, id)
		}
	}
	return out
}

// IsDeleted reports whether the symbol has been killed from its scope.
func (s *Symbol) IsDeleted() bool {
	return s.deleted
}

// Stale reports whether s has an ancestor (static or dynamic, at any
// distance) fresher than s, or has a pending update notification from an
// alias mutation (spec.md §1: a cell is waiting if it references a symbol
// whose *transitive* dependencies include something modified since that
// cell last ran; spec.md §4.6: stale(s) = (s.updated_deps != empty) or
// (exists p in transitive-parents(s): p.defined_at > s.defined_at)).
//
// The walk is a plain DFS over the parent edges resolve can reach, guarded
// by a visited set so a cycle (e.g. two symbols aliased through a call
// frame) terminates instead of looping.
func (s *Symbol) Stale(resolve func(SymbolID) *Symbol) bool {
	if len(s.UpdatedDeps) > 0 {
		return true
	}
	visited := map[SymbolID]bool{s.ID: true}
	return hasNewerAncestor(s, s.DefinedAt, resolve, visited)
}

// hasNewerAncestor walks cur's parent edges looking for any ancestor, at
// any distance, defined after threshold (or itself carrying a pending alias
// update). threshold stays fixed at the original symbol's DefinedAt for the
// whole walk, since what matters is whether anything in the chain moved
// since that symbol last ran, not whether each intermediate link moved
// relative to its own immediate child.
func hasNewerAncestor(cur *Symbol, threshold clock.Tick, resolve func(SymbolID) *Symbol, visited map[SymbolID]bool) bool {
	for _, e := range cur.Parents() {
		if visited[e.From] {
			continue
		}
		visited[e.From] = true
		p := resolve(e.From)
		if p == nil {
			continue
		}
		if p.DefinedAt.After(threshold) || len(p.UpdatedDeps) > 0 {
			return true
		}
		if hasNewerAncestor(p, threshold, resolve, visited) {
			return true
		}
	}
	return false
}

// Parents returns the combined static+dynamic parent edges.
func (s *Symbol) Parents() []Edge {
	out := make([]Edge, 0, len(s.StaticParents)+len(s.DynamicParents))
	out = append(out, s.StaticParents...)
	out = append(out, s.DynamicParents...)
	return out
}

// Children returns the combined static+dynamic child edges.
func (s *Symbol) Children() []Edge {
	out := make([]Edge, 0, len(s.StaticChildren)+len(s.DynamicChildren))
	out = append(out, s.StaticChildren...)
	out = append(out, s.DynamicChildren...)
	return out
}
