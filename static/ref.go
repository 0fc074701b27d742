// Package static implements the static analyzer: given a cell's
// tree-sitter AST, it computes live references, assignments, kills, and
// call sites (spec.md §4.3). Analyzer.Analyze parses cell text with the
// tree-sitter Python grammar; Analyzer.AnalyzeNode walks a tree the caller
// has already parsed.
package static

import sitter "github.com/smacker/go-tree-sitter"

// PathElemKind distinguishes an attribute hop from a subscript hop in a
// dotted/indexed reference path.
type PathElemKind int

const (
	AttrElem PathElemKind = iota
	SubscriptElem
)

// PathElem is one hop of a Ref beyond its root name.
type PathElem struct {
	Kind PathElemKind
	// Attr holds the field name for an AttrElem.
	Attr string
	// SubscriptText holds the raw source text of the subscript expression
	// for a SubscriptElem (e.g. "0", "\"key\"", "i"); the static analyzer
	// does not evaluate it, only records it for later dynamic correlation.
	SubscriptText string
}

// Ref is a reference descriptor: either a bare name, or a dotted/indexed
// access path rooted at a name (spec.md §4.3: "each either a bare name, or
// a dotted/indexed access path rooted at a name").
type Ref struct {
	Root string
	Path []PathElem
	// Node is the AST node this reference was extracted from, kept so the
	// dynamic tracer can correlate a later runtime event at the same source
	// position.
	Node *sitter.Node
}

// IsBare reports whether the reference is a plain name with no
// attribute/subscript hops.
func (r Ref) IsBare() bool {
	return len(r.Path) == 0
}

func (r Ref) String() string {
	s := r.Root
	for _, p := range r.Path {
		if p.Kind == AttrElem {
			s += "." + p.Attr
		} else {
			s += "[" + p.SubscriptText + "]"
		}
	}
	return s
}

// Assignment records a left-hand target and the right-hand references that
// reach it (its static parent set), per spec.md §4.3.
type Assignment struct {
	Target    Ref
	Parents   []Ref
	Augmented bool
	// Declared marks an annotated assignment with no right-hand side
	// ("x: int"): it declares the name without defining it, so Parents is
	// empty and the checker should not treat Target as freshly written.
	Declared bool
}

// CallSite records a call expression for downstream edge inference
// (external-call handler matching, interprocedural argument binding).
type CallSite struct {
	Callee Ref
	Args   []Ref
	// Kwargs maps keyword-argument name to the reference passed for it.
	Kwargs map[string]Ref
	Node   *sitter.Node
}

// Result is the static analyzer's full output for one cell.
type Result struct {
	LiveRefs    []Ref
	Assignments []Assignment
	Kills       []string
	Calls       []CallSite
}
