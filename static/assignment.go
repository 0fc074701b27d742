package static

import sitter "github.com/smacker/go-tree-sitter"

// handleAssignment processes `assignment` and `augmented_assignment` nodes,
// including the edge cases spec.md §4.3 calls out: augmented assignment
// reads and writes its target, annotated assignment without a right-hand
// side only declares, and tuple/list unpacking gets fine-grained per-target
// parent sets when the right-hand side is itself a literal tuple/list of
// matching arity.
func (a *Analyzer) handleAssignment(n *sitter.Node, src []byte, killed map[string]bool, res *Result, augmented bool) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	if right == nil {
		a.declareTargets(left, src, res)
		return
	}

	if augmented {
		leftRefs := a.extractRefs(left, src)
		rightRefs := a.extractRefs(right, src)
		a.recordLive(leftRefs, killed, res)
		a.recordLive(rightRefs, killed, res)
		parents := append(append([]Ref{}, leftRefs...), rightRefs...)
		a.assignTargets(left, src, parents, killed, res, true, false)
		return
	}

	rhsRefs := a.extractRefs(right, src)
	a.recordLive(rhsRefs, killed, res)

	if targets := tupleUnpackTargets(left); targets != nil {
		if elems := tupleLiteralElems(right); elems != nil && len(elems) == len(targets) {
			for i, tgt := range targets {
				a.assignTargets(tgt, src, a.extractRefs(elems[i], src), killed, res, false, false)
			}
			return
		}
		for _, tgt := range targets {
			a.assignTargets(tgt, src, rhsRefs, killed, res, false, false)
		}
		return
	}

	a.assignTargets(left, src, rhsRefs, killed, res, false, false)
}

// tupleUnpackTargets returns the element target nodes if left is a
// comma-separated or bracketed unpacking pattern, else nil.
func tupleUnpackTargets(left *sitter.Node) []*sitter.Node {
	switch left.Type() {
	case "pattern_list", "tuple_pattern", "list_pattern":
		var out []*sitter.Node
		for i := 0; i < int(left.NamedChildCount()); i++ {
			out = append(out, left.NamedChild(i))
		}
		return out
	}
	return nil
}

// tupleLiteralElems returns the element expression nodes if right is a
// literal tuple/list/expression-list, so fine-grained per-element parent
// sets can be computed; returns nil otherwise.
func tupleLiteralElems(right *sitter.Node) []*sitter.Node {
	switch right.Type() {
	case "tuple", "list", "expression_list":
		var out []*sitter.Node
		for i := 0; i < int(right.NamedChildCount()); i++ {
			out = append(out, right.NamedChild(i))
		}
		return out
	}
	return nil
}

// assignTargets binds target to parents, recursing through unpacking
// patterns. An attribute/subscript target is a mutation on its root name,
// not a rebinding: spec.md §4.3, "Attribute/subscript on the LHS is a
// mutation on the root name (treated as assignment to the path, mutation to
// the root)" — so its root is left out of `killed`.
func (a *Analyzer) assignTargets(target *sitter.Node, src []byte, parents []Ref, killed map[string]bool, res *Result, augmented, declared bool) {
	switch target.Type() {
	case "identifier":
		name := text(target, src)
		killed[name] = true
		res.Assignments = append(res.Assignments, Assignment{
			Target: Ref{Root: name, Node: target}, Parents: parents, Augmented: augmented, Declared: declared,
		})
	case "attribute", "subscript":
		if ref := a.singleChainRef(target, src); ref != nil {
			res.Assignments = append(res.Assignments, Assignment{Target: *ref, Parents: parents, Augmented: augmented})
		}
	case "pattern_list", "tuple_pattern", "list_pattern":
		for i := 0; i < int(target.NamedChildCount()); i++ {
			a.assignTargets(target.NamedChild(i), src, parents, killed, res, augmented, declared)
		}
	default:
		bindPatternNames(a, target, src, killed)
	}
}

// declareTargets handles an annotated assignment with no right-hand side:
// it declares the name (so later code can reference it as bound) but does
// not define it — no Parents, and the name is not marked live-killed since
// no value exists yet.
func (a *Analyzer) declareTargets(target *sitter.Node, src []byte, res *Result) {
	if target.Type() != "identifier" {
		return
	}
	res.Assignments = append(res.Assignments, Assignment{Target: Ref{Root: text(target, src), Node: target}, Declared: true})
}

// handleNamedExpression processes the walrus operator `(x := expr)`, which
// both reads expr and assigns x in the enclosing scope.
func (a *Analyzer) handleNamedExpression(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	refs := a.extractRefs(value, src)
	a.recordLive(refs, killed, res)
	if name == nil {
		return
	}
	nm := text(name, src)
	killed[nm] = true
	res.Assignments = append(res.Assignments, Assignment{Target: Ref{Root: nm, Node: name}, Parents: refs})
}

// handleDelete processes `del a, b.c, d[0]`: plain names become kills;
// attribute/subscript targets are recorded as live reads of their root
// (reading in order to remove an entry), matching spec.md §4.3's treatment
// of LHS attribute/subscript as root-level activity rather than a rebind.
func (a *Analyzer) handleDelete(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		a.deleteTarget(n.NamedChild(i), src, killed, res)
	}
}

func (a *Analyzer) deleteTarget(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	switch n.Type() {
	case "identifier":
		name := text(n, src)
		res.Kills = append(res.Kills, name)
		killed[name] = true
	case "expression_list", "tuple":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			a.deleteTarget(n.NamedChild(i), src, killed, res)
		}
	default:
		a.recordLive(a.extractRefs(n, src), killed, res)
	}
}

// handleImport processes `import a.b as c` / `from a import b, c as d`:
// every bound name kills any prior binding of that name
// (spec.md §4.3: "Import statements kill any prior binding of the imported
// name").
func (a *Analyzer) handleImport(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	moduleName := n.ChildByFieldName("module_name")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == moduleName {
			continue
		}
		name := importBindingName(child, src)
		if name == "" {
			continue
		}
		res.Kills = append(res.Kills, name)
		killed[name] = true
		res.Assignments = append(res.Assignments, Assignment{Target: Ref{Root: name, Node: child}})
	}
}

func importBindingName(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "dotted_name":
		if first := n.NamedChild(0); first != nil {
			return text(first, src)
		}
		return text(n, src)
	case "aliased_import":
		if alias := n.ChildByFieldName("alias"); alias != nil {
			return text(alias, src)
		}
		return importBindingName(n.ChildByFieldName("name"), src)
	case "identifier":
		return text(n, src)
	default:
		return ""
	}
}

// bindPatternNames binds every identifier found within n into the killed
// (or free-variable "bound") set, without emitting Assignment records. Used
// for best-effort binding of unusual target shapes.
func bindPatternNames(a *Analyzer, n *sitter.Node, src []byte, bound map[string]bool) {
	for _, r := range a.extractRefs(n, src) {
		bound[r.Root] = true
	}
}
