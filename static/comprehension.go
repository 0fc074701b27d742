package static

import sitter "github.com/smacker/go-tree-sitter"

// comprehensionRefs handles list/set/dict comprehensions and generator
// expressions. spec.md §4.3: "Comprehensions introduce a new scope; the
// iterable expression is evaluated in the enclosing scope; loop variables
// are killed at scope end." The comprehension's own loop variables are
// bound only within this call's local `bound` set and never escape into
// the caller's `killed` map.
func (a *Analyzer) comprehensionRefs(n *sitter.Node, src []byte) []Ref {
	bound := map[string]bool{}
	var refs []Ref

	note := func(rs []Ref) {
		for _, r := range rs {
			if !bound[r.Root] {
				refs = append(refs, r)
			}
		}
	}

	// Bind every loop variable before noting the body, which precedes the
	// for_in_clause in the tree but is evaluated inside the loop.
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "for_in_clause" {
			continue
		}
		if right := child.ChildByFieldName("right"); right != nil {
			note(a.extractRefs(right, src))
		}
		bindPatternNames(a, child.ChildByFieldName("left"), src, bound)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "for_in_clause":
		case "if_clause":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				note(a.extractRefs(child.NamedChild(j), src))
			}
		default:
			note(a.extractRefs(child, src))
		}
	}
	return refs
}
