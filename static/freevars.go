package static

import sitter "github.com/smacker/go-tree-sitter"

// freeVariables walks n (a function/class/lambda body) and returns, in
// first-use order, every name read that is not bound — by parameter,
// assignment, for-target, or import — somewhere in that same body before
// (or, conservatively, anywhere in) the read. This is the "free variables
// captured at definition time" spec.md §4.3 asks for. Nested def/class/
// lambda bodies are not recursed into beyond their own reference set,
// mirroring how Python scoping treats a nested function as its own frame.
func (a *Analyzer) freeVariables(n *sitter.Node, src []byte, bound map[string]bool) []string {
	local := make(map[string]bool, len(bound))
	for k := range bound {
		local[k] = true
	}
	seen := map[string]bool{}
	var free []string

	note := func(refs []Ref) {
		for _, r := range refs {
			if local[r.Root] || seen[r.Root] {
				continue
			}
			seen[r.Root] = true
			free = append(free, r.Root)
		}
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "block":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				walk(n.NamedChild(i))
			}
		case "assignment":
			left := n.ChildByFieldName("left")
			if right := n.ChildByFieldName("right"); right != nil {
				note(a.extractRefs(right, src))
			}
			bindPatternNames(a, left, src, local)
		case "augmented_assignment":
			left := n.ChildByFieldName("left")
			note(a.extractRefs(left, src))
			if right := n.ChildByFieldName("right"); right != nil {
				note(a.extractRefs(right, src))
			}
			bindPatternNames(a, left, src, local)
		case "named_expression":
			if value := n.ChildByFieldName("value"); value != nil {
				note(a.extractRefs(value, src))
			}
			if name := n.ChildByFieldName("name"); name != nil {
				local[text(name, src)] = true
			}
		case "for_statement":
			if right := n.ChildByFieldName("right"); right != nil {
				note(a.extractRefs(right, src))
			}
			bindPatternNames(a, n.ChildByFieldName("left"), src, local)
			walk(n.ChildByFieldName("body"))
		case "function_definition", "class_definition":
			note(a.extractRefs(n, src))
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				local[text(nameNode, src)] = true
			}
		case "lambda":
			note(a.extractRefs(n, src))
		case "import_statement", "import_from_statement":
			moduleName := n.ChildByFieldName("module_name")
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child == moduleName {
					continue
				}
				if name := importBindingName(child, src); name != "" {
					local[name] = true
				}
			}
		case "global_statement", "nonlocal_statement", "delete_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				local[text(n.NamedChild(i), src)] = true
			}
		case "identifier":
			note([]Ref{{Root: text(n, src), Node: n}})
		default:
			for i := 0; i < int(n.NamedChildCount()); i++ {
				walk(n.NamedChild(i))
			}
		}
	}
	walk(n)
	return free
}
