package static

import sitter "github.com/smacker/go-tree-sitter"

// handleFunctionDef binds the function's name in the enclosing scope. Its
// parent set is the free variables captured at definition time plus the
// defining-scope references appearing in default-argument expressions
// (spec.md §4.3); default-argument expressions are evaluated now, so they
// are also recorded as live reads in the enclosing scope.
func (a *Analyzer) handleFunctionDef(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	name := text(n.ChildByFieldName("name"), src)
	bound, parents := a.paramBindings(n.ChildByFieldName("parameters"), src, killed, res)

	if body := n.ChildByFieldName("body"); body != nil {
		for _, free := range a.freeVariables(body, src, bound) {
			parents = append(parents, Ref{Root: free})
		}
	}

	killed[name] = true
	res.Assignments = append(res.Assignments, Assignment{Target: Ref{Root: name, Node: n.ChildByFieldName("name")}, Parents: parents})
}

// handleClassDef is grouped with function/lambda handling per spec.md
// §4.3's explicit wording ("Lambda/function/class definitions create a
// symbol whose parent set includes the free variables..."): base-class
// expressions are live now, the class body's free references become
// parents of the class symbol.
func (a *Analyzer) handleClassDef(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	name := text(n.ChildByFieldName("name"), src)
	var parents []Ref

	if bases := n.ChildByFieldName("superclasses"); bases != nil {
		refs := a.extractRefs(bases, src)
		a.recordLive(refs, killed, res)
		parents = append(parents, refs...)
	}

	if body := n.ChildByFieldName("body"); body != nil {
		for _, free := range a.freeVariables(body, src, map[string]bool{}) {
			parents = append(parents, Ref{Root: free})
		}
	}

	killed[name] = true
	res.Assignments = append(res.Assignments, Assignment{Target: Ref{Root: name, Node: n.ChildByFieldName("name")}, Parents: parents})
}

// lambdaFreeRefs computes the reference set contributed by a lambda
// expression wherever it appears (as an assignment RHS, a call argument,
// ...): default-argument refs (live now) plus free variables from the body,
// both folded into one Ref slice so the generic extractRefs pipeline can
// treat a lambda like any other sub-expression.
func (a *Analyzer) lambdaFreeRefs(n *sitter.Node, src []byte) []Ref {
	bound, parents := a.paramBindings(n.ChildByFieldName("parameters"), src, nil, nil)
	if body := n.ChildByFieldName("body"); body != nil {
		for _, free := range a.freeVariables(body, src, bound) {
			parents = append(parents, Ref{Root: free})
		}
	}
	return parents
}

// paramBindings walks a parameter list, returning the set of names it binds
// and the references contributed by default-argument expressions. When res
// is non-nil, default-argument refs are also recorded as live reads in the
// enclosing (defining) scope, since default values are evaluated at
// definition time.
func (a *Analyzer) paramBindings(params *sitter.Node, src []byte, killed map[string]bool, res *Result) (map[string]bool, []Ref) {
	bound := map[string]bool{}
	var parents []Ref
	if params == nil {
		return bound, parents
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			bound[text(p, src)] = true
		case "default_parameter", "typed_default_parameter":
			if pname := p.ChildByFieldName("name"); pname != nil {
				bound[text(pname, src)] = true
			}
			if pval := p.ChildByFieldName("value"); pval != nil {
				refs := a.extractRefs(pval, src)
				if res != nil {
					a.recordLive(refs, killed, res)
				}
				parents = append(parents, refs...)
			}
		case "typed_parameter":
			if pname := p.NamedChild(0); pname != nil {
				bound[text(pname, src)] = true
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if inner := p.NamedChild(0); inner != nil {
				bound[text(inner, src)] = true
			}
		}
	}
	return bound, parents
}
