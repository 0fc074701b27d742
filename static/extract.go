package static

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// extractRefs recursively collects every live reference within an
// expression subtree. identifier/attribute/subscript chains collapse into
// a single Ref with a Path (spec.md §4.3: "a dotted/indexed access path
// rooted at a name"); every other node kind (binary/boolean/call/...) is
// walked structurally, grounded on the teacher's extractIdentifiers
// (analyzer/identifier.go), which performs the same collapse-or-recurse
// dispatch over selector_expression/index_expression vs. everything else.
func (a *Analyzer) extractRefs(n *sitter.Node, src []byte) []Ref {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return []Ref{{Root: text(n, src), Node: n}}

	case "attribute":
		obj := n.ChildByFieldName("object")
		attrNode := n.ChildByFieldName("attribute")
		if base := a.singleChainRef(obj, src); base != nil {
			base.Path = append(append([]PathElem{}, base.Path...), PathElem{Kind: AttrElem, Attr: text(attrNode, src)})
			base.Node = n
			return []Ref{*base}
		}
		return a.extractRefs(obj, src)

	case "subscript":
		return a.extractSubscript(n, src)

	case "call":
		return a.extractCallRefs(n, src)

	case "lambda":
		return a.lambdaFreeRefs(n, src)

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		return a.comprehensionRefs(n, src)

	default:
		var out []Ref
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, a.extractRefs(n.NamedChild(i), src)...)
		}
		return out
	}
}

// singleChainRef returns the single Ref representing n if n is itself an
// identifier/attribute/subscript chain, or nil if n is some more complex
// expression (a call, a literal, a binary expression, ...) that cannot be
// collapsed into one path-rooted reference.
func (a *Analyzer) singleChainRef(n *sitter.Node, src []byte) *Ref {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		r := Ref{Root: text(n, src), Node: n}
		return &r
	case "attribute", "subscript":
		refs := a.extractRefs(n, src)
		if len(refs) > 0 {
			r := refs[0]
			return &r
		}
	}
	return nil
}

func (a *Analyzer) extractSubscript(n *sitter.Node, src []byte) []Ref {
	valueNode := n.ChildByFieldName("value")
	var subNodes []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == valueNode {
			continue
		}
		subNodes = append(subNodes, c)
	}

	var out []Ref
	subTexts := make([]string, 0, len(subNodes))
	for _, sn := range subNodes {
		subTexts = append(subTexts, text(sn, src))
		out = append(out, a.extractRefs(sn, src)...)
	}

	if base := a.singleChainRef(valueNode, src); base != nil {
		elem := PathElem{Kind: SubscriptElem, SubscriptText: strings.Join(subTexts, ", ")}
		base.Path = append(append([]PathElem{}, base.Path...), elem)
		base.Node = n
		out = append([]Ref{*base}, out...)
		return out
	}
	return append(out, a.extractRefs(valueNode, src)...)
}

func (a *Analyzer) extractCallRefs(n *sitter.Node, src []byte) []Ref {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")

	out := a.extractRefs(fn, src)
	if args == nil {
		return out
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "keyword_argument" {
			out = append(out, a.extractRefs(arg.ChildByFieldName("value"), src)...)
			continue
		}
		out = append(out, a.extractRefs(arg, src)...)
	}
	return out
}

// recordCall appends a CallSite for n (a bare call statement or a call
// nested in an expression already being walked for live refs) and records
// its callee/argument references as live reads.
func (a *Analyzer) recordCall(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	site := a.buildCallSite(n, src)
	res.Calls = append(res.Calls, site)
	refs := a.extractCallRefs(n, src)
	a.recordLive(refs, killed, res)
}

func (a *Analyzer) buildCallSite(n *sitter.Node, src []byte) CallSite {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	site := CallSite{Node: n}
	if ref := a.singleChainRef(fn, src); ref != nil {
		site.Callee = *ref
	} else if refs := a.extractRefs(fn, src); len(refs) > 0 {
		site.Callee = refs[0]
	}
	if args == nil {
		return site
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "keyword_argument" {
			name := text(arg.ChildByFieldName("name"), src)
			if ref := a.singleChainRef(arg.ChildByFieldName("value"), src); ref != nil {
				if site.Kwargs == nil {
					site.Kwargs = map[string]Ref{}
				}
				site.Kwargs[name] = *ref
			}
			continue
		}
		if ref := a.singleChainRef(arg, src); ref != nil {
			site.Args = append(site.Args, *ref)
		}
	}
	return site
}
