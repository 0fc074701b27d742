package static

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Analyzer walks a cell's tree-sitter AST and produces a Result. It holds
// no per-cell state between calls — Analyze is the entry point and is safe
// to call repeatedly with fresh ASTs, mirroring the teacher's
// analyzer.Analyzer (analyzer/analyzer.go), which is likewise reusable
// across many AnalyzeSourceCode calls.
type Analyzer struct {
	parser *sitter.Parser
}

// New returns an Analyzer configured for the interactive-language grammar
// (Python) that notebook cells are written in.
func New() *Analyzer {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Analyzer{parser: p}
}

// Analyze parses src and walks the resulting tree, producing the live-ref,
// assignment, kill, and call-site sets spec.md §4.3 describes. Parsing
// itself is delegated to the tree-sitter grammar — the one external
// collaborator named in spec.md §1 as out of scope for this engine.
func (a *Analyzer) Analyze(src []byte) (*Result, error) {
	tree, err := a.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeNode(tree.RootNode(), src), nil
}

// AnalyzeNode walks an already-parsed module node. Exposed separately from
// Analyze so callers that already hold a parsed tree (e.g. the in-process
// instrumentation collaborator) never re-parse.
func (a *Analyzer) AnalyzeNode(root *sitter.Node, src []byte) *Result {
	res := &Result{}
	killed := map[string]bool{}
	a.walkBlock(root, src, killed, res)
	return res
}

// walkBlock walks a sequence of statements in program order, threading a
// `killed` set forward so a later read of a name already bound earlier in
// this same block resolves to the cell's own assignment rather than
// becoming a live reference against a pre-existing symbol
// (spec.md §4.3: "live_refs: names read before locally killed").
func (a *Analyzer) walkBlock(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		a.walkStatement(n.NamedChild(i), src, killed, res)
	}
}

func (a *Analyzer) walkStatement(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			a.walkExprStatementChild(n.NamedChild(i), src, killed, res)
		}
	case "assignment":
		a.handleAssignment(n, src, killed, res, false)
	case "augmented_assignment":
		a.handleAssignment(n, src, killed, res, true)
	case "import_statement", "import_from_statement":
		a.handleImport(n, src, killed, res)
	case "delete_statement":
		a.handleDelete(n, src, killed, res)
	case "global_statement", "nonlocal_statement":
		// Scope-declaration statements only affect name resolution, handled
		// by the symbol store at execution time; nothing to record here.
	case "function_definition":
		a.handleFunctionDef(n, src, killed, res)
	case "class_definition":
		a.handleClassDef(n, src, killed, res)
	case "return_statement", "yield":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			a.recordLive(a.extractRefs(n.NamedChild(i), src), killed, res)
		}
	case "if_statement", "while_statement", "for_statement", "with_statement", "try_statement":
		a.walkCompound(n, src, killed, res)
	case "block":
		a.walkBlock(n, src, killed, res)
	default:
		// Any other statement kind (pass_statement, assert_statement, raise
		// etc.) — conservatively walk every identifier/attribute/subscript
		// it contains as a live reference.
		a.recordLive(a.extractRefs(n, src), killed, res)
	}
}

// walkExprStatementChild handles the statement-level expressions that
// warrant special treatment (bare calls, walrus assignment) versus a plain
// expression whose identifiers are simply live reads.
func (a *Analyzer) walkExprStatementChild(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	switch n.Type() {
	case "call":
		a.recordCall(n, src, killed, res)
	case "named_expression":
		// walrus operator: `(x := expr)` both reads expr and assigns x.
		a.handleNamedExpression(n, src, killed, res)
	case "assignment":
		a.handleAssignment(n, src, killed, res, false)
	case "augmented_assignment":
		a.handleAssignment(n, src, killed, res, true)
	default:
		a.recordLive(a.extractRefs(n, src), killed, res)
	}
}

// walkCompound walks control-flow statements generically: their test/iter
// expressions are live reads in the enclosing block, and their bodies are
// walked as nested blocks sharing the same `killed` set (if/while/for/with
// do not introduce a new Python scope).
func (a *Analyzer) walkCompound(n *sitter.Node, src []byte, killed map[string]bool, res *Result) {
	switch n.Type() {
	case "for_statement":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if right != nil {
			a.recordLive(a.extractRefs(right, src), killed, res)
			parents := a.extractRefs(right, src)
			a.assignTargets(left, src, parents, killed, res, false, false)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			a.walkBlock(body, src, killed, res)
		}
	case "with_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "with_clause" {
				for j := 0; j < int(child.NamedChildCount()); j++ {
					item := child.NamedChild(j)
					if item.Type() != "with_item" {
						continue
					}
					value := item.ChildByFieldName("value")
					alias := item.ChildByFieldName("alias")
					if value != nil {
						a.recordLive(a.extractRefs(value, src), killed, res)
					}
					if alias != nil {
						a.assignTargets(alias, src, a.extractRefs(value, src), killed, res, false, false)
					}
				}
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			a.walkBlock(body, src, killed, res)
		}
	default:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "block":
				a.walkBlock(child, src, killed, res)
			case "elif_clause", "else_clause", "except_clause", "finally_clause":
				a.walkCompound(child, src, killed, res)
			default:
				a.recordLive(a.extractRefs(child, src), killed, res)
			}
		}
	}
}

// recordLive appends every non-killed root reference to the result's
// LiveRefs. A reference whose root name has already been locally killed
// (rebound earlier in this block) is skipped: it resolves to the cell's own
// fresh binding, not to whatever the symbol held before execution.
func (a *Analyzer) recordLive(refs []Ref, killed map[string]bool, res *Result) {
	for _, r := range refs {
		if killed[r.Root] {
			continue
		}
		res.LiveRefs = append(res.LiveRefs, r)
	}
}
