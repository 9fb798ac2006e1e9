package analyzer

import (
	"strings"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/php"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// narrowing refines the scope of a branch from the condition leading into it
type narrowing func(ctx *analysis.Context)

func (n narrowing) apply(ctx *analysis.Context) {
	if n != nil {
		n(ctx)
	}
}

// ifStatement analyzes every branch on its own copy of the scope and merges the branches that
// fall through into ctx
func (w *methodWalk) ifStatement(node *tree_sitter.Node, ctx *analysis.Context) {
	cond := node.ChildByFieldName("condition")
	w.expr(cond, ctx)
	if w.halted {
		return
	}
	whenTrue, whenFalse := w.condition(cond, ctx)

	var branches, exited []*analysis.Context

	add := func(branch *analysis.Context, body *tree_sitter.Node) {
		w.block(body, branch)
		if exits(body) {
			exited = append(exited, branch)
			return
		}
		branches = append(branches, branch)
	}

	then := ctx.Clone()
	whenTrue.apply(then)
	add(then, node.ChildByFieldName("body"))

	rest := ctx.Clone()
	whenFalse.apply(rest)

	hasElse := false
	for i := uint(0); i < node.NamedChildCount(); i++ {
		clause := node.NamedChild(i)
		if clause == nil {
			continue
		}

		switch clause.Kind() {
		case "else_if_clause":
			c := clause.ChildByFieldName("condition")
			w.halted = false
			w.expr(c, rest)
			t, f := w.condition(c, rest)

			branch := rest.Clone()
			t.apply(branch)
			add(branch, clause.ChildByFieldName("body"))
			f.apply(rest)
		case "else_clause":
			hasElse = true
			add(rest, clause.ChildByFieldName("body"))
		}
	}
	if !hasElse {
		branches = append(branches, rest)
	}

	if len(branches) == 0 {
		// nothing falls through, the code below is unreachable
		branches = exited
	}
	mergeBranches(ctx, branches)
}

// exits reports whether a branch body always leaves the method or loop
func exits(body *tree_sitter.Node) bool {
	if body == nil {
		return false
	}
	last := body
	if body.Kind() == "compound_statement" || body.Kind() == "colon_block" {
		last = nil
		for i := body.NamedChildCount(); i > 0; i-- {
			if child := body.NamedChild(i - 1); child != nil && child.Kind() != "comment" {
				last = child
				break
			}
		}
	}
	if last == nil {
		return false
	}

	switch last.Kind() {
	case "return_statement", "break_statement", "continue_statement", "exit_statement":
		return true
	case "expression_statement":
		expr := last.NamedChild(0)
		return expr != nil && expr.Kind() == "throw_expression"
	}
	return false
}

// mergeBranches keeps the variables every branch agrees exist, typed as the union of the branch
// types. Variables set in only some branches become possibly-defined.
func mergeBranches(ctx *analysis.Context, branches []*analysis.Context) {
	if len(branches) == 0 {
		return
	}

	vars := make(map[string]*php.Union)
	for name, t := range branches[0].VarsInScope {
		combined, inAll := t, true
		for _, branch := range branches[1:] {
			other, ok := branch.VarsInScope[name]
			if !ok {
				inAll = false
				break
			}
			combined = php.Combine(combined, other)
		}
		if inAll {
			vars[name] = combined
		}
	}

	possibly := make(map[string]bool)
	for _, branch := range branches {
		for name, v := range branch.VarsPossiblyInScope {
			if v {
				possibly[name] = true
			}
		}
		for name := range branch.PhantomClasses {
			ctx.AddPhantomClass(name)
		}
	}

	ctx.VarsInScope = vars
	ctx.VarsPossiblyInScope = possibly
}

// condition derives the narrowing of the true and false branches of a condition:
// assertions of the called method and instanceof checks
func (w *methodWalk) condition(cond *tree_sitter.Node, ctx *analysis.Context) (whenTrue, whenFalse narrowing) {
	node := unwrap(cond)
	if node == nil {
		return nil, nil
	}

	switch node.Kind() {
	case "unary_op_expression":
		op := node.ChildByFieldName("operator")
		if op == nil || w.text(op) != "!" {
			return nil, nil
		}
		t, f := w.condition(node.ChildByFieldName("argument"), ctx)
		return f, t

	case "binary_expression":
		op := node.ChildByFieldName("operator")
		if op == nil || !strings.EqualFold(w.text(op), "instanceof") {
			return nil, nil
		}
		name := w.varName(node.ChildByFieldName("left"))
		right := node.ChildByFieldName("right")
		if name == "" || right == nil || !isClassName(right) {
			return nil, nil
		}
		class := w.className(right, ctx)
		if class == "" {
			return nil, nil
		}
		return func(ctx *analysis.Context) {
			ctx.SetVar(name, php.NewUnion(php.NewNamedObject(class)))
		}, nil
	}

	record, ok := w.calls[node.Id()]
	if !ok || record.result.MethodID == "" {
		return nil, nil
	}
	method := w.a.index.GetMethod(record.result.MethodID)
	if method == nil {
		return nil, nil
	}

	assert := func(assertions []php.Assertion) narrowing {
		if len(assertions) == 0 {
			return nil
		}
		return func(ctx *analysis.Context) {
			analysis.ApplyAssertions(method, assertions, record.args, ctx)
		}
	}
	return assert(record.result.IfTrueAssertions), assert(record.result.IfFalseAssertions)
}
