package analyzer

import (
	"strconv"
	"strings"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/php"
	treesitterhelper "github.com/shopware/php-callcheck/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// methodWalk is one pass over a method body. Every expression node is analyzed at most once;
// later reads of the same node, for example when a call is retried through a catch-all method,
// get the cached type.
type methodWalk struct {
	a    *Analyzer
	file *sourceFile

	seen  map[uintptr]bool
	types map[uintptr]*php.Union
	calls map[uintptr]callRecord

	// halted is set when a call in the current statement aborted
	halted bool
}

// callRecord keeps what a resolved call needs for narrowing conditions it appears in
type callRecord struct {
	result analysis.Result
	args   []analysis.Arg
}

func newWalk(a *Analyzer, file *sourceFile) *methodWalk {
	return &methodWalk{
		a:     a,
		file:  file,
		seen:  make(map[uintptr]bool),
		types: make(map[uintptr]*php.Union),
		calls: make(map[uintptr]callRecord),
	}
}

// nodeExpr hands a syntax node to the call resolution
type nodeExpr struct {
	node *tree_sitter.Node
	walk *methodWalk
}

func (e *nodeExpr) Pos() analysis.CodeLocation { return e.walk.location(e.node) }

func (e *nodeExpr) VarName() string { return e.walk.varName(e.node) }

func (w *methodWalk) exprOf(node *tree_sitter.Node) analysis.Expr {
	return &nodeExpr{node: node, walk: w}
}

func (w *methodWalk) text(node *tree_sitter.Node) string {
	return string(node.Utf8Text(w.file.content))
}

func (w *methodWalk) location(node *tree_sitter.Node) analysis.CodeLocation {
	start, end := node.StartPosition(), node.EndPosition()
	return analysis.CodeLocation{
		File:      w.file.path,
		Line:      int(start.Row) + 1,
		Column:    int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndColumn: int(end.Column) + 1,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
	}
}

// varName returns the scope entry an expression reads: "$x" or "$this->prop"
func (w *methodWalk) varName(node *tree_sitter.Node) string {
	node = unwrap(node)
	if node == nil {
		return ""
	}

	switch node.Kind() {
	case "variable_name":
		return w.text(node)
	case "member_access_expression":
		object := unwrap(node.ChildByFieldName("object"))
		name := node.ChildByFieldName("name")
		if object != nil && name != nil && object.Kind() == "variable_name" && w.text(object) == "$this" && name.Kind() == "name" {
			return "$this->" + w.text(name)
		}
	}
	return ""
}

func unwrap(node *tree_sitter.Node) *tree_sitter.Node {
	for node != nil && node.Kind() == "parenthesized_expression" {
		node = node.NamedChild(0)
	}
	return node
}

func isStatement(node *tree_sitter.Node) bool {
	kind := node.Kind()
	return kind == "compound_statement" || kind == "colon_block" || strings.HasSuffix(kind, "_statement")
}

// block analyzes the statements of a body in order
func (w *methodWalk) block(node *tree_sitter.Node, ctx *analysis.Context) {
	if node == nil {
		return
	}
	if isStatement(node) {
		w.stmt(node, ctx)
		return
	}
	w.halted = false
	w.expr(node, ctx)
}

func (w *methodWalk) stmt(node *tree_sitter.Node, ctx *analysis.Context) {
	w.halted = false

	switch node.Kind() {
	case "if_statement":
		w.ifStatement(node, ctx)
	default:
		w.children(node, ctx)
	}
}

// children analyzes the sub-statements and sub-expressions of a node
func (w *methodWalk) children(node *tree_sitter.Node, ctx *analysis.Context) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" || treesitterhelper.IsNestedScope(child, w.file.content) {
			continue
		}
		if isStatement(child) {
			w.stmt(child, ctx)
			continue
		}
		w.expr(child, ctx)
	}
}

// expr infers the type of an expression, nil when it is unknown
func (w *methodWalk) expr(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	if node == nil || w.halted {
		return nil
	}

	id := node.Id()
	if w.seen[id] {
		return w.types[id]
	}

	t := w.infer(node, ctx)
	w.seen[id] = true
	if t != nil {
		w.types[id] = t
	}
	return t
}

func (w *methodWalk) infer(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	switch node.Kind() {
	case "parenthesized_expression":
		return w.expr(node.NamedChild(0), ctx)

	case "variable_name":
		return ctx.VarsInScope[w.text(node)]

	case "member_access_expression", "nullsafe_member_access_expression":
		if name := w.varName(node); name != "" {
			return ctx.VarsInScope[name]
		}
		w.expr(node.ChildByFieldName("object"), ctx)
		return nil

	case "string", "encapsed_string":
		if text, ok := treesitterhelper.StringLiteralText(node, w.file.content); ok {
			return php.NewUnion(php.NewStringType(isNumeric(text)))
		}
		w.children(node, ctx)
		return php.NewUnion(php.NewStringType(false))

	case "heredoc", "nowdoc":
		w.children(node, ctx)
		return php.NewUnion(php.NewStringType(false))

	case "integer":
		return php.NewUnion(php.NewIntType())
	case "float":
		return php.NewUnion(php.NewFloatType())
	case "boolean":
		return php.NewUnion(php.NewBoolType(strings.ToLower(w.text(node))))
	case "null":
		return php.NewUnion(php.NewNullType())

	case "array_creation_expression":
		return w.array(node, ctx)
	case "class_constant_access_expression":
		return w.classConstant(node, ctx)
	case "object_creation_expression":
		return w.newObject(node, ctx)

	case "assignment_expression", "reference_assignment_expression":
		return w.assign(node, ctx)
	case "augmented_assignment_expression":
		return w.augmentedAssign(node, ctx)

	case "scoped_call_expression":
		return w.staticCall(node, ctx)
	case "member_call_expression", "nullsafe_member_call_expression":
		return w.instanceCall(node, ctx)
	case "function_call_expression":
		return w.functionCall(node, ctx)

	case "binary_expression":
		w.children(node, ctx)
		if op := node.ChildByFieldName("operator"); op != nil && w.text(op) == "." {
			return php.NewUnion(php.NewStringType(false))
		}
		return nil

	case "anonymous_function", "arrow_function":
		return php.NewUnion(php.NewNamedObject("Closure"))
	case "anonymous_class":
		return php.NewUnion(php.NewObjectType())
	}

	w.children(node, ctx)
	return nil
}

// isNumeric follows PHP's is_numeric for literal strings
func isNumeric(s string) bool {
	s = strings.Trim(s, " \t\n\r\v\f")
	if s == "" || strings.Trim(s, "0123456789+-.eE") != "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func (w *methodWalk) array(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	var elem *php.Union
	known := true

	for i := uint(0); i < node.NamedChildCount(); i++ {
		item := node.NamedChild(i)
		if item == nil || item.Kind() != "array_element_initializer" {
			continue
		}

		if item.NamedChildCount() == 0 {
			continue
		}
		// the value is the last child; a key precedes it
		for j := uint(0); j+1 < item.NamedChildCount(); j++ {
			w.expr(item.NamedChild(j), ctx)
		}
		value := item.NamedChild(item.NamedChildCount() - 1)
		if value == nil {
			continue
		}
		if value.Kind() == "variadic_unpacking" {
			w.expr(value.NamedChild(0), ctx)
			known = false
			continue
		}

		t := w.expr(value, ctx)
		if t == nil {
			known = false
			continue
		}
		elem = php.Combine(elem, t)
	}

	if !known || elem == nil {
		return php.NewUnion(php.NewArrayType(nil))
	}
	return php.NewUnion(php.NewArrayType(elem))
}

// className resolves a class name written in code, including self, static and parent
func (w *methodWalk) className(node *tree_sitter.Node, ctx *analysis.Context) string {
	name := w.text(node)
	switch strings.ToLower(name) {
	case "self", "static":
		return ctx.Self
	case "parent":
		if ctx.Self == "" {
			return ""
		}
		if class, err := w.a.index.GetClass(ctx.Self); err == nil && len(class.ParentClasses) > 0 {
			return class.ParentClasses[0]
		}
		return ""
	}
	return ctx.ResolveClassName(name)
}

func isClassName(node *tree_sitter.Node) bool {
	switch node.Kind() {
	case "name", "qualified_name", "relative_scope":
		return true
	}
	return false
}

func (w *methodWalk) classConstant(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	classPart, member := node.NamedChild(0), node.NamedChild(1)
	if classPart == nil || member == nil {
		return nil
	}

	if !strings.EqualFold(w.text(member), "class") {
		if !isClassName(classPart) {
			w.expr(classPart, ctx)
		}
		return nil
	}

	if !isClassName(classPart) {
		w.expr(classPart, ctx)
		return php.NewUnion(php.NewClassStringType(""))
	}

	// static::class names a subclass not known here
	if strings.EqualFold(w.text(classPart), "static") {
		return php.NewUnion(php.NewClassStringType(""))
	}
	name := w.className(classPart, ctx)
	if name == "" {
		return php.NewUnion(php.NewClassStringType(""))
	}
	return php.NewUnion(php.NewLiteralClassString(name))
}

func (w *methodWalk) newObject(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	var classNode, argsNode *tree_sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch {
		case child.Kind() == "arguments":
			argsNode = child
		case child.Kind() == "anonymous_class":
			return php.NewUnion(php.NewObjectType())
		case isClassName(child):
			classNode = child
		default:
			w.expr(child, ctx)
		}
	}

	fq, constructor := "", ""
	if classNode != nil {
		fq = w.className(classNode, ctx)
	}
	if fq != "" {
		if class, err := w.a.index.GetClass(fq); err == nil {
			fq = class.Name
			if id := php.MethodID(fq, "__construct"); w.a.index.MethodExists(id) {
				constructor = id
			}
		}
	}

	if _, err := w.a.CheckArguments(constructor, w.arguments(argsNode), ctx, w.location(node)); err != nil {
		w.halted = true
		return nil
	}

	if fq == "" {
		return php.NewUnion(php.NewObjectType())
	}
	return php.NewUnion(php.NewNamedObject(fq))
}

func (w *methodWalk) assign(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	left, right := node.ChildByFieldName("left"), node.ChildByFieldName("right")

	t := w.expr(right, ctx)
	if w.halted {
		return nil
	}
	if t == nil {
		t = php.Mixed()
	}

	if left == nil {
		return t
	}
	if name := w.varName(left); name != "" {
		ctx.SetVar(name, t)
		return t
	}

	switch left.Kind() {
	case "list_literal", "array_creation_expression":
		// destructured values are not tracked
		for _, v := range treesitterhelper.FindAll(left, treesitterhelper.NodeKind("variable_name"), w.file.content) {
			ctx.SetVar(w.text(v), php.Mixed())
		}
	default:
		w.expr(left, ctx)
	}
	return t
}

func (w *methodWalk) augmentedAssign(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	left, right := node.ChildByFieldName("left"), node.ChildByFieldName("right")

	t := w.expr(right, ctx)
	if w.halted {
		return nil
	}

	name := w.varName(left)
	if name == "" {
		w.expr(left, ctx)
		return nil
	}

	op := ""
	if opNode := node.ChildByFieldName("operator"); opNode != nil {
		op = w.text(opNode)
	}
	switch op {
	case ".=":
		ctx.SetVar(name, php.NewUnion(php.NewStringType(false)))
	case "??=":
		ctx.SetVar(name, php.Combine(ctx.VarsInScope[name], t))
	}
	return ctx.VarsInScope[name]
}

// arguments lowers an arguments node. Placeholders of first class callables are left out.
func (w *methodWalk) arguments(node *tree_sitter.Node) []analysis.Arg {
	if node == nil {
		return nil
	}

	var args []analysis.Arg
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "argument":
			if child.NamedChildCount() == 0 {
				continue
			}
			var arg analysis.Arg
			if name := child.ChildByFieldName("name"); name != nil {
				arg.Name = w.text(name)
			}
			value := child.NamedChild(child.NamedChildCount() - 1)
			if value != nil && value.Kind() == "variadic_unpacking" {
				arg.Unpack = true
				value = value.NamedChild(0)
			}
			if value == nil {
				continue
			}
			arg.Value = w.exprOf(value)
			args = append(args, arg)
		case "variadic_placeholder", "comment":
		default:
			args = append(args, analysis.Arg{Value: w.exprOf(child)})
		}
	}
	return args
}

func (w *methodWalk) classTarget(scope *tree_sitter.Node, ctx *analysis.Context) analysis.ClassTarget {
	target := analysis.ClassTarget{Loc: w.location(scope)}
	if !isClassName(scope) {
		target.Kind = analysis.TargetExpr
		target.Expr = w.exprOf(scope)
		return target
	}

	name := w.text(scope)
	switch strings.ToLower(name) {
	case "self":
		target.Kind = analysis.TargetSelf
	case "static":
		target.Kind = analysis.TargetStatic
	case "parent":
		target.Kind = analysis.TargetParent
	default:
		target.Kind = analysis.TargetNamed
		target.Name = name
	}
	return target
}

func (w *methodWalk) staticCall(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	scope := node.ChildByFieldName("scope")
	if scope == nil {
		w.children(node, ctx)
		return nil
	}

	site := analysis.CallSite{
		Class:    w.classTarget(scope, ctx),
		Args:     w.arguments(node.ChildByFieldName("arguments")),
		Location: w.location(node),
	}
	if name := node.ChildByFieldName("name"); name != nil {
		if name.Kind() == "name" {
			site.Method = w.text(name)
		} else {
			site.MethodExpr = w.exprOf(name)
		}
	}
	if !ctx.IsStatic {
		site.BoundReceiver = ctx.VarsInScope["$this"]
	}

	result := w.a.calls.Resolve(site, ctx)
	w.calls[node.Id()] = callRecord{result: result, args: site.Args}
	return w.outcome(result)
}

func (w *methodWalk) instanceCall(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	receiver := w.expr(node.ChildByFieldName("object"), ctx)
	if w.halted {
		return nil
	}

	method := ""
	if name := node.ChildByFieldName("name"); name != nil {
		if name.Kind() == "name" {
			method = w.text(name)
		} else {
			w.expr(name, ctx)
		}
	}

	nullsafe := node.Kind() == "nullsafe_member_call_expression"
	nullable := receiver != nil && receiver.IsNullable()
	if nullsafe && nullable {
		receiver = receiver.Without(func(t php.Atomic) bool {
			_, ok := t.(*php.NullType)
			return ok
		})
	}

	args := w.arguments(node.ChildByFieldName("arguments"))
	result := w.a.ResolveInstanceCall(receiver, method, args, w.location(node), ctx)
	w.calls[node.Id()] = callRecord{result: result, args: args}

	t := w.outcome(result)
	if t != nil && nullsafe && nullable {
		t = php.Combine(t, php.NewUnion(php.NewNullType()))
	}
	return t
}

func (w *methodWalk) functionCall(node *tree_sitter.Node, ctx *analysis.Context) *php.Union {
	if fn := node.ChildByFieldName("function"); fn != nil && !isClassName(fn) {
		w.expr(fn, ctx)
	}

	args := w.arguments(node.ChildByFieldName("arguments"))
	if _, err := w.a.CheckArguments("", args, ctx, w.location(node)); err != nil {
		w.halted = true
	}
	return nil
}

// outcome turns a call result into the type of the call expression
func (w *methodWalk) outcome(result analysis.Result) *php.Union {
	switch result.Outcome {
	case analysis.OutcomeAbort:
		w.halted = true
		return nil
	case analysis.OutcomeTyped:
		return result.Type
	default:
		return nil
	}
}
