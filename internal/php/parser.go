package php

import (
	"bytes"
	"maps"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ClassDecl is a class-like declaration found while walking a file, together with
// the namespace state that was active where it was declared.
type ClassDecl struct {
	Node     *tree_sitter.Node
	Name     string
	Kind     string
	Resolver *AliasResolver
	Doc      DocBlock
}

// WalkClassDeclarations calls fn for every class, interface and trait declared at the top level
// of a file or inside a namespace block.
func WalkClassDeclarations(root *tree_sitter.Node, fileContent []byte, fn func(ClassDecl)) {
	w := &declWalker{
		content:       fileContent,
		useStatements: make(map[string]string),
		aliases:       make(map[string]string),
		fn:            fn,
	}
	w.walk(root)
}

type declWalker struct {
	content []byte

	currentNamespace string
	// short class name to FQCN
	useStatements map[string]string
	// alias name to FQCN
	aliases map[string]string

	fn func(ClassDecl)
}

func (w *declWalker) walk(parent *tree_sitter.Node) {
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		node := parent.NamedChild(i)
		if node == nil {
			continue
		}

		switch node.Kind() {
		case "namespace_definition":
			w.currentNamespace = ""
			if nameNode := node.ChildByFieldName("name"); nameNode != nil {
				w.currentNamespace = string(nameNode.Utf8Text(w.content))
			}
			w.useStatements = make(map[string]string)
			w.aliases = make(map[string]string)

			// braced namespace: namespace Foo { ... }
			if body := node.ChildByFieldName("body"); body != nil {
				w.walk(body)
				w.currentNamespace = ""
			}
		case "namespace_use_declaration":
			w.collectUse(node)
		case "class_declaration", "interface_declaration", "trait_declaration":
			w.emit(node)
		}
	}
}

func (w *declWalker) collectUse(node *tree_sitter.Node) {
	// use function / use const do not import classes
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		return
	}

	prefix := ""
	clauses := node
	if group := findDirectChildOfKind(node, "namespace_use_group"); group != nil {
		if nsNode := findDirectChildOfKind(node, "namespace_name"); nsNode != nil {
			prefix = string(nsNode.Utf8Text(w.content)) + "\\"
		}
		clauses = group
	}

	for i := uint(0); i < clauses.NamedChildCount(); i++ {
		clause := clauses.NamedChild(i)
		if clause == nil || clause.Kind() != "namespace_use_clause" {
			continue
		}

		nameNode := clause.NamedChild(0)
		if nameNode == nil {
			continue
		}
		fullPath := strings.TrimPrefix(prefix+string(nameNode.Utf8Text(w.content)), "\\")

		aliasNode := clause.ChildByFieldName("alias")
		if aliasNode == nil && clause.NamedChildCount() > 1 {
			aliasNode = clause.NamedChild(clause.NamedChildCount() - 1)
		}

		if aliasNode != nil && aliasNode.Kind() == "name" && aliasNode.StartByte() != nameNode.StartByte() {
			w.aliases[string(aliasNode.Utf8Text(w.content))] = fullPath
			continue
		}

		shortName := fullPath
		if idx := strings.LastIndex(fullPath, "\\"); idx >= 0 {
			shortName = fullPath[idx+1:]
		}
		w.useStatements[shortName] = fullPath
	}
}

func (w *declWalker) emit(node *tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	className := string(nameNode.Utf8Text(w.content))
	if w.currentNamespace != "" {
		className = w.currentNamespace + "\\" + className
	}

	kind := strings.TrimSuffix(node.Kind(), "_declaration")

	w.fn(ClassDecl{
		Node:     node,
		Name:     className,
		Kind:     kind,
		Resolver: NewAliasResolver(w.currentNamespace, maps.Clone(w.useStatements), maps.Clone(w.aliases)),
		Doc:      ParseDocBlock(precedingDocComment(node, w.content)),
	})
}

// ExtractClasses reads the class-likes of one PHP file into metadata records
func ExtractClasses(path string, root *tree_sitter.Node, fileContent []byte) []ClassMetadata {
	if !bytes.Contains(fileContent, []byte("class")) &&
		!bytes.Contains(fileContent, []byte("interface")) &&
		!bytes.Contains(fileContent, []byte("trait")) {
		return nil
	}

	var classes []ClassMetadata
	WalkClassDeclarations(root, fileContent, func(decl ClassDecl) {
		classes = append(classes, buildClass(path, decl, fileContent))
	})
	return classes
}

func buildClass(path string, decl ClassDecl, fileContent []byte) ClassMetadata {
	node := decl.Node
	nameNode := node.ChildByFieldName("name")

	class := ClassMetadata{
		Name:          decl.Name,
		Path:          path,
		Line:          int(nameNode.Range().StartPoint.Row) + 1,
		Deprecated:    decl.Doc.Deprecated,
		UserDefined:   true,
		IsInterface:   decl.Kind == "interface",
		IsTrait:       decl.Kind == "trait",
		IsAbstract:    findDirectChildOfKind(node, "abstract_modifier") != nil,
		TemplateNames: decl.Doc.Templates,
		Methods:       make(map[string]MethodMetadata),
	}

	if baseClause := findDirectChildOfKind(node, "base_clause"); baseClause != nil {
		for _, name := range namesOf(baseClause, fileContent) {
			fqcn := decl.Resolver.ResolveType(name)
			if class.IsInterface {
				// interfaces extend other interfaces
				class.Interfaces = append(class.Interfaces, fqcn)
			} else if class.Parent == "" {
				class.Parent = fqcn
			}
		}
	}

	if interfaceClause := findDirectChildOfKind(node, "class_interface_clause"); interfaceClause != nil {
		for _, name := range namesOf(interfaceClause, fileContent) {
			class.Interfaces = append(class.Interfaces, decl.Resolver.ResolveType(name))
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return class
	}

	templates := make(map[string]string, len(class.TemplateNames))
	for _, t := range class.TemplateNames {
		templates[t] = class.Name
	}

	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "use_declaration":
			for _, name := range namesOf(child, fileContent) {
				class.UsedTraits = append(class.UsedTraits, decl.Resolver.ResolveType(name))
			}
		case "method_declaration":
			method := buildMethod(path, class.Name, child, fileContent, decl.Resolver, templates)
			if method.Name != "" {
				class.Methods[strings.ToLower(method.Name)] = method
			}
		}
	}

	return class
}

func buildMethod(path, className string, node *tree_sitter.Node, fileContent []byte, resolver *AliasResolver, classTemplates map[string]string) MethodMetadata {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return MethodMetadata{}
	}

	methodName := string(nameNode.Utf8Text(fileContent))
	doc := ParseDocBlock(precedingDocComment(node, fileContent))

	method := MethodMetadata{
		Name:             methodName,
		ClassName:        className,
		Line:             int(nameNode.Range().StartPoint.Row) + 1,
		Visibility:       Public,
		Deprecated:       doc.Deprecated,
		Templates:        doc.Templates,
		SuppressedIssues: doc.Suppressed,
	}

	for k := uint(0); k < node.NamedChildCount(); k++ {
		modifier := node.NamedChild(k)
		if modifier == nil {
			continue
		}

		switch modifier.Kind() {
		case "visibility_modifier":
			switch strings.ToLower(string(modifier.Utf8Text(fileContent))) {
			case "private":
				method.Visibility = Private
			case "protected":
				method.Visibility = Protected
			}
		case "static_modifier":
			method.IsStatic = true
		case "abstract_modifier":
			method.IsAbstract = true
		}
	}

	scope := TypeScope{
		Templates: maps.Clone(classTemplates),
		Resolve:   resolver.ResolveType,
	}
	if scope.Templates == nil {
		scope.Templates = map[string]string{}
	}
	for _, t := range doc.Templates {
		scope.Templates[t] = method.ID()
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		method.Params = buildParams(params, fileContent, doc, scope)
	}

	returnRef := &SourceRef{File: path, Line: method.Line}
	switch {
	case doc.Return != "":
		method.ReturnType = ParseType(doc.Return, scope)
		method.ReturnTypeLocation = returnRef
	default:
		if returnNode := node.ChildByFieldName("return_type"); returnNode != nil {
			method.ReturnType = ParseType(string(returnNode.Utf8Text(fileContent)), scope)
			returnRef.Line = int(returnNode.Range().StartPoint.Row) + 1
			method.ReturnTypeLocation = returnRef
		}
	}

	method.Assertions = bindAssertions(&method, doc.Assertions, scope)
	method.IfTrueAssertions = bindAssertions(&method, doc.IfTrueAssertions, scope)
	method.IfFalseAssertions = bindAssertions(&method, doc.IfFalseAssertions, scope)

	return method
}

func buildParams(params *tree_sitter.Node, fileContent []byte, doc DocBlock, scope TypeScope) []Param {
	var out []Param
	for i := uint(0); i < params.NamedChildCount(); i++ {
		paramNode := params.NamedChild(i)
		if paramNode == nil {
			continue
		}

		kind := paramNode.Kind()
		if kind != "simple_parameter" && kind != "variadic_parameter" && kind != "property_promotion_parameter" {
			continue
		}

		nameNode := paramNode.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		varName := strings.TrimLeft(string(nameNode.Utf8Text(fileContent)), "& ")

		param := Param{
			Name:       strings.TrimPrefix(varName, "$"),
			Variadic:   kind == "variadic_parameter",
			ByRef:      paramNode.ChildByFieldName("reference_modifier") != nil || nameNode.Kind() == "by_ref",
			HasDefault: paramNode.ChildByFieldName("default_value") != nil,
		}

		if docType, ok := doc.Params[varName]; ok {
			param.Type = ParseType(docType, scope)
		} else if typeNode := paramNode.ChildByFieldName("type"); typeNode != nil {
			param.Type = ParseType(string(typeNode.Utf8Text(fileContent)), scope)
		}

		out = append(out, param)
	}
	return out
}

// bindAssertions ties assertion tags to parameter positions. Rules are stored with class names
// resolved against the declaring file.
func bindAssertions(method *MethodMetadata, tags []DocAssertion, scope TypeScope) []Assertion {
	var out []Assertion
	for _, tag := range tags {
		rule, negated := strings.CutPrefix(strings.TrimSpace(tag.Type), "!")
		rule = ParseType(rule, scope).String()
		if negated {
			rule = "!" + rule
		}
		out = append(out, Assertion{
			ParamIndex: method.ParamIndex(tag.Param),
			ParamName:  tag.Param,
			Rule:       rule,
		})
	}
	return out
}

// precedingDocComment returns the /** */ comment directly above a declaration, if any
func precedingDocComment(node *tree_sitter.Node, fileContent []byte) string {
	prev := node.PrevNamedSibling()
	for prev != nil && prev.Kind() == "attribute_list" {
		prev = prev.PrevNamedSibling()
	}
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	text := string(prev.Utf8Text(fileContent))
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return text
}

// namesOf returns the text of the name and qualified_name children of a clause
func namesOf(node *tree_sitter.Node, fileContent []byte) []string {
	var names []string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() == "name" || child.Kind() == "qualified_name" {
			names = append(names, string(child.Utf8Text(fileContent)))
		}
	}
	return names
}

// findDirectChildOfKind finds a direct named child of the given kind (non-recursive)
func findDirectChildOfKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}
