package treesitterhelper

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

var (
	PHPMethodDeclarationPattern = func(methodName string) Pattern {
		return And(
			NodeKind("method_declaration"),
			Field("name", NodeTextFold(methodName)),
		)
	}

	PHPStringLiteralPattern = AnyNodeKind("string", "encapsed_string")

	// nested functions and classes own their bodies
	PHPNestedScopePattern = AnyNodeKind(
		"anonymous_function",
		"arrow_function",
		"function_definition",
		"anonymous_class",
		"class_declaration",
	)
)

// FindMethodDeclaration returns the declaration of a method directly inside a class-like node
func FindMethodDeclaration(classNode *tree_sitter.Node, content []byte, methodName string) *tree_sitter.Node {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	pattern := PHPMethodDeclarationPattern(methodName)
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child != nil && pattern.Matches(child, content) {
			return child
		}
	}
	return nil
}

// IsNestedScope reports whether a node starts a function or class body of its own
func IsNestedScope(node *tree_sitter.Node, content []byte) bool {
	return PHPNestedScopePattern.Matches(node, content)
}

// StringLiteralText returns the content of a string node without quotes.
// ok is false for strings with interpolation.
func StringLiteralText(node *tree_sitter.Node, content []byte) (text string, ok bool) {
	if !PHPStringLiteralPattern.Matches(node, content) {
		return "", false
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "string_content", "string_value", "escape_sequence":
			text += string(child.Utf8Text(content))
		default:
			return "", false
		}
	}
	return text, true
}
