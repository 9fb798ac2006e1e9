package treesitterhelper

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Pattern defines a pattern that can be matched against a tree-sitter node
type Pattern interface {
	Matches(node *tree_sitter.Node, content []byte) bool
}

// Create a pattern from a function
func FuncPattern(matchFunc func(node *tree_sitter.Node, content []byte) bool) Pattern {
	return &funcPattern{matchFunc: matchFunc}
}

type funcPattern struct {
	matchFunc func(node *tree_sitter.Node, content []byte) bool
}

func (p *funcPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	return p.matchFunc(node, content)
}

// Chain multiple patterns using AND logic
func And(patterns ...Pattern) Pattern {
	return &andPattern{patterns: patterns}
}

type andPattern struct {
	patterns []Pattern
}

func (p *andPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	for _, pattern := range p.patterns {
		if !pattern.Matches(node, content) {
			return false
		}
	}
	return true
}

// Chain multiple patterns using OR logic
func Or(patterns ...Pattern) Pattern {
	return &orPattern{patterns: patterns}
}

type orPattern struct {
	patterns []Pattern
}

func (p *orPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	for _, pattern := range p.patterns {
		if pattern.Matches(node, content) {
			return true
		}
	}
	return false
}

// Negate a pattern
func Not(pattern Pattern) Pattern {
	return &notPattern{pattern: pattern}
}

type notPattern struct {
	pattern Pattern
}

func (p *notPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	return !p.pattern.Matches(node, content)
}

// Match a node's kind
func NodeKind(kind string) Pattern {
	return AnyNodeKind(kind)
}

// Match any of the node kinds
func AnyNodeKind(kinds ...string) Pattern {
	return &anyNodeKindPattern{kinds: kinds}
}

type anyNodeKindPattern struct {
	kinds []string
}

func (p *anyNodeKindPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	kind := node.Kind()
	for _, k := range p.kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Match a node's text content
func NodeText(text string) Pattern {
	return &nodeTextPattern{text: text}
}

type nodeTextPattern struct {
	text string
	fold bool
}

func (p *nodeTextPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	text := string(node.Utf8Text(content))
	if p.fold {
		return strings.EqualFold(text, p.text)
	}
	return text == p.text
}

// Match a node's text ignoring case, for PHP identifiers such as class and method names
func NodeTextFold(text string) Pattern {
	return &nodeTextPattern{text: text, fold: true}
}

// Match the child stored under a field name
func Field(name string, pattern Pattern) Pattern {
	return &fieldPattern{name: name, pattern: pattern}
}

type fieldPattern struct {
	name    string
	pattern Pattern
}

func (p *fieldPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	child := node.ChildByFieldName(p.name)
	return child != nil && p.pattern.Matches(child, content)
}

// Match a child node with a specific pattern
func HasChild(pattern Pattern) Pattern {
	return &hasChildPattern{pattern: pattern}
}

type hasChildPattern struct {
	pattern Pattern
}

func (p *hasChildPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && p.pattern.Matches(child, content) {
			return true
		}
	}
	return false
}

// Match an ancestor node that matches the pattern
func Ancestor(pattern Pattern, maxDepth int) Pattern {
	return &ancestorPattern{pattern: pattern, maxDepth: maxDepth}
}

type ancestorPattern struct {
	pattern  Pattern
	maxDepth int
}

func (p *ancestorPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	current := node.Parent()
	depth := 0

	for current != nil && depth < p.maxDepth {
		if p.pattern.Matches(current, content) {
			return true
		}
		current = current.Parent()
		depth++
	}
	return false
}

// Capture patterns allow retrieving nodes that matched
type CapturePattern interface {
	Pattern
	GetCapturedNode() *tree_sitter.Node
}

// Create a capture that can be reused in patterns
func Capture(name string, pattern Pattern) CapturePattern {
	return &capturePattern{name: name, pattern: pattern}
}

type capturePattern struct {
	name    string
	pattern Pattern
	result  *tree_sitter.Node
}

func (p *capturePattern) Matches(node *tree_sitter.Node, content []byte) bool {
	if p.pattern.Matches(node, content) {
		p.result = node
		return true
	}
	return false
}

func (p *capturePattern) GetCapturedNode() *tree_sitter.Node {
	return p.result
}

// FindFirst returns the first node in document order matching the pattern
func FindFirst(root *tree_sitter.Node, pattern Pattern, content []byte) *tree_sitter.Node {
	if root == nil {
		return nil
	}
	if pattern.Matches(root, content) {
		return root
	}

	for i := uint(0); i < root.NamedChildCount(); i++ {
		if result := FindFirst(root.NamedChild(i), pattern, content); result != nil {
			return result
		}
	}

	return nil
}

// FindAll returns every node matching the pattern, in document order
func FindAll(root *tree_sitter.Node, pattern Pattern, content []byte) []*tree_sitter.Node {
	var results []*tree_sitter.Node

	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if pattern.Matches(node, content) {
			results = append(results, node)
		}

		for i := uint(0); i < node.NamedChildCount(); i++ {
			visit(node.NamedChild(i))
		}
	}

	visit(root)
	return results
}
