package php

import (
	"fmt"
	"io"
	"os"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// NewParser creates a tree-sitter parser for PHP. The caller closes it.
func NewParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return parser, nil
}

// DebugAST parses a PHP file and writes its AST structure to w
func DebugAST(filePath string, w io.Writer) error {
	fileContent, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	parser, err := NewParser()
	if err != nil {
		return err
	}
	defer parser.Close()

	tree := parser.Parse(fileContent, nil)
	defer tree.Close()

	printNodeStructure(w, tree.RootNode(), "", fileContent, 0)
	return nil
}

// printNodeStructure recursively prints the node structure
func printNodeStructure(w io.Writer, node *tree_sitter.Node, field string, fileContent []byte, depth int) {
	if node == nil {
		return
	}

	indent := strings.Repeat("  ", depth)

	label := node.Kind()
	if field != "" {
		label = field + ": " + label
	}

	nodeText := ""
	if node.NamedChildCount() == 0 {
		nodeText = string(node.Utf8Text(fileContent))
	}

	_, _ = fmt.Fprintf(w, "%s%s [%d:%d] %s\n", indent, label, node.Range().StartPoint.Row+1, node.Range().StartPoint.Column, nodeText)

	// Scoped calls are what the checker resolves, show their parts explicitly
	if node.Kind() == "scoped_call_expression" {
		for _, f := range []string{"scope", "name"} {
			if part := node.ChildByFieldName(f); part != nil {
				_, _ = fmt.Fprintf(w, "%s  CALL %s = %s\n", indent, f, part.Utf8Text(fileContent))
			}
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		printNodeStructure(w, node.NamedChild(i), node.FieldNameForNamedChild(uint32(i)), fileContent, depth+1)
	}
}
