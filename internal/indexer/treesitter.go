package indexer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

var scannedFileTypes = []string{
	".php",
}

// CreateTreesitterParsers returns one parser per scanned file extension. Parsers are not
// safe for concurrent use, every worker owns its own set.
func CreateTreesitterParsers() map[string]*tree_sitter.Parser {
	parsers := make(map[string]*tree_sitter.Parser)

	php := tree_sitter.NewParser()
	_ = php.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()))
	parsers[".php"] = php

	return parsers
}

func CloseTreesitterParsers(parsers map[string]*tree_sitter.Parser) {
	for _, parser := range parsers {
		parser.Close()
	}
}
