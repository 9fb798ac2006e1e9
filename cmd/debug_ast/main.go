package main

import (
	"fmt"
	"os"

	"github.com/shopware/php-callcheck/internal/php"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/debug_ast/main.go <php_file_path>")
		os.Exit(1)
	}

	filePath := os.Args[1]
	fmt.Printf("Analyzing AST for file: %s\n\n", filePath)

	if err := php.DebugAST(filePath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
