package php

import (
	"strings"
)

// AliasResolver handles the resolution of written class names to their fully qualified class names (FQCN).
// It provides methods to resolve names based on namespace, use statements, and aliases.
type AliasResolver struct {
	// Map of alias name to fully qualified class name
	aliases map[string]string
	// Map of class name to fully qualified class name
	useStatements map[string]string
	// Current namespace
	currentNamespace string
}

// NewAliasResolver creates a new alias resolver with the given namespace, use statements, and aliases.
//
// Parameters:
//   - namespace: The current PHP namespace (e.g., "App\Service")
//   - useStatements: Map of class name to fully qualified class name from PHP use statements
//   - aliases: Map of alias name to fully qualified class name from PHP use statements with aliases
func NewAliasResolver(namespace string, useStatements, aliases map[string]string) *AliasResolver {
	if useStatements == nil {
		useStatements = map[string]string{}
	}
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &AliasResolver{
		aliases:          aliases,
		useStatements:    useStatements,
		currentNamespace: namespace,
	}
}

// Namespace returns the namespace the resolver was created for
func (r *AliasResolver) Namespace() string {
	if r == nil {
		return ""
	}
	return r.currentNamespace
}

// ResolveType resolves a written class name to its fully qualified class name (FQCN).
// It handles:
// - Primitive and special types (returned unchanged)
// - Fully qualified names (leading backslash)
// - Aliased types (from "use X as Y" statements)
// - Imported types (from "use X" statements), including qualified names whose first segment is imported
// - Types in the current namespace
func (r *AliasResolver) ResolveType(typeName string) string {
	// Skip resolution for primitive types and special types
	if isPrimitiveType(strings.ToLower(typeName)) || isSpecialType(strings.ToLower(typeName)) {
		return typeName
	}

	if strings.HasPrefix(typeName, "\\") {
		return typeName[1:]
	}

	if r == nil {
		return typeName
	}

	if rest, ok := strings.CutPrefix(typeName, "namespace\\"); ok {
		return r.inNamespace(rest)
	}

	first, rest, qualified := strings.Cut(typeName, "\\")

	// First check if the type is an alias
	if fqcn, ok := r.lookup(r.aliases, first); ok {
		if qualified {
			return fqcn + "\\" + rest
		}
		return fqcn
	}

	// Then check if it's a use statement
	if fqcn, ok := r.lookup(r.useStatements, first); ok {
		if qualified {
			return fqcn + "\\" + rest
		}
		return fqcn
	}

	// If not found in aliases or use statements, assume it's in the current namespace
	return r.inNamespace(typeName)
}

func (r *AliasResolver) inNamespace(name string) string {
	if r.currentNamespace != "" {
		return r.currentNamespace + "\\" + name
	}
	return name
}

// class names are case-insensitive in PHP, imports included
func (r *AliasResolver) lookup(m map[string]string, name string) (string, bool) {
	if fqcn, ok := m[name]; ok {
		return fqcn, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// isPrimitiveType checks if the given type is a PHP primitive type.
// PHP primitive types don't need to be resolved to FQCNs.
func isPrimitiveType(typeName string) bool {
	switch typeName {
	case "string", "int", "integer", "float", "double", "bool", "boolean",
		"array", "object", "callable", "iterable", "void", "null",
		"mixed", "never", "resource", "false", "true", "number":
		return true
	default:
		return false
	}
}

// isSpecialType checks if the given type is a PHP special type.
// PHP special types are keywords that refer to the current class context.
func isSpecialType(typeName string) bool {
	switch typeName {
	case "self", "static", "parent", "$this", "class-string", "array-key":
		return true
	default:
		return false
	}
}
