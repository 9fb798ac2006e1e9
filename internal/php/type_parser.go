package php

import (
	"strings"
)

// TypeScope carries what is needed to turn a written type into a Union:
// the template parameters in scope and a resolver for relative class names.
type TypeScope struct {
	// Templates maps template parameter names to the class (or Class::method) declaring them
	Templates map[string]string
	// Resolve turns a written class name into a fully qualified one; nil keeps names as written
	Resolve func(name string) string
}

// ParseType parses a native or docblock PHP type such as "?Foo", "int|string", "T[]" or
// "class-string<T>" into a Union.
func ParseType(typeName string, scope TypeScope) *Union {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return Mixed()
	}

	// Handle nullable types (e.g., ?string)
	isNullable := false
	if strings.HasPrefix(typeName, "?") {
		isNullable = true
		typeName = typeName[1:]
	}

	parts := splitTopLevel(typeName, '|')
	u := &Union{}
	for _, part := range parts {
		for _, atomic := range parseAtomic(part, scope) {
			u.add(atomic)
		}
	}

	if isNullable {
		u.add(NewNullType())
	}

	if len(u.types) == 0 {
		u.types = append(u.types, NewMixedType())
	}

	return u
}

func parseAtomic(typeName string, scope TypeScope) []Atomic {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return nil
	}

	if strings.HasPrefix(typeName, "?") {
		return append(parseAtomic(typeName[1:], scope), NewNullType())
	}

	if strings.HasPrefix(typeName, "(") && strings.HasSuffix(typeName, ")") {
		return ParseType(typeName[1:len(typeName)-1], scope).types
	}

	// Intersections are reduced to their first member
	if parts := splitTopLevel(typeName, '&'); len(parts) > 1 {
		return parseAtomic(parts[0], scope)
	}

	// Handle array types (e.g., string[], int[])
	if strings.HasSuffix(typeName, "[]") {
		elem := ParseType(strings.TrimSuffix(typeName, "[]"), scope)
		return []Atomic{NewArrayType(elem)}
	}

	base, params := splitGeneric(typeName)

	switch strings.ToLower(base) {
	case "string", "non-empty-string", "lowercase-string", "literal-string", "callable-string":
		return []Atomic{NewStringType(false)}
	case "numeric-string":
		return []Atomic{NewStringType(true)}
	case "class-string", "interface-string", "trait-string":
		as := ""
		if len(params) == 1 {
			if _, ok := scope.Templates[params[0]]; ok {
				as = params[0]
			}
		}
		return []Atomic{NewClassStringType(as)}
	case "int", "integer", "positive-int", "negative-int", "non-negative-int", "int-mask":
		return []Atomic{NewIntType()}
	case "float", "double":
		return []Atomic{NewFloatType()}
	case "numeric":
		return []Atomic{NewIntType(), NewFloatType(), NewStringType(true)}
	case "array-key":
		return []Atomic{NewIntType(), NewStringType(false)}
	case "scalar":
		return []Atomic{NewIntType(), NewFloatType(), NewStringType(false), NewBoolType("bool")}
	case "bool", "boolean":
		return []Atomic{NewBoolType("bool")}
	case "true", "false":
		return []Atomic{NewBoolType(strings.ToLower(base))}
	case "array", "list", "non-empty-array", "non-empty-list":
		if len(params) > 0 && !strings.Contains(typeName, "{") {
			return []Atomic{NewArrayType(ParseType(params[len(params)-1], scope))}
		}
		return []Atomic{NewArrayType(nil)}
	case "iterable":
		return []Atomic{NewIterableType()}
	case "object":
		return []Atomic{NewObjectType()}
	case "callable", "closure":
		if strings.EqualFold(base, "closure") {
			return []Atomic{NewNamedObject("Closure")}
		}
		return []Atomic{NewCallableType()}
	case "void":
		return []Atomic{NewVoidType()}
	case "never", "never-return", "no-return":
		return []Atomic{NewNeverType()}
	case "null":
		return []Atomic{NewNullType()}
	case "mixed", "resource":
		return []Atomic{NewMixedType()}
	case "self", "static", "parent", "$this":
		return []Atomic{NewSpecialType(base)}
	}

	if definingClass, ok := scope.Templates[base]; ok {
		return []Atomic{NewTemplateParam(definingClass, base)}
	}

	// If not a recognized primitive type, assume it's a class/interface
	className := base
	if strings.HasPrefix(className, "\\") {
		className = className[1:]
	} else if scope.Resolve != nil {
		className = scope.Resolve(className)
	}

	return []Atomic{NewNamedObject(className)}
}

// splitTopLevel splits on sep outside of <...>, (...) and {...}
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '{':
			depth++
		case '>', ')', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// splitGeneric splits "array<int, Foo>" into "array" and ["int", "Foo"]
func splitGeneric(s string) (string, []string) {
	open := strings.IndexAny(s, "<{")
	if open < 0 || !(strings.HasSuffix(s, ">") || strings.HasSuffix(s, "}")) {
		return s, nil
	}
	inner := s[open+1 : len(s)-1]
	var params []string
	for _, p := range splitTopLevel(inner, ',') {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return s[:open], params
}
