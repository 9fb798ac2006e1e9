package php

import (
	"strings"
)

// DocBlock holds the tags of a /** ... */ comment that matter for call analysis
type DocBlock struct {
	Deprecated bool
	Templates  []string
	Params     map[string]string
	Return     string

	Assertions        []DocAssertion
	IfTrueAssertions  []DocAssertion
	IfFalseAssertions []DocAssertion

	Suppressed []string
}

// DocAssertion is an @psalm-assert style tag before it is bound to a parameter position
type DocAssertion struct {
	Type  string
	Param string
}

// ParseDocBlock reads the tags of a doc comment. Non-doc comments yield an empty DocBlock.
func ParseDocBlock(comment string) DocBlock {
	doc := DocBlock{Params: map[string]string{}}
	if !strings.HasPrefix(comment, "/**") {
		return doc
	}

	body := strings.TrimSuffix(strings.TrimPrefix(comment, "/**"), "*/")
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		if !strings.HasPrefix(line, "@") {
			continue
		}

		tag, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(tag) {
		case "@deprecated":
			doc.Deprecated = true
		case "@template", "@psalm-template", "@phpstan-template", "@template-covariant":
			if name, _ := readTypeToken(rest); name != "" {
				doc.Templates = append(doc.Templates, name)
			}
		case "@param", "@psalm-param", "@phpstan-param":
			typ, rest := readTypeToken(rest)
			name, _ := readTypeToken(rest)
			name = strings.TrimPrefix(name, "...")
			if strings.HasPrefix(name, "$") {
				// the psalm- variants win over plain @param
				if _, seen := doc.Params[name]; !seen || tag != "@param" {
					doc.Params[name] = typ
				}
			}
		case "@return", "@psalm-return", "@phpstan-return":
			typ, _ := readTypeToken(rest)
			if doc.Return == "" || tag != "@return" {
				doc.Return = typ
			}
		case "@psalm-assert", "@phpstan-assert":
			if a, ok := parseAssertion(rest); ok {
				doc.Assertions = append(doc.Assertions, a)
			}
		case "@psalm-assert-if-true", "@phpstan-assert-if-true":
			if a, ok := parseAssertion(rest); ok {
				doc.IfTrueAssertions = append(doc.IfTrueAssertions, a)
			}
		case "@psalm-assert-if-false", "@phpstan-assert-if-false":
			if a, ok := parseAssertion(rest); ok {
				doc.IfFalseAssertions = append(doc.IfFalseAssertions, a)
			}
		case "@psalm-suppress", "@suppress":
			for _, name := range strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ' ' }) {
				doc.Suppressed = append(doc.Suppressed, name)
			}
		}
	}

	return doc
}

func parseAssertion(s string) (DocAssertion, bool) {
	typ, rest := readTypeToken(s)
	param, _ := readTypeToken(rest)
	if typ == "" || !strings.HasPrefix(param, "$") {
		return DocAssertion{}, false
	}
	return DocAssertion{Type: typ, Param: param}, true
}

// readTypeToken reads one whitespace-delimited token, keeping generics like array<int, Foo> whole
func readTypeToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '{':
			depth++
		case '>', ')', '}':
			if depth > 0 {
				depth--
			}
		case ' ', '\t':
			if depth == 0 {
				return s[:i], strings.TrimSpace(s[i:])
			}
		}
	}
	return s, ""
}
