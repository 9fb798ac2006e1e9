package php

import (
	"errors"
	"strings"
)

// ErrClassNotFound is returned when a class-like is not in the index
var ErrClassNotFound = errors.New("class not found")

// Visibility of a class member
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// SourceRef points at a declaration
type SourceRef struct {
	File string `msgpack:"file"`
	Line int    `msgpack:"line"`
}

// Param is a declared method parameter
type Param struct {
	Name       string `msgpack:"name"`
	Type       *Union `msgpack:"type"`
	ByRef      bool   `msgpack:"by_ref"`
	Variadic   bool   `msgpack:"variadic"`
	HasDefault bool   `msgpack:"has_default"`
}

// Assertion narrows the type of an argument. Rule is written like a docblock type,
// optionally negated ("!null").
type Assertion struct {
	ParamIndex int    `msgpack:"param_index"`
	ParamName  string `msgpack:"param_name"`
	Rule       string `msgpack:"rule"`
}

// MethodMetadata is everything the index knows about one declared method
type MethodMetadata struct {
	Name       string     `msgpack:"name"`
	ClassName  string     `msgpack:"class"`
	Line       int        `msgpack:"line"`
	Visibility Visibility `msgpack:"visibility"`
	IsStatic   bool       `msgpack:"static"`
	IsAbstract bool       `msgpack:"abstract"`
	Deprecated bool       `msgpack:"deprecated"`
	Params     []Param    `msgpack:"params"`

	ReturnType         *Union     `msgpack:"return_type"`
	ReturnTypeLocation *SourceRef `msgpack:"return_type_location"`

	Templates         []string    `msgpack:"templates"`
	Assertions        []Assertion `msgpack:"assertions"`
	IfTrueAssertions  []Assertion `msgpack:"if_true_assertions"`
	IfFalseAssertions []Assertion `msgpack:"if_false_assertions"`
	SuppressedIssues  []string    `msgpack:"suppressed_issues"`
}

// ID returns the canonical method id (Class::lowercasedname)
func (m *MethodMetadata) ID() string {
	return MethodID(m.ClassName, m.Name)
}

// CasedID returns the method id as declared
func (m *MethodMetadata) CasedID() string {
	return m.ClassName + "::" + m.Name
}

// ParamIndex returns the position of the named parameter ($ optional), or -1
func (m *MethodMetadata) ParamIndex(name string) int {
	name = strings.TrimPrefix(name, "$")
	for i, p := range m.Params {
		if strings.TrimPrefix(p.Name, "$") == name {
			return i
		}
	}
	return -1
}

// ClassMetadata describes a class, interface or trait
type ClassMetadata struct {
	Name string `msgpack:"name"`
	Path string `msgpack:"path"`
	Line int    `msgpack:"line"`

	Parent     string   `msgpack:"parent"`
	Interfaces []string `msgpack:"interfaces"`
	UsedTraits []string `msgpack:"used_traits"`

	// ParentClasses is the ordered ancestor chain, nearest first. Filled by the index.
	ParentClasses []string `msgpack:"-"`

	Deprecated  bool `msgpack:"deprecated"`
	UserDefined bool `msgpack:"user_defined"`
	IsInterface bool `msgpack:"interface"`
	IsTrait     bool `msgpack:"trait"`
	IsAbstract  bool `msgpack:"abstract"`

	TemplateNames []string `msgpack:"templates"`

	// Methods keyed by lowercased method name
	Methods map[string]MethodMetadata `msgpack:"methods"`
}

// UsesTrait reports whether the class uses the trait directly
func (c *ClassMetadata) UsesTrait(trait string) bool {
	trait = strings.TrimPrefix(trait, "\\")
	for _, t := range c.UsedTraits {
		if strings.EqualFold(t, trait) {
			return true
		}
	}
	return false
}

// MethodID builds the canonical method id
func MethodID(className, methodName string) string {
	return strings.TrimPrefix(className, "\\") + "::" + strings.ToLower(methodName)
}

// SplitMethodID splits a method id into class and method name
func SplitMethodID(id string) (string, string) {
	className, methodName, found := strings.Cut(id, "::")
	if !found {
		return id, ""
	}
	return className, methodName
}

func classKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}
