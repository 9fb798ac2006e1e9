package php

import (
	"sort"
	"strings"
)

// Atomic is one alternative of a Union, e.g. a class, a string or a template parameter.
type Atomic interface {
	// Name returns the string representation of the type
	Name() string

	// Key identifies the atomic for de-duplication inside a union
	Key() string
}

// BaseType provides common functionality for atomic types
type BaseType struct {
	name string
}

// Name returns the string name of the type
func (t *BaseType) Name() string {
	return t.name
}

// Key defaults to the lowercased name
func (t *BaseType) Key() string {
	return strings.ToLower(t.name)
}

// NamedObject is an instance of a concrete class or interface
type NamedObject struct {
	BaseType
	ClassName string
}

// NewNamedObject creates a new named object type
func NewNamedObject(className string) *NamedObject {
	className = strings.TrimPrefix(className, "\\")
	return &NamedObject{
		BaseType:  BaseType{name: className},
		ClassName: className,
	}
}

// ClassStringType is a string known to hold some class name (class-string, class-string<T>)
type ClassStringType struct {
	BaseType
	// As names the template parameter of class-string<T>, if any
	As string
}

// NewClassStringType creates a new class-string type
func NewClassStringType(as string) *ClassStringType {
	name := "class-string"
	if as != "" {
		name += "<" + as + ">"
	}
	return &ClassStringType{
		BaseType: BaseType{name: name},
		As:       as,
	}
}

// LiteralClassString is the value of a Foo::class expression
type LiteralClassString struct {
	BaseType
	Value string
}

// NewLiteralClassString creates a new literal class string type
func NewLiteralClassString(value string) *LiteralClassString {
	value = strings.TrimPrefix(value, "\\")
	return &LiteralClassString{
		BaseType: BaseType{name: value + "::class"},
		Value:    value,
	}
}

// StringType represents the PHP string type
type StringType struct {
	BaseType
	Numeric bool
}

// NewStringType creates a new string type
func NewStringType(numeric bool) *StringType {
	name := "string"
	if numeric {
		name = "numeric-string"
	}
	return &StringType{
		BaseType: BaseType{name: name},
		Numeric:  numeric,
	}
}

// IntType represents the PHP integer type
type IntType struct{ BaseType }

// NewIntType creates a new integer type
func NewIntType() *IntType { return &IntType{BaseType{name: "int"}} }

// FloatType represents the PHP float type
type FloatType struct{ BaseType }

// NewFloatType creates a new float type
func NewFloatType() *FloatType { return &FloatType{BaseType{name: "float"}} }

// BoolType represents bool, true and false
type BoolType struct{ BaseType }

// NewBoolType creates a new boolean type
func NewBoolType(name string) *BoolType { return &BoolType{BaseType{name: name}} }

// ArrayType represents the PHP array type
type ArrayType struct {
	BaseType
	// Elem is nil for untyped arrays
	Elem *Union
}

// NewArrayType creates a new array type
func NewArrayType(elem *Union) *ArrayType {
	name := "array"
	if elem != nil {
		name = elem.String() + "[]"
		if len(elem.types) > 1 {
			name = "(" + elem.String() + ")[]"
		}
	}
	return &ArrayType{
		BaseType: BaseType{name: name},
		Elem:     elem,
	}
}

// ObjectType is the unnamed object type
type ObjectType struct{ BaseType }

// NewObjectType creates a new object type
func NewObjectType() *ObjectType { return &ObjectType{BaseType{name: "object"}} }

// CallableType represents the PHP callable type
type CallableType struct{ BaseType }

// NewCallableType creates a new callable type
func NewCallableType() *CallableType { return &CallableType{BaseType{name: "callable"}} }

// IterableType represents the PHP iterable type
type IterableType struct{ BaseType }

// NewIterableType creates a new iterable type
func NewIterableType() *IterableType { return &IterableType{BaseType{name: "iterable"}} }

// VoidType represents the PHP void type
type VoidType struct{ BaseType }

// NewVoidType creates a new void type
func NewVoidType() *VoidType { return &VoidType{BaseType{name: "void"}} }

// NeverType represents the never return type
type NeverType struct{ BaseType }

// NewNeverType creates a new never type
func NewNeverType() *NeverType { return &NeverType{BaseType{name: "never"}} }

// NullType represents the PHP null type
type NullType struct{ BaseType }

// NewNullType creates a new null type
func NewNullType() *NullType { return &NullType{BaseType{name: "null"}} }

// MixedType represents the PHP mixed type
type MixedType struct{ BaseType }

// NewMixedType creates a new mixed type
func NewMixedType() *MixedType { return &MixedType{BaseType{name: "mixed"}} }

// TemplateParam is a generic template parameter declared by a class or method (@template T)
type TemplateParam struct {
	BaseType
	DefiningClass string
	ParamName     string
}

// NewTemplateParam creates a new template parameter type
func NewTemplateParam(definingClass, paramName string) *TemplateParam {
	return &TemplateParam{
		BaseType:      BaseType{name: paramName},
		DefiningClass: definingClass,
		ParamName:     paramName,
	}
}

// Key keeps template parameters apart from classes with the same short name
func (t *TemplateParam) Key() string {
	return "tparam:" + strings.ToLower(t.DefiningClass) + ":" + t.ParamName
}

// SpecialType represents the self-referencing types self, static, parent and $this
type SpecialType struct {
	BaseType
}

// NewSpecialType creates a new special type
func NewSpecialType(typeName string) *SpecialType {
	return &SpecialType{
		BaseType: BaseType{name: strings.ToLower(typeName)},
	}
}

// Union is a non-empty set of atomic alternatives.
type Union struct {
	types []Atomic

	// IgnoreNullableIssues silences null-related diagnostics without removing null from the union
	IgnoreNullableIssues bool
}

// NewUnion creates a union from the given atomics, dropping duplicates.
// An empty list yields mixed.
func NewUnion(types ...Atomic) *Union {
	u := &Union{}
	for _, t := range types {
		u.add(t)
	}
	if len(u.types) == 0 {
		u.types = append(u.types, NewMixedType())
	}
	return u
}

// Mixed returns a fresh mixed union
func Mixed() *Union {
	return NewUnion(NewMixedType())
}

func (u *Union) add(t Atomic) {
	if t == nil {
		return
	}
	key := t.Key()
	for _, existing := range u.types {
		if existing.Key() == key {
			return
		}
	}
	u.types = append(u.types, t)
}

// Types returns the atomic alternatives
func (u *Union) Types() []Atomic {
	return u.types
}

// String renders the union sorted, joined with |
func (u *Union) String() string {
	names := make([]string, 0, len(u.types))
	for _, t := range u.types {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// Clone returns a shallow copy; atomics are immutable and shared.
func (u *Union) Clone() *Union {
	if u == nil {
		return nil
	}
	types := make([]Atomic, len(u.types))
	copy(types, u.types)
	return &Union{types: types, IgnoreNullableIssues: u.IgnoreNullableIssues}
}

// IsNullable reports whether null is one of the alternatives
func (u *Union) IsNullable() bool {
	for _, t := range u.types {
		if _, ok := t.(*NullType); ok {
			return true
		}
	}
	return false
}

// IsMixed reports whether the union contains mixed
func (u *Union) IsMixed() bool {
	for _, t := range u.types {
		if _, ok := t.(*MixedType); ok {
			return true
		}
	}
	return false
}

// NamedObjects returns the class names of all named-object alternatives
func (u *Union) NamedObjects() []string {
	var names []string
	for _, t := range u.types {
		if o, ok := t.(*NamedObject); ok {
			names = append(names, o.ClassName)
		}
	}
	return names
}

// Has reports whether an atomic with the same identity is present
func (u *Union) Has(t Atomic) bool {
	key := t.Key()
	for _, existing := range u.types {
		if existing.Key() == key {
			return true
		}
	}
	return false
}

// Combine returns the set-union of both types. Either side may be nil.
func Combine(a, b *Union) *Union {
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}
	out := a.Clone()
	for _, t := range b.types {
		out.add(t)
	}
	out.IgnoreNullableIssues = a.IgnoreNullableIssues || b.IgnoreNullableIssues
	return out
}

// TemplateBindings maps template parameter names to the types bound to them
type TemplateBindings map[string]*Union

// Bind adds a type to a template parameter, combining with earlier bindings
func (b TemplateBindings) Bind(name string, t *Union) {
	b[name] = Combine(b[name], t)
}

// Substitute replaces bound template parameters with their bound types.
func (u *Union) Substitute(bindings TemplateBindings) *Union {
	if len(bindings) == 0 {
		return u.Clone()
	}
	out := &Union{IgnoreNullableIssues: u.IgnoreNullableIssues}
	for _, t := range u.types {
		switch a := t.(type) {
		case *TemplateParam:
			if bound, ok := bindings[a.ParamName]; ok && bound != nil {
				for _, bt := range bound.types {
					out.add(bt)
				}
				continue
			}
		case *ClassStringType:
			if a.As != "" {
				if bound, ok := bindings[a.As]; ok && bound != nil {
					for _, name := range bound.NamedObjects() {
						out.add(NewLiteralClassString(name))
					}
					if len(bound.NamedObjects()) > 0 {
						continue
					}
				}
			}
		case *ArrayType:
			if a.Elem != nil {
				out.add(NewArrayType(a.Elem.Substitute(bindings)))
				continue
			}
		}
		out.add(t)
	}
	if len(out.types) == 0 {
		out.types = append(out.types, NewMixedType())
	}
	return out
}

// FleshOutContext names the classes the self-referencing atomics resolve to
type FleshOutContext struct {
	// Self is the class that declares the code (self::)
	Self string
	// Static is the class the call was made on (static, $this)
	Static string
	// Parent is the parent of Self
	Parent string
}

// FleshOut rewrites self, static, $this and parent to concrete classes.
func (u *Union) FleshOut(fc FleshOutContext) *Union {
	out := &Union{IgnoreNullableIssues: u.IgnoreNullableIssues}
	for _, t := range u.types {
		switch a := t.(type) {
		case *SpecialType:
			var class string
			switch a.Name() {
			case "self":
				class = fc.Self
			case "static", "$this":
				class = fc.Static
				if class == "" {
					class = fc.Self
				}
			case "parent":
				class = fc.Parent
			}
			if class != "" {
				out.add(NewNamedObject(class))
				continue
			}
		case *ArrayType:
			if a.Elem != nil {
				out.add(NewArrayType(a.Elem.FleshOut(fc)))
				continue
			}
		}
		out.add(t)
	}
	return out
}

// ClassLookup answers whether a class-like exists
type ClassLookup interface {
	ClassExists(name string) bool
}

// UndefinedClasses lists named classes in the union that do not exist and are not phantom.
func (u *Union) UndefinedClasses(lookup ClassLookup, phantom map[string]bool) []string {
	var missing []string
	for _, t := range u.types {
		var name string
		switch a := t.(type) {
		case *NamedObject:
			name = a.ClassName
		case *LiteralClassString:
			name = a.Value
		case *ArrayType:
			if a.Elem != nil {
				missing = append(missing, a.Elem.UndefinedClasses(lookup, phantom)...)
			}
			continue
		default:
			continue
		}
		if phantom[strings.ToLower(name)] {
			continue
		}
		if !lookup.ClassExists(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Without returns the union minus the alternatives matching drop. Removing everything yields mixed.
func (u *Union) Without(drop func(Atomic) bool) *Union {
	out := &Union{IgnoreNullableIssues: u.IgnoreNullableIssues}
	for _, t := range u.types {
		if !drop(t) {
			out.add(t)
		}
	}
	if len(out.types) == 0 {
		out.types = append(out.types, NewMixedType())
	}
	return out
}

// Reconcile applies an assertion rule such as "Foo", "!null" or "string" to an existing type.
func Reconcile(rule string, existing *Union, scope TypeScope) *Union {
	rule = strings.TrimSpace(rule)
	if strings.HasPrefix(rule, "!") {
		if existing == nil {
			return Mixed()
		}
		negated := ParseType(rule[1:], scope)
		out := existing.Without(func(a Atomic) bool { return negated.Has(a) })
		out.IgnoreNullableIssues = existing.IgnoreNullableIssues
		return out
	}
	return ParseType(rule, scope)
}

// Hierarchy answers subtype questions between classes
type Hierarchy interface {
	ClassExtendsOrImplements(child, parent string) bool
}

// IsContainedBy reports whether every alternative of arg is acceptable where container is expected.
// Unknown shapes are accepted; only clear mismatches fail.
func IsContainedBy(arg, container *Union, h Hierarchy) bool {
	if arg == nil || container == nil || container.IsMixed() || arg.IsMixed() {
		return true
	}
	for _, a := range arg.types {
		if !atomicContainedBy(a, container, h) {
			return false
		}
	}
	return true
}

func atomicContainedBy(a Atomic, container *Union, h Hierarchy) bool {
	for _, c := range container.types {
		if atomicMatches(a, c, h) {
			return true
		}
	}
	return false
}

func atomicMatches(a, c Atomic, h Hierarchy) bool {
	switch c.(type) {
	case *MixedType, *TemplateParam, *SpecialType:
		return true
	}
	switch at := a.(type) {
	case *MixedType, *TemplateParam, *SpecialType, *NeverType:
		return true
	case *NullType:
		_, ok := c.(*NullType)
		return ok
	case *NamedObject:
		switch ct := c.(type) {
		case *NamedObject:
			return strings.EqualFold(at.ClassName, ct.ClassName) || h.ClassExtendsOrImplements(at.ClassName, ct.ClassName)
		case *ObjectType:
			return true
		case *CallableType:
			return true
		case *IterableType:
			return true
		}
		return false
	case *LiteralClassString, *ClassStringType:
		switch c.(type) {
		case *StringType, *ClassStringType, *LiteralClassString, *CallableType:
			return true
		}
		return false
	case *StringType:
		switch ct := c.(type) {
		case *StringType:
			return !ct.Numeric || at.Numeric
		case *CallableType:
			return true
		}
		return false
	case *IntType:
		switch c.(type) {
		case *IntType, *FloatType:
			return true
		}
		return false
	case *ArrayType:
		switch c.(type) {
		case *ArrayType, *IterableType, *CallableType:
			return true
		}
		return false
	case *BoolType:
		ct, ok := c.(*BoolType)
		return ok && (ct.Name() == "bool" || ct.Name() == at.Name())
	case *ObjectType:
		switch c.(type) {
		case *ObjectType, *NamedObject:
			return true
		}
		return false
	}
	return strings.EqualFold(a.Name(), c.Name())
}
