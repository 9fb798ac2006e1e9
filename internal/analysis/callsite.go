package analysis

import (
	"github.com/shopware/php-callcheck/internal/php"
)

// Expr is an expression handed to the expression checker. The flow driver supplies its own
// syntax backed implementations; the types below are built by the analysis itself.
type Expr interface {
	Pos() CodeLocation
}

// StringLiteral is a literal string value
type StringLiteral struct {
	Value string
	Loc   CodeLocation
}

func (e *StringLiteral) Pos() CodeLocation { return e.Loc }

// ArrayLiteral is a list of values
type ArrayLiteral struct {
	Items []Expr
	Loc   CodeLocation
}

func (e *ArrayLiteral) Pos() CodeLocation { return e.Loc }

// Variable reads a scope entry such as "$x" or "$this->prop"
type Variable struct {
	Name string
	Loc  CodeLocation
}

func (e *Variable) Pos() CodeLocation { return e.Loc }

// TypedExpr is an expression whose type is already known
type TypedExpr struct {
	Type *php.Union
	Loc  CodeLocation
}

func (e *TypedExpr) Pos() CodeLocation { return e.Loc }

// TargetKind tells how the class of a static call is written
type TargetKind int

const (
	TargetNamed TargetKind = iota
	TargetSelf
	TargetStatic
	TargetParent
	TargetExpr
)

func (k TargetKind) String() string {
	switch k {
	case TargetSelf:
		return "self"
	case TargetStatic:
		return "static"
	case TargetParent:
		return "parent"
	case TargetExpr:
		return "expression"
	default:
		return "named"
	}
}

// ClassTarget is the left hand side of Foo::bar()
type ClassTarget struct {
	Kind TargetKind
	// Name is the class name as written, for TargetNamed. A leading backslash marks it fully qualified.
	Name string
	// Expr is the class valued expression, for TargetExpr
	Expr Expr
	Loc  CodeLocation
}

// Arg is one call argument
type Arg struct {
	Value Expr
	// Name is set for named arguments (foo: $x)
	Name   string
	Unpack bool
}

// CallSite is one static call expression
type CallSite struct {
	Class ClassTarget
	// Method is the literal method name, empty when the name is computed
	Method string
	// MethodExpr is the computed method name expression
	MethodExpr Expr
	Args       []Arg
	Location   CodeLocation

	// BoundReceiver is the type of the current object ($this), set in non-static methods.
	// static:: dispatches through it and implicit instance calls use it as receiver.
	BoundReceiver *php.Union
}

// HasLiteralMethod reports whether the method name is known without evaluating anything
func (s CallSite) HasLiteralMethod() bool {
	return s.Method != ""
}

// RewriteForCatchAll returns the call as it is dispatched to a catch-all method:
// the method name becomes the first argument and the original arguments are bundled into
// an array as the second one. The input is left untouched.
func RewriteForCatchAll(site CallSite, catchAll string) CallSite {
	items := make([]Expr, 0, len(site.Args))
	for _, arg := range site.Args {
		items = append(items, arg.Value)
	}

	rewritten := site
	rewritten.Method = catchAll
	rewritten.MethodExpr = nil
	rewritten.Args = []Arg{
		{Value: &StringLiteral{Value: site.Method, Loc: site.Location}},
		{Value: &ArrayLiteral{Items: items, Loc: site.Location}},
	}
	return rewritten
}
