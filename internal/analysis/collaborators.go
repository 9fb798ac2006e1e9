package analysis

import (
	"errors"

	"github.com/shopware/php-callcheck/internal/php"
)

// Codebase is the class and method metadata store
type Codebase interface {
	GetClass(name string) (*php.ClassMetadata, error)
	ClassExists(name string) bool
	// ClassExtends reports whether parent is a strict ancestor of child
	ClassExtends(child, parent string) bool
	ClassExtendsOrImplements(child, parent string) bool

	MethodExists(methodID string) bool
	// GetMethod returns the storage of the declaring method, nil when it does not exist
	GetMethod(methodID string) *php.MethodMetadata
	AppearingMethodID(methodID string) string
	DeclaringMethodID(methodID string) string
	// MethodReturnType returns the declared return type, where it was declared and by which class
	MethodReturnType(methodID string) (*php.Union, *php.SourceRef, string)
}

// ExpressionChecker infers the type of an expression, analyzing calls inside it on the way.
// A nil result means the type is unknown.
type ExpressionChecker interface {
	AnalyzeExpr(expr Expr, ctx *Context) *php.Union
}

// InstanceCallResolver resolves $receiver->method(...args)
type InstanceCallResolver interface {
	ResolveInstanceCall(receiver *php.Union, method string, args []Arg, loc CodeLocation, ctx *Context) Result
}

// ErrArgumentType is returned by an ArgumentChecker once an argument problem was reported
// and accepted, and the call must not be analyzed further
var ErrArgumentType = errors.New("argument type error")

// ArgumentChecker analyzes call arguments and checks them against the parameters of methodID.
// With an empty methodID only the argument expressions are analyzed. The returned bindings map
// template parameters of the method to the argument types bound to them.
type ArgumentChecker interface {
	CheckArguments(methodID string, args []Arg, ctx *Context, loc CodeLocation) (php.TemplateBindings, error)
}

// MutationCollector walks the body of a method on the given context so that the effects
// of the method (property assignments) land in it
type MutationCollector interface {
	CollectMethodMutations(methodID string, ctx *Context)
}

// ProjectDirs tells files of the analyzed project apart from dependencies
type ProjectDirs interface {
	IsInProjectDirs(path string) bool
}

// Options are the configuration switches the call resolution honours
type Options struct {
	AllowStringStandinForClass           bool
	RememberPropertyAssignmentsAfterCall bool
	// ProjectDirs may be nil, every file then counts as project code
	ProjectDirs ProjectDirs
}

// Outcome tells the caller how resolution of a call ended
type Outcome int

const (
	// OutcomeUntyped means analysis may continue but the call has no inferred type
	OutcomeUntyped Outcome = iota
	// OutcomeTyped means the call resolved and Result.Type holds its type
	OutcomeTyped
	// OutcomeAbort means an accepted issue stopped resolution; the enclosing statement
	// should not be analyzed further
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTyped:
		return "typed"
	case OutcomeAbort:
		return "abort"
	default:
		return "untyped"
	}
}

// Result of resolving a call
type Result struct {
	Outcome Outcome
	Type    *php.Union

	// MethodID is the last method the call resolved to
	MethodID string
	// IfTrueAssertions and IfFalseAssertions apply to the arguments when the call result is
	// used as a truthy or falsy condition
	IfTrueAssertions  []php.Assertion
	IfFalseAssertions []php.Assertion
}

func abort() Result {
	return Result{Outcome: OutcomeAbort}
}

func untyped() Result {
	return Result{Outcome: OutcomeUntyped}
}
