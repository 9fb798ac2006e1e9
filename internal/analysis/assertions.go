package analysis

import (
	"github.com/shopware/php-callcheck/internal/php"
)

// VarExpr is implemented by expressions that may read a scope variable.
// VarName returns "" when the expression is something else.
type VarExpr interface {
	Expr
	VarName() string
}

func (e *Variable) VarName() string { return e.Name }

// assertedVar returns the scope variable an assertion narrows, if the matching argument is one
func assertedVar(assertion php.Assertion, method *php.MethodMetadata, args []Arg) string {
	index := assertion.ParamIndex
	if assertion.ParamName != "" {
		if i := method.ParamIndex(assertion.ParamName); i >= 0 {
			index = i
		}
	}

	// named arguments are matched by name, positional ones by position
	for _, arg := range args {
		if arg.Name != "" && method.ParamIndex(arg.Name) == index {
			return varName(arg.Value)
		}
	}
	if index < 0 || index >= len(args) || args[index].Name != "" || args[index].Unpack {
		return ""
	}
	return varName(args[index].Value)
}

func varName(expr Expr) string {
	if v, ok := expr.(VarExpr); ok {
		return v.VarName()
	}
	return ""
}

// ApplyAssertions narrows the variables passed to a method that asserts on its parameters
func ApplyAssertions(method *php.MethodMetadata, assertions []php.Assertion, args []Arg, ctx *Context) {
	if len(assertions) == 0 {
		return
	}

	// rules carry fully qualified names already
	scope := php.TypeScope{Templates: make(map[string]string, len(method.Templates))}
	for _, name := range method.Templates {
		scope.Templates[name] = method.ID()
	}

	for _, assertion := range assertions {
		name := assertedVar(assertion, method, args)
		if name == "" {
			continue
		}
		ctx.SetVar(name, php.Reconcile(assertion.Rule, ctx.VarsInScope[name], scope))
	}
}

// ReturnTypeOf returns the declared return type of a method as seen by a call on the class static:
// template parameters are replaced by their bindings and self, static and parent become classes.
// The second result is where the type was declared.
func ReturnTypeOf(codebase Codebase, methodID, static string, bindings php.TemplateBindings) (*php.Union, *php.SourceRef) {
	declared, location, declaringClass := codebase.MethodReturnType(methodID)
	if declared == nil {
		return nil, nil
	}

	flesh := php.FleshOutContext{Self: declaringClass, Static: static}
	if class, err := codebase.GetClass(declaringClass); err == nil {
		if class.IsTrait {
			// self inside a trait is the class using it
			flesh.Self, _ = php.SplitMethodID(codebase.AppearingMethodID(methodID))
			if class, err = codebase.GetClass(flesh.Self); err != nil {
				class = nil
			}
		}
		if class != nil && len(class.ParentClasses) > 0 {
			flesh.Parent = class.ParentClasses[0]
		}
	}

	return declared.Substitute(bindings).FleshOut(flesh), location
}
