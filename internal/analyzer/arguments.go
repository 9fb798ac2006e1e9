package analyzer

import (
	"fmt"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/php"
)

// AnalyzeExpr infers the type of an expression handed over by the call resolution
func (a *Analyzer) AnalyzeExpr(expr analysis.Expr, ctx *analysis.Context) *php.Union {
	t, _ := a.analyzeExpr(expr, ctx)
	return t
}

// analyzeExpr also reports whether a call inside the expression aborted
func (a *Analyzer) analyzeExpr(expr analysis.Expr, ctx *analysis.Context) (*php.Union, bool) {
	switch e := expr.(type) {
	case *nodeExpr:
		t := e.walk.expr(e.node, ctx)
		return t, e.walk.halted
	case *analysis.StringLiteral:
		return php.NewUnion(php.NewStringType(isNumeric(e.Value))), false
	case *analysis.ArrayLiteral:
		var elem *php.Union
		known := true
		for _, item := range e.Items {
			t, aborted := a.analyzeExpr(item, ctx)
			if aborted {
				return nil, true
			}
			if t == nil {
				known = false
				continue
			}
			elem = php.Combine(elem, t)
		}
		if !known || elem == nil {
			return php.NewUnion(php.NewArrayType(nil)), false
		}
		return php.NewUnion(php.NewArrayType(elem)), false
	case *analysis.Variable:
		return ctx.VarsInScope[e.Name], false
	case *analysis.TypedExpr:
		return e.Type, false
	}
	return nil, false
}

// CheckArguments analyzes the arguments of a call and, for a known method, checks their count and
// types against its parameters. Template parameters of the method are bound from the argument types.
func (a *Analyzer) CheckArguments(methodID string, args []analysis.Arg, ctx *analysis.Context, loc analysis.CodeLocation) (php.TemplateBindings, error) {
	types := make([]*php.Union, len(args))
	for i, arg := range args {
		t, aborted := a.analyzeExpr(arg.Value, ctx)
		if aborted {
			return nil, analysis.ErrArgumentType
		}
		types[i] = t
	}

	if methodID == "" {
		return nil, nil
	}
	method := a.index.GetMethod(methodID)
	if method == nil {
		return nil, nil
	}

	if err := a.checkArity(method, args, ctx, loc); err != nil {
		return nil, err
	}

	bindings := php.TemplateBindings{}
	for i, arg := range args {
		param, ok := paramFor(method, args, i)
		if !ok || arg.Unpack {
			continue
		}

		// the variable passed by reference holds the parameter type afterwards, set or not
		if param.ByRef {
			if name := varNameOf(arg.Value); name != "" {
				out := php.Mixed()
				if param.Type != nil {
					out = param.Type
				}
				ctx.SetVar(name, out)
			}
			continue
		}

		if types[i] == nil {
			continue
		}
		bindTemplates(bindings, param.Type, types[i])

		if param.Type == nil || php.IsContainedBy(types[i], param.Type, a.index) {
			continue
		}
		if a.report(ctx, analysis.InvalidArgument, arg.Value.Pos(), method.CasedID(),
			fmt.Sprintf("Argument %d of %s expects %s, %s provided", i+1, method.CasedID(), param.Type, types[i])) {
			return nil, analysis.ErrArgumentType
		}
	}

	return bindings, nil
}

func (a *Analyzer) checkArity(method *php.MethodMetadata, args []analysis.Arg, ctx *analysis.Context, loc analysis.CodeLocation) error {
	positional, unpacked := 0, false
	named := make(map[int]bool)
	for _, arg := range args {
		switch {
		case arg.Unpack:
			unpacked = true
		case arg.Name != "":
			if i := method.ParamIndex(arg.Name); i >= 0 {
				named[i] = true
			}
		default:
			positional++
		}
	}

	variadic := len(method.Params) > 0 && method.Params[len(method.Params)-1].Variadic
	if !variadic && positional > len(method.Params) {
		if a.report(ctx, analysis.TooManyArguments, loc, method.CasedID(),
			fmt.Sprintf("Too many arguments for method %s - expecting %d but saw %d", method.CasedID(), len(method.Params), positional)) {
			return analysis.ErrArgumentType
		}
		return nil
	}

	if unpacked {
		return nil
	}

	required := 0
	for i, param := range method.Params {
		if !param.HasDefault && !param.Variadic {
			required = i + 1
		}
	}
	for i := positional; i < required; i++ {
		if named[i] || method.Params[i].HasDefault {
			continue
		}
		if a.report(ctx, analysis.TooFewArguments, loc, method.CasedID(),
			fmt.Sprintf("Too few arguments for method %s - expecting %d but saw %d", method.CasedID(), required, positional+len(named))) {
			return analysis.ErrArgumentType
		}
		return nil
	}
	return nil
}

// paramFor returns the parameter the i-th argument is passed to
func paramFor(method *php.MethodMetadata, args []analysis.Arg, i int) (php.Param, bool) {
	params := method.Params
	if len(params) == 0 {
		return php.Param{}, false
	}
	last := params[len(params)-1]

	if name := args[i].Name; name != "" {
		if idx := method.ParamIndex(name); idx >= 0 {
			return params[idx], true
		}
		if last.Variadic {
			return last, true
		}
		return php.Param{}, false
	}

	position := 0
	for _, arg := range args[:i] {
		if arg.Name == "" && !arg.Unpack {
			position++
		}
	}
	if position < len(params) {
		return params[position], true
	}
	if last.Variadic {
		return last, true
	}
	return php.Param{}, false
}

// bindTemplates unifies a parameter type with an argument type: a template parameter binds to the
// argument type, class-string<T> binds T to the classes a literal class string names.
func bindTemplates(bindings php.TemplateBindings, paramType, argType *php.Union) {
	if paramType == nil || argType == nil {
		return
	}
	for _, atomic := range paramType.Types() {
		switch p := atomic.(type) {
		case *php.TemplateParam:
			bindings.Bind(p.ParamName, argType)
		case *php.ClassStringType:
			if p.As == "" {
				continue
			}
			var classes []php.Atomic
			for _, at := range argType.Types() {
				if literal, ok := at.(*php.LiteralClassString); ok {
					classes = append(classes, php.NewNamedObject(literal.Value))
				}
			}
			if len(classes) > 0 {
				bindings.Bind(p.As, php.NewUnion(classes...))
			}
		case *php.ArrayType:
			if p.Elem == nil {
				continue
			}
			for _, at := range argType.Types() {
				if arr, ok := at.(*php.ArrayType); ok && arr.Elem != nil {
					bindTemplates(bindings, p.Elem, arr.Elem)
				}
			}
		}
	}
}

func varNameOf(expr analysis.Expr) string {
	if v, ok := expr.(analysis.VarExpr); ok {
		return v.VarName()
	}
	return ""
}
