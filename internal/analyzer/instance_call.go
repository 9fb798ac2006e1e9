package analyzer

import (
	"fmt"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/php"
)

// ResolveInstanceCall analyzes $receiver->method(...args) on every class the receiver may be
func (a *Analyzer) ResolveInstanceCall(receiver *php.Union, method string, args []analysis.Arg, loc analysis.CodeLocation, ctx *analysis.Context) analysis.Result {
	if receiver == nil || method == "" || !ctx.CheckMethods {
		return a.argumentsOnly(args, ctx, loc)
	}

	var (
		typ      *php.Union
		methodID string
		aborted  bool
		ifTrue   []php.Assertion
		ifFalse  []php.Assertion
	)

	for _, className := range receiver.NamedObjects() {
		if ctx.IsPhantomClass(className) {
			continue
		}
		class, err := a.index.GetClass(className)
		if err != nil {
			continue
		}

		fq := class.Name
		id := php.MethodID(fq, method)
		casedID := fq + "::" + method
		call := analysis.CallSite{Method: method, Args: args, Location: loc}

		if !a.index.MethodExists(id) || !analysis.IsMethodVisible(a.index, id, ctx.Self) {
			if catchAll := php.MethodID(fq, "__call"); a.index.MethodExists(catchAll) {
				call = analysis.RewriteForCatchAll(call, "__call")
				id = catchAll
				casedID = fq + "::__call"
			}
		}
		methodID = id

		if !a.index.MethodExists(id) {
			if a.report(ctx, analysis.UndefinedMethod, loc, casedID, fmt.Sprintf("Method %s does not exist", casedID)) {
				aborted = true
			}
			continue
		}

		if !analysis.CheckMethodVisibility(a.index, a.collector, id, ctx, loc) {
			aborted = true
			continue
		}

		storage := a.index.GetMethod(id)
		if storage == nil {
			continue
		}
		if storage.Deprecated {
			a.report(ctx, analysis.DeprecatedMethod, loc, storage.CasedID(),
				fmt.Sprintf("The method %s has been marked as deprecated", storage.CasedID()))
		}

		bindings, err := a.CheckArguments(id, call.Args, ctx, loc)
		if err != nil {
			aborted = true
			continue
		}

		returnType, _ := analysis.ReturnTypeOf(a.index, id, fq, bindings)

		analysis.ApplyAssertions(storage, storage.Assertions, args, ctx)
		if len(storage.IfTrueAssertions) > 0 {
			ifTrue = storage.IfTrueAssertions
		}
		if len(storage.IfFalseAssertions) > 0 {
			ifFalse = storage.IfFalseAssertions
		}

		if len(a.calls.Hooks) > 0 {
			returnType = analysis.RunHooks(a.calls.Hooks, a.edits, &analysis.AfterMethodCallEvent{
				MethodID:          id,
				AppearingMethodID: a.index.AppearingMethodID(id),
				DeclaringMethodID: a.index.DeclaringMethodID(id),
				Args:              call.Args,
				Location:          loc,
				Context:           ctx,
				ReturnType:        returnType,
			})
		}

		if returnType != nil {
			typ = php.Combine(typ, returnType)
		}
	}

	if methodID == "" {
		return a.argumentsOnly(args, ctx, loc)
	}

	result := analysis.Result{
		MethodID:          methodID,
		IfTrueAssertions:  ifTrue,
		IfFalseAssertions: ifFalse,
	}
	switch {
	case typ != nil:
		result.Outcome = analysis.OutcomeTyped
		result.Type = typ
	case aborted:
		result.Outcome = analysis.OutcomeAbort
		return result
	}

	if !a.cfg.RememberPropertyAssignmentsAfterCall && !ctx.CollectInitializations {
		ctx.RemoveAllObjectVars()
	}
	return result
}

// argumentsOnly analyzes the arguments of a call whose method is unknown
func (a *Analyzer) argumentsOnly(args []analysis.Arg, ctx *analysis.Context, loc analysis.CodeLocation) analysis.Result {
	if _, err := a.CheckArguments("", args, ctx, loc); err != nil {
		return analysis.Result{Outcome: analysis.OutcomeAbort}
	}
	return analysis.Result{Outcome: analysis.OutcomeUntyped}
}
