package analysis

import (
	"fmt"
	"strings"

	"github.com/shopware/php-callcheck/internal/php"
)

// StaticCallResolver analyzes Foo::bar(), self::bar(), static::bar(), parent::bar() and
// $class::bar() calls: it resolves the target classes, checks the method on each of them
// and infers the type of the call.
type StaticCallResolver struct {
	Codebase  Codebase
	Options   Options
	Collector *Collector

	Expressions ExpressionChecker
	Instances   InstanceCallResolver
	Arguments   ArgumentChecker
	// Mutations is only needed when contexts collect mutations or initializations
	Mutations MutationCollector

	Hooks []AfterMethodCallHook
	Edits *FileManipulationBuffer
}

// resolution accumulates the per-class results of one call
type resolution struct {
	typ      *php.Union
	methodID string
	aborted  bool
	ifTrue   []php.Assertion
	ifFalse  []php.Assertion
}

// Resolve analyzes one static call in ctx. Issues go to the collector; the outcome tells the
// caller whether to keep analyzing the enclosing statement.
func (r *StaticCallResolver) Resolve(site CallSite, ctx *Context) Result {
	lhs, result, done := r.resolveTarget(site, ctx)
	if done {
		return result
	}

	if site.MethodExpr != nil {
		r.Expressions.AnalyzeExpr(site.MethodExpr, ctx)
	}

	if !ctx.CheckMethods || lhs == nil {
		if _, err := r.Arguments.CheckArguments("", site.Args, ctx, site.Location); err != nil {
			return abort()
		}
		return untyped()
	}

	var acc resolution
	for _, atomic := range lhs.Types() {
		named, ok := atomic.(*php.NamedObject)
		if !ok {
			r.checkNonObjectTarget(atomic, lhs, site, ctx)
			continue
		}

		// computed method names leave nothing to check but the arguments, done below
		if !site.HasLiteralMethod() {
			continue
		}

		r.resolveMethod(named.ClassName, site, ctx, &acc)
	}

	if acc.methodID == "" {
		if _, err := r.Arguments.CheckArguments("", site.Args, ctx, site.Location); err != nil {
			return abort()
		}
		return untyped()
	}

	result = Result{
		MethodID:          acc.methodID,
		IfTrueAssertions:  acc.ifTrue,
		IfFalseAssertions: acc.ifFalse,
	}
	switch {
	case acc.typ != nil:
		result.Outcome = OutcomeTyped
		result.Type = acc.typ
	case acc.aborted:
		result.Outcome = OutcomeAbort
		return result
	default:
		result.Outcome = OutcomeUntyped
	}

	// any call may have changed reachable object state
	if !r.Options.RememberPropertyAssignmentsAfterCall && !ctx.CollectInitializations {
		ctx.RemoveAllObjectVars()
	}

	return result
}

// resolveTarget turns the class part of the call into a type. done is set when resolution
// already ended with result.
func (r *StaticCallResolver) resolveTarget(site CallSite, ctx *Context) (lhs *php.Union, result Result, done bool) {
	target := site.Class
	var fq string

	switch target.Kind {
	case TargetExpr:
		return r.Expressions.AnalyzeExpr(target.Expr, ctx), Result{}, false

	case TargetParent:
		var self *php.ClassMetadata
		if ctx.Self != "" {
			self, _ = r.Codebase.GetClass(ctx.Self)
		}
		if self == nil || len(self.ParentClasses) == 0 {
			if r.report(ctx, ParentNotFound, site.Location, "", "Cannot call method on parent as this class does not extend another") {
				return nil, abort(), true
			}
			return nil, untyped(), true
		}

		parent, err := r.Codebase.GetClass(self.ParentClasses[0])
		if err != nil {
			// the chain only holds indexed classes, a miss means the index changed underneath
			fq = self.ParentClasses[0]
			break
		}
		fq = parent.Name

		if site.HasLiteralMethod() && parent.UserDefined && (ctx.CollectMutations || ctx.CollectInitializations) {
			if res, stop := r.collectParentMutations(fq, site, ctx); stop {
				return nil, res, true
			}
		}

	case TargetSelf, TargetStatic:
		if ctx.Self == "" {
			break
		}
		if target.Kind == TargetStatic && site.BoundReceiver != nil {
			lhs = site.BoundReceiver.Clone()
			fq = lhs.String()
		} else {
			fq = ctx.Self
		}

	default:
		if !ctx.CheckClasses {
			break
		}

		fq = ctx.ResolveClassName(target.Name)
		if ctx.IsPhantomClass(fq) {
			return nil, untyped(), true
		}

		if self, err := r.Codebase.GetClass(ctx.Self); ctx.Self != "" && err == nil && self.UsesTrait(fq) {
			fq = self.Name
		} else if class, err := r.Codebase.GetClass(fq); err == nil {
			fq = class.Name
		} else {
			loc := target.Loc
			if loc == (CodeLocation{}) {
				loc = site.Location
			}
			if r.report(ctx, UndefinedClass, loc, fq, fmt.Sprintf("Class or interface %s does not exist", fq)) {
				return nil, abort(), true
			}
			return nil, untyped(), true
		}
	}

	if fq != "" && ctx.IsPhantomClass(fq) {
		return nil, untyped(), true
	}

	if lhs == nil && fq != "" {
		lhs = php.NewUnion(php.NewNamedObject(fq))
	}
	return lhs, Result{}, false
}

// collectParentMutations walks parent::method() on the caller's context, so that what the parent
// initializes is known to the child. Each method is walked once per pass.
func (r *StaticCallResolver) collectParentMutations(parent string, site CallSite, ctx *Context) (Result, bool) {
	methodID := php.MethodID(parent, site.Method)
	appearingID := r.Codebase.AppearingMethodID(methodID)
	if appearingID == "" {
		if r.report(ctx, UndefinedMethod, site.Location, methodID, fmt.Sprintf("Method %s does not exist", methodID)) {
			return abort(), true
		}
		return untyped(), true
	}

	if r.Mutations == nil {
		return Result{}, false
	}

	appearingClass, _ := php.SplitMethodID(appearingID)
	oldSelf := ctx.Self
	pop := ctx.pushInclude(site.Location)
	ctx.Self = appearingClass

	if ctx.MarkInitialized(methodID) {
		locals := ctx.saveLocals()
		r.Mutations.CollectMethodMutations(methodID, ctx)
		ctx.restoreLocals(locals)
	}

	pop()
	ctx.Self = oldSelf

	if _, ok := ctx.VarsInScope["$this"]; ok && oldSelf != "" {
		ctx.VarsInScope["$this"] = php.NewUnion(php.NewNamedObject(oldSelf))
	}

	return Result{}, false
}

// checkNonObjectTarget reports alternatives of the class type that cannot name a class
func (r *StaticCallResolver) checkNonObjectTarget(atomic php.Atomic, lhs *php.Union, site CallSite, ctx *Context) {
	switch a := atomic.(type) {
	case *php.ClassStringType, *php.LiteralClassString, *php.MixedType, *php.TemplateParam:
		return
	case *php.StringType:
		if r.Options.AllowStringStandinForClass && !a.Numeric {
			return
		}
		r.report(ctx, InvalidStringClass, site.Location, a.Name(), "String cannot be used as a class")
		return
	case *php.NullType:
		if lhs.IgnoreNullableIssues {
			return
		}
	}

	r.report(ctx, UndefinedClass, site.Location, atomic.Name(),
		fmt.Sprintf("Type %s cannot be called as a class", atomic.Name()))
}

// resolveMethod checks the call against one target class and merges its type into acc
func (r *StaticCallResolver) resolveMethod(fq string, site CallSite, ctx *Context, acc *resolution) {
	methodID := php.MethodID(fq, site.Method)
	casedID := fq + "::" + site.Method
	call := site

	if !r.Codebase.MethodExists(methodID) || !IsMethodVisible(r.Codebase, methodID, ctx.Self) {
		if catchAll := php.MethodID(fq, "__callStatic"); r.Codebase.MethodExists(catchAll) {
			call = RewriteForCatchAll(site, "__callStatic")
			methodID = catchAll
			casedID = fq + "::__callStatic"
		}
	}
	acc.methodID = methodID

	if !r.Codebase.MethodExists(methodID) {
		if r.report(ctx, UndefinedMethod, site.Location, casedID, fmt.Sprintf("Method %s does not exist", casedID)) {
			acc.aborted = true
		}
		return
	}

	if class, err := r.Codebase.GetClass(fq); err == nil && class.Deprecated {
		r.report(ctx, DeprecatedClass, site.Location, class.Name, class.Name+" is marked deprecated")
	}

	if !CheckMethodVisibility(r.Codebase, r.Collector, methodID, ctx, site.Location) {
		acc.aborted = true
		return
	}

	method := r.Codebase.GetMethod(methodID)
	if method == nil {
		return
	}

	if site.Class.Kind != TargetExpr &&
		(site.Class.Kind != TargetParent || ctx.IsStatic) &&
		(ctx.Self == "" || ctx.IsStatic || !r.Codebase.ClassExtends(ctx.Self, fq)) &&
		!method.IsStatic {
		if r.checkStaticInvocation(fq, method, site, ctx, acc) {
			return
		}
	}

	if method.Deprecated {
		r.report(ctx, DeprecatedMethod, site.Location, method.CasedID(),
			fmt.Sprintf("The method %s has been marked as deprecated", method.CasedID()))
	}

	bindings, err := r.Arguments.CheckArguments(methodID, call.Args, ctx, site.Location)
	if err != nil {
		acc.aborted = true
		return
	}

	returnType := r.returnType(fq, methodID, bindings, site, ctx)

	ApplyAssertions(method, method.Assertions, site.Args, ctx)
	if len(method.IfTrueAssertions) > 0 {
		acc.ifTrue = method.IfTrueAssertions
	}
	if len(method.IfFalseAssertions) > 0 {
		acc.ifFalse = method.IfFalseAssertions
	}

	if len(r.Hooks) > 0 {
		returnType = RunHooks(r.Hooks, r.Edits, &AfterMethodCallEvent{
			MethodID:          methodID,
			AppearingMethodID: r.Codebase.AppearingMethodID(methodID),
			DeclaringMethodID: r.Codebase.DeclaringMethodID(methodID),
			Args:              call.Args,
			Location:          site.Location,
			Context:           ctx,
			ReturnType:        returnType,
		})
	}

	if returnType != nil {
		acc.typ = php.Combine(acc.typ, returnType)
	}
}

// checkStaticInvocation handles a non-static method called through a class name. Calls that can
// run on the current object are analyzed as instance calls on it. It reports whether the
// alternative is done.
func (r *StaticCallResolver) checkStaticInvocation(fq string, method *php.MethodMetadata, site CallSite, ctx *Context, acc *resolution) bool {
	selfCall := site.Class.Kind == TargetSelf || strings.EqualFold(ctx.Self, fq)
	dynamic := !ctx.IsStatic && site.BoundReceiver != nil

	if selfCall {
		if !dynamic {
			r.report(ctx, NonStaticSelfCall, site.Location, method.CasedID(),
				fmt.Sprintf("Method %s is not static, but is called using self::", method.CasedID()))
		}
	} else {
		r.report(ctx, InvalidStaticInvocation, site.Location, method.CasedID(),
			fmt.Sprintf("Method %s is not static, but is called statically", method.CasedID()))
	}

	if !dynamic {
		return false
	}

	redirected := r.Instances.ResolveInstanceCall(site.BoundReceiver, site.Method, site.Args, site.Location, ctx)
	switch redirected.Outcome {
	case OutcomeAbort:
		acc.aborted = true
	case OutcomeTyped:
		acc.typ = php.Combine(acc.typ, redirected.Type)
	}
	return true
}

// returnType infers what the method returns for this call
func (r *StaticCallResolver) returnType(fq, methodID string, bindings php.TemplateBindings, site CallSite, ctx *Context) *php.Union {
	static := fq
	if site.Class.Kind == TargetParent && ctx.Self != "" {
		static = ctx.Self
	}

	returnType, location := ReturnTypeOf(r.Codebase, methodID, static, bindings)
	if returnType == nil {
		return nil
	}

	// types declared outside the project were never checked against this codebase
	if location != nil && r.Options.ProjectDirs != nil && !r.Options.ProjectDirs.IsInProjectDirs(location.File) {
		for _, missing := range returnType.UndefinedClasses(r.Codebase, ctx.PhantomClasses) {
			r.report(ctx, UndefinedClass, site.Location, missing,
				fmt.Sprintf("Class or interface %s does not exist", missing))
		}
	}

	return returnType
}

// report routes an issue through the collector and returns true when it was accepted
func (r *StaticCallResolver) report(ctx *Context, t IssueType, loc CodeLocation, subject, message string) bool {
	return r.Collector.Accepts(NewIssue(ctx, t, loc, subject, message), ctx.Suppressed)
}
