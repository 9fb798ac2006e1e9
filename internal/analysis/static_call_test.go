package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/php-callcheck/internal/php"
)

type fakeExpressions struct {
	analyzed []Expr
}

func (f *fakeExpressions) AnalyzeExpr(expr Expr, ctx *Context) *php.Union {
	f.analyzed = append(f.analyzed, expr)
	switch e := expr.(type) {
	case *TypedExpr:
		return e.Type
	case *Variable:
		return ctx.VarsInScope[e.Name]
	}
	return php.Mixed()
}

type instanceCall struct {
	receiver string
	method   string
	args     int
}

type fakeInstances struct {
	calls  []instanceCall
	result Result
}

func (f *fakeInstances) ResolveInstanceCall(receiver *php.Union, method string, args []Arg, _ CodeLocation, _ *Context) Result {
	f.calls = append(f.calls, instanceCall{receiver: receiver.String(), method: method, args: len(args)})
	return f.result
}

type argumentCall struct {
	methodID string
	args     []Arg
}

type fakeArguments struct {
	calls    []argumentCall
	bindings map[string]php.TemplateBindings
	fail     map[string]bool
}

func (f *fakeArguments) CheckArguments(methodID string, args []Arg, _ *Context, _ CodeLocation) (php.TemplateBindings, error) {
	f.calls = append(f.calls, argumentCall{methodID: methodID, args: args})
	if f.fail[methodID] {
		return nil, ErrArgumentType
	}
	return f.bindings[methodID], nil
}

func (f *fakeArguments) methodIDs() []string {
	var ids []string
	for _, call := range f.calls {
		ids = append(ids, call.methodID)
	}
	return ids
}

type fakeMutations struct {
	collected []string
}

func (f *fakeMutations) CollectMethodMutations(methodID string, ctx *Context) {
	f.collected = append(f.collected, methodID)
	ctx.SetVar("$this->initialized", php.NewUnion(php.NewBoolType("bool")))
	ctx.SetVar("$scratch", php.NewUnion(php.NewIntType()))
	ctx.SetVar("$this", php.NewUnion(php.NewNamedObject(ctx.Self)))
}

type outsideProject struct{}

func (outsideProject) IsInProjectDirs(path string) bool {
	return path != "vendor/lib/Factory.php"
}

type resolverFixture struct {
	index       *php.PHPIndex
	collector   *Collector
	expressions *fakeExpressions
	instances   *fakeInstances
	arguments   *fakeArguments
	mutations   *fakeMutations
	resolver    *StaticCallResolver
}

func method(class, name string, static bool, returnType *php.Union) php.MethodMetadata {
	return php.MethodMetadata{Name: name, ClassName: class, IsStatic: static, ReturnType: returnType}
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	idx := php.NewMemoryIndex()
	intType := php.NewUnion(php.NewIntType())

	idx.AddClass(php.ClassMetadata{
		Name:        "App\\A",
		UserDefined: true,
		Methods: map[string]php.MethodMetadata{
			"f": func() php.MethodMetadata {
				m := method("App\\A", "f", true, intType)
				m.Visibility = php.Protected
				return m
			}(),
			"create":      method("App\\A", "create", true, php.NewUnion(php.NewSpecialType("static"))),
			"__construct": method("App\\A", "__construct", false, nil),
			"secret": func() php.MethodMetadata {
				m := method("App\\A", "secret", true, intType)
				m.Visibility = php.Private
				return m
			}(),
		},
	})
	idx.AddClass(php.ClassMetadata{
		Name:        "App\\B",
		Parent:      "App\\A",
		UserDefined: true,
		Methods: map[string]php.MethodMetadata{
			"run":         method("App\\B", "run", false, php.NewUnion(php.NewStringType(false))),
			"__construct": method("App\\B", "__construct", false, nil),
		},
	})
	idx.AddClass(php.ClassMetadata{Name: "App\\C", UserDefined: true})
	idx.AddClass(php.ClassMetadata{
		Name: "App\\D",
		Methods: map[string]php.MethodMetadata{
			"__callstatic": method("App\\D", "__callStatic", true, php.NewUnion(php.NewStringType(false))),
		},
	})
	idx.AddClass(php.ClassMetadata{
		Name:       "App\\Legacy",
		Deprecated: true,
		Methods: map[string]php.MethodMetadata{
			"old": func() php.MethodMetadata {
				m := method("App\\Legacy", "old", true, intType)
				m.Deprecated = true
				return m
			}(),
		},
	})
	idx.AddClass(php.ClassMetadata{
		Name: "App\\Other",
		Methods: map[string]php.MethodMetadata{
			"handle": method("App\\Other", "handle", false, intType),
			"make":   method("App\\Other", "make", true, php.NewUnion(php.NewFloatType())),
		},
	})
	idx.AddClass(php.ClassMetadata{
		Name: "App\\Factory",
		Methods: map[string]php.MethodMetadata{
			"build": {
				Name:               "build",
				ClassName:          "App\\Factory",
				IsStatic:           true,
				Templates:          []string{"T"},
				Params:             []php.Param{{Name: "class", Type: php.NewUnion(php.NewClassStringType("T"))}},
				ReturnType:         php.NewUnion(php.NewTemplateParam("App\\Factory::build", "T")),
				ReturnTypeLocation: &php.SourceRef{File: "src/Factory.php", Line: 10},
			},
			"missing": {
				Name:               "missing",
				ClassName:          "App\\Factory",
				IsStatic:           true,
				ReturnType:         php.NewUnion(php.NewNamedObject("Vendor\\Gone")),
				ReturnTypeLocation: &php.SourceRef{File: "vendor/lib/Factory.php", Line: 20},
			},
			"assertstring": {
				Name:       "assertString",
				ClassName:  "App\\Factory",
				IsStatic:   true,
				Params:     []php.Param{{Name: "value"}},
				Assertions: []php.Assertion{{ParamIndex: 0, ParamName: "$value", Rule: "string"}},
				IfTrueAssertions: []php.Assertion{
					{ParamIndex: 0, ParamName: "$value", Rule: "!null"},
				},
			},
		},
	})

	f := &resolverFixture{
		index:       idx,
		collector:   NewCollector(nil),
		expressions: &fakeExpressions{},
		instances:   &fakeInstances{result: Result{Outcome: OutcomeTyped, Type: php.NewUnion(php.NewBoolType("bool"))}},
		arguments:   &fakeArguments{},
		mutations:   &fakeMutations{},
	}
	f.resolver = &StaticCallResolver{
		Codebase:    idx,
		Options:     Options{ProjectDirs: outsideProject{}},
		Collector:   f.collector,
		Expressions: f.expressions,
		Instances:   f.instances,
		Arguments:   f.arguments,
		Mutations:   f.mutations,
	}
	return f
}

func staticContext(self string) *Context {
	ctx := NewContext(self)
	ctx.IsStatic = true
	return ctx
}

func instanceContext(self string) *Context {
	ctx := NewContext(self)
	ctx.SetVar("$this", php.NewUnion(php.NewNamedObject(self)))
	return ctx
}

func namedCall(class, method string, args ...Arg) CallSite {
	return CallSite{
		Class:    ClassTarget{Kind: TargetNamed, Name: class},
		Method:   method,
		Args:     args,
		Location: CodeLocation{File: "src/B.php", Line: 3, Column: 9},
	}
}

func issueTypes(c *Collector) []IssueType {
	var types []IssueType
	for _, issue := range c.Issues() {
		types = append(types, issue.Type)
	}
	return types
}

func TestProtectedStaticCallOnSubclass(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(namedCall("\\App\\B", "f"), staticContext("App\\B"))

	assert.Equal(t, OutcomeTyped, result.Outcome)
	assert.Equal(t, "int", result.Type.String())
	assert.Equal(t, "App\\B::f", result.MethodID)
	assert.Empty(t, f.collector.Issues())
	assert.Equal(t, []string{"App\\B::f"}, f.arguments.methodIDs())
}

func TestSelfStaticParentTargets(t *testing.T) {
	tests := []struct {
		name     string
		kind     TargetKind
		method   string
		ctx      func() *Context
		receiver *php.Union
		want     string
	}{
		{
			name:   "self resolves to the current class",
			kind:   TargetSelf,
			method: "create",
			ctx:    func() *Context { return staticContext("App\\B") },
			want:   "App\\B",
		},
		{
			name:     "static prefers the bound receiver",
			kind:     TargetStatic,
			method:   "create",
			ctx:      func() *Context { return instanceContext("App\\A") },
			receiver: php.NewUnion(php.NewNamedObject("App\\B")),
			want:     "App\\B",
		},
		{
			name:   "static falls back to self",
			kind:   TargetStatic,
			method: "create",
			ctx:    func() *Context { return staticContext("App\\A") },
			want:   "App\\A",
		},
		{
			name:   "parent keeps the calling class as static",
			kind:   TargetParent,
			method: "create",
			ctx:    func() *Context { return staticContext("App\\B") },
			want:   "App\\B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			site := CallSite{Class: ClassTarget{Kind: tt.kind}, Method: tt.method, BoundReceiver: tt.receiver}

			result := f.resolver.Resolve(site, tt.ctx())

			require.Equal(t, OutcomeTyped, result.Outcome, issueTypes(f.collector))
			assert.Equal(t, tt.want, result.Type.String())
			assert.Empty(t, f.collector.Issues())
		})
	}
}

func TestParentWithoutParentClass(t *testing.T) {
	f := newResolverFixture(t)
	site := CallSite{Class: ClassTarget{Kind: TargetParent}, Method: "foo"}

	result := f.resolver.Resolve(site, instanceContext("App\\C"))

	assert.Equal(t, OutcomeAbort, result.Outcome)
	assert.Nil(t, result.Type)
	assert.Equal(t, []IssueType{ParentNotFound}, issueTypes(f.collector))
	assert.Empty(t, f.arguments.calls)

	ctx := instanceContext("App\\C")
	ctx.Suppressed = []string{string(ParentNotFound)}
	f = newResolverFixture(t)

	result = f.resolver.Resolve(site, ctx)
	assert.Equal(t, OutcomeUntyped, result.Outcome)
	assert.Empty(t, f.collector.Issues())
}

func TestCallStaticCatchAll(t *testing.T) {
	f := newResolverFixture(t)
	one := &TypedExpr{Type: php.NewUnion(php.NewIntType())}
	two := &TypedExpr{Type: php.NewUnion(php.NewIntType())}

	result := f.resolver.Resolve(namedCall("App\\D", "missing", Arg{Value: one}, Arg{Value: two}), staticContext("App\\C"))

	assert.Equal(t, OutcomeTyped, result.Outcome)
	assert.Equal(t, "string", result.Type.String())
	assert.Equal(t, "App\\D::__callstatic", result.MethodID)
	assert.Empty(t, f.collector.Issues())

	require.Len(t, f.arguments.calls, 1)
	args := f.arguments.calls[0].args
	require.Len(t, args, 2)
	name, ok := args[0].Value.(*StringLiteral)
	require.True(t, ok)
	assert.Equal(t, "missing", name.Value)
	bundle, ok := args[1].Value.(*ArrayLiteral)
	require.True(t, ok)
	assert.Equal(t, []Expr{one, two}, bundle.Items)
}

func TestUndefinedMethod(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(namedCall("App\\C", "nope"), staticContext("App\\B"))

	assert.Equal(t, OutcomeAbort, result.Outcome)
	issues := f.collector.IssuesOfType(UndefinedMethod)
	require.Len(t, issues, 1)
	assert.Equal(t, "Method App\\C::nope does not exist", issues[0].Message)
}

func TestUnionTargetResolvesEveryAlternative(t *testing.T) {
	f := newResolverFixture(t)
	target := php.NewUnion(
		php.NewNamedObject("App\\A"),
		php.NewNamedObject("App\\C"),
		php.NewNamedObject("App\\Other"),
	)
	site := CallSite{
		Class:  ClassTarget{Kind: TargetExpr, Expr: &TypedExpr{Type: target}},
		Method: "create",
	}

	result := f.resolver.Resolve(site, staticContext("App\\B"))

	// App\C has no create(), App\Other neither: both fail, App\A still contributes
	assert.Equal(t, OutcomeTyped, result.Outcome)
	assert.Equal(t, "App\\A", result.Type.String())
	assert.Len(t, f.collector.IssuesOfType(UndefinedMethod), 2)

	f = newResolverFixture(t)
	site.Method = "make"
	site.Class.Expr = &TypedExpr{Type: php.NewUnion(php.NewNamedObject("App\\Other"), php.NewNamedObject("App\\A"))}
	f.index.AddClass(php.ClassMetadata{
		Name: "App\\A",
		Methods: map[string]php.MethodMetadata{
			"make": method("App\\A", "make", true, php.NewUnion(php.NewIntType())),
		},
	})

	result = f.resolver.Resolve(site, staticContext("App\\B"))
	assert.Equal(t, "float|int", result.Type.String())
	assert.Empty(t, f.collector.Issues())
}

func TestNonObjectTargets(t *testing.T) {
	nullable := php.NewUnion(php.NewNullType())
	nullable.IgnoreNullableIssues = true

	tests := []struct {
		name        string
		target      *php.Union
		allowString bool
		want        []IssueType
	}{
		{name: "class-string passes", target: php.NewUnion(php.NewClassStringType(""))},
		{name: "literal class string passes", target: php.NewUnion(php.NewLiteralClassString("App\\A"))},
		{name: "mixed passes", target: php.Mixed()},
		{name: "template passes", target: php.NewUnion(php.NewTemplateParam("App\\A", "T"))},
		{name: "ignored null passes", target: nullable},
		{name: "string without stand-in", target: php.NewUnion(php.NewStringType(false)), want: []IssueType{InvalidStringClass}},
		{name: "string stand-in allowed", target: php.NewUnion(php.NewStringType(false)), allowString: true},
		{name: "numeric string never names a class", target: php.NewUnion(php.NewStringType(true)), allowString: true, want: []IssueType{InvalidStringClass}},
		{name: "int is not a class", target: php.NewUnion(php.NewIntType()), want: []IssueType{UndefinedClass}},
		{name: "null is not a class", target: php.NewUnion(php.NewNullType()), want: []IssueType{UndefinedClass}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			f.resolver.Options.AllowStringStandinForClass = tt.allowString
			site := CallSite{Class: ClassTarget{Kind: TargetExpr, Expr: &TypedExpr{Type: tt.target}}, Method: "create"}

			result := f.resolver.Resolve(site, staticContext("App\\B"))

			assert.Equal(t, OutcomeUntyped, result.Outcome)
			assert.Equal(t, tt.want, issueTypes(f.collector))
			// arguments are still analyzed once
			assert.Equal(t, []string{""}, f.arguments.methodIDs())
		})
	}
}

func TestUndefinedNamedClass(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(namedCall("App\\Nope", "create"), staticContext("App\\B"))

	assert.Equal(t, OutcomeAbort, result.Outcome)
	assert.Equal(t, []IssueType{UndefinedClass}, issueTypes(f.collector))
}

func TestPhantomClassAbstains(t *testing.T) {
	f := newResolverFixture(t)
	ctx := staticContext("App\\B")
	ctx.AddPhantomClass("App\\Nope")

	result := f.resolver.Resolve(namedCall("App\\Nope", "create"), ctx)

	assert.Equal(t, OutcomeUntyped, result.Outcome)
	assert.Empty(t, f.collector.Issues())
	assert.Empty(t, f.arguments.calls)
}

func TestClassNamesResolveThroughAliases(t *testing.T) {
	f := newResolverFixture(t)
	ctx := staticContext("App\\B")
	ctx.Aliases = php.NewAliasResolver("App", nil, map[string]string{"Helper": "App\\Other"})

	for _, name := range []string{"Other", "Helper", "\\App\\Other", "namespace\\Other"} {
		result := f.resolver.Resolve(namedCall(name, "make"), ctx)
		assert.Equal(t, "App\\Other::make", result.MethodID, name)
		assert.Equal(t, "float", result.Type.String(), name)
	}
	assert.Empty(t, f.collector.Issues())
}

func TestNonStaticMethodThroughClassName(t *testing.T) {
	t.Run("unrelated class from instance context runs on the receiver", func(t *testing.T) {
		f := newResolverFixture(t)
		site := namedCall("App\\Other", "handle", Arg{Value: &TypedExpr{Type: php.Mixed()}})
		site.BoundReceiver = php.NewUnion(php.NewNamedObject("App\\C"))

		result := f.resolver.Resolve(site, instanceContext("App\\C"))

		assert.Equal(t, OutcomeTyped, result.Outcome)
		assert.Equal(t, "bool", result.Type.String())
		assert.Equal(t, []instanceCall{{receiver: "App\\C", method: "handle", args: 1}}, f.instances.calls)
		assert.Equal(t, []IssueType{InvalidStaticInvocation}, issueTypes(f.collector))
		assert.Empty(t, f.arguments.calls)
	})

	t.Run("self call from instance context is an instance call", func(t *testing.T) {
		f := newResolverFixture(t)
		site := CallSite{Class: ClassTarget{Kind: TargetSelf}, Method: "run"}
		site.BoundReceiver = php.NewUnion(php.NewNamedObject("App\\B"))

		result := f.resolver.Resolve(site, instanceContext("App\\B"))

		assert.Equal(t, "bool", result.Type.String())
		assert.Len(t, f.instances.calls, 1)
		assert.Empty(t, f.collector.Issues())
	})

	t.Run("self call from static context", func(t *testing.T) {
		f := newResolverFixture(t)
		site := CallSite{Class: ClassTarget{Kind: TargetSelf}, Method: "run"}

		result := f.resolver.Resolve(site, staticContext("App\\B"))

		assert.Equal(t, []IssueType{NonStaticSelfCall}, issueTypes(f.collector))
		assert.Empty(t, f.instances.calls)
		assert.Equal(t, "string", result.Type.String())
	})

	t.Run("parent call from instance context is allowed", func(t *testing.T) {
		f := newResolverFixture(t)
		site := CallSite{Class: ClassTarget{Kind: TargetParent}, Method: "__construct"}
		site.BoundReceiver = php.NewUnion(php.NewNamedObject("App\\B"))

		result := f.resolver.Resolve(site, instanceContext("App\\B"))

		assert.Equal(t, OutcomeUntyped, result.Outcome)
		assert.Empty(t, f.collector.Issues())
		assert.Empty(t, f.instances.calls)
	})
}

func TestVisibility(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(namedCall("App\\A", "secret"), staticContext("App\\B"))

	assert.Equal(t, OutcomeAbort, result.Outcome)
	issues := f.collector.IssuesOfType(InaccessibleMethod)
	require.Len(t, issues, 1)
	assert.Equal(t, "Cannot access private method App\\A::secret from App\\B", issues[0].Message)

	f = newResolverFixture(t)
	result = f.resolver.Resolve(namedCall("App\\A", "f"), staticContext("App\\Other"))
	assert.Equal(t, OutcomeAbort, result.Outcome)
	assert.Len(t, f.collector.IssuesOfType(InaccessibleMethod), 1)
}

func TestDeprecationsDoNotStopResolution(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(namedCall("App\\Legacy", "old"), staticContext("App\\B"))

	assert.Equal(t, OutcomeTyped, result.Outcome)
	assert.Equal(t, "int", result.Type.String())
	assert.Equal(t, []IssueType{DeprecatedClass, DeprecatedMethod}, issueTypes(f.collector))
}

func TestArgumentErrorsAbort(t *testing.T) {
	f := newResolverFixture(t)
	f.arguments.fail = map[string]bool{"App\\Other::make": true}

	result := f.resolver.Resolve(namedCall("App\\Other", "make"), staticContext("App\\B"))

	assert.Equal(t, OutcomeAbort, result.Outcome)
	assert.Nil(t, result.Type)
}

func TestTemplateBindingsShapeReturnType(t *testing.T) {
	f := newResolverFixture(t)
	f.arguments.bindings = map[string]php.TemplateBindings{
		"App\\Factory::build": {"T": php.NewUnion(php.NewNamedObject("App\\B"))},
	}

	result := f.resolver.Resolve(namedCall("App\\Factory", "build"), staticContext("App\\C"))

	assert.Equal(t, "App\\B", result.Type.String())
}

func TestExternalReturnTypesAreRechecked(t *testing.T) {
	f := newResolverFixture(t)

	result := f.resolver.Resolve(namedCall("App\\Factory", "missing"), staticContext("App\\C"))

	assert.Equal(t, OutcomeTyped, result.Outcome)
	issues := f.collector.IssuesOfType(UndefinedClass)
	require.Len(t, issues, 1)
	assert.Equal(t, "Vendor\\Gone", issues[0].Subject)

	f = newResolverFixture(t)
	ctx := staticContext("App\\C")
	ctx.AddPhantomClass("Vendor\\Gone")
	f.resolver.Resolve(namedCall("App\\Factory", "missing"), ctx)
	assert.Empty(t, f.collector.Issues())
}

func TestAssertions(t *testing.T) {
	f := newResolverFixture(t)
	ctx := staticContext("App\\C")
	ctx.SetVar("$value", php.NewUnion(php.NewStringType(false), php.NewNullType()))

	result := f.resolver.Resolve(namedCall("App\\Factory", "assertString", Arg{Value: &Variable{Name: "$value"}}), ctx)

	assert.Equal(t, "string", ctx.VarsInScope["$value"].String())
	assert.Equal(t, []php.Assertion{{ParamIndex: 0, ParamName: "$value", Rule: "!null"}}, result.IfTrueAssertions)
	assert.Empty(t, result.IfFalseAssertions)
}

func TestObjectStateIsForgottenAfterCall(t *testing.T) {
	prepare := func() *Context {
		ctx := instanceContext("App\\C")
		ctx.SetVar("$this->cache", php.NewUnion(php.NewIntType()))
		ctx.SetVar("$local", php.NewUnion(php.NewIntType()))
		return ctx
	}

	f := newResolverFixture(t)
	ctx := prepare()
	f.resolver.Resolve(namedCall("App\\Other", "make"), ctx)
	assert.NotContains(t, ctx.VarsInScope, "$this->cache")
	assert.Contains(t, ctx.VarsInScope, "$local")
	assert.Contains(t, ctx.VarsInScope, "$this")

	f.resolver.Options.RememberPropertyAssignmentsAfterCall = true
	ctx = prepare()
	f.resolver.Resolve(namedCall("App\\Other", "make"), ctx)
	assert.Contains(t, ctx.VarsInScope, "$this->cache")

	f.resolver.Options.RememberPropertyAssignmentsAfterCall = false
	ctx = prepare()
	f.resolver.Resolve(namedCall("App\\Nope", "make"), ctx)
	assert.Contains(t, ctx.VarsInScope, "$this->cache", "aborted calls leave scope alone")
}

func TestParentConstructorInitializationsAreCollectedOnce(t *testing.T) {
	f := newResolverFixture(t)
	ctx := instanceContext("App\\B")
	ctx.CollectInitializations = true
	ctx.SetVar("$local", php.NewUnion(php.NewStringType(false)))
	site := CallSite{
		Class:         ClassTarget{Kind: TargetParent},
		Method:        "__construct",
		Location:      CodeLocation{File: "src/B.php", Line: 7},
		BoundReceiver: php.NewUnion(php.NewNamedObject("App\\B")),
	}

	first := f.resolver.Resolve(site, ctx)
	second := f.resolver.Resolve(site, ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"App\\A::__construct"}, f.mutations.collected)
	assert.Contains(t, ctx.VarsInScope, "$this->initialized")
	assert.NotContains(t, ctx.VarsInScope, "$scratch")
	assert.Equal(t, "string", ctx.VarsInScope["$local"].String())
	assert.Equal(t, "App\\B", ctx.VarsInScope["$this"].String())
	assert.Equal(t, "App\\B", ctx.Self)
	assert.Empty(t, ctx.IncludeLocations)
	assert.Empty(t, f.collector.Issues())
}

func TestParentMutationsOnUnknownMethod(t *testing.T) {
	f := newResolverFixture(t)
	ctx := instanceContext("App\\B")
	ctx.CollectMutations = true
	site := CallSite{Class: ClassTarget{Kind: TargetParent}, Method: "nope"}

	result := f.resolver.Resolve(site, ctx)

	assert.Equal(t, OutcomeAbort, result.Outcome)
	assert.Empty(t, f.mutations.collected)
	assert.Len(t, f.collector.IssuesOfType(UndefinedMethod), 1)
}

func TestResolutionIsDeterministic(t *testing.T) {
	target := php.NewUnion(php.NewNamedObject("App\\A"), php.NewNamedObject("App\\C"))
	site := CallSite{Class: ClassTarget{Kind: TargetExpr, Expr: &TypedExpr{Type: target}}, Method: "create"}

	first := newResolverFixture(t)
	second := newResolverFixture(t)

	a := first.resolver.Resolve(site, staticContext("App\\B"))
	b := second.resolver.Resolve(site, staticContext("App\\B"))

	assert.Equal(t, a.Type.String(), b.Type.String())
	assert.Equal(t, first.collector.Issues(), second.collector.Issues())
}

func TestComputedMethodNames(t *testing.T) {
	f := newResolverFixture(t)
	name := &Variable{Name: "$method"}
	site := CallSite{Class: ClassTarget{Kind: TargetNamed, Name: "App\\A"}, MethodExpr: name}

	result := f.resolver.Resolve(site, staticContext("App\\B"))

	assert.Equal(t, OutcomeUntyped, result.Outcome)
	assert.Equal(t, []Expr{name}, f.expressions.analyzed)
	assert.Equal(t, []string{""}, f.arguments.methodIDs())
}

func TestMethodChecksDisabled(t *testing.T) {
	f := newResolverFixture(t)
	ctx := staticContext("App\\B")
	ctx.CheckMethods = false

	result := f.resolver.Resolve(namedCall("App\\A", "nope"), ctx)

	assert.Equal(t, OutcomeUntyped, result.Outcome)
	assert.Empty(t, f.collector.Issues())
	assert.Equal(t, []string{""}, f.arguments.methodIDs())
}

func TestHooksSeeResolvedCalls(t *testing.T) {
	f := newResolverFixture(t)
	hooks, err := NewHookRegistry().Hooks([]string{CallStaticUsageHook})
	require.NoError(t, err)

	var seen []string
	f.resolver.Hooks = append(hooks, HookFunc(func(event *AfterMethodCallEvent) {
		seen = append(seen, event.MethodID+" "+event.DeclaringMethodID)
		event.ReturnType = php.NewUnion(php.NewIntType())
	}))
	f.resolver.Edits = NewFileManipulationBuffer()

	site := namedCall("App\\D", "missing")
	site.Location.StartByte = 42
	result := f.resolver.Resolve(site, staticContext("App\\C"))

	assert.Equal(t, "int", result.Type.String())
	assert.Equal(t, []string{"App\\D::__callstatic App\\D::__callstatic"}, seen)
	assert.Equal(t, []FileManipulation{{Start: 42, End: 42, Insertion: "/* __callStatic */ "}},
		f.resolver.Edits.Get("src/B.php"))
}
