package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/php-callcheck/internal/php"
)

func TestContextClone(t *testing.T) {
	ctx := NewContext("App\\A")
	ctx.SetVar("$a", php.NewUnion(php.NewIntType()))
	ctx.AddPhantomClass("\\App\\Ghost")
	ctx.MarkInitialized("App\\A::__construct")

	clone := ctx.Clone()
	clone.SetVar("$b", php.NewUnion(php.NewIntType()))
	clone.AddPhantomClass("App\\Other")

	assert.NotContains(t, ctx.VarsInScope, "$b")
	assert.False(t, ctx.IsPhantomClass("App\\Other"))
	assert.True(t, clone.IsPhantomClass("app\\ghost"))

	// the memo belongs to the pass, not the branch
	assert.False(t, clone.MarkInitialized("app\\a::__CONSTRUCT"))
	assert.True(t, clone.MarkInitialized("App\\B::__construct"))
	assert.False(t, ctx.MarkInitialized("App\\B::__construct"))
}

func TestRemoveAllObjectVars(t *testing.T) {
	ctx := NewContext("App\\A")
	for _, name := range []string{"$a", "$this", "$this->b", "$other->c", "App\\A::$d"} {
		ctx.SetVar(name, php.Mixed())
	}

	ctx.RemoveAllObjectVars()

	assert.Len(t, ctx.VarsInScope, 2)
	assert.Contains(t, ctx.VarsInScope, "$a")
	assert.Contains(t, ctx.VarsInScope, "$this")
	assert.Len(t, ctx.VarsPossiblyInScope, 2)
}

func TestLocalsSandbox(t *testing.T) {
	ctx := NewContext("App\\A")
	ctx.SetVar("$kept", php.NewUnion(php.NewIntType()))
	ctx.SetVar("$this", php.NewUnion(php.NewNamedObject("App\\A")))

	saved := ctx.saveLocals()
	ctx.SetVar("$kept", php.NewUnion(php.NewStringType(false)))
	ctx.SetVar("$new", php.Mixed())
	ctx.SetVar("$this->prop", php.Mixed())
	ctx.SetVar("$this", php.NewUnion(php.NewNamedObject("App\\Parent")))
	ctx.restoreLocals(saved)

	assert.Equal(t, "int", ctx.VarsInScope["$kept"].String())
	assert.NotContains(t, ctx.VarsInScope, "$new")
	assert.NotContains(t, ctx.VarsPossiblyInScope, "$new")
	assert.Contains(t, ctx.VarsInScope, "$this->prop")
	assert.Equal(t, "App\\Parent", ctx.VarsInScope["$this"].String())
}

func TestIncludeLocations(t *testing.T) {
	ctx := NewContext("App\\A")
	outer := CodeLocation{File: "a.php", Line: 1}
	inner := CodeLocation{File: "b.php", Line: 2}

	popOuter := ctx.pushInclude(outer)
	popInner := ctx.pushInclude(inner)
	issue := NewIssue(ctx, UndefinedMethod, CodeLocation{File: "c.php"}, "x", "y")
	popInner()
	popOuter()

	assert.Equal(t, []CodeLocation{outer, inner}, issue.Provenance)
	assert.Empty(t, ctx.IncludeLocations)
	assert.Nil(t, NewIssue(ctx, UndefinedMethod, CodeLocation{}, "", "").Provenance)
}

func TestResolveClassName(t *testing.T) {
	ctx := NewContext("")
	assert.Equal(t, "Foo\\Bar", ctx.ResolveClassName("Foo\\Bar"))
	assert.Equal(t, "Foo", ctx.ResolveClassName("\\Foo"))

	ctx.Aliases = php.NewAliasResolver("App", map[string]string{"Bar": "Lib\\Bar"}, nil)
	assert.Equal(t, "Lib\\Bar", ctx.ResolveClassName("Bar"))
	assert.Equal(t, "App\\Baz", ctx.ResolveClassName("Baz"))
	assert.Equal(t, "Baz", ctx.ResolveClassName("\\Baz"))
}

func TestRewriteForCatchAll(t *testing.T) {
	first := &Variable{Name: "$a"}
	second := &TypedExpr{Type: php.NewUnion(php.NewIntType())}
	site := CallSite{
		Class:  ClassTarget{Kind: TargetNamed, Name: "Foo"},
		Method: "doThing",
		Args:   []Arg{{Value: first}, {Value: second, Name: "count"}},
	}

	rewritten := RewriteForCatchAll(site, "__callStatic")

	assert.Equal(t, "__callStatic", rewritten.Method)
	require.Len(t, rewritten.Args, 2)
	assert.Equal(t, "doThing", rewritten.Args[0].Value.(*StringLiteral).Value)
	assert.Equal(t, []Expr{first, second}, rewritten.Args[1].Value.(*ArrayLiteral).Items)

	// the original call is untouched
	assert.Equal(t, "doThing", site.Method)
	assert.Len(t, site.Args, 2)
	assert.Equal(t, "count", site.Args[1].Name)
}
