package php

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func parsePHPFile(t testing.TB, path string) (*tree_sitter.Node, []byte) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	parser, err := NewParser()
	require.NoError(t, err)
	t.Cleanup(parser.Close)

	tree := parser.Parse(content, nil)
	t.Cleanup(tree.Close)

	return tree.RootNode(), content
}

func extractFile(t testing.TB, path string) map[string]ClassMetadata {
	t.Helper()

	node, content := parsePHPFile(t, path)
	classes := make(map[string]ClassMetadata)
	for _, class := range ExtractClasses(path, node, content) {
		classes[class.Name] = class
	}
	return classes
}

func TestClassInheritance(t *testing.T) {
	classes := extractFile(t, "testdata/inheritance.php")

	require.Contains(t, classes, "App\\Entity\\Product")
	product := classes["App\\Entity\\Product"]

	assert.Equal(t, "testdata/inheritance.php", product.Path)
	assert.Equal(t, 12, product.Line)
	assert.Equal(t, "App\\BaseClass", product.Parent)
	assert.Equal(t, []string{"Traversable", "Countable"}, product.Interfaces)
	assert.Equal(t, []string{"App\\Entity\\TimestampTrait"}, product.UsedTraits)
	assert.True(t, product.Deprecated)
	assert.True(t, product.UserDefined)
	assert.False(t, product.IsInterface)

	assert.Len(t, product.Methods, 5)
	for _, name := range []string{"__construct", "getid", "getname", "setname", "count"} {
		assert.Contains(t, product.Methods, name)
	}

	getName := product.Methods["getname"]
	assert.Equal(t, "getName", getName.Name)
	assert.Equal(t, "App\\Entity\\Product::getname", getName.ID())
	assert.Equal(t, "App\\Entity\\Product::getName", getName.CasedID())
	assert.Equal(t, Public, getName.Visibility)
	assert.Equal(t, "null|string", getName.ReturnType.String())
	require.NotNil(t, getName.ReturnTypeLocation)
	assert.Equal(t, 27, getName.ReturnTypeLocation.Line)

	setName := product.Methods["setname"]
	assert.Equal(t, Protected, setName.Visibility)
	assert.Equal(t, "static", setName.ReturnType.String())
	require.Len(t, setName.Params, 2)
	assert.Equal(t, "name", setName.Params[0].Name)
	assert.Equal(t, "string", setName.Params[0].Type.String())
	assert.Equal(t, "changed", setName.Params[1].Name)
	assert.True(t, setName.Params[1].ByRef)
	assert.True(t, setName.Params[1].HasDefault)

	count := product.Methods["count"]
	assert.True(t, count.IsStatic)
	assert.True(t, count.Deprecated)

	constructor := product.Methods["__construct"]
	require.Len(t, constructor.Params, 1)
	assert.Equal(t, "name", constructor.Params[0].Name)
	assert.Equal(t, "string", constructor.Params[0].Type.String())
	assert.Nil(t, constructor.ReturnType)
}

func TestInterfaceAndTraitIndexing(t *testing.T) {
	classes := extractFile(t, "testdata/interface.php")
	require.Len(t, classes, 3)

	customInterface := classes["App\\Interfaces\\CustomInterface"]
	assert.True(t, customInterface.IsInterface)
	assert.Empty(t, customInterface.Parent)
	assert.Equal(t, []string{"Traversable", "Psr\\Log\\LoggerInterface"}, customInterface.Interfaces)
	assert.Len(t, customInterface.Methods, 2)
	assert.Equal(t, "void", customInterface.Methods["setcustomvalue"].ReturnType.String())

	trait := classes["App\\Interfaces\\Greets"]
	assert.True(t, trait.IsTrait)
	greet := trait.Methods["greet"]
	assert.Equal(t, Private, greet.Visibility)
	assert.True(t, greet.IsStatic)
	require.Len(t, greet.Params, 1)
	assert.True(t, greet.Params[0].Variadic)

	repository := classes["App\\Interfaces\\AbstractRepository"]
	assert.True(t, repository.IsAbstract)
	assert.Equal(t, []string{"App\\Interfaces\\CustomInterface"}, repository.Interfaces)
}

func TestGroupUseStatements(t *testing.T) {
	classes := extractFile(t, "testdata/group_use.php")
	require.Contains(t, classes, "App\\Controller\\TestController")

	handle := classes["App\\Controller\\TestController"].Methods["handle"]
	require.Len(t, handle.Params, 2)
	assert.Equal(t, "Symfony\\Component\\HttpFoundation\\Request", handle.Params[0].Type.String())
	assert.Equal(t, "Doctrine\\DBAL\\Connection", handle.Params[1].Type.String())
	assert.Equal(t, "Symfony\\Component\\HttpFoundation\\Response", handle.ReturnType.String())

	other := classes["App\\Controller\\TestController"].Methods["other"]
	assert.Equal(t, "App\\Controller\\Missing\\Thing", other.ReturnType.String())
}

func TestDocblockTemplatesAndAssertions(t *testing.T) {
	classes := extractFile(t, "testdata/generics.php")
	require.Contains(t, classes, "App\\Collection\\Collection")

	collection := classes["App\\Collection\\Collection"]
	assert.Equal(t, []string{"TElement"}, collection.TemplateNames)

	makeMethod := collection.Methods["make"]
	assert.Equal(t, []string{"T"}, makeMethod.Templates)
	require.Len(t, makeMethod.Params, 1)
	assert.Equal(t, "class-string<T>", makeMethod.Params[0].Type.String())
	require.Len(t, makeMethod.ReturnType.Types(), 1)
	template, ok := makeMethod.ReturnType.Types()[0].(*TemplateParam)
	require.True(t, ok)
	assert.Equal(t, "T", template.ParamName)
	assert.Equal(t, "App\\Collection\\Collection::make", template.DefiningClass)

	wrap := collection.Methods["wrap"]
	assert.Equal(t, "TElement[]", wrap.ReturnType.String())
	paramTemplate, ok := wrap.Params[0].Type.Types()[0].(*TemplateParam)
	require.True(t, ok)
	assert.Equal(t, "App\\Collection\\Collection", paramTemplate.DefiningClass)

	isString := collection.Methods["isstring"]
	assert.Equal(t, []Assertion{{ParamIndex: 0, ParamName: "$value", Rule: "string"}}, isString.IfTrueAssertions)
	assert.Equal(t, []Assertion{{ParamIndex: 1, ParamName: "$other", Rule: "!null"}}, isString.Assertions)
	assert.Empty(t, isString.IfFalseAssertions)
	assert.Equal(t, []string{"InvalidArgument"}, isString.SuppressedIssues)
}

func TestBracedNamespaces(t *testing.T) {
	classes := extractFile(t, "testdata/braced.php")
	require.Len(t, classes, 2)

	braced := classes["App\\Other\\Braced"]
	assert.Equal(t, "App\\Collection\\Collection", braced.Parent)
	assert.Nil(t, braced.Methods["noreturn"].ReturnType)

	assert.Contains(t, classes, "GlobalThing")
}

func TestExtractClassesSkipsFilesWithoutClasses(t *testing.T) {
	parser, err := NewParser()
	require.NoError(t, err)
	defer parser.Close()

	content := []byte("<?php\n\necho strlen('x');\n")
	tree := parser.Parse(content, nil)
	defer tree.Close()

	assert.Empty(t, ExtractClasses("script.php", tree.RootNode(), content))
}

func BenchmarkExtractClasses(b *testing.B) {
	node, content := parsePHPFile(b, "testdata/inheritance.php")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ExtractClasses("testdata/inheritance.php", node, content)
	}
}
