package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDocBlock(t *testing.T) {
	doc := ParseDocBlock(`/**
     * Loads things.
     *
     * @deprecated since 6.5
     * @template T of Entity
     * @param array<string, T> $items the items
     * @param int $count
     * @psalm-param positive-int $count
     * @return T|null
     * @psalm-assert-if-false null $items
     * @psalm-suppress DeprecatedMethod, InvalidArgument
     */`)

	assert.True(t, doc.Deprecated)
	assert.Equal(t, []string{"T"}, doc.Templates)
	assert.Equal(t, "array<string, T>", doc.Params["$items"])
	assert.Equal(t, "positive-int", doc.Params["$count"])
	assert.Equal(t, "T|null", doc.Return)
	assert.Equal(t, []DocAssertion{{Type: "null", Param: "$items"}}, doc.IfFalseAssertions)
	assert.Equal(t, []string{"DeprecatedMethod", "InvalidArgument"}, doc.Suppressed)
}

func TestParseDocBlockIgnoresPlainComments(t *testing.T) {
	doc := ParseDocBlock("// @deprecated")
	assert.False(t, doc.Deprecated)

	doc = ParseDocBlock("/* @deprecated */")
	assert.False(t, doc.Deprecated)
}

func TestParseDocBlockVariadicParam(t *testing.T) {
	doc := ParseDocBlock("/** @param string ...$names */")
	assert.Equal(t, "string", doc.Params["$names"])
}
