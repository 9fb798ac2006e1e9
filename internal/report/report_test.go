package report

import (
	"bytes"
	"testing"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/lsp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const code = `<?php
class A
{
    public function run()
    {
        Foo::bar();
    }
}
`

func fooBarIssue() analysis.Issue {
	// Foo::bar() on line 6, columns 9 to 19
	return analysis.Issue{
		Type:     analysis.UndefinedClass,
		Message:  "Class or interface Foo does not exist",
		Severity: analysis.SeverityError,
		Location: analysis.CodeLocation{
			File: "/project/A.php", Line: 6, Column: 9, EndLine: 6, EndColumn: 19,
			StartByte: 56, EndByte: 66,
		},
	}
}

func TestToDiagnostic(t *testing.T) {
	issue := fooBarIssue()
	issue.Provenance = []analysis.CodeLocation{{File: "/project/B.php", Line: 3, Column: 5, EndLine: 3, EndColumn: 25}}

	diagnostic := ToDiagnostic(issue)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 5, Character: 8},
		End:   protocol.Position{Line: 5, Character: 18},
	}, diagnostic.Range)
	assert.Equal(t, protocol.DiagnosticSeverityError, diagnostic.Severity)
	assert.Equal(t, "UndefinedClass", diagnostic.Code)
	assert.Equal(t, "php-callcheck", diagnostic.Source)
	assert.Empty(t, diagnostic.Tags)
	require.Len(t, diagnostic.RelatedInformation, 1)
	assert.Equal(t, "file:///project/B.php", diagnostic.RelatedInformation[0].Location.URI)
	assert.Equal(t, 2, diagnostic.RelatedInformation[0].Location.Range.Start.Line)

	deprecated := ToDiagnostic(analysis.Issue{Type: analysis.DeprecatedMethod, Severity: analysis.SeverityInfo})
	assert.Equal(t, protocol.DiagnosticSeverityInformation, deprecated.Severity)
	assert.Equal(t, []protocol.DiagnosticTag{protocol.DiagnosticTagDeprecated}, deprecated.Tags)
}

func TestJSON(t *testing.T) {
	edits := analysis.NewFileManipulationBuffer()
	edits.Add("/project/A.php", []analysis.FileManipulation{{Start: 56, End: 56, Insertion: "/* x */ "}})

	r := New(Options{Snippets: true, Contents: map[string][]byte{"/project/A.php": []byte(code)}})
	out, err := r.JSON([]analysis.Issue{fooBarIssue()}, edits)
	require.NoError(t, err)

	doc := gjson.ParseBytes(out)
	assert.Equal(t, int64(1), doc.Get("summary.errors").Int())
	assert.Equal(t, int64(0), doc.Get("summary.infos").Int())
	assert.Equal(t, int64(1), doc.Get("summary.edits").Int())

	file := doc.Get("files.0")
	assert.Equal(t, "file:///project/A.php", file.Get("uri").String())
	assert.Equal(t, "UndefinedClass", file.Get("diagnostics.0.code").String())
	assert.Equal(t, "Foo::bar()", file.Get("diagnostics.0.snippet").String())
	assert.Equal(t, int64(5), file.Get("edits.0.range.start.line").Int())
	assert.Equal(t, int64(8), file.Get("edits.0.range.start.character").Int())
	assert.Equal(t, "/* x */ ", file.Get("edits.0.newText").String())
}

func TestJSONWithoutIssues(t *testing.T) {
	out, err := New(Options{}).JSON(nil, nil)
	require.NoError(t, err)

	doc := gjson.ParseBytes(out)
	assert.Empty(t, doc.Get("files").Array())
	assert.Equal(t, int64(0), doc.Get("summary.errors").Int())
}

func TestText(t *testing.T) {
	edits := analysis.NewFileManipulationBuffer()
	edits.Add("/project/A.php", []analysis.FileManipulation{{Start: 56, End: 56, Insertion: "/* x */ "}})

	r := New(Options{Snippets: true, Contents: map[string][]byte{"/project/A.php": []byte(code)}})

	var buf bytes.Buffer
	require.NoError(t, r.Text(&buf, []analysis.Issue{fooBarIssue()}, edits))
	assert.Equal(t, "/project/A.php:6:9: error: UndefinedClass: Class or interface Foo does not exist\n"+
		"    Foo::bar()\n"+
		"/project/A.php:6:9: edit: insert \"/* x */ \"\n", buf.String())
}

func TestPublish(t *testing.T) {
	other := fooBarIssue()
	other.Location.File = "/project/0.php"

	params := Publish([]analysis.Issue{fooBarIssue(), other, fooBarIssue()})
	require.Len(t, params, 2)
	assert.Equal(t, "file:///project/0.php", params[0].URI)
	assert.Len(t, params[0].Diagnostics, 1)
	assert.Equal(t, "file:///project/A.php", params[1].URI)
	assert.Len(t, params[1].Diagnostics, 2)
}

func TestJSONWorkspaceEdit(t *testing.T) {
	edits := analysis.NewFileManipulationBuffer()
	edits.Add("/project/A.php", []analysis.FileManipulation{{Start: 56, End: 56, Insertion: "/* x */ "}})

	r := New(Options{Contents: map[string][]byte{"/project/A.php": []byte(code)}})
	out, err := r.JSON(nil, edits)
	require.NoError(t, err)

	doc := gjson.ParseBytes(out)
	assert.Empty(t, doc.Get("files.0.diagnostics").Array())
	changes, ok := doc.Get("workspaceEdit.changes").Map()["file:///project/A.php"]
	require.True(t, ok)
	assert.Equal(t, "/* x */ ", changes.Get("0.newText").String())
}
