package report

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/lsp/protocol"
	treesitterhelper "github.com/shopware/php-callcheck/internal/tree_sitter_helper"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const source = "php-callcheck"

// Options control what goes into a report
type Options struct {
	// Snippets adds the source text of every diagnostic range
	Snippets bool
	// Contents supplies file contents; files missing here are read from disk
	Contents map[string][]byte
}

// Report turns collected issues and proposed edits into diagnostics per file
type Report struct {
	options  Options
	contents map[string][]byte
}

func New(options Options) *Report {
	contents := make(map[string][]byte, len(options.Contents))
	for path, content := range options.Contents {
		contents[path] = content
	}
	return &Report{options: options, contents: contents}
}

func (r *Report) content(path string) []byte {
	if content, ok := r.contents[path]; ok {
		return content
	}
	content, err := os.ReadFile(path)
	if err != nil {
		content = nil
	}
	r.contents[path] = content
	return content
}

// URI returns the file URI of a path
func URI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

// ToDiagnostic converts an issue. Lines and columns become 0-based.
func ToDiagnostic(issue analysis.Issue) protocol.Diagnostic {
	diagnostic := protocol.Diagnostic{
		Range:    toRange(issue.Location),
		Severity: protocol.DiagnosticSeverityError,
		Code:     string(issue.Type),
		Source:   source,
		Message:  issue.Message,
	}
	if issue.Severity == analysis.SeverityInfo {
		diagnostic.Severity = protocol.DiagnosticSeverityInformation
	}

	switch issue.Type {
	case analysis.DeprecatedClass, analysis.DeprecatedMethod:
		diagnostic.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagDeprecated}
	}

	for _, loc := range issue.Provenance {
		diagnostic.RelatedInformation = append(diagnostic.RelatedInformation, protocol.DiagnosticRelatedInformation{
			Location: protocol.Location{URI: URI(loc.File), Range: toRange(loc)},
			Message:  "Analyzed through this call",
		})
	}
	return diagnostic
}

func toRange(loc analysis.CodeLocation) protocol.Range {
	start := protocol.Position{Line: max(loc.Line-1, 0), Character: max(loc.Column-1, 0)}
	end := protocol.Position{Line: max(loc.EndLine-1, 0), Character: max(loc.EndColumn-1, 0)}
	if loc.EndLine == 0 {
		end = start
	}
	return protocol.Range{Start: start, End: end}
}

// ToTextEdits converts byte offset edits of a file into line based text edits
func (r *Report) ToTextEdits(path string, edits []analysis.FileManipulation) []protocol.TextEdit {
	content := r.content(path)
	out := make([]protocol.TextEdit, 0, len(edits))
	for _, edit := range edits {
		out = append(out, protocol.TextEdit{
			Range: protocol.Range{
				Start: treesitterhelper.PositionForOffset(content, edit.Start),
				End:   treesitterhelper.PositionForOffset(content, edit.End),
			},
			NewText: edit.Insertion,
		})
	}
	return out
}

// WorkspaceEdit groups all buffered edits by file URI
func (r *Report) WorkspaceEdit(edits *analysis.FileManipulationBuffer) protocol.WorkspaceEdit {
	workspace := protocol.WorkspaceEdit{Changes: make(map[string][]protocol.TextEdit)}
	if edits == nil {
		return workspace
	}
	for _, file := range edits.Files() {
		workspace.Changes[URI(file)] = r.ToTextEdits(file, edits.Get(file))
	}
	return workspace
}

// Publish groups the issues into one diagnostics notification per file, ordered by file
func Publish(issues []analysis.Issue) []protocol.PublishDiagnosticsParams {
	byFile := make(map[string][]protocol.Diagnostic)
	for _, issue := range issues {
		byFile[issue.Location.File] = append(byFile[issue.Location.File], ToDiagnostic(issue))
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	slices.Sort(files)

	params := make([]protocol.PublishDiagnosticsParams, 0, len(files))
	for _, file := range files {
		params = append(params, protocol.PublishDiagnosticsParams{URI: URI(file), Diagnostics: byFile[file]})
	}
	return params
}

// JSON renders the report as an indented document:
//
//	{"files": [{"uri", "diagnostics", "edits"}], "workspaceEdit": {...}, "summary": {"errors", "infos", "edits"}}
func (r *Report) JSON(issues []analysis.Issue, edits *analysis.FileManipulationBuffer) ([]byte, error) {
	published := make(map[string]protocol.PublishDiagnosticsParams)
	files := make([]string, 0)
	for _, p := range Publish(issues) {
		published[p.URI] = p
	}
	for _, issue := range issues {
		if !slices.Contains(files, issue.Location.File) {
			files = append(files, issue.Location.File)
		}
	}

	var editFiles []string
	if edits != nil {
		editFiles = edits.Files()
	}
	for _, file := range editFiles {
		if !slices.Contains(files, file) {
			files = append(files, file)
		}
	}
	slices.Sort(files)

	errors, infos, editCount := 0, 0, 0
	for _, issue := range issues {
		if issue.Severity == analysis.SeverityInfo {
			infos++
		} else {
			errors++
		}
	}

	doc := []byte(`{"files":[]}`)
	for _, file := range files {
		entry, err := sjson.SetBytes([]byte(`{}`), "uri", URI(file))
		if err != nil {
			return nil, fmt.Errorf("failed to set uri of %s: %w", file, err)
		}

		diagnostics := published[URI(file)].Diagnostics
		if diagnostics == nil {
			diagnostics = []protocol.Diagnostic{}
		}
		if entry, err = sjson.SetBytes(entry, "diagnostics", diagnostics); err != nil {
			return nil, fmt.Errorf("failed to set diagnostics of %s: %w", file, err)
		}

		if r.options.Snippets {
			content := r.content(file)
			for i, diagnostic := range diagnostics {
				snippet := treesitterhelper.GetTextForRange(content, diagnostic.Range)
				if snippet == "" {
					continue
				}
				if entry, err = sjson.SetBytes(entry, fmt.Sprintf("diagnostics.%d.snippet", i), snippet); err != nil {
					return nil, fmt.Errorf("failed to set snippet of %s: %w", file, err)
				}
			}
		}

		if edits != nil {
			if fileEdits := edits.Get(file); len(fileEdits) > 0 {
				editCount += len(fileEdits)
				if entry, err = sjson.SetBytes(entry, "edits", r.ToTextEdits(file, fileEdits)); err != nil {
					return nil, fmt.Errorf("failed to set edits of %s: %w", file, err)
				}
			}
		}

		if doc, err = sjson.SetRawBytes(doc, "files.-1", entry); err != nil {
			return nil, fmt.Errorf("failed to add %s to report: %w", file, err)
		}
	}

	var err error
	if editCount > 0 {
		if doc, err = sjson.SetBytes(doc, "workspaceEdit", r.WorkspaceEdit(edits)); err != nil {
			return nil, fmt.Errorf("failed to set workspace edit: %w", err)
		}
	}

	doc, err = sjson.SetBytes(doc, "summary", map[string]int{
		"errors": errors,
		"infos":  infos,
		"edits":  editCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set summary: %w", err)
	}

	return pretty.Pretty(doc), nil
}

// Text writes one line per issue in the form path:line:column: severity: Type: message
func (r *Report) Text(w io.Writer, issues []analysis.Issue, edits *analysis.FileManipulationBuffer) error {
	for _, issue := range issues {
		if _, err := fmt.Fprintf(w, "%s: %s: %s: %s\n", issue.Location, issue.Severity, issue.Type, issue.Message); err != nil {
			return err
		}
		if r.options.Snippets {
			if snippet := treesitterhelper.GetTextForRange(r.content(issue.Location.File), toRange(issue.Location)); snippet != "" {
				if _, err := fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(snippet, "\n", "\n    ")); err != nil {
					return err
				}
			}
		}
	}

	if edits == nil {
		return nil
	}
	for _, file := range edits.Files() {
		for _, edit := range r.ToTextEdits(file, edits.Get(file)) {
			if _, err := fmt.Fprintf(w, "%s:%d:%d: edit: insert %q\n", file, edit.Range.Start.Line+1, edit.Range.Start.Character+1, edit.NewText); err != nil {
				return err
			}
		}
	}
	return nil
}
