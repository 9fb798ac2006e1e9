package analyzer

import (
	"log"
	"slices"

	"github.com/shopware/php-callcheck/internal/analysis"
	treesitterhelper "github.com/shopware/php-callcheck/internal/tree_sitter_helper"
)

// CollectMethodMutations walks the body of the declaring method on ctx. The walk sees the
// file of the declaration, so names resolve the way they do there.
func (a *Analyzer) CollectMethodMutations(methodID string, ctx *analysis.Context) {
	declaringID := a.index.DeclaringMethodID(methodID)
	method := a.index.GetMethod(methodID)
	if declaringID == "" || method == nil {
		return
	}

	class, err := a.index.GetClass(method.ClassName)
	if err != nil || class.Path == "" {
		return
	}

	file, err := a.source(class.Path)
	if err != nil {
		log.Printf("Error loading %s for %s: %v", class.Path, declaringID, err)
		return
	}

	decl := findClassDecl(file, class.Name)
	if decl == nil {
		return
	}

	node := treesitterhelper.FindMethodDeclaration(decl.Node, file.content, method.Name)
	if node == nil {
		return
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	aliases, path, calling, suppressed := ctx.Aliases, ctx.FilePath, ctx.CallingMethodID, ctx.Suppressed
	ctx.Aliases = decl.Resolver
	ctx.FilePath = file.path
	ctx.CallingMethodID = declaringID
	ctx.Suppressed = append(slices.Clone(suppressed), method.SuppressedIssues...)

	newWalk(a, file).block(body, ctx)

	ctx.Aliases, ctx.FilePath, ctx.CallingMethodID, ctx.Suppressed = aliases, path, calling, suppressed
}
