package analyzer

import (
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/config"
	"github.com/shopware/php-callcheck/internal/php"
	treesitterhelper "github.com/shopware/php-callcheck/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Analyzer walks the method bodies of PHP files and resolves the calls inside them against
// the class index. Files are analyzed one at a time.
type Analyzer struct {
	index     *php.PHPIndex
	cfg       *config.Config
	collector *analysis.Collector
	edits     *analysis.FileManipulationBuffer
	calls     *analysis.StaticCallResolver

	mu     sync.Mutex
	parser *tree_sitter.Parser
	files  map[string]*sourceFile
}

type sourceFile struct {
	path    string
	content []byte
	tree    *tree_sitter.Tree
}

// New creates an analyzer reporting into collector. A nil config means config.Default().
func New(index *php.PHPIndex, cfg *config.Config, collector *analysis.Collector, hooks []analysis.AfterMethodCallHook) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if collector == nil {
		collector = analysis.NewCollector(cfg)
	}

	parser, err := php.NewParser()
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}

	a := &Analyzer{
		index:     index,
		cfg:       cfg,
		collector: collector,
		edits:     analysis.NewFileManipulationBuffer(),
		parser:    parser,
		files:     make(map[string]*sourceFile),
	}

	a.calls = &analysis.StaticCallResolver{
		Codebase:  index,
		Collector: collector,
		Options: analysis.Options{
			AllowStringStandinForClass:           cfg.AllowStringStandinForClass,
			RememberPropertyAssignmentsAfterCall: cfg.RememberPropertyAssignmentsAfterCall,
			ProjectDirs:                          cfg,
		},
		Expressions: a,
		Instances:   a,
		Arguments:   a,
		Mutations:   a,
		Hooks:       hooks,
		Edits:       a.edits,
	}

	return a, nil
}

func (a *Analyzer) Collector() *analysis.Collector {
	return a.collector
}

// Edits returns the file manipulations proposed by hooks
func (a *Analyzer) Edits() *analysis.FileManipulationBuffer {
	return a.edits
}

// AnalyzeFile reads and analyzes one PHP file
func (a *Analyzer) AnalyzeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return a.AnalyzeSource(path, content)
}

// AnalyzeSource analyzes PHP code as the content of path. Issues and edits recorded for the
// path by an earlier run are dropped first.
func (a *Analyzer) AnalyzeSource(path string, content []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.collector.Forget(path)
	a.edits.Forget(path)

	file, err := a.parse(path, content)
	if err != nil {
		return err
	}

	php.WalkClassDeclarations(file.tree.RootNode(), file.content, func(decl php.ClassDecl) {
		a.analyzeClass(file, decl)
	})
	return nil
}

// Close releases the parser and the syntax trees
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, file := range a.files {
		file.tree.Close()
	}
	a.files = make(map[string]*sourceFile)
	a.parser.Close()
}

func (a *Analyzer) parse(path string, content []byte) (*sourceFile, error) {
	tree := a.parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", path)
	}

	if old, ok := a.files[path]; ok {
		old.tree.Close()
	}
	file := &sourceFile{path: path, content: content, tree: tree}
	a.files[path] = file
	return file, nil
}

// source returns the parsed file, reading it from disk the first time
func (a *Analyzer) source(path string) (*sourceFile, error) {
	if file, ok := a.files[path]; ok {
		return file, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return a.parse(path, content)
}

// analyzeClass walks the methods of a class and the trait methods it does not override.
// Traits are only analyzed through the classes using them, so self and parent mean the user.
func (a *Analyzer) analyzeClass(file *sourceFile, decl php.ClassDecl) {
	if decl.Kind == "interface" || decl.Kind == "trait" {
		return
	}

	class, err := a.index.GetClass(decl.Name)
	if err != nil {
		log.Printf("Class %s of %s is not indexed, skipping", decl.Name, file.path)
		return
	}

	body := decl.Node.ChildByFieldName("body")
	if body == nil {
		return
	}

	for i := uint(0); i < body.NamedChildCount(); i++ {
		node := body.NamedChild(i)
		if node == nil || node.Kind() != "method_declaration" {
			continue
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		method, ok := class.Methods[strings.ToLower(string(nameNode.Utf8Text(file.content)))]
		if !ok {
			continue
		}
		a.analyzeMethod(file, decl, class, &method, node, file.path)
	}

	seen := make(map[string]bool, len(class.Methods))
	for name := range class.Methods {
		seen[name] = true
	}
	a.analyzeTraitMethods(class, class.UsedTraits, seen, file.path)
}

// analyzeTraitMethods walks the methods the class takes from its traits, nested traits included.
// The first trait providing a method wins.
func (a *Analyzer) analyzeTraitMethods(class *php.ClassMetadata, traits []string, seen map[string]bool, origin string) {
	for _, name := range traits {
		trait, err := a.index.GetClass(name)
		if err != nil || !trait.IsTrait || trait.Path == "" || seen["trait:"+strings.ToLower(trait.Name)] {
			continue
		}
		seen["trait:"+strings.ToLower(trait.Name)] = true

		file, err := a.source(trait.Path)
		if err != nil {
			log.Printf("Error loading trait %s used by %s: %v", trait.Name, class.Name, err)
			continue
		}
		decl := findClassDecl(file, trait.Name)
		if decl == nil {
			continue
		}

		methodNames := slices.Sorted(maps.Keys(trait.Methods))
		for _, key := range methodNames {
			if seen[key] {
				continue
			}
			seen[key] = true

			method := trait.Methods[key]
			node := treesitterhelper.FindMethodDeclaration(decl.Node, file.content, method.Name)
			if node == nil {
				continue
			}
			a.analyzeMethod(file, *decl, class, &method, node, origin)
		}

		a.analyzeTraitMethods(class, trait.UsedTraits, seen, origin)
	}
}

func (a *Analyzer) analyzeMethod(file *sourceFile, decl php.ClassDecl, class *php.ClassMetadata, method *php.MethodMetadata, node *tree_sitter.Node, origin string) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	ctx := a.methodContext(class, method, decl.Resolver, file.path)
	ctx.Origin = origin
	newWalk(a, file).block(body, ctx)
}

// findClassDecl returns the declaration of a class in a parsed file
func findClassDecl(file *sourceFile, name string) *php.ClassDecl {
	var decl *php.ClassDecl
	php.WalkClassDeclarations(file.tree.RootNode(), file.content, func(d php.ClassDecl) {
		if decl == nil && strings.EqualFold(d.Name, name) {
			decl = &d
		}
	})
	return decl
}

// methodContext builds the scope a method body starts with
func (a *Analyzer) methodContext(class *php.ClassMetadata, method *php.MethodMetadata, aliases *php.AliasResolver, path string) *analysis.Context {
	ctx := analysis.NewContext(class.Name)
	ctx.IsStatic = method.IsStatic
	ctx.CallingMethodID = php.MethodID(class.Name, method.Name)
	ctx.FilePath = path
	ctx.Aliases = aliases
	ctx.Suppressed = slices.Clone(method.SuppressedIssues)
	// constructors take in what parent constructors assign
	ctx.CollectMutations = strings.EqualFold(method.Name, "__construct")

	if !method.IsStatic {
		ctx.SetVar("$this", php.NewUnion(php.NewNamedObject(class.Name)))
	}

	flesh := php.FleshOutContext{Self: class.Name, Static: class.Name}
	if len(class.ParentClasses) > 0 {
		flesh.Parent = class.ParentClasses[0]
	}
	for _, param := range method.Params {
		t := php.Mixed()
		if param.Type != nil {
			t = param.Type.FleshOut(flesh)
		}
		if param.Variadic {
			t = php.NewUnion(php.NewArrayType(t))
		}
		ctx.SetVar("$"+param.Name, t)
	}

	return ctx
}

// report routes an issue through the collector and returns true when it was accepted
func (a *Analyzer) report(ctx *analysis.Context, t analysis.IssueType, loc analysis.CodeLocation, subject, message string) bool {
	return a.collector.Accepts(analysis.NewIssue(ctx, t, loc, subject, message), ctx.Suppressed)
}
