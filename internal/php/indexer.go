package php

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopware/php-callcheck/internal/indexer"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// PHPIndex is the class metadata store. Classes are persisted per file in sqlite and
// served from memory once loaded.
type PHPIndex struct {
	dataIndexer *indexer.DataIndexer[ClassMetadata]

	mu      sync.RWMutex
	classes map[string]*ClassMetadata
	files   map[string][]string
}

// NewPHPIndex opens (or creates) the class cache inside configDir
func NewPHPIndex(configDir string) (*PHPIndex, error) {
	dataIndexer, err := indexer.NewDataIndexer[ClassMetadata](filepath.Join(configDir, "php_classes.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create class index: %w", err)
	}

	idx := NewMemoryIndex()
	idx.dataIndexer = dataIndexer
	return idx, nil
}

// NewMemoryIndex creates an index without persistence
func NewMemoryIndex() *PHPIndex {
	return &PHPIndex{
		classes: make(map[string]*ClassMetadata),
		files:   make(map[string][]string),
	}
}

func (idx *PHPIndex) ID() string {
	return "php.index"
}

// Index extracts the classes of one parsed file and stores them
func (idx *PHPIndex) Index(path string, node *tree_sitter.Node, fileContent []byte) error {
	classes := ExtractClasses(path, node, fileContent)
	if len(classes) == 0 {
		return nil
	}

	if idx.dataIndexer != nil {
		batch := map[string]map[string]ClassMetadata{path: {}}
		for _, class := range classes {
			batch[path][classKey(class.Name)] = class
		}
		if err := idx.dataIndexer.BatchSaveItems(batch); err != nil {
			return fmt.Errorf("failed to store classes of %s: %w", path, err)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, class := range classes {
		idx.putLocked(class)
	}

	return nil
}

// RemovedFiles drops every class declared in the given files
func (idx *PHPIndex) RemovedFiles(paths []string) error {
	if idx.dataIndexer != nil {
		if err := idx.dataIndexer.BatchDeleteByFilePaths(paths); err != nil {
			return fmt.Errorf("failed to remove files from class index: %w", err)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, path := range paths {
		for _, key := range idx.files[path] {
			if class, ok := idx.classes[key]; ok && class.Path == path {
				delete(idx.classes, key)
			}
		}
		delete(idx.files, path)
	}

	return nil
}

func (idx *PHPIndex) Close() error {
	if idx.dataIndexer != nil {
		return idx.dataIndexer.Close()
	}
	return nil
}

func (idx *PHPIndex) Clear() error {
	idx.mu.Lock()
	idx.classes = make(map[string]*ClassMetadata)
	idx.files = make(map[string][]string)
	idx.mu.Unlock()

	if idx.dataIndexer != nil {
		return idx.dataIndexer.Clear()
	}
	return nil
}

// Load reads all persisted classes into memory
func (idx *PHPIndex) Load() error {
	if idx.dataIndexer == nil {
		return nil
	}

	startTime := time.Now()

	classes, err := idx.dataIndexer.GetAllValues()
	if err != nil {
		return fmt.Errorf("failed to load class index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, class := range classes {
		idx.putLocked(class)
	}

	log.Printf("Loaded %d classes in %v", len(classes), time.Since(startTime))

	return nil
}

// AddClass puts a class into the in-memory store only
func (idx *PHPIndex) AddClass(class ClassMetadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.putLocked(class)
}

func (idx *PHPIndex) putLocked(class ClassMetadata) {
	if class.Methods == nil {
		class.Methods = make(map[string]MethodMetadata)
	}
	key := classKey(class.Name)
	idx.classes[key] = &class
	if class.Path != "" {
		idx.files[class.Path] = append(idx.files[class.Path], key)
	}
}

// ClassCount returns the number of known class-likes
func (idx *PHPIndex) ClassCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.classes)
}

func (idx *PHPIndex) lookup(name string) *ClassMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.classes[classKey(name)]
}

// GetClass returns a copy of the class metadata with its parent chain filled in
func (idx *PHPIndex) GetClass(name string) (*ClassMetadata, error) {
	stored := idx.lookup(name)
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}

	class := *stored
	class.ParentClasses = idx.ParentClasses(name)
	return &class, nil
}

func (idx *PHPIndex) ClassExists(name string) bool {
	return idx.lookup(name) != nil
}

// ParentClasses returns the ancestor chain of a class, nearest first
func (idx *PHPIndex) ParentClasses(name string) []string {
	var chain []string
	seen := map[string]bool{classKey(name): true}

	current := idx.lookup(name)
	for current != nil && current.Parent != "" {
		key := classKey(current.Parent)
		if seen[key] {
			break
		}
		seen[key] = true

		parent := idx.lookup(current.Parent)
		if parent == nil {
			// unknown parents still count as ancestors
			chain = append(chain, strings.TrimPrefix(current.Parent, "\\"))
			break
		}
		chain = append(chain, parent.Name)
		current = parent
	}

	return chain
}

// ClassExtends reports whether parent is a strict ancestor of child
func (idx *PHPIndex) ClassExtends(child, parent string) bool {
	for _, ancestor := range idx.ParentClasses(child) {
		if strings.EqualFold(ancestor, strings.TrimPrefix(parent, "\\")) {
			return true
		}
	}
	return false
}

// ClassImplements reports whether child or one of its ancestors implements the interface
func (idx *PHPIndex) ClassImplements(child, iface string) bool {
	target := classKey(iface)
	seen := map[string]bool{}

	var visit func(name string) bool
	visit = func(name string) bool {
		key := classKey(name)
		if seen[key] {
			return false
		}
		seen[key] = true

		class := idx.lookup(name)
		if class == nil {
			return false
		}
		for _, i := range class.Interfaces {
			if classKey(i) == target || visit(i) {
				return true
			}
		}
		if class.Parent != "" {
			return visit(class.Parent)
		}
		return false
	}

	return visit(child)
}

// ClassExtendsOrImplements reports whether child is a subtype of parent, excluding equality
func (idx *PHPIndex) ClassExtendsOrImplements(child, parent string) bool {
	return idx.ClassExtends(child, parent) || idx.ClassImplements(child, parent)
}

type methodLocation struct {
	appearing string
	declaring string
	method    *MethodMetadata
}

// findMethod walks own methods, used traits, the parent chain and finally interfaces
func (idx *PHPIndex) findMethod(className, methodName string, seen map[string]bool) *methodLocation {
	key := classKey(className)
	if seen[key] {
		return nil
	}
	seen[key] = true

	class := idx.lookup(className)
	if class == nil {
		return nil
	}

	lower := strings.ToLower(methodName)
	if method, ok := class.Methods[lower]; ok {
		return &methodLocation{
			appearing: MethodID(class.Name, lower),
			declaring: MethodID(class.Name, lower),
			method:    &method,
		}
	}

	for _, trait := range class.UsedTraits {
		if found := idx.findMethod(trait, lower, seen); found != nil {
			found.appearing = MethodID(class.Name, lower)
			return found
		}
	}

	if class.Parent != "" {
		if found := idx.findMethod(class.Parent, lower, seen); found != nil {
			return found
		}
	}

	if class.IsInterface || class.IsAbstract {
		for _, iface := range class.Interfaces {
			if found := idx.findMethod(iface, lower, seen); found != nil {
				return found
			}
		}
	}

	return nil
}

func (idx *PHPIndex) locate(methodID string) *methodLocation {
	className, methodName := SplitMethodID(methodID)
	if methodName == "" {
		return nil
	}
	return idx.findMethod(className, methodName, map[string]bool{})
}

// MethodExists reports whether the class has or inherits the method
func (idx *PHPIndex) MethodExists(methodID string) bool {
	return idx.locate(methodID) != nil
}

// GetMethod returns the storage of the method the id resolves to, or nil
func (idx *PHPIndex) GetMethod(methodID string) *MethodMetadata {
	if loc := idx.locate(methodID); loc != nil {
		return loc.method
	}
	return nil
}

// AppearingMethodID returns the id under which the method appears in the class hierarchy.
// Trait methods appear in the using class.
func (idx *PHPIndex) AppearingMethodID(methodID string) string {
	if loc := idx.locate(methodID); loc != nil {
		return loc.appearing
	}
	return ""
}

// DeclaringMethodID returns the id of the class-like whose body declares the method
func (idx *PHPIndex) DeclaringMethodID(methodID string) string {
	if loc := idx.locate(methodID); loc != nil {
		return loc.declaring
	}
	return ""
}

// MethodReturnType returns the declared return type of a method, falling back to the
// overridden declarations in parents and interfaces. It also returns where the type was
// declared and which class declares it.
func (idx *PHPIndex) MethodReturnType(methodID string) (*Union, *SourceRef, string) {
	loc := idx.locate(methodID)
	if loc == nil {
		return nil, nil, ""
	}
	if loc.method.ReturnType != nil {
		return loc.method.ReturnType, loc.method.ReturnTypeLocation, loc.method.ClassName
	}

	className, methodName := SplitMethodID(loc.declaring)
	class := idx.lookup(className)
	if class == nil {
		return nil, nil, ""
	}

	var candidates []string
	candidates = append(candidates, idx.ParentClasses(className)...)
	candidates = append(candidates, class.Interfaces...)
	for _, candidate := range candidates {
		overridden := idx.locate(MethodID(candidate, methodName))
		if overridden != nil && overridden.method.ReturnType != nil {
			return overridden.method.ReturnType, overridden.method.ReturnTypeLocation, overridden.method.ClassName
		}
	}

	return nil, nil, ""
}
