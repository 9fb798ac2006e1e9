package analysis

import (
	"maps"
	"slices"
	"strings"

	"github.com/shopware/php-callcheck/internal/php"
)

// Context is the mutable analysis state of one branch of a method body
type Context struct {
	// VarsInScope maps variable names ("$x", "$this->prop") to their inferred types
	VarsInScope map[string]*php.Union
	// VarsPossiblyInScope holds variables assigned on some, not all, paths
	VarsPossiblyInScope map[string]bool

	// Self is the class whose code is analyzed, empty outside classes
	Self string
	// IsStatic is set inside static methods
	IsStatic bool
	// CallingMethodID is the id of the method being analyzed
	CallingMethodID string

	CheckClasses           bool
	CheckMethods           bool
	CollectMutations       bool
	CollectInitializations bool

	// PhantomClasses are assumed not to exist, keyed by lowercased name
	PhantomClasses map[string]bool
	// InitializedMethods memoizes methods already walked while collecting initializations
	InitializedMethods map[string]bool
	// IncludeLocations is the chain of call sites that led into the analyzed code
	IncludeLocations []CodeLocation

	// Aliases resolves class names written in the analyzed file
	Aliases *php.AliasResolver
	// Suppressed lists issue types silenced for the analyzed method
	Suppressed []string
	FilePath   string
	// Origin is the file being analyzed when FilePath points elsewhere
	Origin string
}

// NewContext creates a context for code inside self with class and method checks enabled
func NewContext(self string) *Context {
	return &Context{
		VarsInScope:         make(map[string]*php.Union),
		VarsPossiblyInScope: make(map[string]bool),
		Self:                self,
		CheckClasses:        true,
		CheckMethods:        true,
		PhantomClasses:      make(map[string]bool),
	}
}

// Clone copies the context for a new branch. Types are shared, maps are not.
func (c *Context) Clone() *Context {
	clone := *c
	clone.VarsInScope = maps.Clone(c.VarsInScope)
	clone.VarsPossiblyInScope = maps.Clone(c.VarsPossiblyInScope)
	clone.PhantomClasses = maps.Clone(c.PhantomClasses)
	clone.IncludeLocations = slices.Clone(c.IncludeLocations)
	clone.Suppressed = slices.Clone(c.Suppressed)
	if clone.VarsInScope == nil {
		clone.VarsInScope = make(map[string]*php.Union)
	}
	if clone.VarsPossiblyInScope == nil {
		clone.VarsPossiblyInScope = make(map[string]bool)
	}
	// the memo is shared by every branch of one pass
	return &clone
}

func (c *Context) IsPhantomClass(name string) bool {
	return c.PhantomClasses[strings.ToLower(strings.TrimPrefix(name, "\\"))]
}

func (c *Context) AddPhantomClass(name string) {
	if c.PhantomClasses == nil {
		c.PhantomClasses = make(map[string]bool)
	}
	c.PhantomClasses[strings.ToLower(strings.TrimPrefix(name, "\\"))] = true
}

// MarkInitialized records a method as walked; it reports false when it already was
func (c *Context) MarkInitialized(methodID string) bool {
	if c.InitializedMethods == nil {
		c.InitializedMethods = make(map[string]bool)
	}
	key := strings.ToLower(methodID)
	if c.InitializedMethods[key] {
		return false
	}
	c.InitializedMethods[key] = true
	return true
}

// SetVar assigns a type to a variable
func (c *Context) SetVar(name string, t *php.Union) {
	c.VarsInScope[name] = t
	c.VarsPossiblyInScope[name] = true
}

// IsObjectVar reports whether a scope entry describes object state ($a->b, Foo::$b)
// rather than a local variable
func IsObjectVar(name string) bool {
	return strings.Contains(name, "->") || strings.Contains(name, "::")
}

// RemoveAllObjectVars forgets everything known about object properties
func (c *Context) RemoveAllObjectVars() {
	for name := range c.VarsInScope {
		if IsObjectVar(name) {
			delete(c.VarsInScope, name)
		}
	}
	for name := range c.VarsPossiblyInScope {
		if IsObjectVar(name) {
			delete(c.VarsPossiblyInScope, name)
		}
	}
}

// localScope is a snapshot of the non-object variables of a context
type localScope struct {
	vars     map[string]*php.Union
	possibly map[string]bool
}

func isLocalVar(name string) bool {
	return !IsObjectVar(name) && name != "$this"
}

func (c *Context) saveLocals() localScope {
	saved := localScope{
		vars:     make(map[string]*php.Union),
		possibly: make(map[string]bool),
	}
	for name, t := range c.VarsInScope {
		if isLocalVar(name) {
			saved.vars[name] = t
		}
	}
	for name, v := range c.VarsPossiblyInScope {
		if isLocalVar(name) {
			saved.possibly[name] = v
		}
	}
	return saved
}

// restoreLocals puts the saved local variables back and drops locals introduced since.
// Object state is left as it is.
func (c *Context) restoreLocals(saved localScope) {
	for name := range c.VarsInScope {
		if isLocalVar(name) {
			delete(c.VarsInScope, name)
		}
	}
	for name := range c.VarsPossiblyInScope {
		if isLocalVar(name) {
			delete(c.VarsPossiblyInScope, name)
		}
	}
	maps.Copy(c.VarsInScope, saved.vars)
	maps.Copy(c.VarsPossiblyInScope, saved.possibly)
}

func (c *Context) pushInclude(loc CodeLocation) func() {
	c.IncludeLocations = append(c.IncludeLocations, loc)
	n := len(c.IncludeLocations)
	return func() {
		c.IncludeLocations = c.IncludeLocations[:n-1]
	}
}

// ResolveClassName turns a class name written in the analyzed file into a fully qualified one
func (c *Context) ResolveClassName(name string) string {
	if strings.HasPrefix(name, "\\") {
		return name[1:]
	}
	if c.Aliases == nil {
		return name
	}
	return c.Aliases.ResolveType(name)
}
