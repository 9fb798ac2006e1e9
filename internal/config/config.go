package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

// FileName is the configuration file looked up in the project root
const FileName = "callcheck.toml"

// IssueLevel decides what happens to a reported issue
type IssueLevel string

const (
	// LevelError issues are reported and stop the resolution of the offending call
	LevelError IssueLevel = "error"
	// LevelInfo issues are reported but analysis continues as if nothing happened
	LevelInfo IssueLevel = "info"
	// LevelSuppress issues are dropped
	LevelSuppress IssueLevel = "suppress"
)

type Config struct {
	// AllowStringStandinForClass permits plain strings as class references in Foo::bar() calls on variables
	AllowStringStandinForClass bool `toml:"allow_string_standin_for_class"`
	// RememberPropertyAssignmentsAfterCall keeps $this->prop types in scope across static calls
	RememberPropertyAssignmentsAfterCall bool `toml:"remember_property_assignments_after_call"`

	// ProjectDirs are globs or directory prefixes, relative to Root, holding the analyzed code.
	// Empty means everything outside vendor/.
	ProjectDirs []string `toml:"project_dirs"`
	// IgnoreDirs are never scanned
	IgnoreDirs []string `toml:"ignore_dirs"`

	// CacheDir holds the class index. Relative paths are resolved against Root; empty means a
	// folder per project below the user cache directory.
	CacheDir string `toml:"cache_dir"`

	AfterMethodChecks []string              `toml:"after_method_checks"`
	Suppress          []string              `toml:"suppress"`
	IssueLevels       map[string]IssueLevel `toml:"issue_levels"`

	// Root is the directory relative paths are resolved against
	Root string `toml:"-"`

	projectGlobs []pathPattern
	ignoreGlobs  []pathPattern
}

type pathPattern struct {
	prefix string
	globs  []glob.Glob
}

func (p pathPattern) match(relPath string) bool {
	if p.prefix == "." || relPath == p.prefix || strings.HasPrefix(relPath, p.prefix+"/") {
		return true
	}
	return slices.ContainsFunc(p.globs, func(g glob.Glob) bool { return g.Match(relPath) })
}

var defaultIssueLevels = map[string]IssueLevel{
	"DeprecatedClass":  LevelInfo,
	"DeprecatedMethod": LevelInfo,
}

// Default returns the configuration used when the project has no config file
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the TOML configuration at path. A missing file yields Default() rooted at the
// file's directory.
func Load(path string) (*Config, error) {
	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}

	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		cfg.Root = root
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	cfg.Root = root
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IssueLevels == nil {
		c.IssueLevels = make(map[string]IssueLevel)
	}
	for issue, level := range defaultIssueLevels {
		if _, ok := c.IssueLevels[issue]; !ok {
			c.IssueLevels[issue] = level
		}
	}
}

func (c *Config) validate() error {
	for issue, level := range c.IssueLevels {
		switch level {
		case LevelError, LevelInfo, LevelSuppress:
		default:
			return fmt.Errorf("issue_levels.%s: unknown level %q", issue, level)
		}
	}

	var err error
	if c.projectGlobs, err = compilePatterns(c.ProjectDirs); err != nil {
		return fmt.Errorf("project_dirs: %w", err)
	}
	if c.ignoreGlobs, err = compilePatterns(c.IgnoreDirs); err != nil {
		return fmt.Errorf("ignore_dirs: %w", err)
	}
	return nil
}

func compilePatterns(patterns []string) ([]pathPattern, error) {
	compiled := make([]pathPattern, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(filepath.ToSlash(strings.TrimPrefix(pattern, "./")), "/")
		if pattern == "" {
			pattern = "."
		}

		p := pathPattern{prefix: pattern}
		if strings.ContainsAny(pattern, "*?[{") {
			// the pattern names directories, so everything below a match matches too
			for _, expr := range []string{pattern, pattern + "/**"} {
				g, err := glob.Compile(expr, '/')
				if err != nil {
					return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
				}
				p.globs = append(p.globs, g)
			}
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}

// relative turns a path into a slash separated path relative to Root. Paths outside Root
// are returned with a leading "../".
func (c *Config) relative(path string) string {
	if filepath.IsAbs(path) && c.Root != "" {
		if rel, err := filepath.Rel(c.Root, path); err == nil {
			path = rel
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")
}

// IsInProjectDirs reports whether a file belongs to the analyzed project rather than
// to its dependencies
func (c *Config) IsInProjectDirs(path string) bool {
	rel := c.relative(path)
	if strings.HasPrefix(rel, "../") {
		return false
	}
	if c.IsIgnored(rel) {
		return false
	}

	if len(c.ProjectDirs) == 0 {
		return rel != "vendor" && !strings.HasPrefix(rel, "vendor/")
	}

	patterns := c.projectGlobs
	if patterns == nil {
		patterns, _ = compilePatterns(c.ProjectDirs)
	}
	return slices.ContainsFunc(patterns, func(p pathPattern) bool { return p.match(rel) })
}

// IsIgnored reports whether a project relative path lies in an ignored directory
func (c *Config) IsIgnored(relPath string) bool {
	patterns := c.ignoreGlobs
	if patterns == nil && len(c.IgnoreDirs) > 0 {
		patterns, _ = compilePatterns(c.IgnoreDirs)
	}
	relPath = c.relative(relPath)
	return slices.ContainsFunc(patterns, func(p pathPattern) bool { return p.match(relPath) })
}

// LevelFor returns the level of an issue type, honouring the global suppress list
func (c *Config) LevelFor(issueType string) IssueLevel {
	if slices.Contains(c.Suppress, issueType) {
		return LevelSuppress
	}
	if level, ok := c.IssueLevels[issueType]; ok {
		return level
	}
	return LevelError
}
