package analysis

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/shopware/php-callcheck/internal/config"
)

// IssueType names a kind of problem the analysis reports
type IssueType string

const (
	ParentNotFound          IssueType = "ParentNotFound"
	UndefinedClass          IssueType = "UndefinedClass"
	InvalidStringClass      IssueType = "InvalidStringClass"
	UndefinedMethod         IssueType = "UndefinedMethod"
	DeprecatedClass         IssueType = "DeprecatedClass"
	DeprecatedMethod        IssueType = "DeprecatedMethod"
	InaccessibleMethod      IssueType = "InaccessibleMethod"
	NonStaticSelfCall       IssueType = "NonStaticSelfCall"
	InvalidStaticInvocation IssueType = "InvalidStaticInvocation"
	InvalidArgument         IssueType = "InvalidArgument"
	TooFewArguments         IssueType = "TooFewArguments"
	TooManyArguments        IssueType = "TooManyArguments"
)

// Severity of a recorded issue
type Severity int

const (
	SeverityError Severity = iota
	SeverityInfo
)

func (s Severity) String() string {
	if s == SeverityInfo {
		return "info"
	}
	return "error"
}

// CodeLocation is a span of a source file. Lines and columns are 1-based, columns count bytes.
type CodeLocation struct {
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	StartByte int
	EndByte   int
}

func (l CodeLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Issue is one reported problem
type Issue struct {
	Type     IssueType
	Message  string
	Location CodeLocation
	Severity Severity

	// Subject is the class, method or type the issue is about, if any
	Subject string
	// Provenance lists the call sites that led into the code raising the issue, outermost first
	Provenance []CodeLocation
	// Origin is the analyzed file that raised the issue when it differs from Location.File,
	// as for trait bodies walked for the class using them
	Origin string
}

// LevelSource maps issue types to the configured level
type LevelSource interface {
	LevelFor(issueType string) config.IssueLevel
}

// Collector gathers the issues of one analysis pass and decides which of them stop analysis
type Collector struct {
	mu     sync.Mutex
	levels LevelSource
	issues []Issue
	seen   map[issueKey]bool
	errors int
}

// issueKey identifies an issue independently of the path that led to it
type issueKey struct {
	Type     IssueType
	Location CodeLocation
	Message  string
}

// NewCollector creates a collector. A nil level source treats every issue as an error.
func NewCollector(levels LevelSource) *Collector {
	return &Collector{levels: levels}
}

// Accepts records the issue unless it is suppressed, either by the given list or by configuration.
// It returns true when the caller has to stop processing the code that raised the issue.
// An issue already recorded for the same location is not recorded again.
func (c *Collector) Accepts(issue Issue, suppressed []string) bool {
	if slices.Contains(suppressed, string(issue.Type)) {
		return false
	}

	level := config.LevelError
	if c.levels != nil {
		level = c.levels.LevelFor(string(issue.Type))
	}

	if level == config.LevelSuppress {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := issueKey{Type: issue.Type, Location: issue.Location, Message: issue.Message}
	if c.seen[key] {
		return level == config.LevelError
	}
	if c.seen == nil {
		c.seen = make(map[issueKey]bool)
	}
	c.seen[key] = true

	switch level {
	case config.LevelInfo:
		issue.Severity = SeverityInfo
		c.issues = append(c.issues, issue)
		return false
	default:
		issue.Severity = SeverityError
		c.issues = append(c.issues, issue)
		c.errors++
		return true
	}
}

// Issues returns the recorded issues ordered by file and position
func (c *Collector) Issues() []Issue {
	c.mu.Lock()
	issues := slices.Clone(c.issues)
	c.mu.Unlock()

	slices.SortStableFunc(issues, func(a, b Issue) int {
		return cmp.Or(
			cmp.Compare(a.Location.File, b.Location.File),
			cmp.Compare(a.Location.Line, b.Location.Line),
			cmp.Compare(a.Location.Column, b.Location.Column),
		)
	})
	return issues
}

// IssuesOfType returns the recorded issues of one type
func (c *Collector) IssuesOfType(t IssueType) []Issue {
	var issues []Issue
	for _, issue := range c.Issues() {
		if issue.Type == t {
			issues = append(issues, issue)
		}
	}
	return issues
}

func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Forget drops the issues raised by analyzing a file, used before the file is analyzed again
func (c *Collector) Forget(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.issues = slices.DeleteFunc(c.issues, func(issue Issue) bool {
		origin := issue.Origin
		if origin == "" {
			origin = issue.Location.File
		}
		if origin != file {
			return false
		}
		delete(c.seen, issueKey{Type: issue.Type, Location: issue.Location, Message: issue.Message})
		if issue.Severity == SeverityError {
			c.errors--
		}
		return true
	})
}
