package analysis

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/shopware/php-callcheck/internal/php"
)

// FileManipulation replaces the bytes [Start, End) of a file with Insertion
type FileManipulation struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Insertion string `json:"insertion"`
}

// FileManipulationBuffer collects proposed edits per file. Applying them is left to the caller.
type FileManipulationBuffer struct {
	mu    sync.Mutex
	edits map[string][]FileManipulation
}

func NewFileManipulationBuffer() *FileManipulationBuffer {
	return &FileManipulationBuffer{edits: make(map[string][]FileManipulation)}
}

// Add stores edits for a file, ignoring exact duplicates
func (b *FileManipulationBuffer) Add(file string, edits []FileManipulation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, edit := range edits {
		if !slices.Contains(b.edits[file], edit) {
			b.edits[file] = append(b.edits[file], edit)
		}
	}
}

// Get returns the edits of a file ordered by position
func (b *FileManipulationBuffer) Get(file string) []FileManipulation {
	b.mu.Lock()
	edits := slices.Clone(b.edits[file])
	b.mu.Unlock()

	slices.SortFunc(edits, func(x, y FileManipulation) int {
		return cmp.Or(cmp.Compare(x.Start, y.Start), cmp.Compare(x.End, y.End))
	})
	return edits
}

// Files returns the files with pending edits, sorted
func (b *FileManipulationBuffer) Files() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	files := make([]string, 0, len(b.edits))
	for file := range b.edits {
		files = append(files, file)
	}
	slices.Sort(files)
	return files
}

// Forget drops the edits of a file
func (b *FileManipulationBuffer) Forget(file string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.edits, file)
}

// AfterMethodCallEvent describes a successfully resolved method call
type AfterMethodCallEvent struct {
	MethodID          string
	AppearingMethodID string
	DeclaringMethodID string
	Args              []Arg
	Location          CodeLocation
	Context           *Context

	// FileManipulations collects the edits hooks propose
	FileManipulations []FileManipulation
	// ReturnType is the inferred type of the call. Hooks may replace it.
	ReturnType *php.Union
}

// AfterMethodCallHook runs after a method call was checked
type AfterMethodCallHook interface {
	AfterMethodCallCheck(event *AfterMethodCallEvent)
}

// HookFunc adapts a function to AfterMethodCallHook
type HookFunc func(event *AfterMethodCallEvent)

func (f HookFunc) AfterMethodCallCheck(event *AfterMethodCallEvent) {
	f(event)
}

// HookRegistry maps hook names used in configuration to hooks
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]AfterMethodCallHook
}

// NewHookRegistry creates a registry holding the built-in hooks
func NewHookRegistry() *HookRegistry {
	r := &HookRegistry{hooks: make(map[string]AfterMethodCallHook)}
	_ = r.Register(CallStaticUsageHook, HookFunc(annotateCallStaticUsage))
	return r
}

func (r *HookRegistry) Register(name string, hook AfterMethodCallHook) error {
	if hook == nil {
		return fmt.Errorf("hook is required")
	}
	if name == "" {
		return fmt.Errorf("hook name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hooks[name]; exists {
		return fmt.Errorf("hook already registered: %s", name)
	}
	r.hooks[name] = hook
	return nil
}

// Hooks returns the named hooks in the given order
func (r *HookRegistry) Hooks(names []string) ([]AfterMethodCallHook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := make([]AfterMethodCallHook, 0, len(names))
	for _, name := range names {
		hook, ok := r.hooks[name]
		if !ok {
			return nil, fmt.Errorf("unknown hook %q", name)
		}
		hooks = append(hooks, hook)
	}
	return hooks, nil
}

// CallStaticUsageHook marks calls that only resolve through __callStatic
const CallStaticUsageHook = "callstatic-usage"

const callStaticMarker = "/* __callStatic */ "

func annotateCallStaticUsage(event *AfterMethodCallEvent) {
	_, method := php.SplitMethodID(event.MethodID)
	if method != "__callstatic" {
		return
	}

	event.FileManipulations = append(event.FileManipulations, FileManipulation{
		Start:     event.Location.StartByte,
		End:       event.Location.StartByte,
		Insertion: callStaticMarker,
	})
}

// RunHooks passes a resolved call through the hooks and buffers the edits they propose.
// It returns the possibly replaced return type.
func RunHooks(hooks []AfterMethodCallHook, edits *FileManipulationBuffer, event *AfterMethodCallEvent) *php.Union {
	for _, hook := range hooks {
		hook.AfterMethodCallCheck(event)
	}

	if len(event.FileManipulations) > 0 && edits != nil {
		file := event.Location.File
		if file == "" && event.Context != nil {
			file = event.Context.FilePath
		}
		edits.Add(file, event.FileManipulations)
	}

	return event.ReturnType
}
