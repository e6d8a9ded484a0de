package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/martinemde/toolrelay/unifiedllm"
)

// ToolExecutor runs a tool. Arguments have already been parsed; malformed
// JSON arrives as an empty map. The returned value must be JSON-serializable.
type ToolExecutor func(ctx context.Context, args map[string]any) (any, error)

// RegisteredTool pairs a tool definition with its executor.
type RegisteredTool struct {
	Definition unifiedllm.ToolDefinition
	Executor   ToolExecutor
}

// ToolOutcome is the result of one tool execution. Content is the JSON text
// placed in the tool-role message.
type ToolOutcome struct {
	Value   any
	Content string
	Failed  bool
}

// ToolObserver is notified after every execution.
type ToolObserver func(name string, elapsed time.Duration, failed bool)

// ToolRegistry manages tool registration, lookup and execution. Definitions
// are reported in registration order.
type ToolRegistry struct {
	tools     map[string]*RegisteredTool
	order     []string
	observers []ToolObserver
	mu        sync.RWMutex
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*RegisteredTool),
	}
}

// Register adds or replaces a tool in the registry.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &tool
}

// Observe adds an observer called after every execution.
func (r *ToolRegistry) Observe(fn ToolObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Get returns a registered tool by name, or nil if not found.
func (r *ToolRegistry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions (for sending to the LLM).
func (r *ToolRegistry) Definitions() []unifiedllm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]unifiedllm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Names returns the names of all registered tools.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Execute runs the named tool with raw JSON arguments. It never fails:
// unknown tools, executor errors, panics and unserializable results all
// become an {"error": ...} object.
func (r *ToolRegistry) Execute(ctx context.Context, name, rawArgs string) ToolOutcome {
	start := time.Now()
	outcome := r.execute(ctx, name, rawArgs)

	r.mu.RLock()
	observers := append([]ToolObserver(nil), r.observers...)
	r.mu.RUnlock()
	for _, obs := range observers {
		obs(name, time.Since(start), outcome.Failed)
	}
	return outcome
}

func (r *ToolRegistry) execute(ctx context.Context, name, rawArgs string) (outcome ToolOutcome) {
	tool := r.Get(name)
	if tool == nil {
		return errorOutcome(fmt.Sprintf("unknown tool: %s", name))
	}

	defer func() {
		if p := recover(); p != nil {
			outcome = errorOutcome(fmt.Sprintf("tool %s panicked: %v", name, p))
		}
	}()

	value, err := tool.Executor(ctx, unifiedllm.ParseArguments(rawArgs))
	if err != nil {
		return errorOutcome(err.Error())
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errorOutcome(fmt.Sprintf("tool %s returned an unserializable result: %v", name, err))
	}
	return ToolOutcome{Value: value, Content: string(data)}
}

func errorOutcome(msg string) ToolOutcome {
	value := map[string]any{"error": msg}
	data, _ := json.Marshal(value)
	return ToolOutcome{Value: value, Content: string(data), Failed: true}
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from parsed tool arguments.
// Numeric strings are accepted since some models quote numbers.
func GetIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
