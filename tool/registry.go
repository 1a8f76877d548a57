package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/MrWwei/rag-agent/errors"
)

// Result is the outcome of a tool execution. Execute never fails past the
// registry boundary: unknown tools, bad arguments, handler errors, and
// handler panics all become textual observations with OK=false so a
// reasoning loop can feed them back to the model and keep going.
type Result struct {
	Observation string
	OK          bool
}

// Registry manages a collection of tools keyed by unique name.
// Registration happens at startup; steady-state execution only reads, but
// the RWMutex keeps concurrent registration safe as well.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Duplicate names are rejected with
// ErrAlreadyExists; overwriting is never silent.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty: %w", apperrors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s: %w", tool.Name, apperrors.ErrAlreadyExists)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", name, apperrors.ErrNotFound)
	}
	return tool, nil
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Schemas returns all tools in function-calling schema format, sorted by
// name so the enumeration sent to the backend is stable.
func (r *Registry) Schemas() []map[string]any {
	tools := r.List()
	schemas := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		schemas = append(schemas, tool.ToJSONSchema())
	}
	return schemas
}

// Execute runs a tool by name. See Result for the failure contract.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{
				Observation: fmt.Sprintf("执行工具 '%s' 时发生错误: %v", name, rec),
				OK:          false,
			}
		}
	}()

	tool, err := r.Get(name)
	if err != nil {
		return Result{Observation: fmt.Sprintf("工具 '%s' 不存在", name), OK: false}
	}

	observation, err := tool.Execute(ctx, args)
	if err != nil {
		return Result{
			Observation: fmt.Sprintf("执行工具 '%s' 时发生错误: %v", name, err),
			OK:          false,
		}
	}
	return Result{Observation: observation, OK: true}
}
