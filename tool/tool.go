package tool

import (
	"context"
	"fmt"
)

// Parameter defines a tool parameter
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, number, integer, boolean, object, array
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Items       string   `json:"items,omitempty"` // element type for array parameters
}

// Tool represents a callable tool/function the model can request.
type Tool struct {
	Name        string                                             `json:"name"`
	Description string                                             `json:"description"`
	Parameters  []Parameter                                        `json:"parameters"`
	Handler     func(context.Context, map[string]any) (string, error) `json:"-"`
}

// Execute runs the tool with given arguments.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.Handler == nil {
		return "", fmt.Errorf("tool %s has no handler", t.Name)
	}
	if err := t.ValidateArgs(args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return t.Handler(ctx, args)
}

// ValidateArgs checks required parameters are present.
func (t *Tool) ValidateArgs(args map[string]any) error {
	for _, param := range t.Parameters {
		if param.Required {
			if _, ok := args[param.Name]; !ok {
				return fmt.Errorf("missing required parameter: %s", param.Name)
			}
		}
	}
	return nil
}

// ToJSONSchema returns the tool definition in the function-calling format
// chat-completion backends consume.
func (t *Tool) ToJSONSchema() map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, param := range t.Parameters {
		prop := map[string]any{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Type == "array" {
			itemType := param.Items
			if itemType == "" {
				itemType = "string"
			}
			prop["items"] = map[string]any{"type": itemType}
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}
