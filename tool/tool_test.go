package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/MrWwei/rag-agent/errors"
)

func TestToolExecution(t *testing.T) {
	ctx := context.Background()

	tool := &Tool{
		Name:        "test_tool",
		Description: "A test tool",
		Parameters: []Parameter{
			{Name: "input", Type: "string", Description: "Test input", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return args["input"].(string) + "_processed", nil
		},
	}

	result, err := tool.Execute(ctx, map[string]any{"input": "test"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "test_processed" {
		t.Errorf("Expected 'test_processed', got '%s'", result)
	}
}

func TestToolValidation(t *testing.T) {
	ctx := context.Background()

	tool := &Tool{
		Name: "test_tool",
		Parameters: []Parameter{
			{Name: "required_param", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	}

	if _, err := tool.Execute(ctx, map[string]any{}); err == nil {
		t.Error("Expected error for missing required parameter, got nil")
	}
	if _, err := tool.Execute(ctx, map[string]any{"required_param": "value"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	registry := NewRegistry()

	tool1 := &Tool{Name: "tool1", Description: "First tool"}
	if err := registry.Register(tool1); err != nil {
		t.Fatalf("Failed to register tool1: %v", err)
	}

	err := registry.Register(&Tool{Name: "tool1"})
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for duplicate, got %v", err)
	}
}

func TestExecuteUnknownToolReturnsObservation(t *testing.T) {
	registry := NewRegistry()

	res := registry.Execute(context.Background(), "no_such_tool", nil)
	if res.OK {
		t.Error("unknown tool reported OK")
	}
	if !strings.Contains(res.Observation, "no_such_tool") {
		t.Errorf("observation should name the missing tool, got %q", res.Observation)
	}
}

func TestExecuteHandlerErrorBecomesObservation(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register(&Tool{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("backend exploded")
		},
	})

	res := registry.Execute(context.Background(), "boom", nil)
	if res.OK {
		t.Error("failing handler reported OK")
	}
	if !strings.Contains(res.Observation, "backend exploded") {
		t.Errorf("observation should carry the original message, got %q", res.Observation)
	}
}

func TestExecuteHandlerPanicBecomesObservation(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register(&Tool{
		Name: "panic_tool",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("handler bug")
		},
	})

	res := registry.Execute(context.Background(), "panic_tool", nil)
	if res.OK {
		t.Error("panicking handler reported OK")
	}
	if !strings.Contains(res.Observation, "handler bug") {
		t.Errorf("observation should carry the panic message, got %q", res.Observation)
	}
}

func TestSchemasStableOrder(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_ = registry.Register(&Tool{Name: name})
	}

	schemas := registry.Schemas()
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, schema := range schemas {
		fn := schema["function"].(map[string]any)
		if fn["name"] != want[i] {
			t.Errorf("schema %d: expected %q, got %v", i, want[i], fn["name"])
		}
	}
}

func TestArraySchemaHasItems(t *testing.T) {
	tool := &Tool{
		Name: "with_array",
		Parameters: []Parameter{
			{Name: "symptoms", Type: "array", Items: "string", Required: true},
		},
	}
	schema := tool.ToJSONSchema()
	fn := schema["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)
	arr := props["symptoms"].(map[string]any)
	items, ok := arr["items"].(map[string]any)
	if !ok || items["type"] != "string" {
		t.Errorf("array parameter missing items schema: %#v", arr)
	}
}
