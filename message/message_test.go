package message

import "testing"

func TestNewToolResponseMessage(t *testing.T) {
	msg := NewToolResponseMessage("call_1", "observation text")

	if msg.Role != RoleTool {
		t.Errorf("expected role %q, got %q", RoleTool, msg.Role)
	}
	if msg.ToolID != "call_1" {
		t.Errorf("expected tool id 'call_1', got %q", msg.ToolID)
	}
	if msg.Text() != "observation text" {
		t.Errorf("unexpected content: %q", msg.Text())
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewMessage(RoleAssistant, "answer")
	orig.ToolCalls = []ToolCall{
		{ID: "call_1", Name: "drug_information", Args: map[string]any{"drug_name": "阿司匹林"}},
	}

	cloned := Clone(orig)
	cloned.ToolCalls[0].Args["drug_name"] = "布洛芬"

	if orig.ToolCalls[0].Args["drug_name"] != "阿司匹林" {
		t.Error("mutating the clone leaked into the original")
	}
}

func TestPendingToolCalls(t *testing.T) {
	msg := NewMessage(RoleAssistant, "done")
	if msg.PendingToolCalls() {
		t.Error("message without tool calls reported pending calls")
	}
	msg.ToolCalls = []ToolCall{{ID: "call_1", Name: "health_advice"}}
	if !msg.PendingToolCalls() {
		t.Error("message with tool calls reported none pending")
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMessage(RoleUser, "q").ID
		if seen[id] {
			t.Fatalf("duplicate message id %q", id)
		}
		seen[id] = true
	}
}
