package openaicompat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nevindra/scout"
)

func TestBuildBodySimpleRoles(t *testing.T) {
	body := BuildBody(scout.ChatRequest{
		Model: "gpt-4o",
		Messages: []scout.ChatMessage{
			scout.SystemMessage("be brief"),
			scout.UserMessage("hi"),
			scout.AssistantMessage("hello"),
		},
	})

	if body.Model != "gpt-4o" || len(body.Messages) != 3 {
		t.Fatalf("body = %+v", body)
	}
	if body.Messages[0].Role != "system" || body.Messages[0].Content != "be brief" {
		t.Errorf("system message = %+v", body.Messages[0])
	}
	if len(body.Tools) != 0 {
		t.Errorf("tools should be omitted when none are given")
	}
}

func TestBuildBodyAssistantToolCalls(t *testing.T) {
	body := BuildBody(scout.ChatRequest{
		Messages: []scout.ChatMessage{
			{Role: "assistant", ToolCalls: []scout.ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: `{"path":"a"}`},
			}},
		},
	})

	msg := body.Messages[0]
	if msg.Content != nil {
		t.Errorf("tool-call-only assistant content = %v, want null", msg.Content)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Type != "function" {
		t.Fatalf("tool calls = %+v", msg.ToolCalls)
	}
	fn := msg.ToolCalls[0].Function
	if fn.Name != "read_file" || fn.Arguments != `{"path":"a"}` {
		t.Errorf("function = %+v", fn)
	}

	// Null content must survive serialization.
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"content":null`) {
		t.Errorf("serialized = %s, want explicit null content", raw)
	}
}

func TestBuildBodyAssistantTextWithToolCalls(t *testing.T) {
	body := BuildBody(scout.ChatRequest{
		Messages: []scout.ChatMessage{
			{Role: "assistant", Content: "let me check", ToolCalls: []scout.ToolCall{
				{ID: "call_1", Name: "lookup", Arguments: `{}`},
			}},
		},
	})
	if body.Messages[0].Content != "let me check" {
		t.Errorf("content = %v, want text preserved alongside tool calls", body.Messages[0].Content)
	}
}

func TestBuildBodyToolResult(t *testing.T) {
	body := BuildBody(scout.ChatRequest{
		Messages: []scout.ChatMessage{
			scout.ToolResultMessage("call_1", "42"),
		},
	})

	msg := body.Messages[0]
	if msg.Role != "tool" || msg.Content != "42" || msg.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", msg)
	}
}

func TestBuildToolDefs(t *testing.T) {
	defs := BuildToolDefs([]scout.ToolDefinition{
		{Name: "read_file", Description: "reads", Parameters: json.RawMessage(`{"type":"object"}`)},
		{Name: "bare"},
	})

	if len(defs) != 2 {
		t.Fatalf("defs = %+v", defs)
	}
	if defs[0].Type != "function" || defs[0].Function.Name != "read_file" {
		t.Errorf("first def = %+v", defs[0])
	}
	if string(defs[1].Function.Parameters) != "{}" {
		t.Errorf("empty parameters = %s, want {} placeholder", defs[1].Function.Parameters)
	}
}
