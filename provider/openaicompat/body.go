package openaicompat

import (
	"encoding/json"

	"github.com/nevindra/scout"
)

// BuildBody converts a provider-agnostic chat request into the OpenAI wire
// shape. Tool-role messages carry their tool_call_id; assistant messages
// with tool calls send null content when the text is empty (some backends
// reject an empty string there).
func BuildBody(req scout.ChatRequest) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))

	for _, m := range req.Messages {
		switch {
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			tcs := make([]ToolCallRequest, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				tcs = append(tcs, ToolCallRequest{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			msg := Message{Role: "assistant", ToolCalls: tcs}
			if m.Content != "" {
				msg.Content = m.Content
			}
			msgs = append(msgs, msg)

		case m.Role == "tool":
			msgs = append(msgs, Message{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})

		default:
			msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
		}
	}

	body := ChatRequest{
		Model:    req.Model,
		Messages: msgs,
	}
	if len(req.Tools) > 0 {
		body.Tools = BuildToolDefs(req.Tools)
	}
	return body
}

// BuildToolDefs converts scout ToolDefinitions to the OpenAI tool format.
func BuildToolDefs(tools []scout.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
