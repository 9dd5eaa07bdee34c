// Package agent implements the question-answering loop: a tool-calling
// planner backed by an OpenAI-compatible chat API, the ambiguous-date
// pre-filter, and the bounded orchestration loop that feeds tool
// observations back to the planner until it produces a final answer.
package agent

import (
	"context"

	"github.com/vmaraujo/b3analyst/internal/tools"
)

// Message is one chat message in the OpenAI tool-calling wire format.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is the planner's request to invoke one tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises one tool to the planner.
type ToolSpec struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the JSON-schema description of a tool.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Planner decides the next step for a conversation: either a final
// assistant message or a batch of tool calls.
type Planner interface {
	Plan(ctx context.Context, messages []Message, toolSpecs []ToolSpec) (*Message, error)
}

// SpecsFromRegistry converts the tool catalogue into the wire format
// the planner consumes.
func SpecsFromRegistry(registry *tools.Registry) []ToolSpec {
	descriptors := registry.List()
	specs := make([]ToolSpec, len(descriptors))
	for i, d := range descriptors {
		specs[i] = ToolSpec{
			Type: "function",
			Function: FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return specs
}
