package llm

import (
	"fmt"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/schema"
)

// ToolMap indexes the tools of one request by name.
type ToolMap map[string]schema.Type

// NewToolMap indexes tools, rejecting nil entries and repeated names.
func NewToolMap(tools []schema.Type) (ToolMap, error) {
	m := make(ToolMap, len(tools))
	for i, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("%w: tools[%d] is nil", schema.ErrConfiguration, i)
		}
		if _, dup := m[t.Name()]; dup {
			return nil, fmt.Errorf("%w: tool %q is registered twice", schema.ErrConfiguration, t.Name())
		}
		m[t.Name()] = t
	}
	return m, nil
}

// ResolveToolCalls returns calls with every unknown function call that names
// a tool in tools, and whose arguments decode against it, replaced by a
// KnownToolCall. Other calls are kept as they are, in the same order. A nil
// slice stays nil.
func ResolveToolCalls(calls []chat.ToolCall, tools ToolMap) []chat.ToolCall {
	if calls == nil {
		return nil
	}
	resolved := make([]chat.ToolCall, len(calls))
	for i, call := range calls {
		resolved[i] = resolveToolCall(call, tools)
	}
	return resolved
}

func resolveToolCall(call chat.ToolCall, tools ToolMap) chat.ToolCall {
	unknown, ok := call.(chat.UnknownToolCall)
	if !ok || unknown.Type != chat.ToolCallFunction {
		return call
	}
	tool, ok := tools[unknown.Name]
	if !ok {
		return call
	}
	args, err := tool.Decode([]byte(unknown.Arguments))
	if err != nil {
		return call
	}
	return chat.KnownToolCall{ID: unknown.ID, Tool: tool, Arguments: args}
}

// countUnknown returns how many calls are still unknown.
func countUnknown(calls []chat.ToolCall) int {
	n := 0
	for _, c := range calls {
		if _, ok := c.(chat.UnknownToolCall); ok {
			n++
		}
	}
	return n
}
