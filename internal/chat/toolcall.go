package chat

import (
	"encoding/json"
	"fmt"

	"github.com/s33g/typedchat/internal/schema"
)

// ToolCallFunction is the only tool-call type with typed arguments.
const ToolCallFunction = "function"

// ToolCall is a model-requested invocation of a tool.
type ToolCall interface {
	CallID() string
	ToolName() string
	isToolCall()
}

// UnknownToolCall is a tool call whose arguments have not been interpreted:
// either no registered tool matched or its arguments did not fit. Arguments
// hold the raw JSON text the model produced.
type UnknownToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments string
}

func (c UnknownToolCall) CallID() string   { return c.ID }
func (c UnknownToolCall) ToolName() string { return c.Name }
func (UnknownToolCall) isToolCall()        {}

func (c UnknownToolCall) MarshalJSON() ([]byte, error) {
	typ := c.Type
	if typ == "" {
		typ = ToolCallFunction
	}
	payload, err := json.Marshal(functionWire{Name: c.Name, Arguments: c.Arguments})
	if err != nil {
		return nil, err
	}
	id, _ := json.Marshal(c.ID)
	t, _ := json.Marshal(typ)
	return json.Marshal(map[string]json.RawMessage{
		"id":   id,
		"type": t,
		typ:    payload,
	})
}

// KnownToolCall is a tool call matched to a registered tool, with arguments
// decoded into that tool's Go type.
type KnownToolCall struct {
	ID        string
	Tool      schema.Type
	Arguments any
}

func (c KnownToolCall) CallID() string { return c.ID }

func (c KnownToolCall) ToolName() string {
	if c.Tool == nil {
		return ""
	}
	return c.Tool.Name()
}

func (KnownToolCall) isToolCall() {}

func (c KnownToolCall) MarshalJSON() ([]byte, error) {
	args, err := json.Marshal(c.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments of %s: %w", c.ToolName(), err)
	}
	return json.Marshal(toolCallWire{
		ID:       c.ID,
		Type:     ToolCallFunction,
		Function: functionWire{Name: c.ToolName(), Arguments: string(args)},
	})
}

// ArgumentsAs returns the typed arguments of a known call.
func ArgumentsAs[T any](call ToolCall) (T, bool) {
	known, ok := call.(KnownToolCall)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := known.Arguments.(T)
	return v, ok
}

type functionWire struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolCallWire struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionWire `json:"function"`
}
