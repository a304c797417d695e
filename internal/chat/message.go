package chat

import (
	"encoding/json"
	"errors"

	"github.com/s33g/typedchat/internal/schema"
)

// Role discriminates messages on the wire.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation.
type Message interface {
	Role() Role
	isMessage()
}

// SystemMessage carries instructions for the model.
type SystemMessage struct {
	Content Content
	Name    string
}

func NewSystemMessage(text string) *SystemMessage {
	return &SystemMessage{Content: Text(text)}
}

func (*SystemMessage) Role() Role { return RoleSystem }
func (*SystemMessage) isMessage() {}

func (m SystemMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentMessageWire{Role: RoleSystem, Content: m.Content, Name: m.Name})
}

// UserMessage is end-user input, plain or rich.
type UserMessage struct {
	Content Content
	Name    string
}

func NewUserMessage(text string) *UserMessage {
	return &UserMessage{Content: Text(text)}
}

// NewUserParts builds a user message with rich content.
func NewUserParts(parts ...ContentPart) *UserMessage {
	return &UserMessage{Content: Parts(parts...)}
}

func (*UserMessage) Role() Role { return RoleUser }
func (*UserMessage) isMessage() {}

func (m UserMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentMessageWire{Role: RoleUser, Content: m.Content, Name: m.Name})
}

// ToolMessage returns the result of a tool call to the model.
type ToolMessage struct {
	Content    Content
	ToolCallID string
}

func NewToolMessage(callID, text string) *ToolMessage {
	return &ToolMessage{Content: Text(text), ToolCallID: callID}
}

func (*ToolMessage) Role() Role { return RoleTool }
func (*ToolMessage) isMessage() {}

func (m ToolMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role       Role    `json:"role"`
		Content    Content `json:"content"`
		ToolCallID string  `json:"tool_call_id"`
	}{RoleTool, m.Content, m.ToolCallID})
}

type contentMessageWire struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
	Name    string  `json:"name,omitempty"`
}

// ErrEmptyAssistant is returned by NewAssistantMessage when there is nothing
// to say.
var ErrEmptyAssistant = errors.New("assistant message needs content, a refusal or tool calls")

// AssistantMessage is a model reply. A nil ToolCalls means the field was
// absent; a non-nil empty slice means it was present but empty.
type AssistantMessage struct {
	Content   *string
	Name      string
	Refusal   *string
	ToolCalls []ToolCall
}

// NewAssistantMessage builds an assistant message for a request history.
// Replies decoded from the wire bypass this check, since servers do send
// messages with nothing in them.
func NewAssistantMessage(content, refusal *string, calls []ToolCall) (*AssistantMessage, error) {
	if content == nil && refusal == nil && len(calls) == 0 {
		return nil, ErrEmptyAssistant
	}
	return &AssistantMessage{Content: content, Refusal: refusal, ToolCalls: calls}, nil
}

func (*AssistantMessage) Role() Role { return RoleAssistant }
func (*AssistantMessage) isMessage() {}

// Text returns the content or an empty string.
func (m *AssistantMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

type assistantWire struct {
	Role      Role        `json:"role"`
	Content   *string     `json:"content,omitempty"`
	Name      string      `json:"name,omitempty"`
	Refusal   *string     `json:"refusal,omitempty"`
	ToolCalls *[]ToolCall `json:"tool_calls,omitempty"`
}

func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	w := assistantWire{
		Role:    RoleAssistant,
		Content: m.Content,
		Name:    m.Name,
		Refusal: m.Refusal,
	}
	if m.ToolCalls != nil {
		w.ToolCalls = &m.ToolCalls
	}
	return json.Marshal(w)
}

// SchemedAssistantMessage is an assistant reply whose content decoded against
// the requested output schema. The raw content stays on the embedded message.
type SchemedAssistantMessage struct {
	AssistantMessage
	Schema  schema.Type
	Payload any
}

// PayloadAs returns the structured payload of a schemed message.
func PayloadAs[T any](m Message) (T, bool) {
	schemed, ok := m.(*SchemedAssistantMessage)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := schemed.Payload.(T)
	return v, ok
}

// AsAssistant returns the assistant view of m, unwrapping schemed messages.
func AsAssistant(m Message) (*AssistantMessage, bool) {
	switch v := m.(type) {
	case *AssistantMessage:
		return v, true
	case *SchemedAssistantMessage:
		return &v.AssistantMessage, true
	}
	return nil, false
}
