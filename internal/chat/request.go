package chat

import (
	"encoding/json"
	"errors"
	"fmt"


	"github.com/s33g/typedchat/internal/schema"
)

// Request is a chat-completion request. Nil pointers and empty slices are
// left off the wire.
type Request struct {
	Model               string
	Messages            []Message
	Temperature         *float64
	TopP                *float64
	FrequencyPenalty    *float64
	PresencePenalty     *float64
	Seed                *int
	MaxTokens           *int
	MaxCompletionTokens *int
	N                   *int
	Stop                []string
	User                string
	Tools               []schema.Type
	ToolChoice          *ToolChoice
	ResponseFormat      *ResponseFormat
}

type requestWire struct {
	Model               string          `json:"model"`
	Messages            []Message       `json:"messages"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	FrequencyPenalty    *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64        `json:"presence_penalty,omitempty"`
	Seed                *int            `json:"seed,omitempty"`
	MaxTokens           *int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	N                   *int            `json:"n,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
	User                string          `json:"user,omitempty"`
	Tools               []toolWire      `json:"tools,omitempty"`
	ToolChoice          *ToolChoice     `json:"tool_choice,omitempty"`
	ResponseFormat      *ResponseFormat `json:"response_format,omitempty"`
}

type toolWire struct {
	Type     string             `json:"type"`
	Function toolDefinitionWire `json:"function"`
}

type toolDefinitionWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	Strict      bool            `json:"strict,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	messages := r.Messages
	if messages == nil {
		messages = []Message{}
	}

	w := requestWire{
		Model:               r.Model,
		Messages:            messages,
		Temperature:         r.Temperature,
		TopP:                r.TopP,
		FrequencyPenalty:    r.FrequencyPenalty,
		PresencePenalty:     r.PresencePenalty,
		Seed:                r.Seed,
		MaxTokens:           r.MaxTokens,
		MaxCompletionTokens: r.MaxCompletionTokens,
		N:                   r.N,
		Stop:                r.Stop,
		User:                r.User,
		ToolChoice:          r.ToolChoice,
		ResponseFormat:      r.ResponseFormat,
	}
	for i, t := range r.Tools {
		if t == nil {
			return nil, fmt.Errorf("tools[%d] is nil", i)
		}
		s := t.Schema()
		params, err := s.MarshalDefinition()
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		w.Tools = append(w.Tools, toolWire{
			Type: ToolCallFunction,
			Function: toolDefinitionWire{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
				Strict:      s.Strict,
			},
		})
	}
	return json.Marshal(w)
}

// ToolChoiceMode is a tool_choice given as a plain string.
type ToolChoiceMode string

const (
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
)

// ToolChoice is either a mode or, when Tool is set, one specific tool.
type ToolChoice struct {
	Mode ToolChoiceMode
	Tool schema.Type
}

// UseTool forces the model to call t.
func UseTool(t schema.Type) *ToolChoice {
	return &ToolChoice{Tool: t}
}

// ChooseMode returns a mode-only tool choice.
func ChooseMode(mode ToolChoiceMode) *ToolChoice {
	return &ToolChoice{Mode: mode}
}

func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.Tool != nil {
		return json.Marshal(struct {
			Type     string `json:"type"`
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		}{
			Type: ToolCallFunction,
			Function: struct {
				Name string `json:"name"`
			}{Name: c.Tool.Name()},
		})
	}
	mode := c.Mode
	if mode == "" {
		mode = ToolChoiceAuto
	}
	return json.Marshal(mode)
}

// ResponseFormatType selects the output mode.
type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

var ErrResponseFormat = errors.New("invalid response format")

// ResponseFormat asks for plain text, any JSON object, or JSON matching
// Schema.
type ResponseFormat struct {
	Type   ResponseFormatType
	Schema schema.Type
}

// NewResponseFormat checks that a schema accompanies json_schema and nothing
// else.
func NewResponseFormat(t ResponseFormatType, s schema.Type) (*ResponseFormat, error) {
	switch t {
	case ResponseFormatJSONSchema:
		if s == nil {
			return nil, fmt.Errorf("%w: %s requires a schema", ErrResponseFormat, t)
		}
	case ResponseFormatText, ResponseFormatJSONObject:
		if s != nil {
			return nil, fmt.Errorf("%w: %s does not take a schema", ErrResponseFormat, t)
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrResponseFormat, t)
	}
	return &ResponseFormat{Type: t, Schema: s}, nil
}

// JSONSchemaFormat requests structured output matching s.
func JSONSchemaFormat(s schema.Type) *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatJSONSchema, Schema: s}
}

// Schemed reports whether replies should be decoded against a schema.
func (f *ResponseFormat) Schemed() bool {
	return f != nil && f.Type == ResponseFormatJSONSchema && f.Schema != nil
}

type jsonSchemaWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Strict      bool            `json:"strict"`
	Schema      json.RawMessage `json:"schema"`
}

func (f ResponseFormat) MarshalJSON() ([]byte, error) {
	if f.Type != ResponseFormatJSONSchema {
		return json.Marshal(struct {
			Type ResponseFormatType `json:"type"`
		}{f.Type})
	}
	if f.Schema == nil {
		return nil, fmt.Errorf("%w: %s requires a schema", ErrResponseFormat, f.Type)
	}
	s := f.Schema.Schema()
	def, err := s.MarshalDefinition()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type       ResponseFormatType `json:"type"`
		JSONSchema jsonSchemaWire     `json:"json_schema"`
	}{
		Type: f.Type,
		JSONSchema: jsonSchemaWire{
			Name:        s.Name,
			Description: s.Description,
			Strict:      s.Strict,
			Schema:      def,
		},
	})
}
