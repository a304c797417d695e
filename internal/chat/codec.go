package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrDecode matches every DecodeError.
var ErrDecode = errors.New("failed to decode")

// DecodeError reports wire data that does not fit the data model. Data holds
// the offending fragment.
type DecodeError struct {
	Target string
	Data   []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Encode serializes a request, message, or any other wire value.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

// DecodeResponse decodes a completion response body.
func DecodeResponse(raw []byte) (*Response, error) {
	var resp Response
	if err := resp.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return &resp, nil
}

var messageDecoders = map[Role]func(json.RawMessage) (Message, error){
	RoleSystem: func(raw json.RawMessage) (Message, error) {
		var w contentMessageWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &SystemMessage{Content: w.Content, Name: w.Name}, nil
	},
	RoleUser: func(raw json.RawMessage) (Message, error) {
		var w contentMessageWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &UserMessage{Content: w.Content, Name: w.Name}, nil
	},
	RoleAssistant: func(raw json.RawMessage) (Message, error) {
		m, err := decodeAssistant(raw)
		if err != nil {
			return nil, err
		}
		return m, nil
	},
	RoleTool: func(raw json.RawMessage) (Message, error) {
		var w struct {
			Content    Content `json:"content"`
			ToolCallID string  `json:"tool_call_id"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &ToolMessage{Content: w.Content, ToolCallID: w.ToolCallID}, nil
	},
}

// DecodeMessage picks the message variant from the role field.
func DecodeMessage(raw []byte) (Message, error) {
	var head struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &DecodeError{Target: "message", Data: raw, Err: err}
	}
	decode, ok := messageDecoders[head.Role]
	if !ok {
		return nil, &DecodeError{Target: "message", Data: raw, Err: fmt.Errorf("unknown role %q", head.Role)}
	}
	m, err := decode(raw)
	if err != nil {
		return nil, &DecodeError{Target: string(head.Role) + " message", Data: raw, Err: err}
	}
	return m, nil
}

// decodeAssistant builds an assistant message straight from the wire,
// accepting replies NewAssistantMessage would reject.
func decodeAssistant(raw []byte) (*AssistantMessage, error) {
	var w struct {
		Content   *string            `json:"content"`
		Name      string             `json:"name"`
		Refusal   *string            `json:"refusal"`
		ToolCalls *[]json.RawMessage `json:"tool_calls"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}

	m := &AssistantMessage{Content: w.Content, Name: w.Name, Refusal: w.Refusal}
	if w.ToolCalls != nil {
		m.ToolCalls = make([]ToolCall, 0, len(*w.ToolCalls))
		for i, rc := range *w.ToolCalls {
			call, err := DecodeToolCall(rc)
			if err != nil {
				return nil, fmt.Errorf("tool_calls[%d]: %w", i, err)
			}
			m.ToolCalls = append(m.ToolCalls, call)
		}
	}
	return m, nil
}

var contentPartDecoders = map[ContentPartType]func(json.RawMessage) (ContentPart, error){
	ContentPartText: func(raw json.RawMessage) (ContentPart, error) {
		var w struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Text == nil {
			return nil, errors.New("text part has no text")
		}
		return TextPart{Text: *w.Text}, nil
	},
	ContentPartImage: func(raw json.RawMessage) (ContentPart, error) {
		var w struct {
			ImageURL *imageURLWire `json:"image_url"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.ImageURL == nil || w.ImageURL.URL == "" {
			return nil, errors.New("image part has no url")
		}
		if !w.ImageURL.Detail.valid() {
			return nil, fmt.Errorf("unknown image detail %q", w.ImageURL.Detail)
		}
		return ImagePart{URL: w.ImageURL.URL, Detail: w.ImageURL.Detail}, nil
	},
}

// DecodeContentPart picks the part variant from the type field.
func DecodeContentPart(raw []byte) (ContentPart, error) {
	var head struct {
		Type ContentPartType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &DecodeError{Target: "content part", Data: raw, Err: err}
	}
	decode, ok := contentPartDecoders[head.Type]
	if !ok {
		return nil, &DecodeError{Target: "content part", Data: raw, Err: fmt.Errorf("unknown type %q", head.Type)}
	}
	part, err := decode(raw)
	if err != nil {
		return nil, &DecodeError{Target: string(head.Type) + " part", Data: raw, Err: err}
	}
	return part, nil
}

// DecodeToolCall decodes a tool call as an UnknownToolCall. Types other than
// function are kept with their payload read from the key named after the
// type.
func DecodeToolCall(raw []byte) (ToolCall, error) {
	var w map[string]json.RawMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &DecodeError{Target: "tool call", Data: raw, Err: err}
	}

	call := UnknownToolCall{Type: ToolCallFunction}
	if v, ok := w["id"]; ok {
		if err := json.Unmarshal(v, &call.ID); err != nil {
			return nil, &DecodeError{Target: "tool call id", Data: raw, Err: err}
		}
	}
	if v, ok := w["type"]; ok {
		if err := json.Unmarshal(v, &call.Type); err != nil {
			return nil, &DecodeError{Target: "tool call type", Data: raw, Err: err}
		}
	}

	payload, ok := w[call.Type]
	if !ok {
		payload, ok = w[ToolCallFunction]
	}
	if !ok {
		if call.Type == ToolCallFunction {
			return nil, &DecodeError{Target: "tool call", Data: raw, Err: errors.New("function call has no function")}
		}
		return call, nil
	}

	var fn struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
		Input     json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(payload, &fn); err != nil {
		return nil, &DecodeError{Target: "tool call " + call.Type, Data: raw, Err: err}
	}
	call.Name = fn.Name

	args := fn.Arguments
	if len(args) == 0 {
		args = fn.Input
	}
	call.Arguments = argumentText(args)
	return call, nil
}

// argumentText unwraps arguments sent as a JSON string and keeps anything
// else as its raw text.
func argumentText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Messages is a conversation that decodes each entry by role.
type Messages []Message

func (ms *Messages) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return &DecodeError{Target: "messages", Data: data, Err: err}
	}
	out := make(Messages, 0, len(raws))
	for i, raw := range raws {
		m, err := DecodeMessage(raw)
		if err != nil {
			return &DecodeError{Target: fmt.Sprintf("messages[%d]", i), Data: raw, Err: err}
		}
		out = append(out, m)
	}
	*ms = out
	return nil
}

// HasErrorEnvelope reports whether raw carries a top-level error key.
func HasErrorEnvelope(raw []byte) bool {
	env := gjson.GetBytes(raw, "error")
	return env.Exists() && env.Type != gjson.Null
}

// DecodeErrorEnvelope reads the error envelope of raw, if there is one. The
// error may be a plain string or an object; a code missing from the object is
// looked up at the top level.
func DecodeErrorEnvelope(raw []byte) (*ErrorResponse, bool) {
	if !HasErrorEnvelope(raw) {
		return nil, false
	}
	env := gjson.GetBytes(raw, "error")

	out := &ErrorResponse{}
	var code gjson.Result
	switch {
	case env.Type == gjson.String:
		out.Message = env.String()
	case env.IsObject():
		out.Message = env.Get("message").String()
		out.Type = env.Get("type").String()
		if param := env.Get("param"); param.Exists() && param.Type != gjson.Null {
			p := param.String()
			out.Param = &p
		}
		code = env.Get("code")
	default:
		out.Message = env.Raw
	}

	if !code.Exists() || code.Type == gjson.Null {
		code = gjson.GetBytes(raw, "code")
	}
	out.Code = errorCode(code)
	return out, true
}

func errorCode(r gjson.Result) *ErrorCode {
	switch r.Type {
	case gjson.String:
		return StringCode(r.String())
	case gjson.Number:
		return IntCode(r.Int())
	}
	return nil
}
