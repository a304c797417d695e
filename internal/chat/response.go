package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Result is what a completion call yields: a *Response or an *ErrorResponse.
type Result interface {
	isResult()
}

// Response is a decoded chat-completion response.
type Response struct {
	ID                string
	Object            string
	Created           int64
	Model             string
	Choices           []Choice
	Usage             *Usage
	ServiceTier       string
	SystemFingerprint string
}

func (*Response) isResult() {}

// Choice is one candidate reply.
type Choice struct {
	Index        int
	Message      Message
	FinishReason string
	Logprobs     json.RawMessage
}

// Usage is the token accounting of a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type responseWire struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"`
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	Choices           []choiceWire `json:"choices"`
	Usage             *Usage       `json:"usage,omitempty"`
	ServiceTier       string       `json:"service_tier,omitempty"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
}

type choiceWire struct {
	Index        int             `json:"index"`
	Message      json.RawMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	w := responseWire{
		ID:                r.ID,
		Object:            r.Object,
		Created:           r.Created,
		Model:             r.Model,
		Choices:           make([]choiceWire, 0, len(r.Choices)),
		Usage:             r.Usage,
		ServiceTier:       r.ServiceTier,
		SystemFingerprint: r.SystemFingerprint,
	}
	for i, c := range r.Choices {
		msg, err := json.Marshal(c.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to encode choices[%d].message: %w", i, err)
		}
		w.Choices = append(w.Choices, choiceWire{
			Index:        c.Index,
			Message:      msg,
			FinishReason: c.FinishReason,
			Logprobs:     c.Logprobs,
		})
	}
	return json.Marshal(w)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return &DecodeError{Target: "response", Data: data, Err: err}
	}

	out := Response{
		ID:                w.ID,
		Object:            w.Object,
		Created:           w.Created,
		Model:             w.Model,
		Choices:           make([]Choice, 0, len(w.Choices)),
		Usage:             w.Usage,
		ServiceTier:       w.ServiceTier,
		SystemFingerprint: w.SystemFingerprint,
	}
	for i, c := range w.Choices {
		msg, err := DecodeMessage(c.Message)
		if err != nil {
			return &DecodeError{Target: fmt.Sprintf("choices[%d].message", i), Data: c.Message, Err: err}
		}
		out.Choices = append(out.Choices, Choice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: c.FinishReason,
			Logprobs:     normalizeRaw(c.Logprobs),
		})
	}

	*r = out
	return nil
}

func normalizeRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// ErrorResponse is the error envelope some servers send instead of a
// completion.
type ErrorResponse struct {
	Message string
	Type    string
	Param   *string
	Code    *ErrorCode
}

func (*ErrorResponse) isResult() {}

func (e ErrorResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message string     `json:"message"`
		Type    string     `json:"type,omitempty"`
		Param   *string    `json:"param,omitempty"`
		Code    *ErrorCode `json:"code,omitempty"`
	}{e.Message, e.Type, e.Param, e.Code})
}

// ErrorCode is an error code sent either as a string or as a number.
type ErrorCode struct {
	text    string
	number  int64
	numeric bool
}

func StringCode(s string) *ErrorCode { return &ErrorCode{text: s} }

func IntCode(n int64) *ErrorCode { return &ErrorCode{number: n, numeric: true} }

// Int returns the numeric code, if the code was numeric.
func (c ErrorCode) Int() (int64, bool) { return c.number, c.numeric }

func (c ErrorCode) String() string {
	if c.numeric {
		return strconv.FormatInt(c.number, 10)
	}
	return c.text
}

func (c ErrorCode) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return json.Marshal(c.number)
	}
	return json.Marshal(c.text)
}
