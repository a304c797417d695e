package llm

import (
	"context"
	"fmt"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/schema"
)

// Prompt is a single-turn request for the Simple helpers.
type Prompt struct {
	System string
	// Text becomes the user message unless User is set.
	Text    string
	User    *chat.UserMessage
	History []chat.Message

	Model            string
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	MaxTokens        *int
	Seed             *int
}

func (p Prompt) params() Params {
	user := p.User
	if user == nil {
		user = chat.NewUserMessage(p.Text)
	}
	messages := make([]chat.Message, 0, len(p.History)+1)
	messages = append(messages, p.History...)
	messages = append(messages, user)

	return Params{
		Messages:         messages,
		System:           p.System,
		Model:            p.Model,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		MaxTokens:        p.MaxTokens,
		Seed:             p.Seed,
	}
}

// Simple turns completion results into plain values, raising every
// non-happy outcome as an error.
type Simple struct {
	client *Client
}

func NewSimple(c *Client) *Simple {
	return &Simple{client: c}
}

// Text returns the content of the first choice.
func (s *Simple) Text(ctx context.Context, p Prompt) (string, error) {
	resp, msg, err := s.first(ctx, p.params())
	if err != nil {
		return "", err
	}
	content, err := contentOf(resp, msg)
	if err != nil {
		return "", err
	}
	return content, nil
}

// Generate requests structured output matching result and returns it
// decoded.
func Generate[T any](ctx context.Context, s *Simple, result *schema.Binding[T], p Prompt) (T, error) {
	var zero T

	params := p.params()
	params.ResponseFormat = chat.JSONSchemaFormat(result)

	resp, msg, err := s.first(ctx, params)
	if err != nil {
		return zero, err
	}
	content, err := contentOf(resp, msg)
	if err != nil {
		return zero, err
	}

	v, ok := chat.PayloadAs[T](msg)
	if !ok {
		return zero, &InvalidResponseError{Err: ErrWrongSchema, Response: resp, RawContent: content}
	}
	return v, nil
}

// CallTool forces a call to tool and returns its decoded arguments.
func CallTool[T any](ctx context.Context, s *Simple, tool *schema.Binding[T], p Prompt) (T, error) {
	var zero T

	params := p.params()
	params.Tools = []schema.Type{tool}
	params.ToolChoice = chat.UseTool(tool)

	resp, msg, err := s.first(ctx, params)
	if err != nil {
		return zero, err
	}
	a, _ := chat.AsAssistant(msg)
	if a.Refusal != nil {
		return zero, &RefusalError{Refusal: *a.Refusal, Response: resp}
	}
	if len(a.ToolCalls) == 0 {
		return zero, &InvalidResponseError{Err: ErrToolNotCalled, Response: resp, RawContent: a.Text()}
	}

	args, ok := chat.ArgumentsAs[T](a.ToolCalls[0])
	if !ok {
		raw := ""
		if u, isUnknown := a.ToolCalls[0].(chat.UnknownToolCall); isUnknown {
			raw = u.Arguments
		}
		return zero, &InvalidResponseError{Err: ErrToolNotCalled, Response: resp, RawContent: raw}
	}
	return args, nil
}

// first completes params and returns the first choice, which is always an
// assistant message.
func (s *Simple) first(ctx context.Context, params Params) (*chat.Response, chat.Message, error) {
	result, err := s.client.Complete(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	switch r := result.(type) {
	case *chat.ErrorResponse:
		return nil, nil, &APIError{Response: r}
	case *chat.Response:
		if len(r.Choices) == 0 {
			return r, nil, &InvalidResponseError{Err: ErrNoChoices, Response: r}
		}
		msg := r.Choices[0].Message
		if _, ok := chat.AsAssistant(msg); !ok {
			return r, nil, &InvalidResponseError{Err: fmt.Errorf("%w: first choice is a %s message", ErrNoContent, msg.Role()), Response: r}
		}
		return r, msg, nil
	}
	return nil, nil, fmt.Errorf("unexpected completion result %T", result)
}

// contentOf checks the refusal before the content.
func contentOf(resp *chat.Response, msg chat.Message) (string, error) {
	a, _ := chat.AsAssistant(msg)
	if a.Refusal != nil {
		return "", &RefusalError{Refusal: *a.Refusal, Response: resp}
	}
	if a.Content == nil {
		return "", &InvalidResponseError{Err: ErrNoContent, Response: resp}
	}
	return *a.Content, nil
}
