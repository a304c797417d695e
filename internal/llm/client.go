package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/config"
	"github.com/s33g/typedchat/internal/schema"
)

const completionsPath = "/chat/completions"

// UsageRecorder stores the token usage of completed requests.
type UsageRecorder interface {
	Record(ctx context.Context, model string, u chat.Usage) error
}

// TokenCounter estimates the prompt size of a conversation.
type TokenCounter interface {
	CountMessages(messages []chat.Message, model string) (int, error)
}

// Params describe one completion call. Nil pointers fall back to the client
// defaults or are left off the wire.
type Params struct {
	Messages            []chat.Message
	System              string
	Model               string
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
	ToolChoice          *chat.ToolChoice
	ResponseFormat      *chat.ResponseFormat
}

// Client sends completion requests and reconciles the replies with the tools
// and output schema of the request. It keeps no per-call state and is safe
// for concurrent use.
type Client struct {
	transport Transport
	defaults  config.DefaultsConfig
	logger    zerolog.Logger
	usage     UsageRecorder
	tokens    TokenCounter
}

type Option func(*Client)

func WithDefaults(d config.DefaultsConfig) Option {
	return func(c *Client) { c.defaults = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "llm").Logger() }
}

func WithUsageRecorder(r UsageRecorder) Option {
	return func(c *Client) { c.usage = r }
}

func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Client) { c.tokens = tc }
}

func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		defaults:  config.DefaultConfig().Defaults,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one request. The result is a *chat.Response, or a
// *chat.ErrorResponse when the server answered with an error envelope. Tool
// calls naming a requested tool are resolved; with a json_schema response
// format, messages whose content matches the schema become
// *chat.SchemedAssistantMessage. Replies that fit neither are returned as
// they came.
func (c *Client) Complete(ctx context.Context, p Params) (chat.Result, error) {
	tools, err := NewToolMap(p.Tools)
	if err != nil {
		return nil, err
	}

	req := c.buildRequest(p)
	body, err := chat.Encode(req)
	if err != nil {
		return nil, err
	}

	log := c.logger.With().Str("model", req.Model).Logger()
	ev := log.Debug().Int("messages", len(req.Messages)).Int("bytes", len(body))
	if c.tokens != nil && ev.Enabled() {
		if n, err := c.tokens.CountMessages(req.Messages, req.Model); err == nil {
			ev = ev.Int("prompt_tokens_est", n)
		}
	}
	ev.Msg("Sending completion request")

	raw, err := c.transport.Send(ctx, completionsPath, body)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Path: completionsPath, Err: err}
		}
		return nil, err
	}

	if envelope, ok := chat.DecodeErrorEnvelope(raw); ok {
		ev := log.Warn().Str("error_type", envelope.Type)
		if envelope.Code != nil {
			ev = ev.Str("error_code", envelope.Code.String())
		}
		ev.Msg(envelope.Message)
		return envelope, nil
	}

	resp, err := chat.DecodeResponse(raw)
	if err != nil {
		return nil, err
	}

	c.reconcile(log, resp, tools, p.ResponseFormat)
	c.recordUsage(ctx, log, resp, req.Model)

	log.Debug().Str("id", resp.ID).Int("choices", len(resp.Choices)).Msg("Completion received")
	return resp, nil
}

func (c *Client) buildRequest(p Params) chat.Request {
	system := p.System
	if system == "" {
		system = c.defaults.SystemPrompt
	}

	messages := make([]chat.Message, 0, len(p.Messages)+1)
	if system != "" {
		messages = append(messages, chat.NewSystemMessage(system))
	}
	messages = append(messages, p.Messages...)

	model := p.Model
	if model == "" {
		model = c.defaults.Model
	}

	temperature := p.Temperature
	if temperature == nil {
		t := c.defaults.Temperature
		temperature = &t
	}

	maxTokens := p.MaxTokens
	if maxTokens == nil && p.MaxCompletionTokens == nil && c.defaults.MaxTokens > 0 {
		n := c.defaults.MaxTokens
		maxTokens = &n
	}

	return chat.Request{
		Model:               model,
		Messages:            messages,
		Temperature:         temperature,
		TopP:                p.TopP,
		FrequencyPenalty:    p.FrequencyPenalty,
		PresencePenalty:     p.PresencePenalty,
		Seed:                p.Seed,
		MaxTokens:           maxTokens,
		MaxCompletionTokens: p.MaxCompletionTokens,
		N:                   p.N,
		Stop:                p.Stop,
		User:                p.User,
		Tools:               p.Tools,
		ToolChoice:          p.ToolChoice,
		ResponseFormat:      p.ResponseFormat,
	}
}

// reconcile re-types assistant choices in place: tool calls first, then the
// schemed content.
func (c *Client) reconcile(log zerolog.Logger, resp *chat.Response, tools ToolMap, format *chat.ResponseFormat) {
	for i := range resp.Choices {
		msg, ok := resp.Choices[i].Message.(*chat.AssistantMessage)
		if !ok {
			continue
		}

		if unknown := countUnknown(msg.ToolCalls); unknown > 0 {
			resolved := *msg
			resolved.ToolCalls = ResolveToolCalls(msg.ToolCalls, tools)
			msg = &resolved
			resp.Choices[i].Message = msg

			if left := countUnknown(msg.ToolCalls); left > 0 {
				log.Warn().
					Int("choice", i).
					Int("unresolved", left).
					Int("resolved", unknown-left).
					Msg("Keeping unresolved tool calls as unknown")
			}
		}

		if !format.Schemed() {
			continue
		}
		if msg.Content == nil {
			log.Warn().Int("choice", i).Msg("Schemed reply has no content")
			continue
		}
		payload, err := format.Schema.Decode([]byte(*msg.Content))
		if err != nil {
			log.Warn().Err(err).Int("choice", i).Str("schema", format.Schema.Name()).Msg("Reply does not match schema")
			continue
		}
		resp.Choices[i].Message = &chat.SchemedAssistantMessage{
			AssistantMessage: *msg,
			Schema:           format.Schema,
			Payload:          payload,
		}
	}
}

func (c *Client) recordUsage(ctx context.Context, log zerolog.Logger, resp *chat.Response, model string) {
	if c.usage == nil || resp.Usage == nil {
		return
	}
	if resp.Model != "" {
		model = resp.Model
	}
	if err := c.usage.Record(ctx, model, *resp.Usage); err != nil {
		log.Warn().Err(err).Msg("Failed to record usage")
	}
}
