package llm

import (
	"context"
	"sync"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/schema"
)

type sampleArgs struct {
	Parameter string `json:"parameter"`
}

type sampleResult struct {
	Result string `json:"result"`
}

var (
	sampleTool = schema.MustBind[sampleArgs](schema.Descriptor{
		Name:        "test_tool",
		Description: "A test tool",
		Strict:      true,
		Object:      schema.Object{Fields: []schema.Field{{Name: "parameter", Kind: schema.KindString}}},
	})
	sampleSchema = schema.MustBind[sampleResult](schema.Descriptor{
		Name:        "test_schema",
		Description: "A test schema",
		Strict:      true,
		Object:      schema.Object{Fields: []schema.Field{{Name: "result", Kind: schema.KindString}}},
	})
)

// fakeTransport replies with a fixed body and keeps what it was sent.
type fakeTransport struct {
	mu   sync.Mutex
	body []byte
	err  error

	paths  []string
	bodies [][]byte
}

func replying(body string) *fakeTransport {
	return &fakeTransport{body: []byte(body)}
}

func (f *fakeTransport) Send(_ context.Context, path string, body []byte) ([]byte, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return f.body, f.err
}

func (f *fakeTransport) lastBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

type recordedUsage struct {
	model string
	usage chat.Usage
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedUsage
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, model string, u chat.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedUsage{model, u})
	return r.err
}

type fixedCounter int

func (c fixedCounter) CountMessages([]chat.Message, string) (int, error) { return int(c), nil }

const (
	rateLimitBody = `{"error":{"message":"Rate limit exceeded.","type":"requests","code":"rate_limit_exceeded"}}`

	toolCallBody = `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_abc123", "type": "function", "function": {"name": "test_tool", "arguments": "{\"parameter\":\"value\"}"}}
			]},
			"finish_reason": "tool_calls"
		}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
	}`
)

func contentBody(content string) string {
	data, _ := chat.Encode(chat.Response{
		ID:      "chatcmpl-2",
		Object:  "chat.completion",
		Created: 1700000000,
		Model:   "gpt-4o-mini",
		Choices: []chat.Choice{{Index: 0, Message: &chat.AssistantMessage{Content: &content}, FinishReason: "stop"}},
		Usage:   &chat.Usage{PromptTokens: 9, CompletionTokens: 3, TotalTokens: 12},
	})
	return string(data)
}

func refusalBody(refusal string) string {
	data, _ := chat.Encode(chat.Response{
		ID:      "chatcmpl-3",
		Model:   "gpt-4o-mini",
		Choices: []chat.Choice{{Message: &chat.AssistantMessage{Content: ptr("partial"), Refusal: &refusal}}},
	})
	return string(data)
}

func ptr[T any](v T) *T { return &v }
