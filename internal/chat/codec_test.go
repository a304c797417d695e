package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/s33g/typedchat/internal/schema"
)

type sampleArgs struct {
	Parameter string `json:"parameter"`
}

var sampleTool = schema.MustBind[sampleArgs](schema.Descriptor{
	Name:        "test_tool",
	Description: "A test tool",
	Strict:      true,
	Object:      schema.Object{Fields: []schema.Field{{Name: "parameter", Kind: schema.KindString}}},
})

func ptr[T any](v T) *T { return &v }

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	data, err := Encode(m)
	require.NoError(t, err)
	out, err := DecodeMessage(data)
	require.NoError(t, err, "decoding %s", data)
	return out
}

func TestMessageRoundTrip(t *testing.T) {
	messages := []Message{
		NewSystemMessage("You are terse."),
		&SystemMessage{Content: Text("rules"), Name: "ops"},
		NewUserMessage("hello"),
		NewUserParts(
			TextPart{Text: "What is in this picture?"},
			ImagePart{URL: "https://example.com/cat.png", Detail: ImageDetailHigh},
			ImagePart{URL: "data:image/png;base64,AAAA"},
		),
		NewUserParts(),
		NewToolMessage("call_abc123", `{"ok":true}`),
		&AssistantMessage{Content: ptr("Hi there")},
		&AssistantMessage{Refusal: ptr("I can't help with that.")},
		&AssistantMessage{ToolCalls: []ToolCall{}},
		&AssistantMessage{Name: "bot", ToolCalls: []ToolCall{
			UnknownToolCall{ID: "call_abc123", Type: "function", Name: "lookup", Arguments: `{"q":"x"}`},
			UnknownToolCall{ID: "call_def456", Type: "custom", Name: "grep", Arguments: "raw input"},
		}},
		&AssistantMessage{},
	}

	for _, m := range messages {
		assert.Equal(t, m, roundTrip(t, m))
	}
}

func TestDecodeMessage_Dispatch(t *testing.T) {
	tests := []struct {
		raw  string
		want Message
	}{
		{`{"role":"system","content":"s"}`, &SystemMessage{Content: Text("s")}},
		{`{"role":"user","content":"u"}`, &UserMessage{Content: Text("u")}},
		{`{"role":"assistant","content":"a"}`, &AssistantMessage{Content: ptr("a")}},
		{`{"role":"tool","content":"t","tool_call_id":"call_1"}`, &ToolMessage{Content: Text("t"), ToolCallID: "call_1"}},
	}
	for _, tt := range tests {
		m, err := DecodeMessage([]byte(tt.raw))
		require.NoError(t, err)
		assert.Equal(t, tt.want, m)
	}
}

func TestDecodeMessage_UnknownRole(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"role":"developer","content":"x"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "message", de.Target)
}

func TestDecodeContentPart_UnknownType(t *testing.T) {
	_, err := DecodeContentPart([]byte(`{"type":"input_audio","input_audio":{"data":"x"}}`))
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeMessage([]byte(`{"role":"user","content":[{"type":"video"}]}`))
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeContentPart_InvalidImage(t *testing.T) {
	_, err := DecodeContentPart([]byte(`{"type":"image_url","image_url":{"url":"https://x","detail":"ultra"}}`))
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeContentPart([]byte(`{"type":"image_url"}`))
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeToolCall(t *testing.T) {
	t.Run("function", func(t *testing.T) {
		call, err := DecodeToolCall([]byte(`{"id":"call_abc123","type":"function","function":{"name":"test_tool","arguments":"{\"parameter\":\"v\"}"}}`))
		require.NoError(t, err)
		assert.Equal(t, UnknownToolCall{ID: "call_abc123", Type: "function", Name: "test_tool", Arguments: `{"parameter":"v"}`}, call)
	})

	t.Run("object arguments kept as text", func(t *testing.T) {
		call, err := DecodeToolCall([]byte(`{"id":"c","type":"function","function":{"name":"n","arguments":{"a":1}}}`))
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, call.(UnknownToolCall).Arguments)
	})

	t.Run("unknown type falls back", func(t *testing.T) {
		call, err := DecodeToolCall([]byte(`{"id":"c","type":"custom","custom":{"name":"grep","input":"pattern"}}`))
		require.NoError(t, err)
		assert.Equal(t, UnknownToolCall{ID: "c", Type: "custom", Name: "grep", Arguments: "pattern"}, call)
	})

	t.Run("unknown type without payload", func(t *testing.T) {
		call, err := DecodeToolCall([]byte(`{"id":"c","type":"web_search"}`))
		require.NoError(t, err)
		assert.Equal(t, UnknownToolCall{ID: "c", Type: "web_search"}, call)
	})

	t.Run("function without payload", func(t *testing.T) {
		_, err := DecodeToolCall([]byte(`{"id":"c","type":"function"}`))
		assert.True(t, errors.Is(err, ErrDecode))
	})
}

func TestAssistantToolCalls_AbsentVersusEmpty(t *testing.T) {
	absent, err := DecodeMessage([]byte(`{"role":"assistant","content":"x"}`))
	require.NoError(t, err)
	assert.Nil(t, absent.(*AssistantMessage).ToolCalls)

	null, err := DecodeMessage([]byte(`{"role":"assistant","content":"x","tool_calls":null}`))
	require.NoError(t, err)
	assert.Nil(t, null.(*AssistantMessage).ToolCalls)

	empty, err := DecodeMessage([]byte(`{"role":"assistant","content":"x","tool_calls":[]}`))
	require.NoError(t, err)
	calls := empty.(*AssistantMessage).ToolCalls
	assert.NotNil(t, calls)
	assert.Empty(t, calls)

	data, err := Encode(absent)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(data, "tool_calls").Exists())

	data, err = Encode(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", gjson.GetBytes(data, "tool_calls").Raw)
}

func TestEncode_OmitsUnsetOptionals(t *testing.T) {
	data, err := Encode(Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{NewUserMessage("hi"), &AssistantMessage{Content: ptr("yo")}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "gpt-4o-mini",
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "yo"}
		]
	}`, string(data))

	data, err = Encode(ImagePart{URL: "https://example.com/a.png"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}`, string(data))
}

func TestEncode_RequestWithTools(t *testing.T) {
	data, err := Encode(Request{
		Model:       "gpt-4o-mini",
		Messages:    []Message{NewUserMessage("call it")},
		Temperature: ptr(0.0),
		MaxTokens:   ptr(1024),
		Stop:        []string{"END"},
		Tools:       []schema.Type{sampleTool},
		ToolChoice:  UseTool(sampleTool),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "gpt-4o-mini",
		"messages": [{"role": "user", "content": "call it"}],
		"temperature": 0,
		"max_tokens": 1024,
		"stop": ["END"],
		"tools": [{
			"type": "function",
			"function": {
				"name": "test_tool",
				"description": "A test tool",
				"parameters": {
					"type": "object",
					"properties": {"parameter": {"type": "string"}},
					"required": ["parameter"],
					"additionalProperties": false
				},
				"strict": true
			}
		}],
		"tool_choice": {"type": "function", "function": {"name": "test_tool"}}
	}`, string(data))
}

func TestEncode_ToolChoiceModes(t *testing.T) {
	for _, mode := range []ToolChoiceMode{ToolChoiceNone, ToolChoiceAuto, ToolChoiceRequired} {
		data, err := Encode(ChooseMode(mode))
		require.NoError(t, err)
		assert.Equal(t, `"`+string(mode)+`"`, string(data))
	}
}

func TestResponseFormat(t *testing.T) {
	result := schema.MustBind[struct {
		Result string `json:"result"`
	}](schema.Descriptor{
		Name:        "test_schema",
		Description: "A test schema",
		Strict:      true,
		Object:      schema.Object{Fields: []schema.Field{{Name: "result", Kind: schema.KindString}}},
	})

	f, err := NewResponseFormat(ResponseFormatJSONSchema, result)
	require.NoError(t, err)
	assert.True(t, f.Schemed())

	data, err := Encode(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "json_schema",
		"json_schema": {
			"name": "test_schema",
			"description": "A test schema",
			"strict": true,
			"schema": {
				"type": "object",
				"properties": {"result": {"type": "string"}},
				"required": ["result"],
				"additionalProperties": false
			}
		}
	}`, string(data))

	text, err := NewResponseFormat(ResponseFormatText, nil)
	require.NoError(t, err)
	assert.False(t, text.Schemed())
	data, err = Encode(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text"}`, string(data))

	_, err = NewResponseFormat(ResponseFormatJSONSchema, nil)
	assert.ErrorIs(t, err, ErrResponseFormat)
	_, err = NewResponseFormat(ResponseFormatJSONObject, result)
	assert.ErrorIs(t, err, ErrResponseFormat)
	_, err = NewResponseFormat("yaml", nil)
	assert.ErrorIs(t, err, ErrResponseFormat)
}

func TestResponseFormat_PropertiesInDeclaredOrder(t *testing.T) {
	verdict := schema.MustBind[struct {
		Reason string `json:"reason"`
		IsSpam bool   `json:"is_spam"`
	}](schema.Descriptor{
		Name:        "spam_analysis",
		Description: "Whether a message is spam",
		Strict:      true,
		Object: schema.Object{Fields: []schema.Field{
			{Name: "reason", Kind: schema.KindString, Title: "Reason", Description: "Why"},
			{Name: "is_spam", Kind: schema.KindBoolean},
		}},
	})

	data, err := Encode(Request{
		Model:          "gpt-4o-mini",
		Messages:       []Message{NewUserMessage("hi")},
		Tools:          []schema.Type{verdict},
		ResponseFormat: JSONSchemaFormat(verdict),
	})
	require.NoError(t, err)

	keys := func(path string) []string {
		var names []string
		gjson.GetBytes(data, path).ForEach(func(k, _ gjson.Result) bool {
			names = append(names, k.String())
			return true
		})
		return names
	}
	assert.Equal(t, []string{"reason", "is_spam"}, keys("response_format.json_schema.schema.properties"))
	assert.Equal(t, []string{"reason", "is_spam"}, keys("tools.0.function.parameters.properties"))
	assert.Equal(t, "Reason", gjson.GetBytes(data, "response_format.json_schema.schema.properties.reason.title").String())
	assert.Equal(t, "Why", gjson.GetBytes(data, "response_format.json_schema.schema.properties.reason.description").String())
}

func TestResponseFormat_JSONSchemaWithoutSchemaFailsToEncode(t *testing.T) {
	_, err := Encode(ResponseFormat{Type: ResponseFormatJSONSchema})
	assert.ErrorIs(t, err, ErrResponseFormat)

	_, err = Encode(Request{
		Model:          "gpt-4o-mini",
		Messages:       []Message{NewUserMessage("hi")},
		ResponseFormat: &ResponseFormat{Type: ResponseFormatJSONSchema},
	})
	assert.ErrorIs(t, err, ErrResponseFormat)
}

func TestKnownToolCall_EncodesArgumentsAsString(t *testing.T) {
	data, err := Encode(KnownToolCall{ID: "call_abc123", Tool: sampleTool, Arguments: sampleArgs{Parameter: "v"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "call_abc123",
		"type": "function",
		"function": {"name": "test_tool", "arguments": "{\"parameter\":\"v\"}"}
	}`, string(data))

	call, err := DecodeToolCall(data)
	require.NoError(t, err)
	assert.Equal(t, UnknownToolCall{ID: "call_abc123", Type: "function", Name: "test_tool", Arguments: `{"parameter":"v"}`}, call)

	args, ok := ArgumentsAs[sampleArgs](KnownToolCall{Tool: sampleTool, Arguments: sampleArgs{Parameter: "v"}})
	assert.True(t, ok)
	assert.Equal(t, "v", args.Parameter)
	_, ok = ArgumentsAs[sampleArgs](call)
	assert.False(t, ok)
}

const sampleResponse = `{
	"id": "chatcmpl-123",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "Hello"}, "finish_reason": "stop", "logprobs": null},
		{"index": 1, "message": {"role": "assistant", "content": null, "tool_calls": [
			{"id": "call_abc123", "type": "function", "function": {"name": "test_tool", "arguments": "{\"parameter\":\"v\"}"}}
		]}, "finish_reason": "tool_calls", "logprobs": {"content":[]}}
	],
	"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	"service_tier": "default",
	"system_fingerprint": "fp_abc"
}`

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse([]byte(sampleResponse))
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-123", resp.ID)
	assert.Equal(t, int64(1700000000), resp.Created)
	assert.Equal(t, "default", resp.ServiceTier)
	assert.Equal(t, "fp_abc", resp.SystemFingerprint)
	assert.Equal(t, &Usage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17}, resp.Usage)
	require.Len(t, resp.Choices, 2)

	assert.Nil(t, resp.Choices[0].Logprobs)
	assert.Equal(t, "Hello", resp.Choices[0].Message.(*AssistantMessage).Text())

	second := resp.Choices[1]
	assert.Equal(t, "tool_calls", second.FinishReason)
	assert.JSONEq(t, `{"content":[]}`, string(second.Logprobs))
	msg := second.Message.(*AssistantMessage)
	assert.Nil(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.IsType(t, UnknownToolCall{}, msg.ToolCalls[0])

	data, err := Encode(resp)
	require.NoError(t, err)
	again, err := DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, resp, again)
}

func TestDecodeResponse_Failures(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       `<html>bad gateway</html>`,
		"unknown role":   `{"choices":[{"index":0,"message":{"role":"narrator","content":"x"}}]}`,
		"bad tool calls": `{"choices":[{"index":0,"message":{"role":"assistant","tool_calls":{}}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeResponse([]byte(raw))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecodeErrorEnvelope(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		env, ok := DecodeErrorEnvelope([]byte(`{"error":{"message":"Rate limit exceeded.","type":"requests","param":null,"code":"rate_limit_exceeded"}}`))
		require.True(t, ok)
		assert.Equal(t, "Rate limit exceeded.", env.Message)
		assert.Equal(t, "requests", env.Type)
		assert.Nil(t, env.Param)
		require.NotNil(t, env.Code)
		assert.Equal(t, "rate_limit_exceeded", env.Code.String())
	})

	t.Run("string with top-level code", func(t *testing.T) {
		env, ok := DecodeErrorEnvelope([]byte(`{"code":"Client specified an invalid argument","error":"Incorrect API key provided"}`))
		require.True(t, ok)
		assert.Equal(t, "Incorrect API key provided", env.Message)
		assert.Equal(t, "Client specified an invalid argument", env.Code.String())
	})

	t.Run("numeric code and param", func(t *testing.T) {
		env, ok := DecodeErrorEnvelope([]byte(`{"error":{"message":"bad","type":"invalid_request_error","param":"messages","code":400}}`))
		require.True(t, ok)
		require.NotNil(t, env.Param)
		assert.Equal(t, "messages", *env.Param)
		n, numeric := env.Code.Int()
		assert.True(t, numeric)
		assert.Equal(t, int64(400), n)
	})

	t.Run("absent or null", func(t *testing.T) {
		_, ok := DecodeErrorEnvelope([]byte(sampleResponse))
		assert.False(t, ok)
		_, ok = DecodeErrorEnvelope([]byte(`{"error":null,"choices":[]}`))
		assert.False(t, ok)
	})

	t.Run("encodes back", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{"error": ErrorResponse{Message: "m", Type: "t", Code: IntCode(429)}})
		require.NoError(t, err)
		env, ok := DecodeErrorEnvelope(data)
		require.True(t, ok)
		assert.Equal(t, &ErrorResponse{Message: "m", Type: "t", Code: IntCode(429)}, env)
	})
}

func TestMessages_Unmarshal(t *testing.T) {
	var ms Messages
	require.NoError(t, json.Unmarshal([]byte(`[
		{"role":"system","content":"s"},
		{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"https://x/y.png","detail":"low"}}]}
	]`), &ms))
	require.Len(t, ms, 2)

	user := ms[1].(*UserMessage)
	assert.True(t, user.Content.IsRich())
	assert.Equal(t, []ContentPart{TextPart{Text: "look"}, ImagePart{URL: "https://x/y.png", Detail: ImageDetailLow}}, user.Content.Parts)
	assert.Equal(t, "look", user.Content.String())

	err := json.Unmarshal([]byte(`[{"role":"wizard"}]`), &ms)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNewAssistantMessage(t *testing.T) {
	_, err := NewAssistantMessage(nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyAssistant)

	m, err := NewAssistantMessage(ptr("ok"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", m.Text())

	decoded, err := DecodeMessage([]byte(`{"role":"assistant","content":null}`))
	require.NoError(t, err, "wire replies with nothing in them still decode")
	assert.Equal(t, &AssistantMessage{}, decoded)
}

func TestSchemedAssistantMessage(t *testing.T) {
	payload := sampleArgs{Parameter: "v"}
	m := &SchemedAssistantMessage{
		AssistantMessage: AssistantMessage{Content: ptr(`{"parameter":"v"}`)},
		Schema:           sampleTool,
		Payload:          payload,
	}

	assert.Equal(t, RoleAssistant, m.Role())
	got, ok := PayloadAs[sampleArgs](m)
	assert.True(t, ok)
	assert.Equal(t, payload, got)

	a, ok := AsAssistant(m)
	require.True(t, ok)
	assert.Equal(t, `{"parameter":"v"}`, a.Text())

	data, err := Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":"{\"parameter\":\"v\"}"}`, string(data))
}
