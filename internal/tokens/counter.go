// Package tokens estimates prompt and completion sizes.
package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/s33g/typedchat/internal/chat"
)

const (
	// perMessage covers the role and framing tokens of each message.
	perMessage = 4
	// replyPriming is added once for the assistant reply header.
	replyPriming = 3
)

// Counter counts tokens with tiktoken, falling back to a character estimate
// when an encoding cannot be loaded. Safe for concurrent use.
type Counter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

func NewCounter() *Counter {
	return &Counter{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the number of tokens in text for model.
func (c *Counter) Count(text, model string) (int, error) {
	encoder, ok := c.encoder(encodingName(model))
	if !ok {
		return estimate(text), nil
	}
	return len(encoder.Encode(text, nil, nil)), nil
}

// CountMessages returns the prompt size of a conversation.
func (c *Counter) CountMessages(messages []chat.Message, model string) (int, error) {
	total := replyPriming
	for _, m := range messages {
		n, err := c.Count(MessageText(m), model)
		if err != nil {
			return 0, err
		}
		total += n + perMessage
	}
	return total, nil
}

func (c *Counter) encoder(name string) (*tiktoken.Tiktoken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[name]; ok {
		return enc, enc != nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		// remember the failure so the estimate is used from now on
		c.encoders[name] = nil
		return nil, false
	}
	c.encoders[name] = enc
	return enc, true
}

func encodingName(model string) string {
	model = strings.ToLower(model)
	for _, prefix := range []string{"gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return "o200k_base"
		}
	}
	return "cl100k_base"
}

// estimate is roughly one token per four characters.
func estimate(text string) int {
	return (len(text) + 3) / 4
}

// MessageText is the text of a message that counts toward the prompt.
func MessageText(m chat.Message) string {
	switch v := m.(type) {
	case *chat.SystemMessage:
		return v.Content.String()
	case *chat.UserMessage:
		return v.Content.String()
	case *chat.ToolMessage:
		return v.Content.String()
	}

	a, ok := chat.AsAssistant(m)
	if !ok {
		return ""
	}
	parts := []string{a.Text()}
	if a.Refusal != nil {
		parts = append(parts, *a.Refusal)
	}
	for _, call := range a.ToolCalls {
		parts = append(parts, call.ToolName())
		if u, ok := call.(chat.UnknownToolCall); ok {
			parts = append(parts, u.Arguments)
		}
	}
	return strings.Join(parts, " ")
}
