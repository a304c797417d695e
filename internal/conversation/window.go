package conversation

import (
	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/tokens"
)

// messageOverhead is the per-message formatting cost added by the API.
const messageOverhead = 4

// TokenCounter sizes message text.
type TokenCounter interface {
	Count(text, model string) (int, error)
}

// Window selects the part of a history that fits a model's context.
type Window struct {
	counter   TokenCounter
	maxTokens int
	reserve   int
}

// NewWindow creates a window of maxTokens, of which reserve is kept free for
// the reply.
func NewWindow(counter TokenCounter, maxTokens, reserve int) *Window {
	return &Window{counter: counter, maxTokens: maxTokens, reserve: reserve}
}

// Fit returns the newest messages that fit next to the system prompt, in
// their original order, and the tokens they use including the system prompt.
// The result never starts with a tool message, whose assistant call would
// have been cut off.
func (w *Window) Fit(history []chat.Message, systemPrompt, model string) ([]chat.Message, int, error) {
	available := w.maxTokens - w.reserve

	total := 0
	if systemPrompt != "" {
		n, err := w.counter.Count(systemPrompt, model)
		if err != nil {
			return nil, 0, err
		}
		total = n + messageOverhead
	}

	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n, err := w.counter.Count(tokens.MessageText(history[i]), model)
		if err != nil {
			return nil, 0, err
		}
		n += messageOverhead
		if total+n > available {
			break
		}
		total += n
		start = i
	}

	kept := history[start:]
	for len(kept) > 0 && kept[0].Role() == chat.RoleTool {
		n, err := w.counter.Count(tokens.MessageText(kept[0]), model)
		if err != nil {
			return nil, 0, err
		}
		total -= n + messageOverhead
		kept = kept[1:]
	}

	out := make([]chat.Message, len(kept))
	copy(out, kept)
	return out, total, nil
}

// WillFit reports whether adding n tokens to current still leaves room for
// the reply.
func (w *Window) WillFit(current, n int) bool {
	return current+n+w.reserve <= w.maxTokens
}
