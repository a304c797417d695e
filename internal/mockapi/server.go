// Package mockapi serves a fake OpenAI-compatible chat-completions endpoint
// driven by canned scenarios, for local development and end-to-end tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/config"
)

// TokenCounter sizes prompts and replies for the usage block.
type TokenCounter interface {
	Count(text, model string) (int, error)
	CountMessages(messages []chat.Message, model string) (int, error)
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages chat.Messages `json:"messages"`
}

// Server is the fake endpoint. Scenarios can be swapped while it runs.
type Server struct {
	engine  *gin.Engine
	counter TokenCounter
	logger  zerolog.Logger
	now     func() time.Time

	mu  sync.RWMutex
	cfg config.MockConfig
}

// New builds a server. counter may be nil, in which case usage is omitted.
func New(cfg config.MockConfig, counter TokenCounter, logger zerolog.Logger) *Server {
	s := &Server{
		counter: counter,
		logger:  logger.With().Str("component", "mockapi").Logger(),
		now:     time.Now,
		cfg:     cfg,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())
	engine.POST("/v1/chat/completions", s.handleCompletion)
	engine.POST("/chat/completions", s.handleCompletion)
	s.engine = engine

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Reload replaces the scenarios and default model.
func (s *Server) Reload(cfg config.MockConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Info().Int("scenarios", len(cfg.Scenarios)).Msg("Scenarios reloaded")
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("Mock API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleCompletion(c *gin.Context) {
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": chat.ErrorResponse{
			Message: err.Error(),
			Type:    "invalid_request_error",
		}})
		return
	}

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	model := req.Model
	if model == "" {
		model = cfg.Model
	}

	prompt := lastUserText(req.Messages)
	scenario, matched := match(cfg.Scenarios, prompt)
	if matched {
		s.logger.Debug().Str("scenario", scenario.Name).Msg("Scenario matched")
	}

	if matched && scenario.Error != nil {
		status := scenario.Error.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		env := chat.ErrorResponse{Message: scenario.Error.Message, Type: scenario.Error.Type}
		if scenario.Error.Code != "" {
			env.Code = chat.StringCode(scenario.Error.Code)
		}
		c.JSON(status, gin.H{"error": env})
		return
	}

	msg, finish := reply(scenario, matched, prompt)
	resp := chat.Response{
		ID:                "chatcmpl-" + uuid.NewString(),
		Object:            "chat.completion",
		Created:           s.now().Unix(),
		Model:             model,
		Choices:           []chat.Choice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage:             s.usage(req.Messages, msg, model),
		SystemFingerprint: "fp_mockapi",
	}
	c.JSON(http.StatusOK, resp)
}

func reply(scenario config.Scenario, matched bool, prompt string) (*chat.AssistantMessage, string) {
	switch {
	case !matched:
		content := fmt.Sprintf("You said: %s", prompt)
		return &chat.AssistantMessage{Content: &content}, "stop"
	case scenario.Refusal != "":
		refusal := scenario.Refusal
		return &chat.AssistantMessage{Refusal: &refusal}, "stop"
	case scenario.ToolCall != nil:
		return &chat.AssistantMessage{ToolCalls: []chat.ToolCall{chat.UnknownToolCall{
			ID:        callID(),
			Type:      chat.ToolCallFunction,
			Name:      scenario.ToolCall.Name,
			Arguments: scenario.ToolCall.Arguments,
		}}}, "tool_calls"
	}
	content := scenario.Content
	return &chat.AssistantMessage{Content: &content}, "stop"
}

func (s *Server) usage(prompt []chat.Message, msg *chat.AssistantMessage, model string) *chat.Usage {
	if s.counter == nil {
		return nil
	}
	promptTokens, err := s.counter.CountMessages(prompt, model)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count prompt tokens")
		return nil
	}

	text := msg.Text()
	if msg.Refusal != nil {
		text = *msg.Refusal
	}
	for _, call := range msg.ToolCalls {
		if u, ok := call.(chat.UnknownToolCall); ok {
			text += u.Name + u.Arguments
		}
	}
	completionTokens, err := s.counter.Count(text, model)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count completion tokens")
		return nil
	}

	return &chat.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Handled request")
	}
}

// match returns the first scenario whose match string occurs in prompt,
// ignoring case.
func match(scenarios []config.Scenario, prompt string) (config.Scenario, bool) {
	lower := strings.ToLower(prompt)
	for _, sc := range scenarios {
		if strings.Contains(lower, strings.ToLower(sc.Match)) {
			return sc, true
		}
	}
	return config.Scenario{}, false
}

func lastUserText(messages []chat.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if u, ok := messages[i].(*chat.UserMessage); ok {
			return u.Content.String()
		}
	}
	return ""
}

func callID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
