package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Redis    RedisConfig    `yaml:"redis"`
	Usage    UsageConfig    `yaml:"usage"`
	Sessions SessionsConfig `yaml:"sessions"`
	Mock     MockConfig     `yaml:"mock"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds the chat-completions endpoint settings
type APIConfig struct {
	BaseURL        string            `yaml:"base_url"`
	APIKeyEnv      string            `yaml:"api_key_env"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Headers        map[string]string `yaml:"headers,omitempty"`
}

// Timeout returns the request timeout as a Duration
func (a *APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DefaultsConfig holds request values used when the caller leaves them unset
type DefaultsConfig struct {
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	SystemPrompt string  `yaml:"system_prompt,omitempty"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Address     string `yaml:"address"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// UsageConfig holds token accounting settings
type UsageConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns how long daily usage counters are kept
func (u *UsageConfig) Retention() time.Duration {
	return time.Duration(u.RetentionDays) * 24 * time.Hour
}

// SessionsConfig holds the limits of stored conversation sessions
type SessionsConfig struct {
	TTLHours      int `yaml:"ttl_hours"`
	MaxMessages   int `yaml:"max_messages"`
	ContextTokens int `yaml:"context_tokens"`
	ReserveTokens int `yaml:"reserve_tokens"`
}

// TTL returns the session TTL as a Duration
func (s *SessionsConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// MockConfig holds the fake chat-completions server settings
type MockConfig struct {
	Address   string     `yaml:"address"`
	Model     string     `yaml:"model"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is a canned reply, chosen when Match occurs in the last user
// message. An empty Match matches everything.
type Scenario struct {
	Name     string            `yaml:"name"`
	Match    string            `yaml:"match"`
	Content  string            `yaml:"content,omitempty"`
	Refusal  string            `yaml:"refusal,omitempty"`
	ToolCall *ToolCallScenario `yaml:"tool_call,omitempty"`
	Error    *ErrorScenario    `yaml:"error,omitempty"`
}

// ToolCallScenario makes the mock answer with a single tool call
type ToolCallScenario struct {
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

// ErrorScenario makes the mock answer with an error envelope
type ErrorScenario struct {
	Status  int    `yaml:"status"`
	Message string `yaml:"message"`
	Type    string `yaml:"type"`
	Code    string `yaml:"code,omitempty"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
