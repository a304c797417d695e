package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive")
	}

	if c.Defaults.Model == "" {
		return fmt.Errorf("defaults.model is required")
	}
	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		return fmt.Errorf("defaults.temperature must be between 0 and 2")
	}
	if c.Defaults.MaxTokens < 0 {
		return fmt.Errorf("defaults.max_tokens must not be negative")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	if c.Usage.RetentionDays <= 0 {
		return fmt.Errorf("usage.retention_days must be positive")
	}

	if c.Sessions.TTLHours <= 0 {
		return fmt.Errorf("sessions.ttl_hours must be positive")
	}
	if c.Sessions.MaxMessages <= 0 {
		return fmt.Errorf("sessions.max_messages must be positive")
	}
	if c.Sessions.ReserveTokens < 0 || c.Sessions.ReserveTokens >= c.Sessions.ContextTokens {
		return fmt.Errorf("sessions.reserve_tokens must be between 0 and sessions.context_tokens")
	}

	for i, s := range c.Mock.Scenarios {
		if err := s.validate(); err != nil {
			return fmt.Errorf("mock.scenarios[%d]: %w", i, err)
		}
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

func (s *Scenario) validate() error {
	replies := 0
	if s.Content != "" {
		replies++
	}
	if s.Refusal != "" {
		replies++
	}
	if s.ToolCall != nil {
		replies++
		if s.ToolCall.Name == "" {
			return fmt.Errorf("tool_call.name is required")
		}
	}
	if s.Error != nil {
		replies++
		if s.Error.Message == "" {
			return fmt.Errorf("error.message is required")
		}
		if s.Error.Status != 0 && (s.Error.Status < 400 || s.Error.Status > 599) {
			return fmt.Errorf("error.status must be a 4xx or 5xx code")
		}
	}
	if replies != 1 {
		return fmt.Errorf("exactly one of content, refusal, tool_call or error is required")
	}
	return nil
}
