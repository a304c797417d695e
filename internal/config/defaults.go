package config

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://api.openai.com/v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 120,
		},
		Defaults: DefaultsConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   1024,
		},
		Redis: RedisConfig{
			Enabled:   false,
			Address:   "localhost:6379",
			DB:        0,
			KeyPrefix: "typedchat:",
		},
		Usage: UsageConfig{
			RetentionDays: 90, // 3 months
		},
		Sessions: SessionsConfig{
			TTLHours:      24,
			MaxMessages:   50,
			ContextTokens: 8000,
			ReserveTokens: 1024,
		},
		Mock: MockConfig{
			Address: ":8089",
			Model:   "mock-gpt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
