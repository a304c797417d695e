package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/rs/zerolog"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/config"
	"github.com/s33g/typedchat/internal/conversation"
	"github.com/s33g/typedchat/internal/llm"
	"github.com/s33g/typedchat/internal/storage"
	"github.com/s33g/typedchat/internal/tokens"
	"github.com/s33g/typedchat/internal/usage"
)

type tokenCounter interface {
	Count(text, model string) (int, error)
	CountMessages(messages []chat.Message, model string) (int, error)
}

// newCounter is swapped in tests to stay off the tiktoken downloads.
var newCounter = func() tokenCounter { return tokens.NewCounter() }

// app bundles what the commands share.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *storage.Client
	usage    *usage.Recorder
	sessions *conversation.Store
	tokens   tokenCounter
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if misc.Truthy(os.Getenv("DEBUG")) {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg.Logging),
		tokens: newCounter(),
	}

	if cfg.Redis.Enabled {
		store, err := storage.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.store = store
		a.usage = usage.NewRecorder(store, cfg.Usage.Retention(), a.logger)
		a.sessions = conversation.NewStore(store, cfg.Sessions.TTL(), cfg.Sessions.MaxMessages, a.logger)
		a.logger.Debug().Str("address", cfg.Redis.Address).Msg("Usage recording enabled")
	}

	return a, nil
}

func (a *app) simple() *llm.Simple {
	opts := []llm.Option{
		llm.WithDefaults(a.cfg.Defaults),
		llm.WithLogger(a.logger),
		llm.WithTokenCounter(a.tokens),
	}
	if a.usage != nil {
		opts = append(opts, llm.WithUsageRecorder(a.usage))
	}
	return llm.NewSimple(llm.NewClient(llm.NewHTTPTransport(a.cfg.API), opts...))
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close Redis connection")
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, fmt.Errorf("parse %s flags: %w", fs.Name(), err)
	}
	return true, nil
}
