// Package usage keeps per-model daily token counters in Redis.
package usage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/storage"
)

const dayFormat = "2006-01-02"

const (
	fieldRequests         = "requests"
	fieldPromptTokens     = "prompt_tokens"
	fieldCompletionTokens = "completion_tokens"
	fieldTotalTokens      = "total_tokens"
)

// Totals are the counters of one model for one day.
type Totals struct {
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Recorder accumulates the usage reported by completion responses.
type Recorder struct {
	client    *storage.Client
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRecorder(client *storage.Client, retention time.Duration, logger zerolog.Logger) *Recorder {
	return &Recorder{
		client:    client,
		retention: retention,
		logger:    logger.With().Str("component", "usage").Logger(),
		now:       time.Now,
	}
}

// Day formats t the way counters are keyed.
func Day(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

// Record adds u to today's counters for model.
func (r *Recorder) Record(ctx context.Context, model string, u chat.Usage) error {
	day := Day(r.now())
	key := r.client.Keys().Usage(model, day)
	models := r.client.Keys().UsageModels(day)

	pipe := r.client.Redis().TxPipeline()
	pipe.HIncrBy(ctx, key, fieldRequests, 1)
	pipe.HIncrBy(ctx, key, fieldPromptTokens, int64(u.PromptTokens))
	pipe.HIncrBy(ctx, key, fieldCompletionTokens, int64(u.CompletionTokens))
	pipe.HIncrBy(ctx, key, fieldTotalTokens, int64(u.TotalTokens))
	pipe.Expire(ctx, key, r.retention)
	pipe.SAdd(ctx, models, model)
	pipe.Expire(ctx, models, r.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record usage for %s: %w", model, err)
	}

	r.logger.Debug().
		Str("model", model).
		Int("total_tokens", u.TotalTokens).
		Msg("Recorded usage")
	return nil
}

// Get returns the counters of model on day. Missing counters are zero.
func (r *Recorder) Get(ctx context.Context, model, day string) (Totals, error) {
	fields, err := r.client.Redis().HGetAll(ctx, r.client.Keys().Usage(model, day)).Result()
	if err != nil {
		return Totals{}, fmt.Errorf("failed to read usage for %s: %w", model, err)
	}

	var t Totals
	for name, dst := range map[string]*int64{
		fieldRequests:         &t.Requests,
		fieldPromptTokens:     &t.PromptTokens,
		fieldCompletionTokens: &t.CompletionTokens,
		fieldTotalTokens:      &t.TotalTokens,
	} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Totals{}, fmt.Errorf("usage field %s of %s is not a number: %w", name, model, err)
		}
		*dst = n
	}
	return t, nil
}

// Models lists the models with usage on day, sorted.
func (r *Recorder) Models(ctx context.Context, day string) ([]string, error) {
	models, err := r.client.Redis().SMembers(ctx, r.client.Keys().UsageModels(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list models for %s: %w", day, err)
	}
	sort.Strings(models)
	return models, nil
}
