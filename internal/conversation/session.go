// Package conversation keeps multi-turn chat sessions in Redis so that a
// prompt can be sent together with the history that preceded it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/storage"
)

var ErrNotFound = errors.New("session not found")

// Session is the metadata of a conversation.
type Session struct {
	ID           string
	Model        string
	SystemPrompt string
	TokenCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Session) toMap() map[string]any {
	return map[string]any{
		"model":         s.Model,
		"system_prompt": s.SystemPrompt,
		"token_count":   s.TokenCount,
		"created_at":    s.CreatedAt.Unix(),
		"updated_at":    s.UpdatedAt.Unix(),
	}
}

func (s *Session) fromMap(id string, m map[string]string) {
	s.ID = id
	s.Model = m["model"]
	s.SystemPrompt = m["system_prompt"]
	s.TokenCount, _ = strconv.Atoi(m["token_count"])

	if v, err := strconv.ParseInt(m["created_at"], 10, 64); err == nil {
		s.CreatedAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(m["updated_at"], 10, 64); err == nil {
		s.UpdatedAt = time.Unix(v, 0)
	}
}

// Store reads and writes sessions. Messages are kept in their wire encoding,
// so every message variant survives the round trip.
type Store struct {
	client      *storage.Client
	ttl         time.Duration
	maxMessages int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStore creates a session store. Only the newest maxMessages messages of a
// session are kept, and idle sessions expire after ttl.
func NewStore(client *storage.Client, ttl time.Duration, maxMessages int, logger zerolog.Logger) *Store {
	return &Store{
		client:      client,
		ttl:         ttl,
		maxMessages: maxMessages,
		logger:      logger.With().Str("component", "sessions").Logger(),
		now:         time.Now,
	}
}

// Save creates or updates the session metadata.
func (s *Store) Save(ctx context.Context, sess Session) error {
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	key := s.client.Keys().Session(sess.ID)
	pipe := s.client.Redis().TxPipeline()
	pipe.HSet(ctx, key, sess.toMap())
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the session metadata, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Redis().HGetAll(ctx, s.client.Keys().Session(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var sess Session
	sess.fromMap(id, data)
	return &sess, nil
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	keys := s.client.Keys()
	if err := s.client.Redis().Del(ctx, keys.Session(id), keys.SessionMessages(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Append adds messages to the session history and refreshes its TTL. tokens
// is added to the running token count.
func (s *Store) Append(ctx context.Context, id string, tokens int, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(messages))
	for _, m := range messages {
		data, err := chat.Encode(m)
		if err != nil {
			return err
		}
		encoded = append(encoded, string(data))
	}

	keys := s.client.Keys()
	msgKey := keys.SessionMessages(id)
	sessKey := keys.Session(id)

	pipe := s.client.Redis().TxPipeline()
	pipe.RPush(ctx, msgKey, encoded...)
	pipe.LTrim(ctx, msgKey, -int64(s.maxMessages), -1)
	pipe.Expire(ctx, msgKey, s.ttl)
	pipe.HIncrBy(ctx, sessKey, "token_count", int64(tokens))
	pipe.HSet(ctx, sessKey, "updated_at", s.now().Unix())
	pipe.Expire(ctx, sessKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add messages: %w", err)
	}
	return nil
}

// Messages returns the stored history, oldest first.
func (s *Store) Messages(ctx context.Context, id string) ([]chat.Message, error) {
	data, err := s.client.Redis().LRange(ctx, s.client.Keys().SessionMessages(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]chat.Message, 0, len(data))
	for i, d := range data {
		m, err := chat.DecodeMessage([]byte(d))
		if err != nil {
			s.logger.Warn().Err(err).Str("session", id).Int("index", i).Msg("Skipping malformed message")
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}
