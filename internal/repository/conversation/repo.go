// Package conversation keeps recent chat turns per conversation id with a TTL.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/syllabus/internal/db"
	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
)

const (
	defaultTTL      = 24 * time.Hour
	defaultMaxTurns = 20
	// MaxHistoryChars bounds the stored history by content size.
	MaxHistoryChars = 16000
)

// store is the consumer interface for conversation storage (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo stores conversation history as JSON strings.
type Repo struct {
	store    store
	keys     keyspace.Keyspace
	ttl      time.Duration
	maxTurns int
}

// New creates a conversation repository. Non-positive ttl or maxTurns select defaults.
func New(s store, keys keyspace.Keyspace, ttl time.Duration, maxTurns int) *Repo {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Repo{store: s, keys: keys, ttl: ttl, maxTurns: maxTurns}
}

// Load returns the stored turns; an unknown or expired id yields none.
func (r *Repo) Load(ctx context.Context, id string) ([]domain.ChatMessage, error) {
	data, err := r.store.Get(ctx, r.keys.Conversation(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}

	var turns []domain.ChatMessage
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return turns, nil
}

// Save replaces the history with the most recent turns that fit in maxTurns
// and MaxHistoryChars, and refreshes the TTL.
func (r *Repo) Save(ctx context.Context, id string, turns []domain.ChatMessage) error {
	turns = trimToBudget(turns, r.maxTurns, MaxHistoryChars)
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", id, err)
	}
	if err := r.store.SetWithTTL(ctx, r.keys.Conversation(id), data, r.ttl); err != nil {
		return fmt.Errorf("save conversation %s: %w", id, err)
	}
	return nil
}

// trimToBudget keeps the newest turns within both limits. The newest turn is
// always kept, and the result never starts with an assistant reply.
func trimToBudget(turns []domain.ChatMessage, maxTurns, maxChars int) []domain.ChatMessage {
	start := max(len(turns)-maxTurns, 0)
	size := 0
	for i := len(turns) - 1; i >= start; i-- {
		size += utf8.RuneCountInString(turns[i].Content)
		if size > maxChars && i < len(turns)-1 {
			start = i + 1
			break
		}
	}
	for start < len(turns)-1 && turns[start].Role == domain.RoleAssistant {
		start++
	}
	return turns[start:]
}
