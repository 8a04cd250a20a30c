package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commercekit/orderworker/internal/core"
	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/domain/model"
)

const resultKeyPrefix = "orderworker:result:"

// ResultStore records task invocation results in Redis with a TTL, keyed by
// envelope id.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.ResultStore = (*ResultStore)(nil)

// NewResultStore creates a result store with the given retention.
func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultStore{client: client, ttl: ttl}
}

// Store writes the result under the envelope id. An existing result for the
// same envelope is overwritten; retried tasks keep only their latest outcome.
func (s *ResultStore) Store(ctx context.Context, envelopeID string, result *model.TaskResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}
	if setErr := s.client.Set(ctx, resultKeyPrefix+envelopeID, raw, s.ttl).Err(); setErr != nil {
		return fmt.Errorf("store task result %s: %w", envelopeID, setErr)
	}
	return nil
}

// Get returns the recorded result for the envelope id, or a not-found error
// when no result exists or it has expired.
func (s *ResultStore) Get(ctx context.Context, envelopeID string) (*model.TaskResult, error) {
	raw, err := s.client.Get(ctx, resultKeyPrefix+envelopeID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound(fmt.Sprintf("no result for task %s", envelopeID))
		}
		return nil, fmt.Errorf("get task result %s: %w", envelopeID, err)
	}

	var result model.TaskResult
	if unmarshalErr := json.Unmarshal(raw, &result); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal task result %s: %w", envelopeID, unmarshalErr)
	}
	return &result, nil
}
