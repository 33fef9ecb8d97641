package delegation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"traceport/pkg/platform/sentinel"
)

const (
	// Redis key prefix for contributor grants.
	grantKeyPrefix = "grant:token:"

	// Grants stay readable for a while after expiry so redeem can answer
	// "expired" instead of "not found".
	grantRetention = 30 * 24 * time.Hour
)

// RedisStore is a Redis-backed grant store. This is the production
// recommendation for multi-instance deployments: the one-shot submit flip is
// enforced with an optimistic WATCH transaction on the token key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func grantKey(token string) string {
	return grantKeyPrefix + token
}

func (s *RedisStore) Save(ctx context.Context, grant Grant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	ttl := time.Until(grant.ExpiresAt) + grantRetention
	if err := s.client.Set(ctx, grantKey(grant.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByToken(ctx context.Context, token string) (Grant, error) {
	raw, err := s.client.Get(ctx, grantKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Grant{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Grant{}, fmt.Errorf("find grant: %w", err)
	}
	var grant Grant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return Grant{}, fmt.Errorf("decode grant: %w", err)
	}
	return grant, nil
}

func (s *RedisStore) MarkSubmitted(ctx context.Context, token string, payload json.RawMessage, at time.Time) error {
	key := grantKey(token)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load grant: %w", err)
		}
		var grant Grant
		if err := json.Unmarshal(raw, &grant); err != nil {
			return fmt.Errorf("decode grant: %w", err)
		}
		if grant.Status == StatusSubmitted {
			return sentinel.ErrAlreadySubmitted
		}
		grant.Status = StatusSubmitted
		grant.Submission = payload
		grant.SubmittedAt = &at

		data, err := json.Marshal(grant)
		if err != nil {
			return fmt.Errorf("marshal grant: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// A concurrent submit won the race; by definition the grant is taken.
		return sentinel.ErrAlreadySubmitted
	}
	return err
}
