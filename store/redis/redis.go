package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/genaistack/store"
)

// RedisDraftStore implements store.DraftStore using Redis. Each draft is a
// JSON string key; a set per workflow indexes the draft ids.
type RedisDraftStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.DraftStore = (*RedisDraftStore)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "stack:"
	TTL      time.Duration // Expiration for drafts, default 0 (no expiration)
}

// NewRedisDraftStore creates a new Redis draft store
func NewRedisDraftStore(opts RedisOptions) *RedisDraftStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "stack:"
	}

	return &RedisDraftStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// Close closes the underlying client.
func (s *RedisDraftStore) Close() error {
	return s.client.Close()
}

func (s *RedisDraftStore) draftKey(id string) string {
	return fmt.Sprintf("%sdraft:%s", s.prefix, id)
}

func (s *RedisDraftStore) workflowKey(id int64) string {
	return fmt.Sprintf("%sworkflow:%d:drafts", s.prefix, id)
}

// Save stores a draft
func (s *RedisDraftStore) Save(ctx context.Context, draft *store.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.draftKey(draft.ID), data, s.ttl)

	wfKey := s.workflowKey(draft.WorkflowID)
	pipe.SAdd(ctx, wfKey, draft.ID)
	if s.ttl > 0 {
		pipe.Expire(ctx, wfKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save draft to redis: %w", err)
	}
	return nil
}

// Load retrieves a draft by ID
func (s *RedisDraftStore) Load(ctx context.Context, draftID string) (*store.Draft, error) {
	data, err := s.client.Get(ctx, s.draftKey(draftID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", store.ErrDraftNotFound, draftID)
		}
		return nil, fmt.Errorf("failed to load draft from redis: %w", err)
	}

	var draft store.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// List returns the drafts of a workflow, oldest first. Index entries whose
// draft key expired are skipped.
func (s *RedisDraftStore) List(ctx context.Context, workflowID int64) ([]*store.Draft, error) {
	ids, err := s.client.SMembers(ctx, s.workflowKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts for workflow %d: %w", workflowID, err)
	}
	if len(ids) == 0 {
		return []*store.Draft{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.draftKey(id))
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drafts: %w", err)
	}

	drafts := make([]*store.Draft, 0, len(results))
	for _, result := range results {
		raw, ok := result.(string)
		if !ok {
			continue
		}
		var draft store.Draft
		if err := json.Unmarshal([]byte(raw), &draft); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
		}
		drafts = append(drafts, &draft)
	}

	sort.Slice(drafts, func(i, j int) bool {
		if drafts[i].SavedAt.Equal(drafts[j].SavedAt) {
			return drafts[i].ID < drafts[j].ID
		}
		return drafts[i].SavedAt.Before(drafts[j].SavedAt)
	})
	return drafts, nil
}

// Delete removes a draft. Deleting an unknown id is not an error.
func (s *RedisDraftStore) Delete(ctx context.Context, draftID string) error {
	draft, err := s.Load(ctx, draftID)
	if err != nil {
		if errors.Is(err, store.ErrDraftNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.draftKey(draftID))
	pipe.SRem(ctx, s.workflowKey(draft.WorkflowID), draftID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Clear removes all drafts of a workflow
func (s *RedisDraftStore) Clear(ctx context.Context, workflowID int64) error {
	wfKey := s.workflowKey(workflowID)
	ids, err := s.client.SMembers(ctx, wfKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get drafts for clearing: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.draftKey(id))
	}
	pipe.Del(ctx, wfKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
