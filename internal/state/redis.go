package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "orgseed:rules:"

// RedisStore keeps one hash per session: field = rule full name, value =
// JSON snapshot.
type RedisStore struct {
	client *redis.Client
}

func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) PutRuleSnapshot(ctx context.Context, session string, snap types.ValidationRuleSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.HSet(ctx, redisKeyPrefix+session, snap.FullName, data).Err(); err != nil {
		return fmt.Errorf("failed to persist snapshot %s: %w", snap.FullName, err)
	}
	return nil
}

func (r *RedisStore) DeleteRuleSnapshot(ctx context.Context, session, fullName string) error {
	if err := r.client.HDel(ctx, redisKeyPrefix+session, fullName).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", fullName, err)
	}
	return nil
}

func (r *RedisStore) ListRuleSnapshots(ctx context.Context, session string) ([]types.ValidationRuleSnapshot, error) {
	entries, err := r.client.HGetAll(ctx, redisKeyPrefix+session).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	snaps := make([]types.ValidationRuleSnapshot, 0, len(entries))
	for name, raw := range entries {
		var snap types.ValidationRuleSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
		}
		snaps = append(snaps, snap)
	}
	sortSnapshots(snaps)
	return snaps, nil
}

// PendingSessions scans session keys. Redis removes a hash once its last
// field is deleted, so every key found still holds snapshots.
func (r *RedisStore) PendingSessions(ctx context.Context) ([]string, error) {
	var sessions []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sessions = append(sessions, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
