package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "genesis:voice:session:" // Session data: genesis:voice:session:{session_id}
	activeSessionSet = "genesis:voice:active"   // Set of live session IDs
)

// SessionInfo describes one live voice session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	ProjectID string    `json:"project_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Registry tracks live voice sessions across server instances.
type Registry interface {
	Register(ctx context.Context, info SessionInfo) error
	Unregister(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
	List(ctx context.Context) ([]SessionInfo, error)
	Sweep(ctx context.Context) (int, error)
}

// RedisRegistry stores each session under a TTL key plus membership in an active set.
// Keys expire on their own if an instance dies; Sweep prunes the orphaned set members.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) Register(ctx context.Context, info SessionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(info.ID), data, r.ttl)
	pipe.SAdd(ctx, activeSessionSet, info.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Unregister(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, activeSessionSet, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to unregister session: %w", err)
	}
	return nil
}

// Touch pushes the session key's expiry out by another TTL so long sessions stay listed.
func (r *RedisRegistry) Touch(ctx context.Context, id string) error {
	if err := r.client.Expire(ctx, sessionKey(id), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	return nil
}

// RefreshInterval is how often a live session should be touched.
func (r *RedisRegistry) RefreshInterval() time.Duration { return r.ttl / 3 }

func (r *RedisRegistry) List(ctx context.Context) ([]SessionInfo, error) {
	ids, err := r.client.SMembers(ctx, activeSessionSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := []SessionInfo{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var info SessionInfo
		if err := json.Unmarshal([]byte(s), &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Sweep removes set members whose session key has expired and returns how many.
func (r *RedisRegistry) Sweep(ctx context.Context) (int, error) {
	ids, err := r.client.SMembers(ctx, activeSessionSet).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	removed := 0
	for _, id := range ids {
		n, err := r.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return removed, err
		}
		if n > 0 {
			continue
		}
		if err := r.client.SRem(ctx, activeSessionSet, id).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// MemoryRegistry is the single-instance registry used when Redis is not configured.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]SessionInfo
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]SessionInfo)}
}

func (m *MemoryRegistry) Register(_ context.Context, info SessionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[info.ID] = info
	return nil
}

func (m *MemoryRegistry) Unregister(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryRegistry) Touch(context.Context, string) error { return nil }

func (m *MemoryRegistry) List(_ context.Context) ([]SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryRegistry) Sweep(context.Context) (int, error) { return 0, nil }
