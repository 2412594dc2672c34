package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Record is everything persisted per thread: the transcript plus the
// running summary that replaces older turns.
type Record struct {
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary,omitempty"`
}

// CheckpointStore persists dialogue records across server restarts.
type CheckpointStore interface {
	Load(ctx context.Context, threadID string) (*Record, error)
	Save(ctx context.Context, threadID string, rec *Record) error
	Clear(ctx context.Context, threadID string) error
	ClearAll(ctx context.Context) error
}

const checkpointKeyPrefix = "dialogue:"

// RedisCheckpointStore keeps one JSON record per thread in redis.
type RedisCheckpointStore struct {
	rdb *redis.Client
}

func NewRedisCheckpointStore(rdb *redis.Client) *RedisCheckpointStore {
	return &RedisCheckpointStore{rdb: rdb}
}

// Load returns (nil, nil) for a thread with no history yet.
func (s *RedisCheckpointStore) Load(ctx context.Context, threadID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, checkpointKeyPrefix+threadID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %q: %w", threadID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %q: %w", threadID, err)
	}
	return &rec, nil
}

func (s *RedisCheckpointStore) Save(ctx context.Context, threadID string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, checkpointKeyPrefix+threadID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint %q: %w", threadID, err)
	}
	return nil
}

func (s *RedisCheckpointStore) Clear(ctx context.Context, threadID string) error {
	return s.rdb.Del(ctx, checkpointKeyPrefix+threadID).Err()
}

// ClearAll wipes every dialogue thread. SCAN rather than KEYS; the store
// shares its redis with other concerns.
func (s *RedisCheckpointStore) ClearAll(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, checkpointKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// MemoryCheckpointStore is the in-process fallback used in tests and when
// redis is not configured.
type MemoryCheckpointStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{records: make(map[string]*Record)}
}

func (s *MemoryCheckpointStore) Load(_ context.Context, threadID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[threadID]
	if !ok {
		return nil, nil
	}
	cp := Record{Messages: append([]Message(nil), rec.Messages...), Summary: rec.Summary}
	return &cp, nil
}

func (s *MemoryCheckpointStore) Save(_ context.Context, threadID string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := Record{Messages: append([]Message(nil), rec.Messages...), Summary: rec.Summary}
	s.records[threadID] = &cp
	return nil
}

func (s *MemoryCheckpointStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, threadID)
	return nil
}

func (s *MemoryCheckpointStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
	return nil
}
