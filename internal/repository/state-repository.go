package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "chan:state:"

// RedisStateRepository хранит состояние диалогов ботов в Redis как JSON.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateRepository создаёт новый экземпляр RedisStateRepository.
// ttl <= 0 означает без истечения.
func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{client: client, ttl: ttl}
}

// Load читает значение key в v. Возвращает false, если ключа нет.
func (r *RedisStateRepository) Load(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.client.Get(ctx, stateKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode state %s: %w", key, err)
	}
	return true, nil
}

// Save сохраняет v под key.
func (r *RedisStateRepository) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	if err := r.client.Set(ctx, stateKeyPrefix+key, data, max(r.ttl, 0)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete удаляет key.
func (r *RedisStateRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, stateKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// MemoryStateRepository — состояние в памяти процесса; теряется при рестарте.
type MemoryStateRepository struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{data: make(map[string][]byte)}
}

func (m *MemoryStateRepository) Load(_ context.Context, key string, v any) (bool, error) {
	m.mu.Lock()
	data, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (m *MemoryStateRepository) Save(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStateRepository) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
