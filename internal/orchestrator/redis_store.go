package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisOpTimeout = 5 * time.Second

// RedisTaskStore keeps the task-set document under a single key so multiple
// gateway replicas behind the same Redis see one task history. The document
// expires with the task age cutoff.
type RedisTaskStore struct {
	client *redis.Client
	key    string
}

func NewRedisTaskStore(client *redis.Client, key string) *RedisTaskStore {
	if key == "" {
		key = "evolink:tasks"
	}
	return &RedisTaskStore{client: client, key: key}
}

func (s *RedisTaskStore) Save(tasks []Task) error {
	raw, err := encodeDocument(pruneForStorage(tasks, time.Now()))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key, raw, MaxTaskAge).Err()
}

func (s *RedisTaskStore) Load() ([]Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDocument(raw), nil
}

func (s *RedisTaskStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Del(ctx, s.key).Err()
}
