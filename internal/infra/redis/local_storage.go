package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"itef-puzzle-service/internal/app"
)

// LocalStore keeps each device's local storage under "local:{device}:{key}".
// A positive ttl is refreshed on every write so idle devices eventually expire.
type LocalStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocalStore(client *redis.Client, ttl time.Duration) *LocalStore {
	return &LocalStore{client: client, ttl: ttl}
}

func (s *LocalStore) ForDevice(deviceID string) app.LocalStorage {
	return &deviceStorage{client: s.client, ttl: s.ttl, prefix: "local:" + deviceID + ":"}
}

type deviceStorage struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func (d *deviceStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := d.client.Get(ctx, d.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *deviceStorage) Set(ctx context.Context, key, value string) error {
	return d.client.Set(ctx, d.prefix+key, value, d.ttl).Err()
}

func (d *deviceStorage) Remove(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+key).Err()
}
