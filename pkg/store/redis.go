package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// DefaultRedisKey is the list key accounts are pushed onto.
const DefaultRedisKey = "oauth:accounts"

// RedisStore implements core.CredentialStore as a Redis list of JSON records via rueidis.
type RedisStore struct {
	client rueidis.Client
	key    string
}

// NewRedisStore creates a new instance of RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		client: client,
		key:    key,
	}
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisStoreFromOptions creates a new RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	return NewRedisStoreFromClientOption(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	}, opts.Key)
}

// NewRedisStoreFromClientOption creates a new RedisStore with full rueidis client options.
func NewRedisStoreFromClientOption(opts rueidis.ClientOption, key string) (*RedisStore, error) {
	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client, key), nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() {
	r.client.Close()
}

// Key returns the list key.
func (r *RedisStore) Key() string {
	return r.key
}

// Append pushes record onto the tail of the list.
func (r *RedisStore) Append(ctx context.Context, record core.AccountRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &core.StoreWriteError{Path: r.location(), Err: err}
	}

	cmd := r.client.B().Rpush().Key(r.key).Element(string(data)).Build()
	n, err := r.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return &core.StoreWriteError{Path: r.location(), Err: err}
	}
	core.LoggerFromCtx(ctx).Info("Account saved", "key", r.key, "accounts", n)
	return nil
}

// List returns the records in push order; entries that do not decode are skipped.
func (r *RedisStore) List(ctx context.Context) ([]core.AccountRecord, error) {
	cmd := r.client.B().Lrange().Key(r.key).Start(0).Stop(-1).Build()
	entries, err := r.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return []core.AccountRecord{}, nil
		}
		return nil, &core.StoreReadError{Path: r.location(), Err: err}
	}

	records := make([]core.AccountRecord, 0, len(entries))
	for i, entry := range entries {
		var record core.AccountRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			core.LoggerFromCtx(ctx).Warn("Skipping unreadable account entry",
				"key", r.key,
				"index", i,
				"error", err,
			)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *RedisStore) location() string {
	return "redis:" + r.key
}
