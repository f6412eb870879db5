package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisConfig configures the Redis backend, used when several CLI hosts share
// one session.
type RedisConfig struct {
	// Addr is the server address for single node or sentinel mode.
	Addr string
	// ClusterAddrs enables cluster mode when set.
	ClusterAddrs []string
	Username     string
	Password     string
	// DB is ignored in cluster mode.
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// TTL expires stored values. Zero keeps them until deleted.
	TTL time.Duration

	SentinelMasterSet string
	SentinelAddrs     []string
}

// DefaultRedisConfig returns the settings for a local Redis server.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "bank:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore keeps values in Redis under KeyPrefix.
type RedisStore struct {
	client rueidis.Client
	config RedisConfig
}

func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	var initAddress []string
	switch {
	case len(config.ClusterAddrs) > 0:
		initAddress = config.ClusterAddrs
	case len(config.SentinelAddrs) > 0:
		initAddress = config.SentinelAddrs
	case config.Addr != "":
		initAddress = []string{config.Addr}
	default:
		return nil, fmt.Errorf("tokenstore: redis: no addresses configured")
	}

	opts := rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
	}
	if len(config.SentinelAddrs) > 0 {
		opts.Sentinel = rueidis.SentinelOption{MasterSet: config.SentinelMasterSet}
	}

	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: redis: create client: %w", err)
	}

	dial := config.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("tokenstore: redis: ping: %w", err)
	}

	return &RedisStore{client: client, config: config}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	cmd := r.client.B().Get().Key(r.config.KeyPrefix + key).Build()
	v, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("tokenstore: redis get: %w", err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	fullKey := r.config.KeyPrefix + key

	var cmd rueidis.Completed
	if r.config.TTL > 0 {
		cmd = r.client.B().Set().Key(fullKey).Value(value).Ex(r.config.TTL).Build()
	} else {
		cmd = r.client.B().Set().Key(fullKey).Value(value).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("tokenstore: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(r.config.KeyPrefix + key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("tokenstore: redis delete: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

func (r *RedisStore) Name() string { return BackendRedis }

func (r *RedisStore) Close() error {
	r.client.Close()
	return nil
}
