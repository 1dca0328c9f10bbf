// storefront/cartstore/redis_cartstore.go

package cartstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// cartField is the hash field that holds the serialized cart.
const cartField = "cart"

// RedisConfig tunes the connection and the startup retry loop.
type RedisConfig struct {
	Addr     string
	Password string

	// MaxAttempts bounds the Ping retries in Initialize.
	MaxAttempts int
	// InitialBackoff doubles after every failed attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RedisCartStore is a Storage backed by Redis. Each key is a hash whose
// "cart" field holds the record.
type RedisCartStore struct {
	client *redis.Client
	cfg    RedisConfig
	log    logrus.FieldLogger
}

// NewRedisCartStore accepts either a redis:// URL or a plain "host:port"
// address.
func NewRedisCartStore(cfg RedisConfig, log logrus.FieldLogger) *RedisCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 30
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	opts, err := redis.ParseURL(cfg.Addr)
	if err != nil {
		// not a redis:// URL, use it as a plain address
		opts = &redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &RedisCartStore{
		client: client,
		cfg:    cfg,
		log:    log.WithField("component", "cartstore.redis"),
	}
}

// Initialize waits for Redis to answer a Ping.
func (r *RedisCartStore) Initialize(ctx context.Context) error {
	r.log.Info("RedisCartStore: initializing connection...")

	backoff := r.cfg.InitialBackoff
	for i := 0; i < r.cfg.MaxAttempts; i++ {
		if r.Ping(ctx) {
			r.log.WithField("attempt", i+1).Info("RedisCartStore initialized successfully")
			return nil
		}
		if i == r.cfg.MaxAttempts-1 {
			break
		}

		r.log.WithField("backoff", backoff).Warn("RedisCartStore: waiting before next attempt")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return errors.Errorf("cartstore: redis not reachable after %d attempts", r.cfg.MaxAttempts)
}

func (r *RedisCartStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.HGet(ctx, key, cartField).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis HGet")
	}
	return data, nil
}

func (r *RedisCartStore) Set(ctx context.Context, key string, data []byte) error {
	r.log.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("RedisCartStore: Set called")

	if err := r.client.HSet(ctx, key, cartField, data).Err(); err != nil {
		return errors.Wrap(err, "redis HSet")
	}
	return nil
}

func (r *RedisCartStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis Del")
	}
	return nil
}

// Ping checks if Redis is alive.
func (r *RedisCartStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.WithError(err).Warn("RedisCartStore: Ping failed")
		return false
	}
	return true
}

// Close releases the connection pool.
func (r *RedisCartStore) Close() error {
	return r.client.Close()
}
