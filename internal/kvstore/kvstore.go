// Package kvstore wraps an optional shared key-value store (Redis) behind
// an interface that degrades gracefully when the store is unreachable.
// Every operation returns a zero-value sentinel on connection loss instead
// of propagating an error, mirroring the cooldown/fallback contract the
// rest of the system depends on.
package kvstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the lazy Redis connection.
type Config struct {
	Enabled               bool
	URL                   string
	ConnectTimeoutSeconds float64
	SocketTimeoutSeconds  float64
	RetrySeconds          float64
}

// Store is the KVStore gateway contract (§4.A). All methods are safe for
// concurrent use and never block longer than the configured timeouts.
type Store interface {
	// EnsureConnected attempts to establish (or reuse) the connection.
	// Returns false immediately while disabled or cooling down after a
	// failure.
	EnsureConnected(ctx context.Context) bool

	Push(ctx context.Context, key string, item interface{}) bool
	Pop(ctx context.Context, key string, timeout time.Duration) (json.RawMessage, bool)
	LLen(ctx context.Context, key string) int

	HSet(ctx context.Context, key, field string, value interface{}) bool
	HGet(ctx context.Context, key, field string) (json.RawMessage, bool)
	HDel(ctx context.Context, key, field string) bool
	HGetAll(ctx context.Context, key string) (map[string]json.RawMessage, bool)
}

// RedisStore is the default Store implementation, grounded on
// internal/pubsub's client-wrapping idiom (graceful degradation to a
// disabled state rather than a panic/error return).
type RedisStore struct {
	cfg    Config
	logger *zap.Logger

	mu               sync.Mutex
	client           *redis.Client
	nextConnectAttmt time.Time
	warnedMissing    bool
}

// New builds a RedisStore from configuration. The connection is lazy;
// nothing is dialed until the first EnsureConnected call.
func New(cfg Config, logger *zap.Logger) *RedisStore {
	if cfg.ConnectTimeoutSeconds <= 0 {
		cfg.ConnectTimeoutSeconds = 2
	}
	if cfg.SocketTimeoutSeconds <= 0 {
		cfg.SocketTimeoutSeconds = 2
	}
	if cfg.RetrySeconds <= 0 {
		cfg.RetrySeconds = 5
	}
	return &RedisStore{cfg: cfg, logger: logger}
}

func (s *RedisStore) EnsureConnected(ctx context.Context) bool {
	if !s.cfg.Enabled {
		return false
	}

	s.mu.Lock()
	if s.client != nil {
		client := s.client
		s.mu.Unlock()
		pingCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.SocketTimeoutSeconds*float64(time.Second)))
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err == nil {
			return true
		}
		s.mu.Lock()
		s.client = nil
	}

	if time.Now().Before(s.nextConnectAttmt) {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	opts, err := redis.ParseURL(s.cfg.URL)
	if err != nil {
		if !s.warnedMissing {
			s.logger.Warn("kvstore: invalid redis URL, disabling", zap.Error(err))
			s.warnedMissing = true
		}
		s.mu.Lock()
		s.nextConnectAttmt = time.Now().Add(time.Duration(s.cfg.RetrySeconds * float64(time.Second)))
		s.mu.Unlock()
		return false
	}
	opts.DialTimeout = time.Duration(s.cfg.ConnectTimeoutSeconds * float64(time.Second))
	opts.ReadTimeout = time.Duration(s.cfg.SocketTimeoutSeconds * float64(time.Second))
	opts.WriteTimeout = time.Duration(s.cfg.SocketTimeoutSeconds * float64(time.Second))

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		s.mu.Lock()
		s.nextConnectAttmt = time.Now().Add(time.Duration(s.cfg.RetrySeconds * float64(time.Second)))
		s.mu.Unlock()
		s.logger.Warn("kvstore: connection attempt failed, entering cooldown", zap.Error(err), zap.Float64("retry_seconds", s.cfg.RetrySeconds))
		return false
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return true
}

func (s *RedisStore) currentClient() *redis.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *RedisStore) Push(ctx context.Context, key string, item interface{}) bool {
	client := s.currentClient()
	if client == nil {
		return false
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return false
	}
	if err := client.RPush(ctx, key, payload).Err(); err != nil {
		s.logger.Debug("kvstore: push failed", zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) Pop(ctx context.Context, key string, timeout time.Duration) (json.RawMessage, bool) {
	client := s.currentClient()
	if client == nil {
		return nil, false
	}
	result, err := client.BLPop(ctx, timeout, key).Result()
	if err != nil {
		return nil, false
	}
	if len(result) < 2 {
		return nil, false
	}
	return json.RawMessage(result[1]), true
}

func (s *RedisStore) LLen(ctx context.Context, key string) int {
	client := s.currentClient()
	if client == nil {
		return 0
	}
	n, err := client.LLen(ctx, key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *RedisStore) HSet(ctx context.Context, key, field string, value interface{}) bool {
	client := s.currentClient()
	if client == nil {
		return false
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if err := client.HSet(ctx, key, field, payload).Err(); err != nil {
		return false
	}
	return true
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (json.RawMessage, bool) {
	client := s.currentClient()
	if client == nil {
		return nil, false
	}
	val, err := client.HGet(ctx, key, field).Result()
	if err != nil {
		return nil, false
	}
	return json.RawMessage(val), true
}

func (s *RedisStore) HDel(ctx context.Context, key, field string) bool {
	client := s.currentClient()
	if client == nil {
		return false
	}
	if err := client.HDel(ctx, key, field).Err(); err != nil {
		return false
	}
	return true
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]json.RawMessage, bool) {
	client := s.currentClient()
	if client == nil {
		return nil, false
	}
	raw, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		out[k] = json.RawMessage(v)
	}
	return out, true
}
