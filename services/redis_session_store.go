package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
)

// unlockScript deletes the lock only if it is still held by the caller's token.
var unlockScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSessionStore keeps session history in Redis lists so several server
// replicas share sessions. The per-session critical section is a SETNX lock.
type RedisSessionStore struct {
	rdb        *goredis.Client
	log        *logger.Logger
	maxHistory int
	ttl        time.Duration
	lockTTL    time.Duration
	prefix     string
}

// NewRedisSessionStore connects to addr and verifies the connection.
func NewRedisSessionStore(addr string, maxHistory int, ttl time.Duration, log *logger.Logger) (*RedisSessionStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisSessionStore(rdb, maxHistory, ttl, log), nil
}

func newRedisSessionStore(rdb *goredis.Client, maxHistory int, ttl time.Duration, log *logger.Logger) *RedisSessionStore {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		rdb:        rdb,
		log:        log.With("service", "RedisSessionStore"),
		maxHistory: maxHistory,
		ttl:        ttl,
		lockTTL:    2 * time.Minute,
		prefix:     "courserag:session:",
	}
}

func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisSessionStore) key(id string) string     { return s.prefix + id }
func (s *RedisSessionStore) lockKey(id string) string { return s.prefix + id + ":lock" }

func (s *RedisSessionStore) History(ctx context.Context, id string) ([]models.Exchange, error) {
	raw, err := s.rdb.LRange(ctx, s.key(id), int64(-s.maxHistory), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	history := make([]models.Exchange, 0, len(raw))
	for _, item := range raw {
		var ex models.Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			s.log.Warn("dropping undecodable exchange", "session", id, "error", err)
			continue
		}
		history = append(history, ex)
	}
	return history, nil
}

func (s *RedisSessionStore) Append(ctx context.Context, id string, ex models.Exchange) error {
	raw, err := json.Marshal(ex)
	if err != nil {
		return err
	}
	key := s.key(id)
	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		p.LTrim(ctx, key, int64(-s.maxHistory), -1)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to session %s: %w", id, err)
	}
	return nil
}

func (s *RedisSessionStore) WithSession(ctx context.Context, id string, fn func([]models.Exchange) (*models.Exchange, error)) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	history, err := s.History(ctx, id)
	if err != nil {
		return err
	}
	ex, err := fn(history)
	if err != nil || ex == nil {
		return err
	}
	return s.Append(ctx, id, *ex)
}

func (s *RedisSessionStore) lock(ctx context.Context, id string) (func(), error) {
	key := s.lockKey(id)
	token := uuid.NewString()
	for {
		ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock session %s: %w", id, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, s.rdb, []string{key}, token).Err(); err != nil {
			s.log.Warn("failed to release session lock", "session", id, "error", err)
		}
	}, nil
}
