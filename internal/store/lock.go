package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"document-qa-platform/internal/errs"
)

// RedisLocker implements Locker with SET NX. Locks carry a TTL so a
// crashed holder cannot wedge a document forever.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "ingest-lock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, errs.NewStorageError("acquire lock", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.prefix+key).Err(); err != nil {
		return errs.NewStorageError("release lock", err)
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
