package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 锁已被占用
var ErrLockHeld = errors.New("lock already held")

// 仅当值与持有者令牌一致时删除，避免误删他人在过期后重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SETNX 的互斥锁
type Locker struct {
	client redis.UniversalClient
}

// NewLocker 创建锁，client 为 nil 时所有加锁直接成功
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Lock 已获取的锁
type Lock struct {
	key    string
	token  string
	locker *Locker
}

// Acquire 尝试加锁，锁已被占用返回 ErrLockHeld
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: key, token: uuid.NewString(), locker: l}
	if l.client == nil {
		return lock, nil
	}

	ok, err := l.client.SetNX(ctx, key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return lock, nil
}

// Release 释放锁
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil || lk.locker.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Err()
}
