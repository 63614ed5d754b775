package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockNamespace = "garageflow:lock:"

// Deletes the key only while it still holds our token, so a lease that
// outlived its TTL never drops a lock another replica has since taken.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrInvalidLock       = errors.New("invalid_lock")
)

// Locker hands out short exclusive leases shared by every replica.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(lockReleaseScript),
	}
}

// Lease is a held lock. The zero Lease releases nothing.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// TryLock takes the lease for name without waiting. held is false when
// another replica owns it.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (lease Lease, held bool, err error) {
	if l == nil || l.client == nil {
		return Lease{}, false, ErrLockNotConfigured
	}
	if name == "" || ttl <= 0 {
		return Lease{}, false, ErrInvalidLock
	}

	key := lockNamespace + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return Lease{}, false, err
	}
	if !ok {
		return Lease{}, false, nil
	}
	return Lease{locker: l, key: key, token: token}, true, nil
}

func (le Lease) Release(ctx context.Context) error {
	if le.locker == nil || le.token == "" {
		return nil
	}
	return le.locker.release.Run(ctx, le.locker.client, []string{le.key}, le.token).Err()
}
