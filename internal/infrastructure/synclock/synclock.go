// Package synclock serializes sync jobs per account with a redis lease.
package synclock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ledgersync:sync_lock:"

// DefaultTTL bounds how long a crashed holder can block an account.
const DefaultTTL = 10 * time.Minute

var ErrLocked = errors.New("account sync already in progress")

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only while the caller still holds the lease.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Open connects to redis from a redis:// URL.
func Open(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// Locker hands out per-account leases.
type Locker struct {
	Rdb *redis.Client
	TTL time.Duration
}

// Lease is a held account lock.
type Lease struct {
	locker    *Locker
	key       string
	token     string
	AccountID uuid.UUID
}

func key(accountID uuid.UUID) string {
	return keyPrefix + accountID.String()
}

func (l *Locker) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return DefaultTTL
}

// Acquire takes the account lease or returns ErrLocked when another holder has it.
func (l *Locker) Acquire(ctx context.Context, accountID uuid.UUID) (*Lease, error) {
	token := uuid.New().String()
	ok, err := l.Rdb.SetNX(ctx, key(accountID), token, l.ttl()).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lease{locker: l, key: key(accountID), token: token, AccountID: accountID}, nil
}

// Extend refreshes the lease TTL. It returns ErrLocked if the lease expired and was taken.
func (le *Lease) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, le.locker.Rdb, []string{le.key}, le.token, le.locker.ttl().Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLocked
	}
	return nil
}

// Release drops the lease if it is still ours. Releasing an expired lease is not an error.
func (le *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, le.locker.Rdb, []string{le.key}, le.token).Err()
}
