package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes admissions per host. The lock only narrows the window
// between the capacity count and the visit insert; callers degrade to
// check-then-act when it cannot be taken.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getHostLockDuration returns the host lock TTL from environment variables
// or the default value. The TTL bounds how long a crashed holder can block
// a host's gate.
func (r *Redis) getHostLockDuration() time.Duration {
	defaultDuration := 10 * time.Second

	lockTTLStr := os.Getenv("HOST_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid HOST_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 10 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockHost takes the per-host admission lock. Returns false when another
// admission holds it.
func (r *Redis) LockHost(ctx context.Context, hostID, token string) (bool, error) {
	key := "host_lock:" + hostID
	return r.Client.SetNX(ctx, key, token, r.getHostLockDuration()).Result()
}

// UnlockHost releases the lock only when this caller still owns it, so a
// slow admission never drops a lock a newer one re-acquired after expiry.
func (r *Redis) UnlockHost(ctx context.Context, hostID, token string) error {
	key := fmt.Sprintf("host_lock:%s", hostID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
