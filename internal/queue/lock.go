package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const runLockKey = "membersync:sync:lock:%s"

// Release must only delete the lock if the token still matches, otherwise a
// slow run could release a lock a newer run now holds.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RunLocker serializes sync runs per source across worker instances.
type RunLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRunLocker(client *redis.Client) *RunLocker {
	if client == nil {
		return nil
	}
	return &RunLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock attempts to claim the per-source run lock. The returned token is
// required to release it.
func (l *RunLocker) TryLock(ctx context.Context, source string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if source == "" {
		return "", false, errors.New("lock source is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fmt.Sprintf(runLockKey, source), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RunLocker) Release(ctx context.Context, source, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if source == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{fmt.Sprintf(runLockKey, source)}, token).Err()
}
