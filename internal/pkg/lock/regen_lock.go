// internal/pkg/lock/regen_lock.go
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	xerrors "postflow-service/internal/pkg/errors"
)

// releaseScript deletes the lock key only if it still holds our token, so an
// expired lease cannot release a lock another holder re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Manager hands out campaign-level regeneration leases backed by redis
// SET NX PX. Dispatch checks Held before claiming a campaign's posts;
// regeneration acquires the lease for its full duration.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{client: client, ttl: ttl}
}

type Lease struct {
	manager *Manager
	key     string
	token   string
}

func regenKey(campaignID int64) string {
	return fmt.Sprintf("postflow:regen:%d", campaignID)
}

// Acquire takes the campaign's regeneration lock or fails with
// ErrRegenerationConflict if another holder has it.
func (m *Manager) Acquire(ctx context.Context, campaignID int64) (*Lease, error) {
	token := ulid.Make().String()
	key := regenKey(campaignID)

	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire regeneration lock: %w", err)
	}
	if !ok {
		return nil, xerrors.ErrRegenerationConflict
	}
	return &Lease{manager: m, key: key, token: token}, nil
}

// Held reports whether a regeneration lease is currently active for the
// campaign.
func (m *Manager) Held(ctx context.Context, campaignID int64) (bool, error) {
	n, err := m.client.Exists(ctx, regenKey(campaignID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check regeneration lock: %w", err)
	}
	return n > 0, nil
}

// Release frees the lease if it is still ours. Releasing an expired lease is
// a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.manager.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release regeneration lock: %w", err)
	}
	return nil
}
