package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	presencePrefix = "online:"
	presenceValue  = "1"
	scanCount      = 200
)

// presence key: online:<userId>
// Value is a liveness marker only; the TTL is the safety net for crashed nodes.
func PresenceKey(userID int64) string {
	return presencePrefix + strconv.FormatInt(userID, 10)
}

// RedisPresence is the Redis-backed presence store.
type RedisPresence struct {
	rdb redis.UniversalClient
}

func NewRedisPresence(rdb redis.UniversalClient) *RedisPresence {
	return &RedisPresence{rdb: rdb}
}

// SetOnline writes the marker and (re)sets its TTL. Heartbeats call it too,
// so a key lost during an outage comes back on the next tick.
func (p *RedisPresence) SetOnline(ctx context.Context, userID int64, ttl time.Duration) error {
	if err := p.rdb.Set(ctx, PresenceKey(userID), presenceValue, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set presence user=%d", userID)
	}
	return nil
}

// SetOffline deletes the marker; deleting a missing key is fine.
func (p *RedisPresence) SetOffline(ctx context.Context, userID int64) error {
	if err := p.rdb.Del(ctx, PresenceKey(userID)).Err(); err != nil {
		return errors.Wrapf(err, "del presence user=%d", userID)
	}
	return nil
}

// OnlineUsers scans every online:* key. Keys whose suffix is not a user id
// are skipped.
func (p *RedisPresence) OnlineUsers(ctx context.Context) ([]int64, error) {
	iter := p.rdb.Scan(ctx, 0, presencePrefix+"*", scanCount).Iterator()
	var out []int64
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), presencePrefix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scan presence")
	}
	return out, nil
}

// Ping is used by the health probe.
func (p *RedisPresence) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
