package storage

import (
	"context"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(ctx context.Context, c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "redis ping")
	}
	return rdb, nil
}

// presence key: im:presence:<user>
// Value "1", TTL controls the online validity window for other nodes.
func presenceKey(user string) string { return "im:presence:" + user }

const lastActiveKey = "im:presence:last_active"

// PresenceStore persists presence so a restarted node seeds real last-active
// stamps instead of "unknown". Implements presence.Store.
type PresenceStore struct {
	rdb *redis.Client
	ttl time.Duration // online marker validity
}

func NewPresenceStore(rdb *redis.Client, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{rdb: rdb, ttl: ttl}
}

// Load returns every persisted last-active stamp (user id -> unix ms).
func (s *PresenceStore) Load(ctx context.Context) (map[string]int64, error) {
	vals, err := s.rdb.HGetAll(ctx, lastActiveKey).Result()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load last active")
	}
	out := make(map[string]int64, len(vals))
	for user, raw := range vals {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[user] = ts
	}
	return out, nil
}

// Save updates the last-active stamp and maintains the online marker.
func (s *PresenceStore) Save(ctx context.Context, userID string, lastActive int64, online bool) error {
	if err := s.rdb.HSet(ctx, lastActiveKey, userID, lastActive).Err(); err != nil {
		return pkgerrors.Wrap(err, "save last active")
	}
	if online {
		return pkgerrors.Wrap(s.rdb.Set(ctx, presenceKey(userID), "1", s.ttl).Err(), "set online marker")
	}
	return pkgerrors.Wrap(s.rdb.Del(ctx, presenceKey(userID)).Err(), "clear online marker")
}

// PresenceLookup reports whether another node currently marks the user online.
func (s *PresenceStore) PresenceLookup(ctx context.Context, userID string) (bool, error) {
	_, err := s.rdb.Get(ctx, presenceKey(userID)).Result()
	if pkgerrors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "presence lookup")
	}
	return true, nil
}
