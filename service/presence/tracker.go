package presence

import (
	"context"
	"sync"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/metrics"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	"github.com/Pabblusansky/Pelegram-sub000/tools/safe"
)

// Store persists last-active timestamps so presence survives a server
// restart instead of starting "unknown". The Redis implementation lives in
// service/storage.
type Store interface {
	Load(ctx context.Context) (map[string]int64, error) // user id -> last active (unix ms)
	Save(ctx context.Context, userID string, lastActive int64, online bool) error
}

// Broadcast publishes the full current snapshot, not a delta: clients merge
// it into their own map so per-user subscriptions stay correct even after a
// missed update.
type Broadcast func(snapshot map[string]model.PresenceRecord)

type Config struct {
	SweepEvery    time.Duration    // demotion check interval (default 60s)
	IdleThreshold time.Duration    // online -> offline after this idle time (default 5m)
	Clock         func() time.Time // injectable for tests; nil => time.Now
}

func (c *Config) norm() {
	if c.SweepEvery <= 0 {
		c.SweepEvery = 60 * time.Second
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 5 * time.Minute
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

type record struct {
	lastActive int64
	online     bool
}

// Tracker is the server-side presence registry. Per user the state machine is
// unknown -> online -> (idle sweep) -> offline, with a direct online ->
// offline edge on explicit logout/disconnect.
type Tracker struct {
	mu   sync.RWMutex
	recs map[string]*record

	cfg       Config
	store     Store // may be nil
	broadcast Broadcast

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewTracker(cfg Config, store Store, broadcast Broadcast) *Tracker {
	cfg.norm()
	t := &Tracker{
		recs:      make(map[string]*record),
		cfg:       cfg,
		store:     store,
		broadcast: broadcast,
		stopCh:    make(chan struct{}),
	}
	t.seed()
	return t
}

// seed loads persisted last-active stamps; everyone starts offline, but with
// a real timestamp instead of "unknown".
func (t *Tracker) seed() {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stamps, err := t.store.Load(ctx)
	if err != nil {
		logger.Warnf("[presence] seed failed: %v", err)
		return
	}
	t.mu.Lock()
	for user, ts := range stamps {
		t.recs[user] = &record{lastActive: ts}
	}
	t.mu.Unlock()
}

// Start launches the idle sweeper. Stop releases it.
func (t *Tracker) Start() {
	safe.Go(t.sweeper)
}

func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// RecordActivity marks the user online and refreshes last-active. Any
// activity signal qualifies: connect, heartbeat, message send.
func (t *Tracker) RecordActivity(userID string) {
	if userID == "" {
		return
	}
	now := t.cfg.Clock().UnixMilli()
	t.mu.Lock()
	r := t.recs[userID]
	if r == nil {
		r = &record{}
		t.recs[userID] = r
	}
	changed := !r.online
	r.online = true
	r.lastActive = now
	t.mu.Unlock()

	t.persist(userID, now, true)
	if changed {
		t.publish()
	}
}

// SetOffline is the explicit logout/disconnect edge.
func (t *Tracker) SetOffline(userID string) {
	if userID == "" {
		return
	}
	now := t.cfg.Clock().UnixMilli()
	t.mu.Lock()
	r := t.recs[userID]
	changed := r != nil && r.online
	if r != nil {
		r.online = false
		r.lastActive = now
	}
	t.mu.Unlock()

	t.persist(userID, now, false)
	if changed {
		t.publish()
	}
}

// Snapshot returns the full current map (id -> record).
func (t *Tracker) Snapshot() map[string]model.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]model.PresenceRecord, len(t.recs))
	for user, r := range t.recs {
		out[user] = model.PresenceRecord{LastActive: r.lastActive, Online: r.online}
	}
	return out
}

func (t *Tracker) sweeper() {
	ticker := time.NewTicker(t.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			t.sweepOnce(now)
		}
	}
}

// sweepOnce demotes idle users; a broadcast goes out only when at least one
// state actually changed.
func (t *Tracker) sweepOnce(now time.Time) {
	metrics.PresenceSweeps.Inc()
	cutoff := now.Add(-t.cfg.IdleThreshold).UnixMilli()

	t.mu.Lock()
	changed := false
	for _, r := range t.recs {
		if r.online && r.lastActive < cutoff {
			r.online = false
			changed = true
		}
	}
	t.mu.Unlock()

	if changed {
		t.publish()
	}
}

func (t *Tracker) persist(userID string, lastActive int64, online bool) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.store.Save(ctx, userID, lastActive, online); err != nil {
		logger.Warnf("[presence] persist %s: %v", userID, err)
	}
}

func (t *Tracker) publish() {
	if t.broadcast == nil {
		return
	}
	t.broadcast(t.Snapshot())
}
