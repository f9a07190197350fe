package client

import (
	"encoding/json"
	"sync"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
)

// PresenceMap is the client's merged view of user presence. Snapshots arrive
// as full maps; entries are merged per user so a missed broadcast never
// removes someone we already know about.
type PresenceMap struct {
	mu   sync.RWMutex
	recs map[string]model.PresenceRecord

	// OnChange fires for every user whose record changed in a merge.
	OnChange func(userID string, rec model.PresenceRecord)
}

func NewPresenceMap() *PresenceMap {
	return &PresenceMap{recs: make(map[string]model.PresenceRecord)}
}

// Attach subscribes the map to the session's presence broadcasts and returns
// the remover.
func (p *PresenceMap) Attach(s *Session) func() {
	return s.On(chatsvc.EvUserStatusUpdate, func(data json.RawMessage) {
		var snapshot map[string]model.PresenceRecord
		if json.Unmarshal(data, &snapshot) != nil {
			return
		}
		p.Merge(snapshot)
	})
}

func (p *PresenceMap) Merge(snapshot map[string]model.PresenceRecord) {
	var changed []string
	p.mu.Lock()
	for user, rec := range snapshot {
		if cur, ok := p.recs[user]; !ok || cur != rec {
			p.recs[user] = rec
			changed = append(changed, user)
		}
	}
	p.mu.Unlock()

	if p.OnChange == nil {
		return
	}
	for _, user := range changed {
		p.mu.RLock()
		rec := p.recs[user]
		p.mu.RUnlock()
		p.OnChange(user, rec)
	}
}

func (p *PresenceMap) Get(userID string) (model.PresenceRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.recs[userID]
	return rec, ok
}

func (p *PresenceMap) Online(userID string) bool {
	rec, ok := p.Get(userID)
	return ok && rec.Online
}
