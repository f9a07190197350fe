package reconciler

import (
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/client/timing"
)

const typingCooldown = 2 * time.Second

type typingState int

const (
	typingIdle typingState = iota
	typingActive
	typingCooling
)

// Typing is the outbound typing-indicator state machine: idle, typing,
// cooling-down. Keystrokes while active only re-arm the cooldown; the wire
// sees one `isTyping:true` until the user pauses.
type Typing struct {
	scheduler timing.Scheduler
	send      func(isTyping bool)

	state typingState
	timer timing.Timer
}

func NewTyping(scheduler timing.Scheduler, send func(isTyping bool)) *Typing {
	if scheduler == nil {
		scheduler = timing.RealScheduler()
	}
	return &Typing{scheduler: scheduler, send: send}
}

// Keystroke signals user input in the composer.
func (t *Typing) Keystroke() {
	switch t.state {
	case typingIdle:
		t.state = typingActive
		t.send(true)
	case typingActive, typingCooling:
		t.state = typingActive
		t.timer.Stop()
	}
	t.armCooldown()
}

// Sent signals the message went out; the indicator drops immediately.
func (t *Typing) Sent() { t.stopTyping() }

// Blur signals the composer lost focus.
func (t *Typing) Blur() { t.stopTyping() }

func (t *Typing) armCooldown() {
	t.timer = t.scheduler.AfterFunc(typingCooldown, func() {
		if t.state == typingIdle {
			return
		}
		t.state = typingIdle
		t.timer = nil
		t.send(false)
	})
	if t.state == typingActive {
		t.state = typingCooling
	}
}

func (t *Typing) stopTyping() {
	if t.state == typingIdle {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.state = typingIdle
	t.send(false)
}

// PeerTyping tracks which chat members currently show a typing indicator,
// fed by inbound typing events.
type PeerTyping struct {
	users map[string]bool
}

func NewPeerTyping() *PeerTyping { return &PeerTyping{users: make(map[string]bool)} }

func (p *PeerTyping) Apply(senderID string, isTyping bool) {
	if isTyping {
		p.users[senderID] = true
		return
	}
	delete(p.users, senderID)
}

func (p *PeerTyping) TypingUsers() []string {
	out := make([]string, 0, len(p.users))
	for id := range p.users {
		out = append(out, id)
	}
	return out
}
