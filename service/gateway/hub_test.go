package gateway

import (
	"encoding/json"
	"testing"
	"time"
)

func drain(t *testing.T, c *Client) *Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		f, err := ParseFrame(raw)
		if err != nil {
			t.Fatalf("parse delivered frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubToChatReachesJoinedMembers(t *testing.T) {
	rooms := NewRooms()
	hub := NewHub("node1", rooms, 1, 16)
	alice := testClient("conn1", "alice")
	bob := testClient("conn2", "bob")
	outsider := testClient("conn3", "carol")
	rooms.Join(ChatRoom("c1"), alice)
	rooms.Join(ChatRoom("c1"), bob)
	rooms.Join(ChatRoom("c2"), outsider)

	hub.ToChat("c1", "receive_message", map[string]string{"_id": "m1"})

	for _, c := range []*Client{alice, bob} {
		f := drain(t, c)
		if f.Event != "receive_message" {
			t.Errorf("event = %q", f.Event)
		}
	}
	assertEmpty(t, outsider)
}

func TestHubExceptSkipsEveryDeviceOfUser(t *testing.T) {
	rooms := NewRooms()
	hub := NewHub("node1", rooms, 1, 16)
	phone := testClient("conn1", "alice")
	laptop := testClient("conn2", "alice")
	bob := testClient("conn3", "bob")
	for _, c := range []*Client{phone, laptop, bob} {
		rooms.Join(ChatRoom("c1"), c)
	}

	hub.ToChatExcept("c1", "alice", "typing", map[string]any{"chatId": "c1", "isTyping": true})

	drain(t, bob)
	assertEmpty(t, phone)
	assertEmpty(t, laptop)
}

type captureBridge struct {
	envs []Envelope
}

func (b *captureBridge) Publish(env Envelope) error {
	b.envs = append(b.envs, env)
	return nil
}

func TestHubBridgePublishAndEchoSuppression(t *testing.T) {
	rooms := NewRooms()
	hub := NewHub("node1", rooms, 1, 16)
	bridge := &captureBridge{}
	hub.SetBridge(bridge)
	alice := testClient("conn1", "alice")
	rooms.Join(UserRoom("alice"), alice)

	hub.ToUser("alice", "new_chat_created", map[string]string{"_id": "c9"})
	drain(t, alice)

	if len(bridge.envs) != 1 {
		t.Fatalf("bridge publishes = %d, want 1", len(bridge.envs))
	}
	env := bridge.envs[0]
	if env.Origin != "node1" || env.Room != UserRoom("alice") || env.Event != "new_chat_created" {
		t.Errorf("envelope = %+v", env)
	}

	// A node replaying its own envelope must not double-deliver.
	hub.DeliverRemote(env)
	assertEmpty(t, alice)

	// An envelope from a sibling node delivers normally.
	env.Origin = "node2"
	hub.DeliverRemote(env)
	f := drain(t, alice)
	if f.Event != "new_chat_created" {
		t.Errorf("event = %q", f.Event)
	}
	var payload map[string]string
	if err := json.Unmarshal(f.Data, &payload); err != nil || payload["_id"] != "c9" {
		t.Errorf("payload = %s", f.Data)
	}
}

func TestDispatcherRoutesByEvent(t *testing.T) {
	d := NewDispatcher()
	var gotEvent, gotAck string
	d.Register("join_chat", func(_ *Client, data json.RawMessage, ack string) error {
		gotEvent = "join_chat"
		gotAck = ack
		return nil
	})

	f := &Frame{Event: "join_chat", Data: json.RawMessage(`{"chatId":"c1"}`), Ack: "a1"}
	if err := d.Dispatch(testClient("conn1", "alice"), f); err != nil {
		t.Fatal(err)
	}
	if gotEvent != "join_chat" || gotAck != "a1" {
		t.Errorf("dispatched = %q ack %q", gotEvent, gotAck)
	}

	if err := d.Dispatch(testClient("conn1", "alice"), &Frame{Event: "bogus"}); err == nil {
		t.Error("unknown event must error")
	}
}
