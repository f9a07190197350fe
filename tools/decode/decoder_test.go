package decode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type sendPayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
	Limit   int    `json:"limit"`
}

func TestJSONWeakTyping(t *testing.T) {
	// Javascript clients send numbers as float64 and sometimes numbers where
	// strings are expected.
	raw := []byte(`{"chatId": 42, "content": "hi", "limit": 10.0}`)
	got, err := JSON[sendPayload](raw)
	if err != nil {
		t.Fatal(err)
	}
	want := &sendPayload{ChatID: "42", Content: "hi", Limit: 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestJSONRejectsNonObject(t *testing.T) {
	if _, err := JSON[sendPayload]([]byte(`"just a string"`)); err == nil {
		t.Fatal("want error for non-object payload")
	}
}

type idsPayload struct {
	MessageIDs []string `json:"messageIds"`
}

func TestSliceOfNumbersToStrings(t *testing.T) {
	raw := []byte(`{"messageIds": ["m1", 2, "m3"]}`)
	got, err := JSON[idsPayload](raw)
	if err != nil {
		t.Fatal(err)
	}
	want := &idsPayload{MessageIDs: []string{"m1", "2", "m3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
