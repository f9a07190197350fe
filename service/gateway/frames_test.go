package gateway

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Frame
		wantErr bool
	}{
		{
			name: "event with payload and ack",
			raw:  `{"event":"send_message","data":{"chatId":"c1","content":"hi"},"ack":"a1"}`,
			want: &Frame{Event: "send_message", Data: json.RawMessage(`{"chatId":"c1","content":"hi"}`), Ack: "a1"},
		},
		{
			name: "bare event",
			raw:  `{"event":"user_activity"}`,
			want: &Frame{Event: "user_activity"},
		},
		{
			name:    "missing event",
			raw:     `{"data":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `hello`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrame([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("frame (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalFrameRoundTrip(t *testing.T) {
	raw, err := MarshalFrame("receive_message", map[string]string{"_id": "m1"}, "")
	if err != nil {
		t.Fatal(err)
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != "receive_message" {
		t.Errorf("event = %q", f.Event)
	}
	var payload map[string]string
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["_id"] != "m1" {
		t.Errorf("payload = %v", payload)
	}
}

func TestMarshalFrameNilPayload(t *testing.T) {
	raw, err := MarshalFrame("typing", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Data) != 0 {
		t.Errorf("data = %s, want empty", f.Data)
	}
}
