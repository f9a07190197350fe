package ids

import (
	"strconv"
	"testing"
)

func TestGenerateMonotonicAndUnique(t *testing.T) {
	prev := Generate()
	for i := 0; i < 5000; i++ {
		id := Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerateStringRoundTrips(t *testing.T) {
	s := GenerateString()
	n, err := strconv.ParseInt(s, 36, 64)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	if n <= 0 {
		t.Errorf("id = %d, want positive", n)
	}
}

func TestSetNodeIDRejectsOutOfRange(t *testing.T) {
	SetNodeID(4096)
	if got := defaultGen.nodeID; got != 1 {
		t.Errorf("node id = %d, want fallback 1", got)
	}
	SetNodeID(42)
	if got := defaultGen.nodeID; got != 42 {
		t.Errorf("node id = %d, want 42", got)
	}
}
