package ids

import "testing"

func TestNewIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = true
		if prev != "" && id <= prev {
			t.Fatalf("ids not monotonic: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestBuidRoundTrip(t *testing.T) {
	b := Buid()
	if len(b) != 22 {
		t.Fatalf("unexpected buid length: %q", b)
	}
	u, ok := BuidToUUID(b)
	if !ok {
		t.Fatalf("BuidToUUID failed for %q", b)
	}
	back, ok := UUIDToBuid(u)
	if !ok || back != b {
		t.Fatalf("round trip mismatch: %q -> %q -> %q", b, u, back)
	}
}

func TestBuidToUUIDRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-buid!", "short"} {
		if _, ok := BuidToUUID(raw); ok {
			t.Fatalf("expected rejection for %q", raw)
		}
	}
}
