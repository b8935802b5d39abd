package localstore

import (
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestRecentLog_CapEviction(t *testing.T) {
	log := NewRecentLog(testStore(t))

	for _, k := range []string{"k1", "k2", "k3", "k4", "k5"} {
		if err := log.Push(k); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if got := log.Keys(); len(got) != 5 || got[0] != "k5" || got[4] != "k1" {
		t.Fatalf("after 5 pushes keys = %v", got)
	}

	// A 6th distinct key evicts the oldest.
	if err := log.Push("k6"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got := log.Keys()
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0] != "k6" {
		t.Errorf("head = %q, want k6", got[0])
	}
	for _, k := range got {
		if k == "k1" {
			t.Error("oldest key k1 should have been evicted")
		}
	}
}

func TestRecentLog_ReinsertMovesToFront(t *testing.T) {
	log := NewRecentLog(testStore(t))
	for _, k := range []string{"a", "b", "c"} {
		if err := log.Push(k); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if err := log.Push("a"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got := log.Keys()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (no growth on re-insert)", len(got))
	}
	if got[0] != "a" || got[1] != "c" || got[2] != "b" {
		t.Errorf("keys = %v, want [a c b]", got)
	}
}

func TestRecentLog_EmptyReadsAsEmpty(t *testing.T) {
	log := NewRecentLog(testStore(t))
	if got := log.Keys(); len(got) != 0 {
		t.Errorf("fresh log keys = %v, want empty", got)
	}
	if log.Contains("x") {
		t.Error("Contains on empty log = true")
	}
}

func TestStore_RoundTripAndDelete(t *testing.T) {
	s := testStore(t)
	type blob struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	if err := s.Put("b", blob{Name: "x", N: 7}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var out blob
	if err := s.Get("b", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Name != "x" || out.N != 7 {
		t.Errorf("got %+v", out)
	}
	if err := s.Delete("b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get("b", &out); err == nil {
		t.Error("expected error reading deleted key")
	}
	// Deleting again is not an error.
	if err := s.Delete("b"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}
