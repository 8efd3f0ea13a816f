package apikey

import (
	"errors"
	"sync"
	"testing"
)

func TestManagerOpenMode(t *testing.T) {
	m := NewManager(nil, 1)

	if !m.Open() {
		t.Fatalf("manager with no keys should be open")
	}
	for i := 0; i < 5; i++ {
		if _, err := m.Use("anything"); err != nil {
			t.Fatalf("open manager rejected key: %v", err)
		}
	}
	if _, err := m.Use(""); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestManagerUsageCap(t *testing.T) {
	m := NewManager(map[string]int{"test_key": 0}, 2)

	for want := 1; want <= 2; want++ {
		n, err := m.Use("test_key")
		if err != nil {
			t.Fatalf("use %d returned error: %v", want, err)
		}
		if n != want {
			t.Fatalf("usage = %d, want %d", n, want)
		}
	}

	if _, err := m.Use("test_key"); !errors.Is(err, ErrUsageExceeded) {
		t.Fatalf("expected ErrUsageExceeded, got %v", err)
	}
	if _, err := m.Use("nope"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}

	if err := m.Reset("test_key"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if _, err := m.Use("test_key"); err != nil {
		t.Fatalf("use after reset returned error: %v", err)
	}
}

func TestManagerUnlimited(t *testing.T) {
	m := NewManager(map[string]int{"k": 100}, 0)
	if _, err := m.Use("k"); err != nil {
		t.Fatalf("unlimited manager rejected key: %v", err)
	}
}

func TestManagerAddRemove(t *testing.T) {
	m := NewManager(map[string]int{"a": 3}, 0)

	if err := m.Add("b"); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := m.Add("b"); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
	if err := m.Add("  "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	if got := m.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Keys() = %v", got)
	}

	if err := m.Remove("a"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := m.Remove("a"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if err := m.Reset("a"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}

	if err := m.Remove("b"); !errors.Is(err, ErrLastKey) {
		t.Fatalf("expected ErrLastKey, got %v", err)
	}
	if m.Open() {
		t.Fatal("manager opened up after its keys were removed")
	}
	if err := m.Check("stranger"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestManagerSnapshotIsCopy(t *testing.T) {
	seed := map[string]int{"a": 1}
	m := NewManager(seed, 0)
	seed["a"] = 99

	snap := m.Snapshot()
	if snap["a"] != 1 {
		t.Fatalf("manager shares the seed map")
	}
	snap["a"] = 42
	if n, _ := m.Usage("a"); n != 1 {
		t.Fatalf("snapshot shares the manager map")
	}
}

func TestManagerResetAll(t *testing.T) {
	m := NewManager(map[string]int{"a": 4, "b": 7}, 0)
	if n := m.ResetAll(); n != 2 {
		t.Fatalf("ResetAll() = %d, want 2", n)
	}
	for k, v := range m.Snapshot() {
		if v != 0 {
			t.Errorf("%s usage = %d after ResetAll", k, v)
		}
	}
}

func TestManagerConcurrentUse(t *testing.T) {
	const limit = 50
	m := NewManager(map[string]int{"k": 0}, limit)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Use("k"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != limit {
		t.Fatalf("%d uses succeeded, want exactly %d", ok, limit)
	}
}

func TestMask(t *testing.T) {
	for in, want := range map[string]string{
		"":         "",
		"ab":       "**",
		"test_key": "te******",
	} {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestManagerSync(t *testing.T) {
	m := NewManager(map[string]int{"a": 4, "b": 1}, 0)

	m.Sync(map[string]int{"a": 2, "c": 7})

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() = %v, want keys a and c", snap)
	}
	if snap["a"] != 4 {
		t.Errorf("a usage = %d, want the higher in-memory count 4", snap["a"])
	}
	if snap["c"] != 7 {
		t.Errorf("c usage = %d, want 7", snap["c"])
	}
	if _, ok := m.Usage("b"); ok {
		t.Errorf("b should have been removed")
	}
}
