package uid

import (
	"sync"
	"testing"
)

func TestNewIsValid(t *testing.T) {
	id := New()
	if !IsValid(id) {
		t.Fatalf("expected %q to be a valid uuid", id)
	}
	if IsValid("not-a-uuid") {
		t.Fatal("expected garbage to be rejected")
	}
}

func TestGeneratorUnique(t *testing.T) {
	g, err := NewGenerator(7)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	const n = 10000
	ids := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		id := g.Next()
		if id <= 0 {
			t.Fatalf("expected id > 0, got %d", id)
		}
		if _, exists := ids[id]; exists {
			t.Fatalf("duplicate id: %d", id)
		}
		ids[id] = struct{}{}
	}
}

func TestGeneratorConcurrent(t *testing.T) {
	const (
		goroutines = 8
		perRoutine = 2000
	)
	g := Default()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{}, goroutines*perRoutine)
		dup int64
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perRoutine; j++ {
				id := g.Next()
				mu.Lock()
				if _, exists := ids[id]; exists {
					dup = id
				}
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if dup != 0 {
		t.Fatalf("duplicate id in concurrent generation: %d", dup)
	}
}

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	if _, err := NewGenerator(5000); err == nil {
		t.Fatal("expected error for node out of range")
	}
}
