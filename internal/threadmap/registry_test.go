package threadmap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestResolveOrCreateStable(t *testing.T) {
	var creates int32
	r := NewRegistry(0, func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&creates, 1)
		return fmt.Sprintf("thread_%d", n), nil
	})

	first, err := r.ResolveOrCreate(context.Background(), "discord:100")
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := r.ResolveOrCreate(context.Background(), "discord:100")
		if err != nil {
			t.Fatalf("ResolveOrCreate() error = %v", err)
		}
		if got != first {
			t.Fatalf("ResolveOrCreate() = %q, want stable %q", got, first)
		}
	}
	if creates != 1 {
		t.Fatalf("backend creates = %d, want 1", creates)
	}
}

func TestResolveOrCreateConcurrentFirstUse(t *testing.T) {
	var creates int32
	r := NewRegistry(0, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&creates, 1)
		return "thread_a", nil
	})

	const callers = 32
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.ResolveOrCreate(context.Background(), "discord:race")
			if err != nil {
				t.Errorf("ResolveOrCreate() error = %v", err)
				return
			}
			results[i] = id
		}(i)
	}
	wg.Wait()

	if creates != 1 {
		t.Fatalf("backend creates = %d, want 1 under concurrent first use", creates)
	}
	for i, id := range results {
		if id != "thread_a" {
			t.Fatalf("caller %d got %q, want thread_a", i, id)
		}
	}
}

func TestResolveOrCreateErrorNotCached(t *testing.T) {
	fail := true
	r := NewRegistry(0, func(ctx context.Context) (string, error) {
		if fail {
			return "", fmt.Errorf("backend down")
		}
		return "thread_b", nil
	})

	if _, err := r.ResolveOrCreate(context.Background(), "discord:200"); err == nil {
		t.Fatalf("ResolveOrCreate() error = nil, want backend error")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after failed create", r.Len())
	}

	fail = false
	id, err := r.ResolveOrCreate(context.Background(), "discord:200")
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if id != "thread_b" {
		t.Fatalf("ResolveOrCreate() = %q, want thread_b", id)
	}
}

func TestRegistryEvictsOldest(t *testing.T) {
	var creates int32
	r := NewRegistry(2, func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&creates, 1)
		return fmt.Sprintf("thread_%d", n), nil
	})

	ctx := context.Background()
	a, _ := r.ResolveOrCreate(ctx, "discord:a")
	if _, err := r.ResolveOrCreate(ctx, "discord:b"); err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	// Touch a so b becomes the eviction candidate.
	if got, _ := r.ResolveOrCreate(ctx, "discord:a"); got != a {
		t.Fatalf("ResolveOrCreate() = %q, want %q", got, a)
	}
	if _, err := r.ResolveOrCreate(ctx, "discord:c"); err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	// a survived; b was evicted and re-creates a thread.
	if got, _ := r.ResolveOrCreate(ctx, "discord:a"); got != a {
		t.Fatalf("a rebound to %q, want cached %q", got, a)
	}
	before := atomic.LoadInt32(&creates)
	if _, err := r.ResolveOrCreate(ctx, "discord:b"); err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if atomic.LoadInt32(&creates) != before+1 {
		t.Fatalf("backend creates = %d, want %d after eviction of b", creates, before+1)
	}
}
