package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mapStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMapStore() *mapStore {
	return &mapStore{counts: make(map[string]int64)}
}

func (s *mapStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestCheckAdmitsUpToLimit(t *testing.T) {
	svc := New(newMapStore(), 10, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d := svc.Check(ctx, "1.2.3.4")
		if !d.Allowed {
			t.Fatalf("request %d within quota must be admitted: %+v", i, d)
		}
	}

	d := svc.Check(ctx, "1.2.3.4")
	if d.Allowed {
		t.Fatal("11th request in the window must be denied")
	}
	if d.Reason == "" {
		t.Error("denial must carry a reason")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Hour {
		t.Errorf("retry-after must point at the window boundary, got %v", d.RetryAfter)
	}
}

func TestCheckIsolatesIdentities(t *testing.T) {
	svc := New(newMapStore(), 1, time.Hour)
	ctx := context.Background()

	if d := svc.Check(ctx, "1.2.3.4"); !d.Allowed {
		t.Fatal("first identity must be admitted")
	}
	if d := svc.Check(ctx, "5.6.7.8"); !d.Allowed {
		t.Fatal("second identity has its own counter")
	}
	if d := svc.Check(ctx, "1.2.3.4"); d.Allowed {
		t.Fatal("first identity is now over quota")
	}
}

func TestCheckConcurrentNeverExceedsQuota(t *testing.T) {
	const limit = 10
	svc := New(newMapStore(), limit, time.Hour)

	var wg sync.WaitGroup
	var admitted int64
	var mu sync.Mutex

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := svc.Check(context.Background(), "1.2.3.4"); d.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Errorf("expected exactly %d admits under concurrency, got %d", limit, admitted)
	}
}

func TestCheckStoreFailureAdmits(t *testing.T) {
	svc := New(failingStore{}, 1, time.Hour)

	d := svc.Check(context.Background(), "1.2.3.4")
	if !d.Allowed {
		t.Fatal("a quota store outage must not refuse traffic")
	}
}
