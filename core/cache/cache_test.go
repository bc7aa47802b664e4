package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLRUEviction(t *testing.T) {
	c := New[int, string](Config{MaxSize: 2})
	c.Put(1, "one")
	c.Put(2, "two")
	c.Get(1)
	c.Put(3, "three")

	if _, ok := c.Get(2); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, k := range []int{1, 3} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %d evicted", k)
		}
	}
	s := c.Stats()
	if s.Evictions != 1 || s.Size != 2 || s.MaxSize != 2 || s.Hits != 3 || s.Misses != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	c := New[string, int](Config{MaxSize: 2})
	c.Put("a", 1)
	c.Put("a", 2)
	if v, _ := c.Get("a"); v != 2 || c.Len() != 1 {
		t.Errorf("Get(a) = %d, Len = %d", v, c.Len())
	}
}

func TestLRUTTL(t *testing.T) {
	c := New[string, int](Config{TTL: time.Minute})
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("k", 1)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len = %d", c.Len())
	}
}

func TestLRURemoveAndClear(t *testing.T) {
	c := New[int, int](Config{})
	for i := range 5 {
		c.Put(i, i*i)
	}
	c.Remove(2)
	if _, ok := c.Get(2); ok {
		t.Error("removed entry returned")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New[int, int](Config{MaxSize: 4})
	var mu sync.Mutex
	calls := 0
	compute := func() (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return 42, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.GetOrCompute(7, compute); err != nil || v != 42 {
				t.Errorf("GetOrCompute = %d, %v", v, err)
			}
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("compute called %d times", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCompute(8, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("error = %v", err)
	}
	if _, ok := c.Get(8); ok {
		t.Error("failed computation was cached")
	}
}
