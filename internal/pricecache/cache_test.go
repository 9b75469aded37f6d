package pricecache

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetSet(t *testing.T) {
	c := New()
	if _, ok := c.Get("bitcoin"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set("bitcoin", 50000)
	p, ok := c.Get("bitcoin")
	if !ok || p != 50000 {
		t.Errorf("Get(bitcoin) = %v, %v", p, ok)
	}
}

func TestMergeKeepsAbsentKeys(t *testing.T) {
	c := New()
	c.Merge(map[string]float64{"bitcoin": 50000, "ethereum": 3000})

	n := c.Merge(map[string]float64{"bitcoin": 51000, "solana": 150})
	if n != 2 {
		t.Errorf("Merge returned %d, want 2", n)
	}

	want := map[string]float64{"bitcoin": 51000, "ethereum": 3000, "solana": 150}
	got := c.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	c := New()
	c.Set("bitcoin", 1)
	snap := c.Snapshot()
	snap["bitcoin"] = 2
	snap["other"] = 3

	if p, _ := c.Get("bitcoin"); p != 1 {
		t.Errorf("cache mutated through snapshot: %v", p)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestReset(t *testing.T) {
	c := New()
	c.Set("a", 1)
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len after Reset = %d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Merge(map[string]float64{fmt.Sprintf("coin-%d", i%10): float64(i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("coin-%d", i%10))
			c.Snapshot()
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Errorf("Len = %d, want 10", c.Len())
	}
}
