package movie

import (
	"errors"
	"image"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCache_AddContainsGetRemove(t *testing.T) {
	c := NewCache()
	b := &Bundle{Symbols: map[string]Symbol{"Main": {Kind: SymbolContainer}}}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	if err := c.Add("movie.js", b, map[string]image.Image{"img1": img}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !c.Contains("movie.js") {
		t.Fatal("expected key to be cached")
	}
	e, ok := c.Get("movie.js")
	if !ok || e.Bundle != b {
		t.Fatal("Get should return the added bundle")
	}
	if e.Images["img1"] != img {
		t.Error("images not stored")
	}
	if e.SpriteSheets == nil {
		t.Error("sprite sheet table should not be nil")
	}

	if !c.Remove("movie.js") {
		t.Error("Remove should report the key was present")
	}
	if c.Contains("movie.js") {
		t.Error("key should be gone")
	}
	if c.Remove("movie.js") {
		t.Error("second Remove should report false")
	}
}

func TestCache_AddRejectsNilBundle(t *testing.T) {
	c := NewCache()
	if err := c.Add("k", nil, nil, nil); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if c.Contains("k") {
		t.Error("nothing should be stored")
	}
}

func TestCache_AddOverwrites(t *testing.T) {
	c := NewCache()
	first, second := &Bundle{}, &Bundle{}
	_ = c.Add("k", first, nil, nil)
	_ = c.Add("k", second, nil, nil)
	if e, _ := c.Get("k"); e.Bundle != second {
		t.Error("last add should win")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestCache_KeysAndClear(t *testing.T) {
	c := NewCache()
	for _, k := range []string{"b", "a", "c"} {
		_ = c.Add(k, &Bundle{}, nil, nil)
	}
	if got := c.Keys(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Keys = %v", got)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Error("Clear should empty the cache")
	}
}

func TestCache_LoadDeduplicates(t *testing.T) {
	c := NewCache()
	var calls atomic.Int32
	release := make(chan struct{})
	decode := func() (*Bundle, error) {
		calls.Add(1)
		<-release
		return &Bundle{}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]*CacheEntry, n)
	decoded := make([]bool, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, d, err := c.Load("k", decode)
			if err != nil {
				t.Errorf("Load: %v", err)
			}
			results[i], decoded[i] = e, d
		}()
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("decode ran %d times", calls.Load())
	}
	decodedCount := 0
	for i := range n {
		if results[i] == nil || results[i].Bundle != results[0].Bundle {
			t.Fatal("every caller should get the same entry")
		}
		if decoded[i] {
			decodedCount++
		}
	}
	if decodedCount != 1 {
		t.Errorf("exactly one caller should report a decode, got %d", decodedCount)
	}
}

func TestCache_LoadError(t *testing.T) {
	c := NewCache()
	boom := errors.New("boom")
	if _, _, err := c.Load("k", func() (*Bundle, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if c.Contains("k") {
		t.Error("failed decode should not be cached")
	}
}
