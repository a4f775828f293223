package movie

import (
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zurustar/flashstage/pkg/asset"
)

// CacheEntry はデコード済みバンドルとその読み込み済みアセット
type CacheEntry struct {
	Bundle       *Bundle
	Images       map[string]image.Image
	SpriteSheets map[string]*asset.SpriteSheet
}

// Cache はデコード済みムービーを任意の文字列キーで保持する
// 自動では追い出さない。RemoveやClearは所有者が呼ぶ
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	group   singleflight.Group
}

// NewCache は空のキャッシュを作成する
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CacheEntry)}
}

// Add はkeyのエントリを保存（上書き）する
func (c *Cache) Add(key string, b *Bundle, images map[string]image.Image, sheets map[string]*asset.SpriteSheet) error {
	if key == "" {
		return fmt.Errorf("%w: empty cache key", ErrConfiguration)
	}
	if b == nil {
		return fmt.Errorf("%w: cannot cache a nil bundle", ErrTypeMismatch)
	}
	e := &CacheEntry{
		Bundle:       b,
		Images:       maps.Clone(images),
		SpriteSheets: maps.Clone(sheets),
	}
	if e.Images == nil {
		e.Images = make(map[string]image.Image)
	}
	if e.SpriteSheets == nil {
		e.SpriteSheets = make(map[string]*asset.SpriteSheet)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

func (c *Cache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Remove はkeyを削除し、存在していたかを返す
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys はキャッシュ済みのキーをソートして返す
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := slices.Collect(maps.Keys(c.entries))
	c.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Load はkeyのエントリを返す。無いときだけdecodeを呼ぶ
// 同じキーへの同時呼び出しは一回のdecodeを共有する
// decodedは実際にdecodeを実行した呼び出し元だけtrueになる
func (c *Cache) Load(key string, decode func() (*Bundle, error)) (entry *CacheEntry, decoded bool, err error) {
	if e, ok := c.Get(key); ok {
		return e, false, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.Get(key); ok {
			return e, nil
		}
		b, err := decode()
		if err != nil {
			return nil, err
		}
		decoded = true
		if err := c.Add(key, b, nil, nil); err != nil {
			return nil, err
		}
		e, _ := c.Get(key)
		return e, nil
	})
	if err != nil {
		return nil, decoded, err
	}
	return v.(*CacheEntry), decoded, nil
}
