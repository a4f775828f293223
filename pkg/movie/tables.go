package movie

import (
	"image"
	"maps"
	"slices"
	"sync"

	"github.com/zurustar/flashstage/pkg/asset"
	"github.com/zurustar/flashstage/pkg/sound"
)

// AssetTables はロード済みアセットの置き場所
// マネージャーの生存期間中は同じポインタが使われ、中身だけが入れ替わる
type AssetTables struct {
	mu           sync.RWMutex
	images       map[string]image.Image
	spriteSheets map[string]*asset.SpriteSheet
	other        map[string][]byte
	sounds       []sound.Descriptor
}

// NewAssetTables は空のテーブルを作成する
func NewAssetTables() *AssetTables {
	return &AssetTables{
		images:       make(map[string]image.Image),
		spriteSheets: make(map[string]*asset.SpriteSheet),
		other:        make(map[string][]byte),
	}
}

func (t *AssetTables) Image(id string) (image.Image, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	img, ok := t.images[id]
	return img, ok
}

func (t *AssetTables) SetImage(id string, img image.Image) {
	t.mu.Lock()
	t.images[id] = img
	t.mu.Unlock()
}

func (t *AssetTables) SpriteSheet(id string) (*asset.SpriteSheet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.spriteSheets[id]
	return s, ok
}

func (t *AssetTables) SetSpriteSheet(id string, s *asset.SpriteSheet) {
	t.mu.Lock()
	t.spriteSheets[id] = s
	t.mu.Unlock()
}

// Other は image/sound/spritesheet 以外のアイテムの生データを返す
func (t *AssetTables) Other(id string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.other[id]
	return b, ok
}

func (t *AssetTables) SetOther(id string, data []byte) {
	t.mu.Lock()
	t.other[id] = data
	t.mu.Unlock()
}

// AppendSound は一括アンロード用にサウンド記述子を保持する
func (t *AssetTables) AppendSound(d sound.Descriptor) {
	t.mu.Lock()
	t.sounds = append(t.sounds, d)
	t.mu.Unlock()
}

// Sounds は保持しているサウンド記述子のコピーを返す
func (t *AssetTables) Sounds() []sound.Descriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.sounds)
}

// Images は画像テーブルのスナップショットを返す
func (t *AssetTables) Images() map[string]image.Image {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.images)
}

// SpriteSheets はスプライトシートテーブルのスナップショットを返す
func (t *AssetTables) SpriteSheets() map[string]*asset.SpriteSheet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.spriteSheets)
}

// adopt は画像とスプライトシートのテーブルをキャッシュのコピーで置き換える
// コピーなので共有されたキャッシュエントリには書き込まない
func (t *AssetTables) adopt(images map[string]image.Image, sheets map[string]*asset.SpriteSheet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.images = make(map[string]image.Image, len(images))
	maps.Copy(t.images, images)
	t.spriteSheets = make(map[string]*asset.SpriteSheet, len(sheets))
	maps.Copy(t.spriteSheets, sheets)
}

// Clear は全テーブルを空にする
func (t *AssetTables) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.images)
	clear(t.spriteSheets)
	clear(t.other)
	t.sounds = nil
}
