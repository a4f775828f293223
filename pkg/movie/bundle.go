package movie

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/zurustar/flashstage/pkg/stage"
)

// AssetType はマニフェスト項目の読み込み方法
type AssetType string

const (
	AssetImage       AssetType = "image"
	AssetSound       AssetType = "sound"
	AssetSpriteSheet AssetType = "spritesheet"
	AssetOther       AssetType = "other"
)

// ManifestEntry はムービーが依存するアセット一つ分
type ManifestEntry struct {
	ID   string    `json:"id"`
	Src  string    `json:"src"`
	Type AssetType `json:"type,omitempty"`
}

// Properties はバンドル全体の設定
type Properties struct {
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	FPS      float64         `json:"fps"`
	Color    string          `json:"color,omitempty"`
	Manifest []ManifestEntry `json:"manifest"`
}

// シンボルの種類
const (
	SymbolContainer = "container"
	SymbolBitmap    = "bitmap"
	SymbolSprite    = "sprite"
)

// Symbol は宣言的な表示オブジェクトのファクトリ
// ImageとSpriteSheetはマニフェストのidを参照する
type Symbol struct {
	Kind        string      `json:"kind"`
	Image       string      `json:"image,omitempty"`
	SpriteSheet string      `json:"spritesheet,omitempty"`
	Animation   string      `json:"animation,omitempty"`
	Children    []Placement `json:"children,omitempty"`
}

// Placement はコンテナシンボル内にシンボルのインスタンスを配置する
type Placement struct {
	Symbol string   `json:"symbol"`
	Name   string   `json:"name,omitempty"`
	X      float64  `json:"x,omitempty"`
	Y      float64  `json:"y,omitempty"`
	ScaleX *float64 `json:"scaleX,omitempty"`
	ScaleY *float64 `json:"scaleY,omitempty"`
	Alpha  *float64 `json:"alpha,omitempty"`
	Hidden bool     `json:"hidden,omitempty"`
}

// Bundle はデコード済みのムービー定義
type Bundle struct {
	Properties Properties        `json:"properties"`
	Symbols    map[string]Symbol `json:"symbols"`
}

// Validate はマネージャーが前提とする構造を検査する
func (b *Bundle) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrTypeMismatch)
	}
	if len(b.Symbols) == 0 {
		return fmt.Errorf("%w: bundle defines no symbols", ErrTypeMismatch)
	}
	if b.Properties.FPS < 0 {
		return fmt.Errorf("%w: negative fps %v", ErrTypeMismatch, b.Properties.FPS)
	}
	return nil
}

// Decoder はスクリプトのペイロードをBundleに変換する
type Decoder interface {
	Decode(data []byte, b *Bundle) error
}

// DecoderFunc は関数をDecoderとして使うためのアダプタ
type DecoderFunc func(data []byte, b *Bundle) error

func (f DecoderFunc) Decode(data []byte, b *Bundle) error { return f(data, b) }

// YAMLDecoder はYAMLまたはJSONで書かれたバンドルをデコードする
type YAMLDecoder struct{}

func (YAMLDecoder) Decode(data []byte, b *Bundle) error {
	if err := yaml.Unmarshal(data, b); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return b.Validate()
}

// Instantiate は指定したシンボルの表示ツリーを構築する
// テーブルに無いアセットはエラーにせず空のビットマップやスプライトになる
// （読み込みに失敗した項目と同じ扱い）
func (b *Bundle) Instantiate(name string, tables *AssetTables) (*stage.DisplayObject, error) {
	return b.instantiate(name, name, tables, map[string]bool{})
}

func (b *Bundle) instantiate(symbol, name string, tables *AssetTables, visiting map[string]bool) (*stage.DisplayObject, error) {
	sym, ok := b.Symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	if visiting[symbol] {
		return nil, fmt.Errorf("%w: symbol %q contains itself", ErrTypeMismatch, symbol)
	}

	switch sym.Kind {
	case SymbolBitmap:
		img, _ := tables.Image(sym.Image)
		return stage.NewBitmap(name, img), nil
	case SymbolSprite:
		sheet, _ := tables.SpriteSheet(sym.SpriteSheet)
		return stage.NewSprite(name, sheet, sym.Animation), nil
	case SymbolContainer, "":
	default:
		return nil, fmt.Errorf("%w: symbol %q has unknown kind %q", ErrTypeMismatch, symbol, sym.Kind)
	}

	visiting[symbol] = true
	defer delete(visiting, symbol)

	c := stage.NewContainer(name)
	for _, p := range sym.Children {
		childName := p.Name
		if childName == "" {
			childName = p.Symbol
		}
		child, err := b.instantiate(p.Symbol, childName, tables, visiting)
		if err != nil {
			return nil, err
		}
		p.apply(child)
		c.AddChild(child)
	}
	return c, nil
}

func (p Placement) apply(o *stage.DisplayObject) {
	o.SetPosition(p.X, p.Y)
	sx, sy := 1.0, 1.0
	if p.ScaleX != nil {
		sx = *p.ScaleX
	}
	if p.ScaleY != nil {
		sy = *p.ScaleY
	}
	o.SetScale(sx, sy)
	if p.Alpha != nil {
		o.SetAlpha(*p.Alpha)
	}
	o.SetVisible(!p.Hidden)
}

// ParseColor は "#rgb", "#rrggbb", "#rrggbbaa" を解析する
func ParseColor(s string) (color.Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return nil, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}
