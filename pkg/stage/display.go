// Package stage はムービーを載せる表示オブジェクトツリーを提供する
package stage

import (
	"image"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/zurustar/flashstage/pkg/asset"
)

// Kind は表示オブジェクトの種類
type Kind int

const (
	KindContainer Kind = iota // 子を束ねるだけのコンテナ
	KindBitmap                // 単一画像
	KindSprite                // スプライトシートのアニメーション
)

// String はKindの名前を返す
func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindBitmap:
		return "bitmap"
	case KindSprite:
		return "sprite"
	}
	return "unknown"
}

var nextObjectID atomic.Int64

// DisplayObject はステージ上の表示要素
//
// 描画順序はchildrenスライスの順序で決定される:
// - スライスの先頭 = 最背面（最初に描画）
// - スライスの末尾 = 最前面（最後に描画）
type DisplayObject struct {
	id      int64
	name    string
	kind    Kind
	x, y    float64
	scaleX  float64
	scaleY  float64
	alpha   float64
	visible bool

	// bitmap
	img   image.Image
	ebImg *ebiten.Image // 初回描画時に生成する

	// sprite
	sheet     *asset.SpriteSheet
	anim      string
	animPos   float64 // 現在のアニメーション内の位置（フレーム単位）
	frame     int     // シート上のフレーム番号
	playing   bool
	frameImgs map[int]*ebiten.Image

	parent   *DisplayObject
	children []*DisplayObject
}

func newObject(name string, kind Kind) *DisplayObject {
	return &DisplayObject{
		id:       nextObjectID.Add(1),
		name:     name,
		kind:     kind,
		scaleX:   1,
		scaleY:   1,
		alpha:    1,
		visible:  true,
		children: make([]*DisplayObject, 0),
	}
}

// NewContainer は空のコンテナを作成する
func NewContainer(name string) *DisplayObject {
	return newObject(name, KindContainer)
}

// NewBitmap は画像を表示するオブジェクトを作成する
func NewBitmap(name string, img image.Image) *DisplayObject {
	o := newObject(name, KindBitmap)
	o.img = img
	return o
}

// NewSprite はスプライトシートを再生するオブジェクトを作成する
// animationが空の場合はフレーム0で停止する
func NewSprite(name string, sheet *asset.SpriteSheet, animation string) *DisplayObject {
	o := newObject(name, KindSprite)
	o.sheet = sheet
	o.frameImgs = make(map[int]*ebiten.Image)
	if animation != "" {
		o.GotoAndPlay(animation)
	}
	return o
}

// ID は生成順に振られる一意なIDを返す
func (o *DisplayObject) ID() int64 { return o.id }

// Name はシンボル名を返す
func (o *DisplayObject) Name() string { return o.name }

// Kind は種類を返す
func (o *DisplayObject) Kind() Kind { return o.kind }

// Image はビットマップの画像を返す
func (o *DisplayObject) Image() image.Image { return o.img }

// SpriteSheet はスプライトのシートを返す
func (o *DisplayObject) SpriteSheet() *asset.SpriteSheet { return o.sheet }

// Position は親からの相対位置を返す
func (o *DisplayObject) Position() (float64, float64) {
	return o.x, o.y
}

// SetPosition は親からの相対位置を設定する
func (o *DisplayObject) SetPosition(x, y float64) {
	o.x = x
	o.y = y
}

// Scale は拡大率を返す
func (o *DisplayObject) Scale() (float64, float64) {
	return o.scaleX, o.scaleY
}

// SetScale は拡大率を設定する
func (o *DisplayObject) SetScale(sx, sy float64) {
	o.scaleX = sx
	o.scaleY = sy
}

// Alpha は透明度を返す（0.0〜1.0）
func (o *DisplayObject) Alpha() float64 {
	return o.alpha
}

// SetAlpha は透明度を設定する（0.0〜1.0に丸める）
func (o *DisplayObject) SetAlpha(a float64) {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	o.alpha = a
}

// Visible は可視性を返す
func (o *DisplayObject) Visible() bool {
	return o.visible
}

// SetVisible は可視性を設定する
func (o *DisplayObject) SetVisible(v bool) {
	o.visible = v
}

// Parent は親を返す（ルートやステージ未追加の場合はnil）
func (o *DisplayObject) Parent() *DisplayObject {
	return o.parent
}

// Children は子のスライスのコピーを返す
func (o *DisplayObject) Children() []*DisplayObject {
	out := make([]*DisplayObject, len(o.children))
	copy(out, o.children)
	return out
}

// NumChildren は子の数を返す
func (o *DisplayObject) NumChildren() int {
	return len(o.children)
}

// AddChild は子をスライスの末尾に追加する（最前面に配置）
func (o *DisplayObject) AddChild(child *DisplayObject) {
	if child == nil || child == o {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = o
	o.children = append(o.children, child)
}

// RemoveChild は子を削除する。削除した場合はtrueを返す
func (o *DisplayObject) RemoveChild(child *DisplayObject) bool {
	for i, c := range o.children {
		if c == child {
			c.parent = nil
			o.children = append(o.children[:i], o.children[i+1:]...)
			return true
		}
	}
	return false
}

// ChildByName は名前で直下の子を探す
func (o *DisplayObject) ChildByName(name string) *DisplayObject {
	for _, c := range o.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Walk は自身と子孫を深さ優先（描画順）で訪問する
func (o *DisplayObject) Walk(fn func(*DisplayObject)) {
	fn(o)
	for _, c := range o.children {
		c.Walk(fn)
	}
}

// EffectiveAlpha は親を考慮した実効透明度を返す
func (o *DisplayObject) EffectiveAlpha() float64 {
	alpha := o.alpha
	if o.parent != nil {
		alpha *= o.parent.EffectiveAlpha()
	}
	return alpha
}

// IsEffectivelyVisible は親が非表示なら子も非表示として扱う
func (o *DisplayObject) IsEffectivelyVisible() bool {
	if !o.visible {
		return false
	}
	if o.parent != nil {
		return o.parent.IsEffectivelyVisible()
	}
	return true
}

// AbsolutePosition は親の変換を適用した位置を返す
func (o *DisplayObject) AbsolutePosition() (float64, float64) {
	if o.parent == nil {
		return o.x, o.y
	}
	px, py := o.parent.AbsolutePosition()
	sx, sy := o.parent.absoluteScale()
	return px + o.x*sx, py + o.y*sy
}

func (o *DisplayObject) absoluteScale() (float64, float64) {
	sx, sy := o.scaleX, o.scaleY
	if o.parent != nil {
		px, py := o.parent.absoluteScale()
		sx *= px
		sy *= py
	}
	return sx, sy
}

// ============================================================================
// スプライトのアニメーション
// ============================================================================

// GotoAndPlay はアニメーションを先頭から再生する
func (o *DisplayObject) GotoAndPlay(animation string) bool {
	if o.sheet == nil {
		return false
	}
	anim, ok := o.sheet.Animation(animation)
	if !ok || len(anim.Frames) == 0 {
		return false
	}
	o.anim = animation
	o.animPos = 0
	o.frame = anim.Frames[0]
	o.playing = true
	return true
}

// GotoAndStop は指定フレームで停止する
func (o *DisplayObject) GotoAndStop(frame int) {
	o.anim = ""
	o.animPos = 0
	o.frame = frame
	o.playing = false
}

// Stop は再生を止める
func (o *DisplayObject) Stop() {
	o.playing = false
}

// Playing は再生中かどうかを返す
func (o *DisplayObject) Playing() bool {
	return o.playing
}

// CurrentAnimation は再生中のアニメーション名を返す
func (o *DisplayObject) CurrentAnimation() string {
	return o.anim
}

// CurrentFrame はシート上の現在フレーム番号を返す
func (o *DisplayObject) CurrentFrame() int {
	return o.frame
}

// advance はスプライトを1ティック分進める
func (o *DisplayObject) advance() {
	if o.kind != KindSprite || !o.playing || o.sheet == nil {
		return
	}
	anim, ok := o.sheet.Animation(o.anim)
	if !ok || len(anim.Frames) == 0 {
		o.playing = false
		return
	}

	o.animPos += anim.Speed
	if int(o.animPos) < len(anim.Frames) {
		o.frame = anim.Frames[int(o.animPos)]
		return
	}

	// 末尾に到達
	if anim.Next == "" || !o.GotoAndPlay(anim.Next) {
		o.frame = anim.Frames[len(anim.Frames)-1]
		o.playing = false
	}
}
