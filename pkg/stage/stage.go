package stage

import (
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// Tickable は毎フレームのティックを受け取る
type Tickable interface {
	Tick()
}

// Stage は表示オブジェクトツリーのルートを持つ描画面
type Stage struct {
	mu          sync.Mutex
	width       int
	height      int
	background  color.Color
	root        *DisplayObject
	renderCount int
	tickCount   int
}

// NewStage は指定サイズのステージを作成する
func NewStage(width, height int) *Stage {
	return &Stage{
		width:      width,
		height:     height,
		background: color.Transparent,
		root:       NewContainer("stage"),
	}
}

// Size はステージのサイズを返す
func (s *Stage) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// SetSize はステージのサイズを変更する
func (s *Stage) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

// Background は背景色を返す
func (s *Stage) Background() color.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

// SetBackground は背景色を設定する
func (s *Stage) SetBackground(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil {
		c = color.Transparent
	}
	s.background = c
}

// AddChild は表示オブジェクトを最前面に追加する
func (s *Stage) AddChild(o *DisplayObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.AddChild(o)
}

// RemoveChild は表示オブジェクトを取り除く
func (s *Stage) RemoveChild(o *DisplayObject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.RemoveChild(o)
}

// Contains はオブジェクトがステージ直下にあるかを返す
func (s *Stage) Contains(o *DisplayObject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return o != nil && o.parent == s.root
}

// Children は直下の表示オブジェクトを描画順で返す
func (s *Stage) Children() []*DisplayObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Children()
}

// Update はアニメーションを1フレーム進めて描画回数を数える
func (s *Stage) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.Walk(func(o *DisplayObject) {
		o.advance()
	})
	s.renderCount++
}

// Tick はティッカーから毎フレーム呼ばれる
func (s *Stage) Tick() {
	s.mu.Lock()
	s.tickCount++
	s.mu.Unlock()
	s.Update()
}

// RenderCount はUpdateが呼ばれた回数を返す
func (s *Stage) RenderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderCount
}

// TickCount はティッカー経由で更新された回数を返す
func (s *Stage) TickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickCount
}

// Draw はツリー全体をscreenに描画する
func (s *Stage) Draw(screen *ebiten.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, _, a := s.background.RGBA(); a > 0 {
		screen.Fill(s.background)
	}

	var geo ebiten.GeoM
	drawObject(screen, s.root, geo, 1.0)
}

// drawObject は親の変換を引き継いで再帰的に描画する
func drawObject(screen *ebiten.Image, o *DisplayObject, parent ebiten.GeoM, parentAlpha float64) {
	if !o.visible {
		return
	}
	alpha := parentAlpha * o.alpha
	if alpha <= 0 {
		return
	}

	var local ebiten.GeoM
	local.Scale(o.scaleX, o.scaleY)
	local.Translate(o.x, o.y)
	local.Concat(parent)

	switch o.kind {
	case KindBitmap:
		if o.img != nil {
			if o.ebImg == nil {
				o.ebImg = ebiten.NewImageFromImage(o.img)
			}
			drawImage(screen, o.ebImg, local, alpha)
		}
	case KindSprite:
		if img := o.spriteFrameImage(); img != nil {
			f, _ := o.sheet.Frame(o.frame)
			var reg ebiten.GeoM
			reg.Translate(-f.RegX, -f.RegY)
			reg.Concat(local)
			drawImage(screen, img, reg, alpha)
		}
	}

	for _, c := range o.children {
		drawObject(screen, c, local, alpha)
	}
}

func drawImage(screen, img *ebiten.Image, geo ebiten.GeoM, alpha float64) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geo
	op.ColorScale.ScaleAlpha(float32(alpha))
	screen.DrawImage(img, op)
}

// spriteFrameImage は現在フレームの画像をキャッシュして返す
func (o *DisplayObject) spriteFrameImage() *ebiten.Image {
	if o.sheet == nil {
		return nil
	}
	if img, ok := o.frameImgs[o.frame]; ok {
		return img
	}
	src, err := o.sheet.FrameImage(o.frame)
	if err != nil {
		return nil
	}
	img := ebiten.NewImageFromImage(src)
	o.frameImgs[o.frame] = img
	return img
}
