package asset

import (
	"encoding/json"
	"fmt"
	"image"
	"sort"
	"sync"

	"sigs.k8s.io/yaml"
)

// Frame はスプライトシート上の1フレーム
type Frame struct {
	Rect  image.Rectangle // シート画像上の矩形
	Image int             // Images のインデックス
	RegX  float64         // 登録点X
	RegY  float64         // 登録点Y
}

// Animation はフレーム列の定義
type Animation struct {
	Name   string
	Frames []int
	Next   string  // 再生終了後に遷移するアニメーション（自身ならループ、空なら停止）
	Speed  float64 // 再生速度の倍率
}

// gridSpec は等間隔グリッドのフレーム定義
type gridSpec struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Count   int     `json:"count"`
	RegX    float64 `json:"regX"`
	RegY    float64 `json:"regY"`
	Spacing int     `json:"spacing"`
	Margin  int     `json:"margin"`
}

// rawSheet はCreateJS形式のスプライトシート定義
type rawSheet struct {
	Images     []string                   `json:"images"`
	Frames     json.RawMessage            `json:"frames"`
	Animations map[string]json.RawMessage `json:"animations"`
	Framerate  float64                    `json:"framerate"`
}

// SpriteSheet はパース済みのスプライトシート
// 画像はローダーが SetImage で後から埋める
type SpriteSheet struct {
	mu         sync.RWMutex
	sources    []string
	images     []image.Image
	frames     []Frame
	grid       *gridSpec
	animations map[string]Animation
	framerate  float64
}

// ParseSpriteSheet はJSON/YAMLのスプライトシート定義をパースする
func ParseSpriteSheet(data []byte) (*SpriteSheet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	var raw rawSheet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpriteSheet, err)
	}
	if len(raw.Images) == 0 {
		return nil, fmt.Errorf("%w: no images", ErrInvalidSpriteSheet)
	}

	sheet := &SpriteSheet{
		sources:    raw.Images,
		images:     make([]image.Image, len(raw.Images)),
		animations: make(map[string]Animation),
		framerate:  raw.Framerate,
	}

	if err := sheet.parseFrames(raw.Frames); err != nil {
		return nil, err
	}

	for name, def := range raw.Animations {
		anim, err := parseAnimation(name, def)
		if err != nil {
			return nil, err
		}
		sheet.animations[name] = anim
	}

	return sheet, nil
}

// parseFrames は矩形リスト形式とグリッド形式の両方を受け付ける
func (s *SpriteSheet) parseFrames(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: no frames", ErrInvalidSpriteSheet)
	}

	var list [][]float64
	if err := json.Unmarshal(raw, &list); err == nil {
		for i, f := range list {
			if len(f) < 4 {
				return fmt.Errorf("%w: frame %d needs x, y, width, height", ErrInvalidSpriteSheet, i)
			}
			frame := Frame{
				Rect: image.Rect(int(f[0]), int(f[1]), int(f[0]+f[2]), int(f[1]+f[3])),
			}
			if len(f) > 4 {
				frame.Image = int(f[4])
			}
			if len(f) > 5 {
				frame.RegX = f[5]
			}
			if len(f) > 6 {
				frame.RegY = f[6]
			}
			if frame.Image < 0 || frame.Image >= len(s.sources) {
				return fmt.Errorf("%w: frame %d refers to image %d", ErrInvalidSpriteSheet, i, frame.Image)
			}
			s.frames = append(s.frames, frame)
		}
		return nil
	}

	var grid gridSpec
	if err := json.Unmarshal(raw, &grid); err != nil {
		return fmt.Errorf("%w: frames: %v", ErrInvalidSpriteSheet, err)
	}
	if grid.Width <= 0 || grid.Height <= 0 {
		return fmt.Errorf("%w: grid frame size must be positive", ErrInvalidSpriteSheet)
	}
	s.grid = &grid
	return nil
}

// parseAnimation は数値・配列・オブジェクトの3形式を受け付ける
func parseAnimation(name string, raw json.RawMessage) (Animation, error) {
	anim := Animation{Name: name, Speed: 1}

	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		anim.Frames = []int{single}
		return anim, nil
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		// [start, end, next?, speed?]
		if len(list) < 1 {
			return anim, fmt.Errorf("%w: animation %q is empty", ErrInvalidSpriteSheet, name)
		}
		start, ok := list[0].(float64)
		if !ok {
			return anim, fmt.Errorf("%w: animation %q start frame", ErrInvalidSpriteSheet, name)
		}
		end := start
		if len(list) > 1 {
			if v, ok := list[1].(float64); ok {
				end = v
			}
		}
		for f := int(start); f <= int(end); f++ {
			anim.Frames = append(anim.Frames, f)
		}
		anim.Next = name
		if len(list) > 2 {
			anim.Next = nextName(name, list[2])
		}
		if len(list) > 3 {
			if speed, ok := list[3].(float64); ok && speed > 0 {
				anim.Speed = speed
			}
		}
		return anim, nil
	}

	var obj struct {
		Frames []int   `json:"frames"`
		Next   any     `json:"next"`
		Speed  float64 `json:"speed"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return anim, fmt.Errorf("%w: animation %q: %v", ErrInvalidSpriteSheet, name, err)
	}
	anim.Frames = obj.Frames
	anim.Next = nextName(name, obj.Next)
	if obj.Speed > 0 {
		anim.Speed = obj.Speed
	}
	return anim, nil
}

// nextName は next 指定を解釈する
// 省略と true はループ、false は停止、文字列は遷移先
func nextName(name string, v any) string {
	switch next := v.(type) {
	case nil:
		return name
	case bool:
		if next {
			return name
		}
		return ""
	case string:
		return next
	}
	return name
}

// ImageSources はシート画像のパス一覧を返す
func (s *SpriteSheet) ImageSources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.sources))
	copy(out, s.sources)
	return out
}

// SetImage はi番目のシート画像を設定する
func (s *SpriteSheet) SetImage(i int, img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.images) {
		return fmt.Errorf("%w: image %d", ErrFrameOutOfRange, i)
	}
	s.images[i] = img
	if s.grid != nil {
		s.frames = nil // グリッドは画像サイズが決まってから展開する
	}
	return nil
}

// Framerate はシートに定義されたフレームレートを返す（0は未指定）
func (s *SpriteSheet) Framerate() float64 {
	return s.framerate
}

// NumFrames はフレーム数を返す
func (s *SpriteSheet) NumFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expandGridLocked()
	return len(s.frames)
}

// Frame はi番目のフレーム定義を返す
func (s *SpriteSheet) Frame(i int) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expandGridLocked()
	if i < 0 || i >= len(s.frames) {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameOutOfRange, i)
	}
	return s.frames[i], nil
}

// FrameImage はi番目のフレームを切り出した画像を返す
func (s *SpriteSheet) FrameImage(i int) (image.Image, error) {
	frame, err := s.Frame(i)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	img := s.images[frame.Image]
	s.mu.RUnlock()
	if img == nil {
		return nil, fmt.Errorf("%w: image %d not loaded", ErrInvalidSpriteSheet, frame.Image)
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("%w: image %d cannot be cropped", ErrUnsupportedImage, frame.Image)
	}
	return sub.SubImage(frame.Rect.Add(img.Bounds().Min)), nil
}

// Animation は名前でアニメーションを取得する
func (s *SpriteSheet) Animation(name string) (Animation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.animations[name]
	return a, ok
}

// AnimationNames はアニメーション名をソートして返す
func (s *SpriteSheet) AnimationNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.animations))
	for name := range s.animations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expandGridLocked はロード済み画像のサイズからグリッドフレームを展開する
// s.mu を保持した状態で呼ぶこと
func (s *SpriteSheet) expandGridLocked() {
	if s.grid == nil || s.frames != nil {
		return
	}

	g := s.grid
	frames := make([]Frame, 0)
	for idx, img := range s.images {
		if img == nil {
			continue
		}
		b := img.Bounds()
		for y := g.Margin; y+g.Height <= b.Dy()-g.Margin; y += g.Height + g.Spacing {
			for x := g.Margin; x+g.Width <= b.Dx()-g.Margin; x += g.Width + g.Spacing {
				if g.Count > 0 && len(frames) >= g.Count {
					s.frames = frames
					return
				}
				frames = append(frames, Frame{
					Rect:  image.Rect(x, y, x+g.Width, y+g.Height),
					Image: idx,
					RegX:  g.RegX,
					RegY:  g.RegY,
				})
			}
		}
	}
	s.frames = frames
}
