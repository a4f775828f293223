package asset

import (
	"errors"
	"image"
	"strconv"
	"testing"
	"testing/quick"
)

func TestParseSpriteSheet_RectFrames(t *testing.T) {
	data := []byte(`{
		"images": ["hero.png"],
		"frames": [[0, 0, 16, 16], [16, 0, 16, 16, 0, 8, 8]],
		"animations": {
			"stand": 0,
			"walk": [0, 1, "stand", 0.5],
			"jump": {"frames": [1, 0], "next": false}
		},
		"framerate": 12
	}`)

	sheet, err := ParseSpriteSheet(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := sheet.ImageSources(); len(got) != 1 || got[0] != "hero.png" {
		t.Errorf("unexpected image sources: %v", got)
	}
	if sheet.NumFrames() != 2 {
		t.Fatalf("expected 2 frames, got %d", sheet.NumFrames())
	}
	f, err := sheet.Frame(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Rect != image.Rect(16, 0, 32, 16) || f.RegX != 8 || f.RegY != 8 {
		t.Errorf("unexpected frame: %+v", f)
	}
	if sheet.Framerate() != 12 {
		t.Errorf("expected framerate 12, got %f", sheet.Framerate())
	}

	walk, ok := sheet.Animation("walk")
	if !ok {
		t.Fatal("walk animation not found")
	}
	if len(walk.Frames) != 2 || walk.Next != "stand" || walk.Speed != 0.5 {
		t.Errorf("unexpected walk animation: %+v", walk)
	}
	stand, _ := sheet.Animation("stand")
	if len(stand.Frames) != 1 || stand.Frames[0] != 0 {
		t.Errorf("unexpected stand animation: %+v", stand)
	}
	jump, _ := sheet.Animation("jump")
	if len(jump.Frames) != 2 || jump.Next != "" {
		t.Errorf("unexpected jump animation: %+v", jump)
	}

	names := sheet.AnimationNames()
	if len(names) != 3 || names[0] != "jump" || names[2] != "walk" {
		t.Errorf("unexpected animation names: %v", names)
	}
}

func TestParseSpriteSheet_YAML(t *testing.T) {
	data := []byte("images:\n  - a.png\nframes:\n  - [0, 0, 4, 4]\n")
	sheet, err := ParseSpriteSheet(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sheet.NumFrames() != 1 {
		t.Errorf("expected 1 frame, got %d", sheet.NumFrames())
	}
}

func TestParseSpriteSheet_Grid(t *testing.T) {
	data := []byte(`{"images": ["grid.png"], "frames": {"width": 10, "height": 10, "count": 5}}`)
	sheet, err := ParseSpriteSheet(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 画像が未ロードの間はフレームが展開されない
	if sheet.NumFrames() != 0 {
		t.Errorf("expected 0 frames before image load, got %d", sheet.NumFrames())
	}

	if err := sheet.SetImage(0, image.NewRGBA(image.Rect(0, 0, 30, 20))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sheet.NumFrames() != 5 {
		t.Fatalf("expected 5 frames, got %d", sheet.NumFrames())
	}

	f, _ := sheet.Frame(4)
	if f.Rect != image.Rect(10, 10, 20, 20) {
		t.Errorf("unexpected rect for frame 4: %v", f.Rect)
	}

	sub, err := sheet.FrameImage(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Bounds().Dx() != 10 || sub.Bounds().Dy() != 10 {
		t.Errorf("unexpected sub image bounds: %v", sub.Bounds())
	}
}

func TestParseSpriteSheet_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no images", `{"frames": [[0,0,1,1]]}`},
		{"no frames", `{"images": ["a.png"]}`},
		{"short frame", `{"images": ["a.png"], "frames": [[0,0,1]]}`},
		{"bad image index", `{"images": ["a.png"], "frames": [[0,0,1,1,3]]}`},
		{"zero grid", `{"images": ["a.png"], "frames": {"width": 0, "height": 4}}`},
		{"broken", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpriteSheet([]byte(tt.data))
			if !errors.Is(err, ErrInvalidSpriteSheet) {
				t.Errorf("expected ErrInvalidSpriteSheet, got %v", err)
			}
		})
	}

	if _, err := ParseSpriteSheet(nil); !errors.Is(err, ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}
}

func TestSpriteSheet_FrameImageNotLoaded(t *testing.T) {
	sheet, err := ParseSpriteSheet([]byte(`{"images": ["a.png"], "frames": [[0,0,2,2]]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sheet.FrameImage(0); !errors.Is(err, ErrInvalidSpriteSheet) {
		t.Errorf("expected ErrInvalidSpriteSheet, got %v", err)
	}
	if _, err := sheet.Frame(3); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange, got %v", err)
	}
	if err := sheet.SetImage(2, nil); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange, got %v", err)
	}
}

// グリッドのフレーム数は画像に収まる数とcountの小さい方になる
func TestProperty_GridFrameCount(t *testing.T) {
	f := func(cols, rows, count uint8) bool {
		c := int(cols%8) + 1
		r := int(rows%8) + 1
		n := int(count % 80)

		sheet, err := ParseSpriteSheet([]byte(
			`{"images": ["g.png"], "frames": {"width": 4, "height": 4, "count": ` + strconv.Itoa(n) + `}}`))
		if err != nil {
			return false
		}
		if err := sheet.SetImage(0, image.NewRGBA(image.Rect(0, 0, c*4, r*4))); err != nil {
			return false
		}

		want := c * r
		if n > 0 && n < want {
			want = n
		}
		return sheet.NumFrames() == want
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 100}); err != nil {
		t.Error(err)
	}
}
