package ebitenaudio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/zurustar/flashstage/pkg/sound"
)

type kind int

const (
	kindUnknown kind = iota
	kindWAV
	kindMP3
	kindOgg
	kindMIDI
)

func kindOf(src string) kind {
	switch sound.Ext(src) {
	case "wav", "wave":
		return kindWAV
	case "mp3":
		return kindMP3
	case "ogg", "oga":
		return kindOgg
	case "mid", "midi":
		return kindMIDI
	}
	return kindUnknown
}

// lengthStream はebitenのデコーダーが返すストリーム
type lengthStream interface {
	io.ReadSeeker
	Length() int64
}

// decode はエンコード済みデータをSampleRateのPCMストリームに変換する
func decode(k kind, data []byte) (lengthStream, error) {
	r := bytes.NewReader(data)
	switch k {
	case kindWAV:
		return wav.DecodeWithSampleRate(SampleRate, r)
	case kindMP3:
		return mp3.DecodeWithSampleRate(SampleRate, r)
	case kindOgg:
		return vorbis.DecodeWithSampleRate(SampleRate, r)
	}
	return nil, ErrUnsupportedFormat
}

// backend は一つのインスタンスをaudio.Playerで再生する
type backend struct {
	plugin *Plugin
	inst   *sound.BaseInstance
	src    string
	kind   kind

	mu        sync.Mutex
	data      []byte
	stream    lengthStream
	midi      *MIDIStream
	length    time.Duration
	spriteEnd time.Duration
	player    *audio.Player
	volume    float64
	playing   bool
	paused    bool
}

func (b *backend) Prepare(ready func(error)) {
	if b.plugin.Buffered(b.src) {
		ready(b.load(context.Background()))
		return
	}
	go func() {
		ready(b.load(context.Background()))
	}()
}

// load はデータを読み込んで一度だけデコードする
func (b *backend) load(ctx context.Context) error {
	data, err := b.plugin.buffer(ctx, b.src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", b.src, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	if b.kind == kindMIDI || b.stream != nil {
		return nil
	}

	stream, err := decode(b.kind, data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", b.src, err)
	}
	b.stream = stream
	// 16bitステレオ = 1サンプル4バイト
	b.length = time.Duration(stream.Length()/4) * time.Second / SampleRate
	return nil
}

func (b *backend) Start(pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.player == nil || b.kind == kindMIDI {
		if err := b.newPlayerLocked(); err != nil {
			return err
		}
	}
	if b.kind != kindMIDI {
		if err := b.player.SetPosition(pos); err != nil {
			return fmt.Errorf("failed to seek %s: %w", b.src, err)
		}
	}

	b.player.SetVolume(b.volume)
	b.player.Play()
	b.playing = true
	b.paused = false
	b.plugin.track(b, true)
	return nil
}

func (b *backend) newPlayerLocked() error {
	b.closePlayerLocked()

	var src io.Reader
	if b.kind == kindMIDI {
		stream, midi, err := NewMIDIStream(b.plugin.soundFont, b.data)
		if err != nil {
			return err
		}
		b.midi = stream
		b.length = midi.GetLength()
		src = stream
	} else {
		if b.stream == nil {
			return fmt.Errorf("%s: not decoded", b.src)
		}
		src = b.stream
	}

	player, err := b.plugin.ctx.NewPlayer(src)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}
	b.player = player
	return nil
}

func (b *backend) closePlayerLocked() {
	if b.midi != nil {
		b.midi.Stop()
		b.midi = nil
	}
	if b.player != nil {
		b.player.Close()
		b.player = nil
	}
}

func (b *backend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		b.player.Pause()
	}
	b.paused = true
	return nil
}

func (b *backend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		b.player.Play()
	}
	b.paused = false
	return nil
}

func (b *backend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		b.player.Pause()
	}
	b.playing = false
	b.plugin.track(b, false)
}

func (b *backend) SetVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = v
	if b.player != nil {
		b.player.SetVolume(v)
	}
}

func (b *backend) Position() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil {
		return 0
	}
	return b.player.Position()
}

func (b *backend) Seek(pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind == kindMIDI {
		return sound.ErrUnsupported
	}
	if b.player == nil {
		return nil
	}
	return b.player.SetPosition(pos)
}

func (b *backend) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

func (b *backend) Cleanup() {
	b.mu.Lock()
	b.closePlayerLocked()
	b.playing = false
	if b.plugin.forget {
		b.stream = nil
		b.data = nil
	}
	b.mu.Unlock()

	b.plugin.track(b, false)
	b.plugin.forgetBuffer(b.src)
}

// finished は現在の再生が終わったかを返す
func (b *backend) finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.playing || b.paused || b.player == nil {
		return false
	}

	pos := b.player.Position()
	switch {
	case b.spriteEnd > 0 && pos >= b.spriteEnd:
		b.player.Pause()
	case b.kind == kindMIDI && b.length > 0 && pos >= b.length:
		b.player.Pause()
	case b.kind != kindMIDI && !b.player.IsPlaying():
	default:
		return false
	}
	b.playing = false
	return true
}
