// Package ebitenaudio はEbitengine/audioを使うサウンドプラグイン
//
// 登録時には何も取得しない。エンコード済みデータはインスタンスの初回再生時に
// 読み込んでデコードし、ForgetBufferOnCleanが無ければ
// 以降の再生のために保持する
package ebitenaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/sound"
)

// SampleRate は共有オーディオコンテキストのサンプルレート
const SampleRate = 44100

// ErrUnsupportedFormat はどのデコーダーも扱えないソースのエラー
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ReadFunc はsrcのエンコード済みバイト列を取得する
type ReadFunc func(ctx context.Context, src string) ([]byte, error)

// Options はプラグインの設定
type Options struct {
	// Context は再生に使うオーディオコンテキスト
	// nilなら既存のものを使うか、SampleRateで新しく作成する
	Context *audio.Context
	Read    ReadFunc
	// SoundFont は.midの再生に使う。無いとMIDIの再生は失敗する
	SoundFont *meltysynth.SoundFont
	// ForgetBufferOnClean はインスタンスの後始末でキャッシュを捨て、
	// 次の再生で読み直す
	ForgetBufferOnClean bool
	Logger              *slog.Logger
}

// Plugin はソフトウェアミキサーのプラグイン
type Plugin struct {
	*sound.PluginBase

	ctx       *audio.Context
	read      ReadFunc
	soundFont *meltysynth.SoundFont
	forget    bool
	log       *slog.Logger

	mu      sync.Mutex
	buffers map[string][]byte
	active  map[*backend]struct{}
}

// New はプラグインを作成する
func New(opts Options) (*Plugin, error) {
	if opts.Read == nil {
		return nil, errors.New("ebitenaudio: Read is required")
	}

	ctx := opts.Context
	if ctx == nil {
		ctx = audio.CurrentContext()
	}
	if ctx == nil {
		ctx = audio.NewContext(SampleRate)
	}

	return &Plugin{
		PluginBase: sound.NewPluginBase(sound.Capabilities{Volume: true, Tracks: -1}),
		ctx:        ctx,
		read:       opts.Read,
		soundFont:  opts.SoundFont,
		forget:     opts.ForgetBufferOnClean,
		log:        logger.OrNop(opts.Logger).With("plugin", "ebitenaudio"),
		buffers:    make(map[string][]byte),
		active:     make(map[*backend]struct{}),
	}, nil
}

// IsSupported はオーディオコンテキストが使えるかを返す
func (p *Plugin) IsSupported() bool {
	return p.ctx != nil
}

func (p *Plugin) String() string { return "[EbitenAudioPlugin]" }

// Register はサウンドを記録する。読み込みは即座に完了する
func (p *Plugin) Register(d sound.Descriptor) (sound.Loader, error) {
	kind := kindOf(d.Src)
	if kind == kindUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.Src)
	}
	if kind == kindMIDI && p.soundFont == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSoundFont, d.Src)
	}
	return p.PluginBase.Register(d)
}

// Create は再生可能なインスタンスを作る。Playまでは何も読まない
func (p *Plugin) Create(src string, startTime, duration time.Duration) (sound.Instance, error) {
	kind := kindOf(src)
	if kind == kindUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
	}
	be := &backend{plugin: p, src: src, kind: kind}
	if duration > 0 {
		be.spriteEnd = startTime + duration
	}
	inst := sound.NewBaseInstance(src, startTime, duration, be)
	be.inst = inst
	return inst, nil
}

// RemoveSound はsrcの登録を外し、キャッシュを捨てる
func (p *Plugin) RemoveSound(src string) {
	p.PluginBase.RemoveSound(src)
	p.mu.Lock()
	delete(p.buffers, src)
	p.mu.Unlock()
}

// RemoveAllSounds は全ての登録を外し、キャッシュを全て捨てる
func (p *Plugin) RemoveAllSounds() {
	p.PluginBase.RemoveAllSounds()
	p.mu.Lock()
	p.buffers = make(map[string][]byte)
	p.mu.Unlock()
}

// Buffered はsrcのデータがキャッシュされているかを返す
func (p *Plugin) Buffered(src string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.buffers[src]
	return ok
}

// Update はゲームループから毎フレーム呼ばれ、
// 再生が終わったインスタンスを検出して通知する
func (p *Plugin) Update() {
	p.mu.Lock()
	backends := make([]*backend, 0, len(p.active))
	for be := range p.active {
		backends = append(backends, be)
	}
	p.mu.Unlock()

	for _, be := range backends {
		if be.finished() {
			be.inst.Ended()
		}
	}
}

// ActivePlayers は再生中のインスタンス数を返す
func (p *Plugin) ActivePlayers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *Plugin) buffer(ctx context.Context, src string) ([]byte, error) {
	p.mu.Lock()
	data, ok := p.buffers[src]
	p.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.buffers[src] = data
	p.mu.Unlock()
	return data, nil
}

func (p *Plugin) forgetBuffer(src string) {
	if !p.forget {
		return
	}
	p.mu.Lock()
	delete(p.buffers, src)
	p.mu.Unlock()
}

func (p *Plugin) track(be *backend, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		p.active[be] = struct{}{}
	} else {
		delete(p.active, be)
	}
}
