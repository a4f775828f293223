// Package native はホストが提供するオーディオブリッジ（モバイルの
// ハイブリッドアプリ実行環境のNativeAudioプラグインなど）に
// 再生を委譲するサウンドプラグイン
//
// ブリッジは一時停止もシークもできない。音量を0にすると停止し、
// 元に戻すと先頭から再生し直す
package native

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/sound"
)

// Bridge は端末側のネイティブオーディオAPI
// 各メソッドはホストの処理が終わるまでブロックする
type Bridge interface {
	// PreloadComplex はsrcをidで読み込む
	PreloadComplex(id, src string, volume float64, voices int, delay float64) error
	// Play は再生を開始し、再生が終わったらonCompleteを呼ぶ
	Play(id string, onComplete func()) error
	Stop(id string) error
	Unload(id string) error
	SetVolume(id string, volume float64) error
}

// Plugin はBridgeに処理を委譲するプラグイン
type Plugin struct {
	*sound.PluginBase
	bridge   Bridge
	duration sound.DurationFunc
	log      *slog.Logger
}

// New は新しいPluginを作成する。bridgeがnilなら非対応として扱う
// durationはnilでもよい（その場合長さは常に0）
func New(bridge Bridge, duration sound.DurationFunc, log *slog.Logger) *Plugin {
	return &Plugin{
		PluginBase: sound.NewPluginBase(sound.Capabilities{Panning: false, Volume: true, Tracks: -1}),
		bridge:     bridge,
		duration:   duration,
		log:        logger.OrNop(log).With("plugin", "native"),
	}
}

// IsSupported はブリッジが与えられているかを返す
func (p *Plugin) IsSupported() bool {
	return p.bridge != nil
}

func (p *Plugin) String() string { return "[NativeAudioPlugin]" }

// Create は再生インスタンスを作成する
func (p *Plugin) Create(src string, startTime, duration time.Duration) (sound.Instance, error) {
	if p.bridge == nil {
		return nil, sound.ErrNoPlugin
	}
	be := &backend{plugin: p, id: src, src: src}
	inst := sound.NewBaseInstance(src, startTime, duration, be)
	be.inst = inst
	return inst, nil
}

type backend struct {
	plugin *Plugin
	inst   *sound.BaseInstance
	id     string
	src    string

	mu                   sync.Mutex
	preloaded            bool
	playing              bool
	volume               float64
	stoppedBecauseOfMute bool
	length               time.Duration
	lengthKnown          bool
}

func (b *backend) Prepare(ready func(error)) {
	b.mu.Lock()
	preloaded := b.preloaded
	b.mu.Unlock()
	if preloaded {
		ready(nil)
		return
	}

	go func() {
		err := b.plugin.bridge.PreloadComplex(b.id, b.src, 1, 1, 0)
		if err != nil {
			ready(fmt.Errorf("native preload %s: %w", b.src, err))
			return
		}
		b.mu.Lock()
		b.preloaded = true
		b.mu.Unlock()
		ready(nil)
	}()
}

// Start は常に先頭から再生する（ネイティブ側はシーク非対応）
func (b *backend) Start(time.Duration) error {
	b.mu.Lock()
	b.playing = true
	muted := b.stoppedBecauseOfMute
	b.mu.Unlock()

	if muted {
		return nil
	}
	return b.play()
}

func (b *backend) play() error {
	if err := b.plugin.bridge.Play(b.id, b.complete); err != nil {
		return fmt.Errorf("native play %s: %w", b.src, err)
	}
	return nil
}

func (b *backend) complete() {
	b.mu.Lock()
	if !b.playing || b.stoppedBecauseOfMute {
		b.mu.Unlock()
		return
	}
	b.playing = false
	b.mu.Unlock()
	b.inst.Ended()
}

func (b *backend) Pause() error  { return sound.ErrUnsupported }
func (b *backend) Resume() error { return sound.ErrUnsupported }

func (b *backend) Stop() {
	b.mu.Lock()
	b.playing = false
	preloaded := b.preloaded
	b.mu.Unlock()

	if preloaded {
		if err := b.plugin.bridge.Stop(b.id); err != nil {
			b.plugin.log.Warn("native stop failed", "src", b.src, "error", err)
		}
	}
}

// SetVolume は音量0で停止し、0以外に戻ると再生し直す
func (b *backend) SetVolume(v float64) {
	b.mu.Lock()
	b.volume = v
	preloaded := b.preloaded
	playing := b.playing

	if v == 0 {
		b.stoppedBecauseOfMute = true
		b.mu.Unlock()
		if preloaded {
			if err := b.plugin.bridge.Stop(b.id); err != nil {
				b.plugin.log.Warn("native stop failed", "src", b.src, "error", err)
			}
		}
		return
	}

	resume := b.stoppedBecauseOfMute && preloaded && playing
	b.stoppedBecauseOfMute = false
	b.mu.Unlock()

	if preloaded {
		if err := b.plugin.bridge.SetVolume(b.id, v); err != nil {
			b.plugin.log.Warn("native volume failed", "src", b.src, "error", err)
		}
	}
	if resume {
		if err := b.play(); err != nil {
			b.plugin.log.Warn("native replay failed", "src", b.src, "error", err)
		}
	}
}

func (b *backend) Position() time.Duration { return 0 }

func (b *backend) Seek(time.Duration) error { return sound.ErrUnsupported }

func (b *backend) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.lengthKnown && b.plugin.duration != nil {
		b.length = b.plugin.duration(b.src)
		b.lengthKnown = true
	}
	return b.length
}

func (b *backend) Cleanup() {
	b.mu.Lock()
	b.playing = false
	preloaded := b.preloaded
	b.preloaded = false
	b.mu.Unlock()

	if preloaded {
		if err := b.plugin.bridge.Unload(b.id); err != nil {
			b.plugin.log.Warn("native unload failed", "src", b.src, "error", err)
		}
	}
}
