package sound

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Instance は再生中（または再生可能）なサウンド
type Instance interface {
	ID() string
	Src() string
	Play(props PlayProps) error
	Pause() error
	Resume() error
	Stop()
	SetVolume(v float64)
	Volume() float64
	SetMuted(muted bool)
	Muted() bool
	SetPosition(d time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	SetLoop(n int)
	Loop() int
	PlayState() PlayState
	Paused() bool
	SetMaster(volume float64, muted bool)
	On(t EventType, fn Listener) (remove func())
	Destroy()
}

// Backend はプラットフォーム固有の再生処理
// 共通の状態遷移とイベント通知は BaseInstance が受け持つ
type Backend interface {
	// Prepare は再生準備（デコードやプリロード）を行い、完了したらreadyを呼ぶ
	// readyは同期的に呼んでもよい
	Prepare(ready func(error))
	// Start はposから1回分の再生を開始する
	// 再生が自然終了したら BaseInstance.Ended を呼ぶこと
	Start(pos time.Duration) error
	Pause() error
	Resume() error
	Stop()
	// SetVolume はミュートとマスター音量を反映済みの実効音量を受け取る
	SetVolume(v float64)
	Position() time.Duration
	Seek(pos time.Duration) error
	Duration() time.Duration
	Cleanup()
}

type listenerEntry struct {
	id int
	fn Listener
}

// BaseInstance はBackendの上に共通の再生セマンティクスを実装する
type BaseInstance struct {
	mu        sync.Mutex
	id        string
	src       string
	startTime time.Duration
	duration  time.Duration
	backend   Backend

	volume       float64
	muted        bool
	masterVolume float64
	masterMuted  bool

	loop      int
	remaining int
	offset    time.Duration
	state     PlayState
	paused    bool
	gen       int
	destroyed bool

	listeners  map[EventType][]listenerEntry
	listenerID int
}

// NewBaseInstance は新しいインスタンスを作成する
func NewBaseInstance(src string, startTime, duration time.Duration, backend Backend) *BaseInstance {
	return &BaseInstance{
		id:           uuid.NewString(),
		src:          src,
		startTime:    startTime,
		duration:     duration,
		backend:      backend,
		volume:       1,
		masterVolume: 1,
		listeners:    make(map[EventType][]listenerEntry),
	}
}

// ID はインスタンスの一意なIDを返す
func (b *BaseInstance) ID() string { return b.id }

// Src は再生元を返す
func (b *BaseInstance) Src() string { return b.src }

// StartTime はオーディオスプライトの開始位置を返す
func (b *BaseInstance) StartTime() time.Duration { return b.startTime }

// Play は再生を開始する。再生中なら中断して最初からやり直す
func (b *BaseInstance) Play(props PlayProps) error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrDestroyed
	}

	interrupted := b.state == PlayStateSucceeded
	b.gen++
	gen := b.gen
	b.loop = props.Loop
	b.remaining = props.Loop
	if props.Volume != nil {
		b.volume = clamp01(*props.Volume)
	}
	b.offset = props.Offset
	b.paused = false
	b.state = PlayStateInited
	b.mu.Unlock()

	if interrupted {
		b.backend.Stop()
		b.emit(EventInterrupted, nil)
	}

	b.backend.Prepare(func(err error) {
		b.ready(gen, err)
	})
	return nil
}

// ready はPrepare完了時に呼ばれる
func (b *BaseInstance) ready(gen int, err error) {
	b.mu.Lock()
	if gen != b.gen || b.state != PlayStateInited {
		b.mu.Unlock()
		return
	}
	offset := b.offset
	start := b.startTime
	b.mu.Unlock()

	if err == nil {
		if d := b.Duration(); d > 0 && offset >= d {
			err = fmt.Errorf("%w: %v >= %v", ErrOutOfRange, offset, d)
		}
	}
	if err == nil {
		err = b.backend.Start(start + offset)
	}
	if err != nil {
		b.fail(gen, err)
		return
	}

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = PlayStateSucceeded
	vol := b.effectiveVolumeLocked()
	b.mu.Unlock()

	b.backend.SetVolume(vol)
	b.emit(EventSucceeded, nil)
}

func (b *BaseInstance) fail(gen int, err error) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = PlayStateFailed
	b.mu.Unlock()

	b.backend.Cleanup()
	b.emit(EventFailed, err)
}

// Ended はバックエンドが1回分の再生終了を通知するために呼ぶ
// ループ回数が残っていれば再度再生し、なければcompleteを通知する
func (b *BaseInstance) Ended() {
	b.mu.Lock()
	if b.state != PlayStateSucceeded || b.paused {
		b.mu.Unlock()
		return
	}

	if b.remaining != 0 {
		if b.remaining > 0 {
			b.remaining--
		}
		b.offset = 0
		gen := b.gen
		start := b.startTime
		b.mu.Unlock()

		b.emit(EventLoop, nil)
		if err := b.backend.Start(start); err != nil {
			b.fail(gen, err)
		}
		return
	}

	b.state = PlayStateFinished
	b.mu.Unlock()

	b.backend.Cleanup()
	b.emit(EventComplete, nil)
}

// Pause は一時停止する
func (b *BaseInstance) Pause() error {
	b.mu.Lock()
	if b.state != PlayStateSucceeded || b.paused {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.backend.Pause(); err != nil {
		return err
	}

	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
	return nil
}

// Resume は一時停止から再開する
func (b *BaseInstance) Resume() error {
	b.mu.Lock()
	if !b.paused {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.backend.Resume(); err != nil {
		return err
	}

	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	return nil
}

// Paused は一時停止中かどうかを返す
func (b *BaseInstance) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Stop は再生を停止する（イベントは通知しない）
func (b *BaseInstance) Stop() {
	b.mu.Lock()
	if b.state != PlayStateSucceeded && b.state != PlayStateInited {
		b.mu.Unlock()
		return
	}
	b.gen++
	b.state = PlayStateFinished
	b.paused = false
	b.offset = 0
	b.mu.Unlock()

	b.backend.Stop()
	b.backend.Cleanup()
}

// SetVolume は音量を設定する（0.0〜1.0）
func (b *BaseInstance) SetVolume(v float64) {
	b.mu.Lock()
	b.volume = clamp01(v)
	eff := b.effectiveVolumeLocked()
	b.mu.Unlock()
	b.backend.SetVolume(eff)
}

// Volume は音量を返す
func (b *BaseInstance) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// SetMuted はミュートを設定する
func (b *BaseInstance) SetMuted(muted bool) {
	b.mu.Lock()
	b.muted = muted
	eff := b.effectiveVolumeLocked()
	b.mu.Unlock()
	b.backend.SetVolume(eff)
}

// Muted はミュート状態を返す
func (b *BaseInstance) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

// SetMaster はシステム全体の音量とミュートを反映する
func (b *BaseInstance) SetMaster(volume float64, muted bool) {
	b.mu.Lock()
	b.masterVolume = clamp01(volume)
	b.masterMuted = muted
	eff := b.effectiveVolumeLocked()
	b.mu.Unlock()
	b.backend.SetVolume(eff)
}

// EffectiveVolume はミュートとマスター音量を反映した音量を返す
func (b *BaseInstance) EffectiveVolume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveVolumeLocked()
}

func (b *BaseInstance) effectiveVolumeLocked() float64 {
	if b.muted || b.masterMuted {
		return 0
	}
	return b.volume * b.masterVolume
}

// SetPosition は再生位置を設定する
// 再生前なら次回の開始位置として保持する
func (b *BaseInstance) SetPosition(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	b.mu.Lock()
	if b.state != PlayStateSucceeded {
		b.offset = d
		b.mu.Unlock()
		return nil
	}
	start := b.startTime
	b.mu.Unlock()
	return b.backend.Seek(start + d)
}

// Position は再生位置を返す
func (b *BaseInstance) Position() time.Duration {
	b.mu.Lock()
	if b.state != PlayStateSucceeded {
		defer b.mu.Unlock()
		return b.offset
	}
	start := b.startTime
	b.mu.Unlock()

	pos := b.backend.Position() - start
	if pos < 0 {
		pos = 0
	}
	return pos
}

// Duration は長さを返す。オーディオスプライトなら切り出し範囲の長さ
func (b *BaseInstance) Duration() time.Duration {
	if b.duration > 0 {
		return b.duration
	}
	return b.backend.Duration()
}

// SetLoop は残りのループ回数を設定する
func (b *BaseInstance) SetLoop(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loop = n
	b.remaining = n
}

// Loop はループ回数を返す
func (b *BaseInstance) Loop() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loop
}

// PlayState は再生状態を返す
func (b *BaseInstance) PlayState() PlayState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// On はイベントリスナーを登録し、解除関数を返す
func (b *BaseInstance) On(t EventType, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listenerID++
	id := b.listenerID
	b.listeners[t] = append(b.listeners[t], listenerEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.listeners[t]
		for i, e := range entries {
			if e.id == id {
				b.listeners[t] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Destroy は再生を止めてリスナーを解放する
func (b *BaseInstance) Destroy() {
	b.Stop()
	b.mu.Lock()
	b.destroyed = true
	b.listeners = make(map[EventType][]listenerEntry)
	b.mu.Unlock()
}

// emit はロック外でリスナーを呼び出す
func (b *BaseInstance) emit(t EventType, err error) {
	b.mu.Lock()
	entries := make([]listenerEntry, len(b.listeners[t]))
	copy(entries, b.listeners[t])
	b.mu.Unlock()

	ev := Event{Type: t, Instance: b, Err: err}
	for _, e := range entries {
		e.fn(ev)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
