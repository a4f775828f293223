package mobile

import (
	"errors"
	"sync"
)

// AudioHost はホストアプリ（JavaやSwift）がネイティブのオーディオAPIで実装する
// 各呼び出しはホスト側の処理が終わるまでブロックする
// 再生の終了はSoundCompletedで通知する
type AudioHost interface {
	PreloadComplex(id, src string, volume float64, voices int, delay float64) error
	Play(id string) error
	Stop(id string) error
	Unload(id string) error
	SetVolume(id string, volume float64) error
}

var errNoHost = errors.New("audio host is not set")

// hostBridge はAudioHostをnative.Bridgeに合わせる
// gomobileはコールバック関数を渡せないので完了通知はidで受け取る
type hostBridge struct {
	mu       sync.Mutex
	host     AudioHost
	complete map[string]func()
}

func newHostBridge() *hostBridge {
	return &hostBridge{complete: make(map[string]func())}
}

func (b *hostBridge) setHost(h AudioHost) {
	b.mu.Lock()
	b.host = h
	b.mu.Unlock()
}

func (b *hostBridge) current() (AudioHost, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.host == nil {
		return nil, errNoHost
	}
	return b.host, nil
}

func (b *hostBridge) PreloadComplex(id, src string, volume float64, voices int, delay float64) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	return h.PreloadComplex(id, src, volume, voices, delay)
}

func (b *hostBridge) Play(id string, onComplete func()) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	b.mu.Lock()
	if onComplete != nil {
		b.complete[id] = onComplete
	} else {
		delete(b.complete, id)
	}
	b.mu.Unlock()

	if err := h.Play(id); err != nil {
		b.mu.Lock()
		delete(b.complete, id)
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *hostBridge) Stop(id string) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	// 停止した音の完了通知は捨てる
	b.mu.Lock()
	delete(b.complete, id)
	b.mu.Unlock()
	return h.Stop(id)
}

func (b *hostBridge) Unload(id string) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.complete, id)
	b.mu.Unlock()
	return h.Unload(id)
}

func (b *hostBridge) SetVolume(id string, volume float64) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	return h.SetVolume(id, volume)
}

// completed は完了コールバックを一度だけ呼ぶ
func (b *hostBridge) completed(id string) bool {
	b.mu.Lock()
	fn, ok := b.complete[id]
	delete(b.complete, id)
	b.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

var bridge = newHostBridge()

// SetAudioHost はホストのオーディオAPIを設定する。Startより前に呼ぶこと
func SetAudioHost(h AudioHost) {
	bridge.setHost(h)
}

// SoundCompleted はidのサウンドの再生が終わったときにホストが呼ぶ
func SoundCompleted(id string) {
	bridge.completed(id)
}
