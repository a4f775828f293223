package stage

import (
	"sync"
	"time"
)

// DefaultFPS はフレームレート未指定時の値
const DefaultFPS = 24

// Ticker は登録されたTickableへ一定間隔でティックを配る
// Start でゴルーチン駆動、Tick で手動駆動（ヘッドレスやテスト用）
type Ticker struct {
	mu          sync.Mutex
	fps         float64
	subscribers []Tickable
	ticker      *time.Ticker
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewTicker は新しいTickerを作成する
// fpsが0以下の場合はDefaultFPSを使用する
func NewTicker(fps float64) *Ticker {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Ticker{
		fps:         fps,
		subscribers: make([]Tickable, 0),
	}
}

// FPS は現在のフレームレートを返す
func (t *Ticker) FPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fps
}

// Interval はティック間隔を返す
func (t *Ticker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return interval(t.fps)
}

func interval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}

// SetFPS はフレームレートを変更する。動作中なら即座に反映する
func (t *Ticker) SetFPS(fps float64) {
	if fps <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fps = fps
	if t.running && t.ticker != nil {
		t.ticker.Reset(interval(fps))
	}
}

// Add はTickableを登録する（重複登録は無視）
func (t *Ticker) Add(target Tickable) {
	if target == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.subscribers {
		if s == target {
			return
		}
	}
	t.subscribers = append(t.subscribers, target)
}

// Remove はTickableの登録を解除する
func (t *Ticker) Remove(target Tickable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subscribers {
		if s == target {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

// Len は登録数を返す
func (t *Ticker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Tick は登録された全てのTickableを1回進める
func (t *Ticker) Tick() {
	t.mu.Lock()
	subs := make([]Tickable, len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.Unlock()

	for _, s := range subs {
		s.Tick()
	}
}

// Start はゴルーチンでティックを開始する。既に動作中なら何もしない
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}

	t.running = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.ticker = time.NewTicker(interval(t.fps))

	go t.run(t.ticker, t.stopCh, t.doneCh)
}

func (t *Ticker) run(tk *time.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case <-tk.C:
			t.Tick()
		}
	}
}

// Stop はティックを停止し、ゴルーチンの終了を待つ
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	doneCh := t.doneCh
	tk := t.ticker
	t.mu.Unlock()

	<-doneCh
	tk.Stop()

	t.mu.Lock()
	if t.ticker == tk {
		t.ticker = nil
	}
	t.mu.Unlock()
}

// IsRunning は動作中かどうかを返す
func (t *Ticker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
