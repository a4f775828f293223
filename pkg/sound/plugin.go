package sound

import (
	"sort"
	"sync"
	"time"
)

// PluginBase はプラグイン共通の登録管理
// 各プラグインは埋め込んで Create / IsSupported / String を実装する
type PluginBase struct {
	mu           sync.Mutex
	sources      map[string]Descriptor
	capabilities Capabilities
}

// NewPluginBase は対応機能を指定してPluginBaseを作成する
func NewPluginBase(caps Capabilities) *PluginBase {
	if caps.Extensions == nil {
		caps.Extensions = make(map[string]bool)
		for _, ext := range SupportedExtensions {
			caps.Extensions[ext] = true
		}
	}
	return &PluginBase{
		sources:      make(map[string]Descriptor),
		capabilities: caps,
	}
}

// Register はsrcを記録し、即時完了するLoaderを返す
// 実際の読み込みは再生時に行う
func (p *PluginBase) Register(d Descriptor) (Loader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[d.Src] = d
	return Immediate, nil
}

// IsRegistered はsrcが登録済みかどうかを返す
func (p *PluginBase) IsRegistered(src string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sources[src]
	return ok
}

// Registered は登録済みのsrcをソートして返す
func (p *PluginBase) Registered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sources))
	for src := range p.sources {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// RemoveSound は登録を解除する
func (p *PluginBase) RemoveSound(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sources, src)
}

// RemoveAllSounds は全ての登録を解除する
func (p *PluginBase) RemoveAllSounds() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = make(map[string]Descriptor)
}

// Capabilities は対応機能を返す
func (p *PluginBase) Capabilities() Capabilities {
	return p.capabilities
}

// ============================================================================
// SilentPlugin（ヘッドレス用）
// ============================================================================

// DurationFunc はsrcの長さを返す（不明なら0）
type DurationFunc func(src string) time.Duration

// SilentPlugin は音を出さずにイベントだけを発生させるプラグイン
// 長さが分かるサウンドは経過時間後にcompleteを通知する
type SilentPlugin struct {
	*PluginBase
	duration DurationFunc
}

// NewSilentPlugin は新しいSilentPluginを作成する。durationはnilでもよい
func NewSilentPlugin(duration DurationFunc) *SilentPlugin {
	return &SilentPlugin{
		PluginBase: NewPluginBase(Capabilities{Volume: true, Tracks: -1}),
		duration:   duration,
	}
}

// Create は無音のインスタンスを作成する
func (p *SilentPlugin) Create(src string, startTime, duration time.Duration) (Instance, error) {
	be := &silentBackend{}
	if duration > 0 {
		be.length = startTime + duration
	} else if p.duration != nil {
		be.length = p.duration(src)
	}
	inst := NewBaseInstance(src, startTime, duration, be)
	be.inst = inst
	return inst, nil
}

// IsSupported は常にtrueを返す
func (p *SilentPlugin) IsSupported() bool { return true }

func (p *SilentPlugin) String() string { return "[SilentPlugin]" }

// silentBackend は壁時計で再生位置を進める
type silentBackend struct {
	mu      sync.Mutex
	inst    *BaseInstance
	length  time.Duration
	started time.Time
	base    time.Duration
	paused  bool
	timer   *time.Timer
}

func (s *silentBackend) Prepare(ready func(error)) { ready(nil) }

func (s *silentBackend) Start(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.base = pos
	s.started = time.Now()
	s.paused = false
	s.scheduleLocked()
	return nil
}

func (s *silentBackend) scheduleLocked() {
	if s.length <= 0 {
		return
	}
	remaining := s.length - s.base
	if remaining < 0 {
		remaining = 0
	}
	s.timer = time.AfterFunc(remaining, s.inst.Ended)
}

func (s *silentBackend) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *silentBackend) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base += time.Since(s.started)
	s.paused = true
	s.stopTimerLocked()
	return nil
}

func (s *silentBackend) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = time.Now()
	s.paused = false
	s.scheduleLocked()
	return nil
}

func (s *silentBackend) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

func (s *silentBackend) SetVolume(float64) {}

func (s *silentBackend) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return s.base
	}
	return s.base + time.Since(s.started)
}

func (s *silentBackend) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.base = pos
	s.started = time.Now()
	if !s.paused {
		s.scheduleLocked()
	}
	return nil
}

func (s *silentBackend) Duration() time.Duration { return s.length }

func (s *silentBackend) Cleanup() {
	s.Stop()
}
