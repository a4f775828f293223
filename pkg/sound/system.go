package sound

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zurustar/flashstage/pkg/logger"
)

// System は登録されたプラグインのうち最初に対応しているものを使って
// サウンドの登録・再生・解放を行う
type System struct {
	mu        sync.Mutex
	plugins   []Plugin
	active    Plugin
	sounds    map[string]Descriptor
	instances []Instance
	volume    float64
	muted     bool
	log       *slog.Logger
}

// NewSystem は新しいSystemを作成する。logはnilでもよい
func NewSystem(log *slog.Logger) *System {
	return &System{
		sounds: make(map[string]Descriptor),
		volume: 1,
		log:    logger.OrNop(log).With("component", "sound"),
	}
}

// RegisterPlugins は優先順にプラグインを追加する
// 有効なプラグインがまだなければ最初に対応しているものを有効にする
func (s *System) RegisterPlugins(plugins ...Plugin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plugins = append(s.plugins, plugins...)
	if s.active != nil {
		return true
	}
	for _, p := range s.plugins {
		if p != nil && p.IsSupported() {
			s.active = p
			s.log.Info("sound plugin activated", "plugin", p.String())
			return true
		}
	}
	s.log.Warn("no supported sound plugin")
	return false
}

// ActivePlugin は有効なプラグインを返す（なければnil）
func (s *System) ActivePlugin() Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Register はサウンドを有効なプラグインへ登録する
func (s *System) Register(d Descriptor) (Loader, error) {
	s.mu.Lock()
	p := s.active
	s.mu.Unlock()
	if p == nil {
		return nil, ErrNoPlugin
	}

	loader, err := p.Register(d)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", d.Src, err)
	}

	s.mu.Lock()
	s.sounds[d.Src] = d
	s.mu.Unlock()
	s.log.Debug("sound registered", "id", d.ID, "src", d.Src)
	return loader, nil
}

// IsRegistered はsrcが登録済みかどうかを返す
func (s *System) IsRegistered(src string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sounds[src]
	return ok
}

// CreateInstance は登録済みサウンドのインスタンスを作成する（再生はしない）
func (s *System) CreateInstance(src string) (Instance, error) {
	s.mu.Lock()
	p := s.active
	d, ok := s.sounds[src]
	vol, muted := s.volume, s.muted
	s.mu.Unlock()

	if p == nil {
		return nil, ErrNoPlugin
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, src)
	}

	inst, err := p.Create(src, d.StartTime, d.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance for %s: %w", src, err)
	}
	inst.SetMaster(vol, muted)

	s.mu.Lock()
	s.pruneLocked()
	s.instances = append(s.instances, inst)
	s.mu.Unlock()
	return inst, nil
}

// Play はインスタンスを作成して再生する
func (s *System) Play(src string, props PlayProps) (Instance, error) {
	inst, err := s.CreateInstance(src)
	if err != nil {
		return nil, err
	}
	inst.On(EventFailed, func(ev Event) {
		s.log.Warn("sound playback failed", "src", src, "error", ev.Err)
	})
	if err := inst.Play(props); err != nil {
		return nil, err
	}
	return inst, nil
}

// RemoveSound はサウンドを停止して登録を解除する
func (s *System) RemoveSound(src string) {
	s.mu.Lock()
	p := s.active
	delete(s.sounds, src)
	var stopping []Instance
	kept := s.instances[:0]
	for _, inst := range s.instances {
		if inst.Src() == src {
			stopping = append(stopping, inst)
		} else {
			kept = append(kept, inst)
		}
	}
	s.instances = kept
	s.mu.Unlock()

	for _, inst := range stopping {
		inst.Destroy()
	}
	if p != nil {
		p.RemoveSound(src)
	}
}

// RemoveSounds は記述子の一覧をまとめて解放する
func (s *System) RemoveSounds(ds ...Descriptor) {
	for _, d := range ds {
		s.RemoveSound(d.Src)
	}
	if len(ds) > 0 {
		s.log.Debug("sounds removed", "count", len(ds))
	}
}

// RemoveAllSounds は全てのサウンドを解放する
func (s *System) RemoveAllSounds() {
	s.mu.Lock()
	p := s.active
	instances := s.instances
	s.instances = nil
	s.sounds = make(map[string]Descriptor)
	s.mu.Unlock()

	for _, inst := range instances {
		inst.Destroy()
	}
	if p != nil {
		p.RemoveAllSounds()
	}
}

// StopAll は再生中の全インスタンスを停止する
func (s *System) StopAll() {
	s.mu.Lock()
	instances := make([]Instance, len(s.instances))
	copy(instances, s.instances)
	s.mu.Unlock()

	for _, inst := range instances {
		inst.Stop()
	}
}

// SetVolume はマスター音量を設定する
func (s *System) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = clamp01(v)
	s.mu.Unlock()
	s.applyMaster()
}

// Volume はマスター音量を返す
func (s *System) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetMuted はマスターミュートを設定する
func (s *System) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	s.applyMaster()
}

// Muted はマスターミュート状態を返す
func (s *System) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// ActiveInstances は追跡中のインスタンス数を返す
func (s *System) ActiveInstances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.instances)
}

func (s *System) applyMaster() {
	s.mu.Lock()
	vol, muted := s.volume, s.muted
	instances := make([]Instance, len(s.instances))
	copy(instances, s.instances)
	s.mu.Unlock()

	for _, inst := range instances {
		inst.SetMaster(vol, muted)
	}
}

// pruneLocked は終了したインスタンスを追跡対象から外す
func (s *System) pruneLocked() {
	kept := s.instances[:0]
	for _, inst := range s.instances {
		switch inst.PlayState() {
		case PlayStateFinished, PlayStateFailed:
			continue
		}
		kept = append(kept, inst)
	}
	s.instances = kept
}
