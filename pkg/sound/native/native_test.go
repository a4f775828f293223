package native

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/zurustar/flashstage/pkg/sound"
)

// fakeBridge は呼び出しを記録するブリッジ
type fakeBridge struct {
	mu         sync.Mutex
	calls      []string
	preloadErr error
	completes  map[string]func()
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{completes: make(map[string]func())}
}

func (f *fakeBridge) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBridge) PreloadComplex(id, src string, volume float64, voices int, delay float64) error {
	f.record("preload:" + id)
	return f.preloadErr
}

func (f *fakeBridge) Play(id string, onComplete func()) error {
	f.record("play:" + id)
	f.mu.Lock()
	f.completes[id] = onComplete
	f.mu.Unlock()
	return nil
}

func (f *fakeBridge) Stop(id string) error {
	f.record("stop:" + id)
	return nil
}

func (f *fakeBridge) Unload(id string) error {
	f.record("unload:" + id)
	return nil
}

func (f *fakeBridge) SetVolume(id string, volume float64) error {
	f.record("volume:" + id)
	return nil
}

// finish はホスト側の再生終了を模擬する
func (f *fakeBridge) finish(id string) {
	f.mu.Lock()
	fn := f.completes[id]
	delete(f.completes, id)
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeBridge) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// playAndWait は再生を開始しsucceededかfailedを待つ
func playAndWait(t *testing.T, inst sound.Instance, props sound.PlayProps) sound.EventType {
	t.Helper()
	ch := make(chan sound.EventType, 2)
	r1 := inst.On(sound.EventSucceeded, func(ev sound.Event) { ch <- ev.Type })
	r2 := inst.On(sound.EventFailed, func(ev sound.Event) { ch <- ev.Type })
	defer r1()
	defer r2()

	if err := inst.Play(props); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for play result")
	}
	return ""
}

func TestPlugin_IsSupported(t *testing.T) {
	if New(nil, nil, nil).IsSupported() {
		t.Error("plugin without bridge must be unsupported")
	}
	p := New(newFakeBridge(), nil, nil)
	if !p.IsSupported() {
		t.Error("expected supported")
	}
	if p.Capabilities().Panning {
		t.Error("native bridge has no panning")
	}
}

func TestPlugin_PlayAndComplete(t *testing.T) {
	bridge := newFakeBridge()
	p := New(bridge, nil, nil)
	inst, err := p.Create("se/a.mp3", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev := playAndWait(t, inst, sound.PlayProps{}); ev != sound.EventSucceeded {
		t.Fatalf("expected succeeded, got %s", ev)
	}

	done := make(chan struct{})
	inst.On(sound.EventComplete, func(sound.Event) { close(done) })
	bridge.finish("se/a.mp3")
	<-done

	want := []string{"preload:se/a.mp3", "play:se/a.mp3", "volume:se/a.mp3", "unload:se/a.mp3"}
	if got := bridge.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlugin_LoopReplaysOnComplete(t *testing.T) {
	bridge := newFakeBridge()
	p := New(bridge, nil, nil)
	inst, _ := p.Create("bgm.ogg", 0, 0)

	loops := 0
	inst.On(sound.EventLoop, func(sound.Event) { loops++ })
	playAndWait(t, inst, sound.PlayProps{Loop: 1})

	bridge.finish("bgm.ogg")
	if loops != 1 {
		t.Errorf("expected 1 loop, got %d", loops)
	}
	plays := 0
	for _, c := range bridge.list() {
		if c == "play:bgm.ogg" {
			plays++
		}
	}
	if plays != 2 {
		t.Errorf("expected 2 plays, got %d", plays)
	}
}

func TestPlugin_VolumeZeroStopsAndRestoreReplays(t *testing.T) {
	bridge := newFakeBridge()
	p := New(bridge, nil, nil)
	inst, _ := p.Create("bgm.ogg", 0, 0)
	playAndWait(t, inst, sound.PlayProps{})

	inst.SetVolume(0)
	calls := bridge.list()
	if calls[len(calls)-1] != "stop:bgm.ogg" {
		t.Errorf("expected stop, got %v", calls)
	}

	// ミュートで止めた後の終了通知は無視する
	bridge.finish("bgm.ogg")
	if inst.PlayState() != sound.PlayStateSucceeded {
		t.Errorf("expected still succeeded, got %s", inst.PlayState())
	}

	inst.SetVolume(0.8)
	calls = bridge.list()
	if calls[len(calls)-1] != "play:bgm.ogg" {
		t.Errorf("expected replay, got %v", calls)
	}
}

func TestPlugin_PauseUnsupported(t *testing.T) {
	p := New(newFakeBridge(), nil, nil)
	inst, _ := p.Create("a.wav", 0, 0)
	playAndWait(t, inst, sound.PlayProps{})

	if err := inst.Pause(); !errors.Is(err, sound.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if err := inst.SetPosition(time.Second); !errors.Is(err, sound.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if inst.Position() != 0 {
		t.Errorf("expected position 0, got %v", inst.Position())
	}
}

func TestPlugin_PreloadFailure(t *testing.T) {
	bridge := newFakeBridge()
	bridge.preloadErr = errors.New("missing asset")
	p := New(bridge, nil, nil)
	inst, _ := p.Create("a.wav", 0, 0)

	if ev := playAndWait(t, inst, sound.PlayProps{}); ev != sound.EventFailed {
		t.Errorf("expected failed, got %s", ev)
	}
	if inst.PlayState() != sound.PlayStateFailed {
		t.Errorf("expected failed state, got %s", inst.PlayState())
	}
}

func TestPlugin_DurationFromProbe(t *testing.T) {
	calls := 0
	p := New(newFakeBridge(), func(string) time.Duration {
		calls++
		return 3 * time.Second
	}, nil)
	inst, _ := p.Create("a.wav", 0, 0)

	if inst.Duration() != 3*time.Second || inst.Duration() != 3*time.Second {
		t.Error("unexpected duration")
	}
	if calls != 1 {
		t.Errorf("expected probe once, got %d", calls)
	}
}

func TestPlugin_WithSystem(t *testing.T) {
	bridge := newFakeBridge()
	sys := sound.NewSystem(nil)
	sys.RegisterPlugins(New(nil, nil, nil), New(bridge, nil, nil))

	loader, err := sys.Register(sound.Descriptor{ID: "a", Src: "a.mp3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := loader.Load(t.Context()); err != nil {
		t.Fatalf("loader should complete immediately: %v", err)
	}
	if len(bridge.list()) != 0 {
		t.Error("register must not touch the bridge")
	}
}
