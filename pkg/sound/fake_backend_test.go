package sound

import (
	"sync"
	"time"
)

// fakeBackend は呼び出しを記録するテスト用バックエンド
type fakeBackend struct {
	mu         sync.Mutex
	inst       *BaseInstance
	prepareErr error
	startErr   error
	deferReady bool
	pending    func(error)
	pauseErr   error
	starts     []time.Duration
	stops      int
	cleanups   int
	volumes    []float64
	pos        time.Duration
	length     time.Duration
}

func newFakeInstance(src string, startTime, duration time.Duration) (*BaseInstance, *fakeBackend) {
	be := &fakeBackend{}
	inst := NewBaseInstance(src, startTime, duration, be)
	be.inst = inst
	return inst, be
}

func (f *fakeBackend) Prepare(ready func(error)) {
	f.mu.Lock()
	if f.deferReady {
		f.pending = ready
		f.mu.Unlock()
		return
	}
	err := f.prepareErr
	f.mu.Unlock()
	ready(err)
}

// finishPrepare は保留中のreadyを呼び出す
func (f *fakeBackend) finishPrepare(err error) {
	f.mu.Lock()
	ready := f.pending
	f.pending = nil
	f.mu.Unlock()
	if ready != nil {
		ready(err)
	}
}

func (f *fakeBackend) Start(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts = append(f.starts, pos)
	f.pos = pos
	return nil
}

func (f *fakeBackend) Pause() error  { return f.pauseErr }
func (f *fakeBackend) Resume() error { return f.pauseErr }

func (f *fakeBackend) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeBackend) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, v)
}

func (f *fakeBackend) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeBackend) Seek(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pos
	return nil
}

func (f *fakeBackend) Duration() time.Duration { return f.length }

func (f *fakeBackend) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

func (f *fakeBackend) lastVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.volumes) == 0 {
		return -1
	}
	return f.volumes[len(f.volumes)-1]
}

// fakePlugin はfakeBackendのインスタンスを作るプラグイン
type fakePlugin struct {
	*PluginBase
	supported bool
	name      string
	created   []*fakeBackend
}

func newFakePlugin(name string, supported bool) *fakePlugin {
	return &fakePlugin{
		PluginBase: NewPluginBase(Capabilities{Volume: true, Tracks: -1}),
		supported:  supported,
		name:       name,
	}
}

func (p *fakePlugin) Create(src string, startTime, duration time.Duration) (Instance, error) {
	inst, be := newFakeInstance(src, startTime, duration)
	p.created = append(p.created, be)
	return inst, nil
}

func (p *fakePlugin) IsSupported() bool { return p.supported }
func (p *fakePlugin) String() string    { return p.name }

// recorder はイベントを順に記録する
type recorder struct {
	mu     sync.Mutex
	events []EventType
}

func (r *recorder) attach(inst Instance) {
	for _, t := range []EventType{EventSucceeded, EventFailed, EventInterrupted, EventComplete, EventLoop} {
		inst.On(t, func(ev Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev.Type)
		})
	}
}

func (r *recorder) list() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	copy(out, r.events)
	return out
}
