package movie

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/zurustar/flashstage/pkg/sound"
	"github.com/zurustar/flashstage/pkg/stage"
)

const testBundle = `
properties:
  width: 320
  height: 240
  fps: 30
  color: "#102030"
  manifest:
    - {id: a, src: a.png, type: image}
symbols:
  Main:
    kind: container
    children:
      - {symbol: Pic, name: pic, x: 10, y: 20}
  Pic:
    kind: bitmap
    image: a
`

const emptyManifestBundle = `
properties:
  fps: 12
  manifest: []
symbols:
  Main:
    kind: container
`

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// memFetcher serves scripts and assets from memory.
type memFetcher struct {
	mu      sync.Mutex
	files   map[string][]byte
	fetched []string
	// gate, when set, blocks asset fetches until it is closed.
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func newMemFetcher(files map[string][]byte) *memFetcher {
	return &memFetcher{files: files}
}

func (f *memFetcher) get(src string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, src)
	b, ok := f.files[src]
	if !ok {
		return nil, fmt.Errorf("%s: not found", src)
	}
	return b, nil
}

func (f *memFetcher) FetchScript(ctx context.Context, locator string) (any, error) {
	return f.get(locator)
}

func (f *memFetcher) FetchAsset(ctx context.Context, src string) ([]byte, error) {
	if f.gate != nil {
		f.once.Do(func() { close(f.started) })
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.get(src)
}

type fakeSounds struct {
	mu         sync.Mutex
	registered []sound.Descriptor
	removed    []sound.Descriptor
}

func (s *fakeSounds) Register(d sound.Descriptor) (sound.Loader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, d)
	return sound.Immediate, nil
}

func (s *fakeSounds) RemoveSounds(ds ...sound.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, ds...)
}

type fakeTicker struct {
	mu      sync.Mutex
	fps     float64
	targets []stage.Tickable
}

func (t *fakeTicker) Add(x stage.Tickable) {
	t.mu.Lock()
	t.targets = append(t.targets, x)
	t.mu.Unlock()
}

func (t *fakeTicker) Remove(x stage.Tickable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, y := range t.targets {
		if y == x {
			t.targets = append(t.targets[:i], t.targets[i+1:]...)
			return
		}
	}
}

func (t *fakeTicker) SetFPS(fps float64) {
	t.mu.Lock()
	t.fps = fps
	t.mu.Unlock()
}

func (t *fakeTicker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.targets)
}

// eventLog records event types in dispatch order.
type eventLog struct {
	mu     sync.Mutex
	events []*Event
}

func (l *eventLog) record(ev *Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) listen(m *Manager, types ...EventType) {
	if len(types) == 0 {
		types = []EventType{
			EventLoadManifest, EventFileLoad, EventFileError, EventDependenciesLoaded,
			EventStageReady, EventRootReady, EventStageDestroy, EventRootDestroy, EventDispose,
		}
	}
	for _, t := range types {
		m.On(t, l.record)
	}
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func (l *eventLog) count(t EventType) int {
	n := 0
	for _, x := range l.types() {
		if x == t {
			n++
		}
	}
	return n
}

func (l *eventLog) last(t EventType) *Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == t {
			return l.events[i]
		}
	}
	return nil
}
