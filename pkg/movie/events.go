package movie

import (
	"sync"
	"time"
)

// EventType はマネージャーのライフサイクル通知の種類
type EventType string

const (
	EventLoadManifest       EventType = "load_manifest"
	EventFileLoad           EventType = "file_load"
	EventFileError          EventType = "file_error"
	EventDependenciesLoaded EventType = "dependencies_loaded"
	EventStageReady         EventType = "stage_ready"
	EventRootReady          EventType = "root_ready"
	EventStageDestroy       EventType = "stage_destroy"
	EventRootDestroy        EventType = "root_destroy"
	EventDispose            EventType = "dispose"
)

// Event はリスナーに渡される
//
// 種類ごとのParams:
//   - load_manifest: "manifest" ([]ManifestEntry), "loader" (*DependencyLoader)
//   - file_load: "item" (ManifestEntry), "src" (string), "result"
//   - file_error: "item" (ManifestEntry), "error" (*ItemError)
//   - dependencies_loaded: "result" (*LoadResult)
//   - root_ready, root_destroy: "root" (*stage.DisplayObject)
type Event struct {
	Type      EventType
	Timestamp time.Time
	Params    map[string]any
}

// NewEvent は現在時刻付きのイベントを作成する
func NewEvent(t EventType, params map[string]any) *Event {
	if params == nil {
		params = make(map[string]any)
	}
	return &Event{Type: t, Timestamp: time.Now(), Params: params}
}

// GetParam は名前でパラメータ値を取得する
func (e *Event) GetParam(name string) (any, bool) {
	if e.Params == nil {
		return nil, false
	}
	v, ok := e.Params[name]
	return v, ok
}

// Listener はイベントを受け取る
type Listener func(*Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Dispatcher は登録順にリスナーへイベントを配信する
type Dispatcher struct {
	mu        sync.Mutex
	nextID    int
	listeners map[EventType][]listenerEntry
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[EventType][]listenerEntry)}
}

// On はtにfnを登録し、解除用の関数を返す
func (d *Dispatcher) On(t EventType, fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[t] = append(d.listeners[t], listenerEntry{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		entries := d.listeners[t]
		for i, e := range entries {
			if e.id == id {
				d.listeners[t] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Dispatch はイベントの種類に登録されたリスナーを呼ぶ
// 呼び出し中のリスナーが登録や解除をしてもよい
func (d *Dispatcher) Dispatch(ev *Event) {
	d.mu.Lock()
	entries := append([]listenerEntry(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// RemoveAll は全リスナーを削除する
func (d *Dispatcher) RemoveAll() {
	d.mu.Lock()
	clear(d.listeners)
	d.mu.Unlock()
}

// Count はtのリスナー数を返す
func (d *Dispatcher) Count(t EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[t])
}
