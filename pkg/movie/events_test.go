package movie

import (
	"slices"
	"testing"
)

func TestDispatcher_OrderAndRemove(t *testing.T) {
	d := NewDispatcher()
	var got []string
	d.On(EventRootReady, func(*Event) { got = append(got, "first") })
	remove := d.On(EventRootReady, func(*Event) { got = append(got, "second") })
	d.On(EventRootReady, func(*Event) { got = append(got, "third") })

	d.Dispatch(NewEvent(EventRootReady, nil))
	if !slices.Equal(got, []string{"first", "second", "third"}) {
		t.Errorf("got %v", got)
	}

	got = nil
	remove()
	remove()
	d.Dispatch(NewEvent(EventRootReady, nil))
	if !slices.Equal(got, []string{"first", "third"}) {
		t.Errorf("after remove got %v", got)
	}
	if d.Count(EventRootReady) != 2 {
		t.Errorf("Count = %d", d.Count(EventRootReady))
	}
}

func TestDispatcher_ListenerMayUnregister(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	var remove func()
	remove = d.On(EventDispose, func(*Event) {
		calls++
		remove()
	})
	d.Dispatch(NewEvent(EventDispose, nil))
	d.Dispatch(NewEvent(EventDispose, nil))
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestDispatcher_RemoveAll(t *testing.T) {
	d := NewDispatcher()
	fired := false
	d.On(EventDispose, func(*Event) { fired = true })
	d.RemoveAll()
	d.Dispatch(NewEvent(EventDispose, nil))
	if fired {
		t.Error("listener should be gone")
	}
}

func TestEvent_GetParam(t *testing.T) {
	ev := NewEvent(EventFileLoad, map[string]any{"src": "a.png"})
	if v, ok := ev.GetParam("src"); !ok || v != "a.png" {
		t.Errorf("GetParam = %v, %v", v, ok)
	}
	if _, ok := ev.GetParam("missing"); ok {
		t.Error("missing param should not be found")
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}
