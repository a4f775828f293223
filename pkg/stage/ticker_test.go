package stage

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingTickable struct {
	n atomic.Int32
}

func (c *countingTickable) Tick() { c.n.Add(1) }

func TestNewTicker_Default(t *testing.T) {
	tk := NewTicker(0)
	if tk.FPS() != DefaultFPS {
		t.Errorf("expected default fps %d, got %f", DefaultFPS, tk.FPS())
	}
	if tk.IsRunning() {
		t.Error("ticker should not be running")
	}
}

func TestTicker_AddRemove(t *testing.T) {
	tk := NewTicker(30)
	c := &countingTickable{}

	tk.Add(c)
	tk.Add(c)
	if tk.Len() != 1 {
		t.Errorf("expected 1 subscriber, got %d", tk.Len())
	}

	tk.Tick()
	tk.Tick()
	if c.n.Load() != 2 {
		t.Errorf("expected 2 ticks, got %d", c.n.Load())
	}

	tk.Remove(c)
	tk.Tick()
	if c.n.Load() != 2 {
		t.Errorf("removed subscriber ticked: %d", c.n.Load())
	}
}

func TestTicker_SetFPS(t *testing.T) {
	tk := NewTicker(10)
	if tk.Interval() != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", tk.Interval())
	}
	tk.SetFPS(50)
	if tk.FPS() != 50 {
		t.Errorf("expected 50, got %f", tk.FPS())
	}
	tk.SetFPS(-1)
	if tk.FPS() != 50 {
		t.Error("non-positive fps must be ignored")
	}
}

func TestTicker_StartStop(t *testing.T) {
	tk := NewTicker(200)
	c := &countingTickable{}
	tk.Add(c)

	tk.Start()
	tk.Start() // 二重起動は無視
	if !tk.IsRunning() {
		t.Fatal("expected running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	tk.Stop()
	tk.Stop()

	if c.n.Load() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", c.n.Load())
	}
	if tk.IsRunning() {
		t.Error("expected stopped")
	}

	after := c.n.Load()
	time.Sleep(30 * time.Millisecond)
	if c.n.Load() != after {
		t.Error("ticks continued after Stop")
	}
}
