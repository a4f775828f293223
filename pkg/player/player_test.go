package player

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zurustar/flashstage/pkg/stage"
)

type countingUpdater struct{ n atomic.Int32 }

func (c *countingUpdater) Update() { c.n.Add(1) }

func newTestPlayer(fps float64, opts Options) (*Player, *stage.Stage) {
	st := stage.NewStage(320, 240)
	tk := stage.NewTicker(fps)
	tk.Add(st)
	return New(st, tk, opts), st
}

func TestPlayer_AdvanceFollowsFPS(t *testing.T) {
	p, st := newTestPlayer(24, Options{})

	if n := p.advance(time.Second); n != 24 {
		t.Errorf("expected 24 ticks for one second, got %d", n)
	}
	if st.TickCount() != 24 || p.Frames() != 24 {
		t.Errorf("tick count = %d, frames = %d", st.TickCount(), p.Frames())
	}

	// 端数は次のフレームに持ち越される
	half := p.ticker.Interval() / 2
	if n := p.advance(half); n != 0 {
		t.Errorf("half an interval should not tick, got %d", n)
	}
	if n := p.advance(half); n != 1 {
		t.Errorf("two halves should tick once, got %d", n)
	}
}

func TestPlayer_Paused(t *testing.T) {
	p, st := newTestPlayer(30, Options{})
	u := &countingUpdater{}
	p.AddUpdater(u)

	p.SetPaused(true)
	p.advance(time.Second)
	if st.TickCount() != 0 {
		t.Errorf("paused player ticked %d times", st.TickCount())
	}
	if u.n.Load() != 1 {
		t.Error("updaters run even while paused")
	}

	p.SetPaused(false)
	p.advance(time.Second)
	if st.TickCount() != 30 {
		t.Errorf("tick count = %d", st.TickCount())
	}
}

func TestPlayer_Layout(t *testing.T) {
	p, _ := newTestPlayer(24, Options{})
	if w, h := p.Layout(1000, 1000); w != 320 || h != 240 {
		t.Errorf("layout = %dx%d", w, h)
	}
}

func TestPlayer_Status(t *testing.T) {
	p, _ := newTestPlayer(24, Options{})
	p.SetStatus("loading")
	if p.Status() != "loading" {
		t.Errorf("status = %q", p.Status())
	}
}

func TestPlayer_RunHeadlessTimeout(t *testing.T) {
	p, st := newTestPlayer(100, Options{Timeout: 200 * time.Millisecond})
	u := &countingUpdater{}
	p.AddUpdater(u)

	start := time.Now()
	if err := p.RunHeadless(t.Context()); err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond || elapsed > 5*time.Second {
		t.Errorf("run took %v", elapsed)
	}
	if st.TickCount() == 0 || u.n.Load() == 0 {
		t.Error("stage should have ticked")
	}
}

func TestPlayer_RunHeadlessCancel(t *testing.T) {
	p, _ := newTestPlayer(60, Options{})
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.RunHeadless(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunHeadless: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunHeadless did not stop")
	}
}
