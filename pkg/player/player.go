// Package player はステージをebitenのウィンドウかヘッドレスで動かす
package player

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/stage"
)

var (
	// ステータス表示の文字色
	statusColor = color.White
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

// Updater は毎フレーム呼ばれる（再生終了を検出するミキサープラグインなど）
type Updater interface {
	Update()
}

// Options はPlayerの設定
type Options struct {
	Title   string
	Timeout time.Duration // 0 = unlimited
	Logger  *slog.Logger
}

// Player はebitenのゲームループかヘッドレスのループでステージのティッカーを進める
type Player struct {
	stage  *stage.Stage
	ticker *stage.Ticker
	opts   Options
	log    *slog.Logger

	mu        sync.Mutex
	updaters  []Updater
	acc       time.Duration
	frames    int
	paused    bool
	status    string
	startTime time.Time
}

// New はPlayerを作成する。ティッカーはStartせずPlayerが手動で進める
func New(st *stage.Stage, tk *stage.Ticker, opts Options) *Player {
	if opts.Title == "" {
		opts.Title = "flashstage"
	}
	return &Player{
		stage:  st,
		ticker: tk,
		opts:   opts,
		log:    logger.OrNop(opts.Logger).With("component", "player"),
	}
}

// AddUpdater は毎フレーム呼ぶuを登録する
func (p *Player) AddUpdater(u Updater) {
	p.mu.Lock()
	p.updaters = append(p.updaters, u)
	p.mu.Unlock()
}

// SetStatus はステージの上に描く1行のテキストを設定する。空なら表示しない
func (p *Player) SetStatus(s string) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *Player) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SetPaused はウィンドウを残したままティッカーを止める
func (p *Player) SetPaused(v bool) {
	p.mu.Lock()
	p.paused = v
	p.mu.Unlock()
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Frames はこれまでに配ったティック数を返す
func (p *Player) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// advance はelapsedとFPSから求めた回数だけティッカーを進める
func (p *Player) advance(elapsed time.Duration) int {
	p.mu.Lock()
	updaters := append([]Updater(nil), p.updaters...)
	paused := p.paused
	p.mu.Unlock()

	for _, u := range updaters {
		u.Update()
	}
	if paused {
		return 0
	}

	interval := p.ticker.Interval()
	p.mu.Lock()
	p.acc += elapsed
	n := 0
	for p.acc >= interval {
		p.acc -= interval
		n++
	}
	p.frames += n
	p.mu.Unlock()

	for range n {
		p.ticker.Tick()
	}
	return n
}

func (p *Player) timedOut() bool {
	return p.opts.Timeout > 0 && !p.startTime.IsZero() && time.Since(p.startTime) >= p.opts.Timeout
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (p *Player) Update() error {
	if p.startTime.IsZero() {
		p.startTime = time.Now()
	}
	if p.timedOut() {
		p.log.Info("timeout reached, terminating")
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		p.SetPaused(!p.Paused())
	}

	p.advance(time.Second / time.Duration(ebiten.TPS()))
	return nil
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (p *Player) Draw(screen *ebiten.Image) {
	p.stage.Draw(screen)

	if s := p.Status(); s != "" {
		op := &text.DrawOptions{}
		op.GeoM.Translate(8, 8)
		op.ColorScale.ScaleWithColor(statusColor)
		text.Draw(screen, s, defaultFace, op)
	}
}

// Layout ステージのサイズを論理画面サイズとして返す
func (p *Player) Layout(outsideWidth, outsideHeight int) (int, int) {
	return p.stage.Size()
}

// Run はウィンドウを開き、閉じられるかタイムアウトするまでブロックする
func (p *Player) Run() error {
	w, h := p.stage.Size()
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle(p.opts.Title)
	// アスペクト比を維持したままリサイズを許可する
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	p.log.Info("starting window", "width", w, "height", h, "fps", p.ticker.FPS())
	if err := ebiten.RunGame(p); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}

// RunHeadless はウィンドウ無しでステージを進める
// ctxの終了やタイムアウトはエラーにしない
func (p *Player) RunHeadless(ctx context.Context) error {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	p.log.Info("running headless", "fps", p.ticker.FPS(), "timeout", p.opts.Timeout)
	last := time.Now()
	tk := time.NewTicker(p.ticker.Interval())
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("headless run finished", "frames", p.Frames())
			return nil
		case now := <-tk.C:
			p.advance(now.Sub(last))
			last = now
		}
	}
}
