//go:build mobile

// Package mobile は ebitenmobile 向けのバインディング
//
// ビルド例:
//
//	ebitenmobile bind -target android -tags mobile -javapkg com.example.flashstage -o build/flashstage.aar ./mobile
//	ebitenmobile bind -target ios -tags mobile -o build/Flashstage.xcframework ./mobile
//
// ホストアプリは SetAudioHost でネイティブオーディオを渡してから Start を呼ぶ。
package mobile

import (
	"context"
	"image/color"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/mobile"

	"github.com/zurustar/flashstage/pkg/app"
	"github.com/zurustar/flashstage/pkg/config"
	"github.com/zurustar/flashstage/pkg/logger"
)

// lazyGame は Start されるまで空の画面を出す
type lazyGame struct {
	mu  sync.Mutex
	app *app.Application
	err error
}

func (g *lazyGame) current() (*app.Application, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.app, g.err
}

func (g *lazyGame) Update() error {
	a, err := g.current()
	if err != nil || a == nil {
		return nil
	}
	return a.Player().Update()
}

func (g *lazyGame) Draw(screen *ebiten.Image) {
	a, err := g.current()
	switch {
	case err != nil:
		screen.Fill(color.RGBA{0x80, 0, 0, 0xff})
	case a == nil:
		screen.Fill(color.Black)
	default:
		a.Player().Draw(screen)
	}
}

func (g *lazyGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	if a, _ := g.current(); a != nil {
		return a.Player().Layout(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

var game = &lazyGame{}

func init() {
	mobile.SetGame(game)
}

// Start はlocatorのムービーを読み込んで再生を開始する
// 再度呼ぶと再生中のムービーを置き換える
func Start(locator string) error {
	_ = logger.InitLoggerWithFormat("info", logger.FormatText, os.Stderr)
	log := logger.Component("mobile")

	cfg := config.Default()
	cfg.Sound.Plugins = []string{"native", "ebiten", "silent"}

	a, err := app.New(locator, app.Options{Config: &cfg, Bridge: bridge, Logger: log})
	if err != nil {
		game.mu.Lock()
		game.err = err
		game.mu.Unlock()
		return err
	}

	game.mu.Lock()
	prev := game.app
	game.app, game.err = a, nil
	game.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	go func() {
		if _, err := a.Load(context.Background()); err != nil {
			log.Error("failed to load movie", "movie", locator, "error", err)
			a.Player().SetStatus(err.Error())
		}
	}()
	return nil
}

// Dummy はebitenmobileからパッケージが見えるようにするためのもの
func Dummy() {}
