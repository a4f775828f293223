// Package app は設定、トランスポート、サウンド、ステージ、ムービーマネージャーを
// 組み合わせて実行可能なプレイヤーにする
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/flashstage/pkg/config"
	"github.com/zurustar/flashstage/pkg/fetch"
	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/movie"
	"github.com/zurustar/flashstage/pkg/player"
	"github.com/zurustar/flashstage/pkg/sound"
	"github.com/zurustar/flashstage/pkg/sound/ebitenaudio"
	"github.com/zurustar/flashstage/pkg/sound/native"
	"github.com/zurustar/flashstage/pkg/sound/probe"
	"github.com/zurustar/flashstage/pkg/stage"
)

// Options はApplicationの設定
type Options struct {
	Config *config.Config
	// Bridge はモバイルビルドでのホスト側オーディオAPI。nilならnativeプラグインは使わない
	Bridge native.Bridge
	Logger *slog.Logger
}

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	cfg *config.Config
	log *slog.Logger

	script   string // LoadScriptに渡すロケーター
	movieDir string // ローカルのムービーディレクトリ（URLの場合は空）

	router  *fetch.Router
	http    *fetch.HTTPFetcher
	sounds  *sound.System
	mixer   *ebitenaudio.Plugin
	stage   *stage.Stage
	ticker  *stage.Ticker
	cache   *movie.Cache
	manager *movie.Manager
	player  *player.Player
}

// New はlocator（ローカルパスかhttp(s)のURL）のムービー用にApplicationを作成する
func New(locator string, opts Options) (*Application, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, errors.New("movie locator is required")
	}
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	a := &Application{
		cfg: cfg,
		log: logger.OrNop(opts.Logger),
	}

	base := a.resolveLocator(locator)
	a.buildTransport()
	a.buildSound(opts.Bridge)

	a.stage = stage.NewStage(cfg.Player.Width, cfg.Player.Height)
	a.ticker = stage.NewTicker(stage.DefaultFPS)
	if cfg.Movie.Cache {
		a.cache = movie.NewCache()
	}

	if cfg.Movie.BaseManifestPath != "" {
		base = cfg.Movie.BaseManifestPath
	}
	a.manager = movie.NewManager(a.stage, movie.Options{
		Fetcher:          a.router,
		Assets:           a.router,
		Sounds:           a.sounds,
		Cache:            a.cache,
		Ticker:           a.ticker,
		ResolvePath:      playableSounds(a.sounds),
		BaseManifestPath: base,
		Concurrency:      cfg.Movie.Concurrency,
		Logger:           a.log,
	})

	a.player = player.New(a.stage, a.ticker, player.Options{
		Title:   cfg.Player.Title,
		Timeout: cfg.PlayerTimeout(),
		Logger:  a.log,
	})
	if a.mixer != nil {
		a.player.AddUpdater(a.mixer)
	}
	a.manager.On(movie.EventRootReady, func(*movie.Event) { a.player.SetStatus("") })

	return a, nil
}

// resolveLocator はlocatorをマネージャーに渡すスクリプトのロケーターと
// マニフェストの相対パスの基準に分ける
func (a *Application) resolveLocator(locator string) (base string) {
	switch fetch.Scheme(locator) {
	case "http", "https":
		a.script = locator
		if i := strings.LastIndex(locator, "/"); i >= 0 {
			base = locator[:i+1]
		}
	case "file":
		// file:// はローカルパスとして扱う（ホスト部は無視）
		p := strings.TrimPrefix(locator, "file://")
		if u, err := url.Parse(locator); err == nil && u.Path != "" {
			p = u.Path
		}
		a.setLocalScript(filepath.FromSlash(p))
	default:
		a.setLocalScript(locator)
	}
	return base
}

func (a *Application) setLocalScript(p string) {
	a.movieDir = filepath.Dir(p)
	a.script = filepath.Base(p)
}

func (a *Application) buildTransport() {
	root := a.movieDir
	if root == "" {
		root = "."
	}
	a.http = fetch.NewHTTPFetcher(fetch.HTTPOptions{
		Timeout:   a.cfg.FetchTimeout(),
		Retries:   a.cfg.Fetch.Retries,
		UserAgent: a.cfg.Fetch.UserAgent,
		Logger:    a.log,
	})
	a.router = fetch.NewRouter(fetch.NewDirFetcher(root)).
		Handle("http", a.http).
		Handle("https", a.http).
		Handle("file", fetch.NewDirFetcher("/"))
}

func (a *Application) buildSound(bridge native.Bridge) {
	a.sounds = sound.NewSystem(a.log)
	duration := probe.DurationFunc(func(src string) ([]byte, error) {
		return a.router.Fetch(context.Background(), src)
	})

	var plugins []sound.Plugin
	for _, name := range a.cfg.Sound.Plugins {
		switch name {
		case "ebiten":
			if a.cfg.Player.Headless {
				a.log.Debug("headless mode: skipping mixer plugin")
				continue
			}
			mixer, err := ebitenaudio.New(ebitenaudio.Options{
				Read:                a.router.Fetch,
				SoundFont:           a.loadSoundFont(),
				ForgetBufferOnClean: a.cfg.Sound.ForgetBufferOnClean,
				Logger:              a.log,
			})
			if err != nil {
				a.log.Warn("mixer plugin unavailable", "error", err)
				continue
			}
			a.mixer = mixer
			plugins = append(plugins, mixer)
		case "native":
			plugins = append(plugins, native.New(bridge, duration, a.log))
		case "silent":
			plugins = append(plugins, sound.NewSilentPlugin(duration))
		}
	}
	a.sounds.RegisterPlugins(plugins...)
	a.sounds.SetVolume(a.cfg.Sound.Volume)
}

func (a *Application) loadSoundFont() *meltysynth.SoundFont {
	path := findSoundFont(a.cfg.Sound.SoundFont, a.movieDir)
	if path == "" {
		a.log.Debug("no SoundFont found, MIDI disabled")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		a.log.Warn("failed to read SoundFont", "path", path, "error", err)
		return nil
	}
	sf, err := ebitenaudio.LoadSoundFont(data)
	if err != nil {
		a.log.Warn("failed to load SoundFont", "path", path, "error", err)
		return nil
	}
	a.log.Info("SoundFont loaded", "path", path)
	return sf
}

// playableSounds は使用中のプラグインで再生できないサウンド項目を除く
func playableSounds(sounds *sound.System) movie.PathResolver {
	return func(e movie.ManifestEntry) string {
		if e.Type != movie.AssetSound {
			return e.Src
		}
		p := sounds.ActivePlugin()
		if p == nil || !p.Capabilities().Supports(sound.Ext(e.Src)) {
			return ""
		}
		return e.Src
	}
}

func (a *Application) Config() *config.Config { return a.cfg }
func (a *Application) Manager() *movie.Manager { return a.manager }
func (a *Application) Stage() *stage.Stage { return a.stage }
func (a *Application) Sounds() *sound.System { return a.sounds }
func (a *Application) Player() *player.Player { return a.player }
func (a *Application) ScriptLocator() string { return a.script }

// Load はムービーを読み込み、ルートがアタッチされるまで待つ
func (a *Application) Load(ctx context.Context) (*movie.Operation, error) {
	op, err := a.manager.LoadScript(ctx, a.script, a.cfg.Movie.Root)
	if err != nil {
		return nil, err
	}
	if err := op.Wait(ctx); err != nil {
		return op, fmt.Errorf("load %s: %w", a.script, err)
	}
	if res := op.Result(); res != nil && len(res.Failures) > 0 {
		a.log.Warn("some assets failed to load", "failed", len(res.Failures), "error", res.Err())
	}
	return op, nil
}

// Run はムービーを読み込み、ウィンドウが閉じるかタイムアウトか
// ctxが終わるまで再生する
func (a *Application) Run(ctx context.Context) error {
	a.log.Info("Application started", "movie", a.script, "headless", a.cfg.Player.Headless)

	if a.cfg.Player.Headless {
		if _, err := a.Load(ctx); err != nil {
			return err
		}
		return a.player.RunHeadless(ctx)
	}

	// ウィンドウはメインゴルーチンで動かす必要があるので読み込みは裏で行う
	a.player.SetStatus("loading " + a.script)
	go func() {
		if _, err := a.Load(ctx); err != nil {
			a.log.Error("failed to load movie", "error", err)
			a.player.SetStatus(err.Error())
		}
	}()
	return a.player.Run()
}

// Inspect はアセットを読み込まずにバンドルを取得してデコードする
func (a *Application) Inspect(ctx context.Context) (*movie.Bundle, error) {
	data, err := a.router.Fetch(ctx, a.script)
	if err != nil {
		return nil, &movie.TransportError{Locator: a.script, Err: err}
	}
	b := &movie.Bundle{}
	if err := (movie.YAMLDecoder{}).Decode(data, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Close はマネージャーを破棄し、サウンドと接続を解放する
func (a *Application) Close() error {
	err := a.manager.Dispose()
	a.sounds.StopAll()
	a.sounds.RemoveAllSounds()
	a.ticker.Stop()
	if cerr := a.http.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	a.log.Info("Application terminated normally")
	return err
}
