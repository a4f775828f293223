// Package sound はマニフェストのサウンドを再生するプラグイン方式のサウンド機能を提供する
// バックエンドはPluginを実装し、Systemは最初に対応しているものを選んで
// 登録・再生・一括アンロードを振り分ける
package sound

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// サウンド関連のエラー定義
var (
	// ErrUnsupported はバックエンドが操作に対応していない場合のエラー
	ErrUnsupported = errors.New("operation not supported by sound backend")

	// ErrNoPlugin は有効なプラグインがない場合のエラー
	ErrNoPlugin = errors.New("no supported sound plugin installed")

	// ErrNotRegistered は未登録のサウンドを参照した場合のエラー
	ErrNotRegistered = errors.New("sound not registered")

	// ErrOutOfRange は再生位置が長さを超えている場合のエラー
	ErrOutOfRange = errors.New("play offset out of range")

	// ErrDestroyed は破棄済みインスタンスを操作した場合のエラー
	ErrDestroyed = errors.New("sound instance destroyed")
)

// Descriptor は登録するサウンドの記述子
// StartTime と Duration はオーディオスプライトの切り出し範囲（0なら全体）
type Descriptor struct {
	ID        string
	Src       string
	StartTime time.Duration
	Duration  time.Duration
}

// Loader はサウンド1件のロードを完了させる
type Loader interface {
	Load(ctx context.Context) error
}

// LoaderFunc は関数をLoaderとして扱うアダプタ
type LoaderFunc func(ctx context.Context) error

// Load は f(ctx) を呼ぶ
func (f LoaderFunc) Load(ctx context.Context) error {
	return f(ctx)
}

// Immediate は即座に完了するLoader
// 実データを再生時に読み込むバックエンドが使う
var Immediate Loader = LoaderFunc(func(ctx context.Context) error {
	return ctx.Err()
})

// Capabilities はプラグインの対応機能
type Capabilities struct {
	Panning    bool
	Volume     bool
	Tracks     int // 同時再生数（-1は無制限）
	Extensions map[string]bool
}

// Supports は拡張子に対応しているかを返す
func (c Capabilities) Supports(ext string) bool {
	return c.Extensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// SupportedExtensions はバックエンドが共通で扱える拡張子
var SupportedExtensions = []string{"mp3", "ogg", "wav", "mid", "midi"}

// Ext はsrcの拡張子を小文字で返す（クエリは無視）
func Ext(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(src), "."))
}

// Plugin はサウンドバックエンドの共通インターフェース
type Plugin interface {
	// Register はサウンドを登録し、ロードを完了させるLoaderを返す
	Register(d Descriptor) (Loader, error)
	// Create は再生インスタンスを作成する
	Create(src string, startTime, duration time.Duration) (Instance, error)
	RemoveSound(src string)
	RemoveAllSounds()
	Capabilities() Capabilities
	IsSupported() bool
	String() string
}

// EventType はインスタンスのライフサイクルイベント
type EventType string

const (
	EventSucceeded   EventType = "succeeded"
	EventFailed      EventType = "failed"
	EventInterrupted EventType = "interrupted"
	EventComplete    EventType = "complete"
	EventLoop        EventType = "loop"
)

// Event はインスタンスから通知されるイベント
type Event struct {
	Type     EventType
	Instance Instance
	Err      error // failed のときのみ
}

// Listener はイベントリスナー
type Listener func(Event)

// PlayState は再生状態
type PlayState string

const (
	PlayStateInited      PlayState = "playInited"
	PlayStateSucceeded   PlayState = "playSucceeded"
	PlayStateInterrupted PlayState = "playInterrupted"
	PlayStateFinished    PlayState = "playFinished"
	PlayStateFailed      PlayState = "playFailed"
)

// PlayProps は再生パラメータ
type PlayProps struct {
	Offset time.Duration // 再生開始位置
	Loop   int           // 追加で繰り返す回数（-1は無限）
	Volume *float64      // nilなら現在の音量を維持
}

// Vol はPlayProps.Volume用のヘルパー
func Vol(v float64) *float64 {
	return &v
}
