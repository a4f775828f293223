// Package logger はslogベースのロガーを提供する
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// 出力形式
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto" // 端末ならtext、それ以外はjson
)

var globalLogger *slog.Logger

// InitLogger ログレベルに応じてslogを初期化（text形式、標準出力）
func InitLogger(level string) error {
	return InitLoggerWithFormat(level, FormatText, os.Stdout)
}

// InitLoggerWithFormat ログレベルと出力形式を指定してslogを初期化
func InitLoggerWithFormat(level, format string, w io.Writer) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch resolveFormat(format, w) {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// ParseLevel 文字列をslog.Levelに変換
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// resolveFormat autoの場合は出力先が端末かどうかで形式を決める
func resolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatText
	}
	if format != FormatAuto {
		return format
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// Component コンポーネント名付きのロガーを返す
func Component(name string) *slog.Logger {
	return GetLogger().With("component", name)
}

// Nop 何も出力しないロガー
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrNop nilならNopロガーを返す
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
