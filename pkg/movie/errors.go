package movie

import (
	"errors"
	"fmt"
)

// ムービーマネージャーと周辺関数が返すエラー
var (
	// ErrConfiguration は引数の不足や矛盾
	ErrConfiguration = errors.New("movie: configuration error")

	// ErrState は現在の状態では許されない操作
	ErrState = errors.New("movie: invalid state")

	// ErrTypeMismatch はペイロードやバンドルの形が不正
	ErrTypeMismatch = errors.New("movie: type mismatch")

	// ErrDisposed はDispose後に開始された操作のエラー
	ErrDisposed = errors.New("movie: manager disposed")

	// ErrTransport はスクリプトやアセットの取得失敗
	ErrTransport = errors.New("movie: transport error")

	// ErrUnknownSymbol は指定した名前のシンボルがバンドルに無い
	ErrUnknownSymbol = errors.New("movie: unknown symbol")
)

// TransportError は取得に失敗したロケーターを保持する
type TransportError struct {
	Locator string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("movie: fetch %q: %v", e.Locator, e.Err)
}

// Unwrap はErrTransportと元の取得エラーの両方を返す
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// ItemError は読み込みに失敗したマニフェスト項目
type ItemError struct {
	Entry ManifestEntry
	Src   string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("movie: load %s %q (%s): %v", e.Entry.Type, e.Entry.ID, e.Src, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
