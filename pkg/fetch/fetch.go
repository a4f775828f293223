// Package fetch はムービーのバンドルとアセットを読み込むトランスポート
// （ローカルや埋め込みのファイルシステム、HTTP）を提供する
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// 取得関連のエラー定義
var (
	// ErrNotFound はリソースが存在しない場合のエラー
	ErrNotFound = errors.New("resource not found")

	// ErrNoTransport はロケーターのスキームに対応するFetcherがない場合のエラー
	ErrNoTransport = errors.New("no transport for locator")
)

// Fetcher はロケーターが指すリソースを読み込む
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// FetcherFunc は関数をFetcherとして扱うアダプタ
type FetcherFunc func(ctx context.Context, locator string) ([]byte, error)

// Fetch は f(ctx, locator) を呼ぶ
func (f FetcherFunc) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// Router はロケーターのスキームでFetcherを選ぶ
// スキームがないロケーター（相対パスや絶対パス）はfallbackに渡す
type Router struct {
	schemes  map[string]Fetcher
	fallback Fetcher
}

// NewRouter は新しいRouterを作成する。fallbackはnilでもよい
func NewRouter(fallback Fetcher) *Router {
	return &Router{
		schemes:  make(map[string]Fetcher),
		fallback: fallback,
	}
}

// Handle はスキームにFetcherを割り当てる
func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.schemes[strings.ToLower(scheme)] = f
	return r
}

// Schemes は登録済みのスキームをソートして返す
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.schemes))
	for s := range r.schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Fetch はロケーターに対応するFetcherで読み込む
func (r *Router) Fetch(ctx context.Context, locator string) ([]byte, error) {
	f := r.route(locator)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTransport, locator)
	}
	return f.Fetch(ctx, locator)
}

// FetchScript はムービーのバンドルを読み込む
func (r *Router) FetchScript(ctx context.Context, locator string) (any, error) {
	return r.Fetch(ctx, locator)
}

// FetchAsset はマニフェストのアセットを読み込む
func (r *Router) FetchAsset(ctx context.Context, src string) ([]byte, error) {
	return r.Fetch(ctx, src)
}

func (r *Router) route(locator string) Fetcher {
	if scheme := Scheme(locator); scheme != "" {
		if f, ok := r.schemes[scheme]; ok {
			return f
		}
		return nil
	}
	return r.fallback
}

// Scheme はロケーターのスキームを小文字で返す
// Windowsのドライブレター（C:\...）はスキームとして扱わない
func Scheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
