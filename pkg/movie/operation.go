package movie

import (
	"context"
	"sync"
)

// Operation は一回分の非同期ムービー読み込みを追跡する
type Operation struct {
	locator string

	done      chan struct{}
	once      sync.Once
	mu        sync.Mutex
	err       error
	result    *LoadResult
	fromCache bool
}

func newOperation(locator string) *Operation {
	return &Operation{locator: locator, done: make(chan struct{})}
}

// finishedOperation はerrで完了済みのOperationを返す
func finishedOperation(locator string, err error) *Operation {
	op := newOperation(locator)
	op.finish(err)
	return op
}

// Locator はスクリプトのロケーターを返す（ペイロード読み込みでは空）
func (op *Operation) Locator() string { return op.locator }

// Done は読み込み完了時にcloseされる
func (op *Operation) Done() <-chan struct{} { return op.done }

// Wait は読み込みが終わるかctxが終わるまでブロックする
func (op *Operation) Wait(ctx context.Context) error {
	select {
	case <-op.done:
		return op.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err は最終的なエラーを返す（実行中や成功時はnil）
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// Result は依存アセット読み込みの結果を返す
func (op *Operation) Result() *LoadResult {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.result
}

// FromCache はキャッシュにあったためデコードを省略したかを返す
func (op *Operation) FromCache() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.fromCache
}

func (op *Operation) setFromCache(v bool) {
	op.mu.Lock()
	op.fromCache = v
	op.mu.Unlock()
}

func (op *Operation) setResult(r *LoadResult) {
	op.mu.Lock()
	op.result = r
	op.mu.Unlock()
}

func (op *Operation) finish(err error) {
	op.once.Do(func() {
		op.mu.Lock()
		op.err = err
		op.mu.Unlock()
		close(op.done)
	})
}
