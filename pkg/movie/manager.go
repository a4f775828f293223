// Package movie はムービーバンドルを読み込んでステージに載せる
//
// Managerは一度に一つの読み込みサイクルを進める:
//
//	スクリプト取得 -> バンドルのデコード（またはキャッシュ） -> マニフェストの絞り込み ->
//	依存アセットの読み込み -> ルートのアタッチ -> イベント
//
// ClearStage や Dispose でステージを片付ける。
package movie

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/stage"
)

// State はManagerのライフサイクル状態
type State int

const (
	StateIdle State = iota
	StateLoadingScript
	StateEvaluated
	StateLoadingDependencies
	StateAttached
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingScript:
		return "loading_script"
	case StateEvaluated:
		return "evaluated"
	case StateLoadingDependencies:
		return "loading_dependencies"
	case StateAttached:
		return "attached"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ScriptFetcher はムービースクリプトのペイロードを取得する
// 戻り値は string, []byte, io.Reader, Payload, map[string]any のいずれか
type ScriptFetcher interface {
	FetchScript(ctx context.Context, locator string) (any, error)
}

// PathResolver はマニフェスト項目をローダーに渡すパスに変換する
// 空文字を返した項目は読み込まない
type PathResolver func(entry ManifestEntry) string

// StagePreparer はルート生成後、アタッチ前に呼ばれる
type StagePreparer func(st *stage.Stage, root *stage.DisplayObject, b *Bundle)

// CacheKeyFunc は読み込みのキャッシュキーを返す。空ならキャッシュしない
type CacheKeyFunc func(op *Operation) string

// TickSource はフレーム毎のティック源（*stage.Ticker）
type TickSource interface {
	Add(t stage.Tickable)
	Remove(t stage.Tickable)
	SetFPS(fps float64)
}

// Options はManagerの設定。ゼロ値はデフォルトになる
type Options struct {
	Fetcher ScriptFetcher
	Assets  AssetFetcher
	Sounds  SoundRegistrar
	Cache   *Cache
	Decoder Decoder
	Ticker  TickSource

	ResolvePath  PathResolver
	PrepareStage StagePreparer
	CacheKey     CacheKeyFunc

	BaseManifestPath string
	Concurrency      int
	Logger           *slog.Logger
}

// DefaultPathResolver はentry.Srcをそのまま返す
func DefaultPathResolver(entry ManifestEntry) string { return entry.Src }

// DefaultCacheKey はスクリプトのロケーターをキーにする
func DefaultCacheKey(op *Operation) string { return op.Locator() }

// Manager は一つのステージに最大一つのムービールートを載せる
type Manager struct {
	opts       Options
	log        *slog.Logger
	dispatcher *Dispatcher

	mu       sync.Mutex
	state    State
	disposed bool
	loading  bool
	stage    *stage.Stage
	root     *stage.DisplayObject
	rootName string
	bundle   *Bundle
	tables   *AssetTables
	basePath string
}

// NewManager はstに結びついたManagerを作成する（stはnilでもよく、後からBindStageできる）
func NewManager(st *stage.Stage, opts Options) *Manager {
	if opts.Decoder == nil {
		opts.Decoder = YAMLDecoder{}
	}
	if opts.ResolvePath == nil {
		opts.ResolvePath = DefaultPathResolver
	}
	if opts.CacheKey == nil {
		opts.CacheKey = DefaultCacheKey
	}
	if opts.Assets == nil {
		if af, ok := opts.Fetcher.(AssetFetcher); ok {
			opts.Assets = af
		}
	}
	return &Manager{
		opts:       opts,
		log:        logger.OrNop(opts.Logger).With("component", "movie"),
		dispatcher: NewDispatcher(),
		stage:      st,
		tables:     NewAssetTables(),
		basePath:   opts.BaseManifestPath,
	}
}

// On はリスナーを登録し、解除用の関数を返す
func (m *Manager) On(t EventType, fn Listener) func() {
	return m.dispatcher.On(t, fn)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Stage は結びついたステージを返す（ClearStage(true)の後はnil）
func (m *Manager) Stage() *stage.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Root はアタッチ中のルートを返す
func (m *Manager) Root() *stage.DisplayObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Bundle は現在のバンドルを返す（最初のデコード前はnil）
func (m *Manager) Bundle() *Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundle
}

// Tables はアセットテーブルを返す。ポインタはManagerの生存中変わらない
func (m *Manager) Tables() *AssetTables { return m.tables }

func (m *Manager) RootName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rootName
}

func (m *Manager) BaseManifestPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.basePath
}

func (m *Manager) SetBaseManifestPath(p string) {
	m.mu.Lock()
	m.basePath = p
	m.mu.Unlock()
}

// BindStage はステージが無いときにstを結びつける
func (m *Manager) BindStage(st *stage.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil
	}
	if st == nil {
		return fmt.Errorf("%w: nil stage", ErrConfiguration)
	}
	if m.stage != nil {
		return fmt.Errorf("%w: a stage is already bound", ErrState)
	}
	m.stage = st
	return nil
}

// LoadScript はlocatorのスクリプトを取得し、読み込みサイクルをバックグラウンドで実行する
func (m *Manager) LoadScript(ctx context.Context, locator, rootName string) (*Operation, error) {
	if m.IsDisposed() {
		return finishedOperation(locator, ErrDisposed), nil
	}
	if m.opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: no script fetcher", ErrConfiguration)
	}
	return m.start(ctx, locator, rootName, func(ctx context.Context) (any, error) {
		return m.opts.Fetcher.FetchScript(ctx, locator)
	})
}

// LoadPayload はfetchが返すペイロードで読み込みサイクルを実行する
func (m *Manager) LoadPayload(ctx context.Context, fetch func(ctx context.Context) (any, error), rootName string) (*Operation, error) {
	if m.IsDisposed() {
		return finishedOperation("", ErrDisposed), nil
	}
	if fetch == nil {
		return nil, fmt.Errorf("%w: nil fetch function", ErrConfiguration)
	}
	return m.start(ctx, "", rootName, fetch)
}

func (m *Manager) start(ctx context.Context, locator, rootName string, fetch func(context.Context) (any, error)) (*Operation, error) {
	if rootName == "" {
		return nil, fmt.Errorf("%w: root name is required", ErrConfiguration)
	}

	m.mu.Lock()
	switch {
	case m.root != nil:
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: root %q is attached, clear the stage first", ErrState, m.rootName)
	case m.loading || m.state == StateLoadingScript || m.state == StateLoadingDependencies:
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: a load is already in progress", ErrState)
	}
	m.loading = true
	m.rootName = rootName
	prev := m.state
	m.state = StateLoadingScript
	m.mu.Unlock()

	op := newOperation(locator)
	go m.run(ctx, op, prev, fetch)
	return op, nil
}

func (m *Manager) run(ctx context.Context, op *Operation, prev State, fetch func(context.Context) (any, error)) {
	err := m.load(ctx, op, prev, fetch)
	// Doneより前に外しておき、完了を待った呼び出し元がすぐ次を読み込めるようにする
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	op.finish(err)
}

func (m *Manager) load(ctx context.Context, op *Operation, prev State, fetch func(context.Context) (any, error)) error {
	payload, err := fetch(ctx)
	if err != nil {
		m.log.Warn("failed to load movie script", "locator", op.Locator(), "error", err)
		m.restoreState(StateLoadingScript, prev)
		return &TransportError{Locator: op.Locator(), Err: err}
	}
	if m.IsDisposed() {
		return ErrDisposed
	}

	key := ""
	if m.opts.Cache != nil {
		key = m.opts.CacheKey(op)
	}
	b, err := m.evaluate(op, key, payload)
	if err != nil {
		m.log.Warn("failed to decode movie bundle", "locator", op.Locator(), "error", err)
		m.restoreState(StateLoadingScript, prev)
		return err
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	m.bundle = b
	if m.state == StateLoadingScript {
		m.state = StateEvaluated
	}
	m.mu.Unlock()

	res, err := m.LoadDependencies(ctx, m.FilterManifest(b.Properties.Manifest))
	if err != nil {
		if m.IsDisposed() {
			return ErrDisposed
		}
		m.log.Warn("failed to load movie dependencies", "locator", op.Locator(), "error", err)
		// 前のテーブルはevaluateで置き換え済みなので読み込み前の状態には戻せない
		m.discardLoaded()
		m.mu.Lock()
		if !m.disposed {
			m.bundle = nil
			m.state = StateIdle
		}
		m.mu.Unlock()
		return err
	}
	op.setResult(res)

	if key != "" && !op.FromCache() {
		if err := m.opts.Cache.Add(key, b, m.tables.Images(), m.tables.SpriteSheets()); err != nil {
			m.log.Warn("failed to cache movie", "key", key, "error", err)
		}
	}

	if m.IsDisposed() {
		// 読み込み中にDisposeされた場合は後から届いた分を捨てる
		m.discardLoaded()
		return ErrDisposed
	}
	if err := m.AttachRoot(); err != nil {
		return err
	}
	if m.IsDisposed() {
		return ErrDisposed
	}
	return nil
}

// discardLoaded は登録済みのサウンドを外してテーブルを空にする
func (m *Manager) discardLoaded() {
	if sounds := m.tables.Sounds(); len(sounds) > 0 && m.opts.Sounds != nil {
		m.opts.Sounds.RemoveSounds(sounds...)
	}
	m.tables.Clear()
}

func (m *Manager) restoreState(from, to State) {
	m.mu.Lock()
	if m.state == from {
		m.state = to
	}
	m.mu.Unlock()
}

// evaluate はペイロードをデコードするか、キャッシュからバンドルを取り出す
// どちらの場合もテーブルはその場で埋めるので、後段からは同じポインタに見える
func (m *Manager) evaluate(op *Operation, key string, payload any) (*Bundle, error) {
	decode := func() (*Bundle, error) {
		data, err := unwrapPayload(payload)
		if err != nil {
			return nil, err
		}
		b := &Bundle{}
		if err := m.opts.Decoder.Decode(data, b); err != nil {
			return nil, err
		}
		return b, nil
	}

	if key == "" {
		b, err := decode()
		if err != nil {
			return nil, err
		}
		m.tables.adopt(nil, nil)
		return b, nil
	}

	entry, decoded, err := m.opts.Cache.Load(key, decode)
	if err != nil {
		return nil, err
	}
	op.setFromCache(!decoded)
	m.tables.adopt(entry.Images, entry.SpriteSheets)
	if !decoded {
		m.log.Debug("movie restored from cache", "key", key)
	}
	return entry.Bundle, nil
}

// FilterManifest は各項目をPathResolverで解決し、空になったものを除く
func (m *Manager) FilterManifest(manifest []ManifestEntry) []ManifestEntry {
	out := make([]ManifestEntry, 0, len(manifest))
	for _, e := range manifest {
		src := m.opts.ResolvePath(e)
		if src == "" {
			continue
		}
		e.Src = src
		out = append(out, e)
	}
	return out
}

// LoadDependencies はマニフェストをアセットテーブルに読み込む
// load_manifest, file_load/file_error, dependencies_loaded を発行し、全項目が終わるまでブロックする
func (m *Manager) LoadDependencies(ctx context.Context, manifest []ManifestEntry) (*LoadResult, error) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, ErrDisposed
	}
	if m.rootName == "" {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: root name must be set before loading dependencies", ErrConfiguration)
	}
	if m.state != StateAttached {
		m.state = StateLoadingDependencies
	}
	base := m.basePath
	m.mu.Unlock()

	loader := NewDependencyLoader(manifest, LoaderOptions{
		Fetcher:     m.opts.Assets,
		Sounds:      m.opts.Sounds,
		Tables:      m.tables,
		BasePath:    base,
		Concurrency: m.opts.Concurrency,
		Logger:      m.log,
	})
	loader.OnFileLoad(func(fl FileLoad) {
		m.emit(EventFileLoad, map[string]any{"item": fl.Entry, "src": fl.Src, "result": fl.Result})
	})
	loader.OnFileError(func(ie *ItemError) {
		m.emit(EventFileError, map[string]any{"item": ie.Entry, "error": ie})
	})

	m.emit(EventLoadManifest, map[string]any{"manifest": manifest, "loader": loader})

	res, err := loader.Load(ctx)
	if err != nil {
		return res, err
	}
	m.log.Info("dependencies loaded", "loaded", len(res.Loaded), "failed", len(res.Failures))
	m.emit(EventDependenciesLoaded, map[string]any{"result": res})
	return res, nil
}

// AttachRoot はルートシンボルを生成してステージに追加する
func (m *Manager) AttachRoot() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	if m.stage == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no stage bound", ErrState)
	}
	if m.root != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: root already attached", ErrState)
	}
	if m.bundle == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no bundle loaded", ErrState)
	}
	if m.rootName == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: root name is required", ErrConfiguration)
	}
	root, err := m.bundle.Instantiate(m.rootName, m.tables)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.root = root
	st, b := m.stage, m.bundle
	m.mu.Unlock()

	props := b.Properties
	if props.Width > 0 && props.Height > 0 {
		st.SetSize(props.Width, props.Height)
	}
	if c, ok := ParseColor(props.Color); ok {
		st.SetBackground(c)
	}
	if m.opts.PrepareStage != nil {
		m.opts.PrepareStage(st, root, b)
	}
	m.emit(EventStageReady, nil)

	// フックやリスナーの中でDisposeやClearStageが呼ばれていたらステージに触らない
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	if m.root != root || m.stage != st {
		m.mu.Unlock()
		return fmt.Errorf("%w: root was detached while the stage was being prepared", ErrState)
	}
	st.AddChild(root)
	st.Update()
	if m.opts.Ticker != nil {
		if props.FPS > 0 {
			m.opts.Ticker.SetFPS(props.FPS)
		}
		m.opts.Ticker.Add(st)
	}
	m.state = StateAttached
	m.mu.Unlock()
	m.log.Info("root attached", "root", m.RootName(), "fps", props.FPS)
	m.emit(EventRootReady, map[string]any{"root": root})
	return nil
}

// ClearStage はルートを外す。フラグはちょうど一つ渡すこと
// trueならティッカーの購読を解除してステージも手放す
func (m *Manager) ClearStage(destroyStage ...bool) error {
	if m.IsDisposed() {
		return nil
	}
	if len(destroyStage) != 1 {
		return fmt.Errorf("%w: ClearStage takes exactly one destroy flag, got %d", ErrConfiguration, len(destroyStage))
	}
	m.clearStage(destroyStage[0])
	return nil
}

func (m *Manager) clearStage(destroyStage bool) {
	m.mu.Lock()
	st, root := m.stage, m.root
	m.root = nil
	if destroyStage {
		m.stage = nil
	}
	if !m.disposed {
		if m.bundle != nil {
			m.state = StateEvaluated
		} else {
			m.state = StateIdle
		}
	}
	m.mu.Unlock()

	if root != nil && st != nil {
		st.RemoveChild(root)
	}
	if destroyStage && st != nil {
		if m.opts.Ticker != nil {
			m.opts.Ticker.Remove(st)
		}
		m.dispatcher.Dispatch(NewEvent(EventStageDestroy, nil))
	}
	if root != nil {
		m.dispatcher.Dispatch(NewEvent(EventRootDestroy, map[string]any{"root": root}))
	}
}

// Dispose は全てを片付ける。2回目以降は何もしない
func (m *Manager) Dispose() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	m.state = StateDisposed
	m.mu.Unlock()

	m.clearStage(true)

	if sounds := m.tables.Sounds(); len(sounds) > 0 && m.opts.Sounds != nil {
		m.opts.Sounds.RemoveSounds(sounds...)
	}
	m.tables.Clear()

	m.dispatcher.Dispatch(NewEvent(EventDispose, nil))
	m.dispatcher.RemoveAll()
	m.log.Debug("manager disposed")
	return nil
}

// emit はDispose済みでなければイベントを発行する
func (m *Manager) emit(t EventType, params map[string]any) {
	if m.IsDisposed() {
		return
	}
	m.dispatcher.Dispatch(NewEvent(t, params))
}
