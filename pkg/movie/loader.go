package movie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zurustar/flashstage/pkg/asset"
	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/sound"
)

// DefaultConcurrency は同時に取得するマニフェスト項目の数
const DefaultConcurrency = 4

// AssetFetcher はマニフェスト項目一つ分のバイト列を読み込む
type AssetFetcher interface {
	FetchAsset(ctx context.Context, src string) ([]byte, error)
}

// SoundRegistrar はサウンド記述子を受け取り、まとめてアンロードする
// *sound.System が満たす
type SoundRegistrar interface {
	Register(d sound.Descriptor) (sound.Loader, error)
	RemoveSounds(ds ...sound.Descriptor)
}

// FileLoad は読み込みが完了したマニフェスト項目
// Result は image.Image, *asset.SpriteSheet, sound.Descriptor, []byte のいずれか
type FileLoad struct {
	Entry  ManifestEntry
	Src    string
	Result any
}

// LoadResult は依存アセット読み込みの結果
type LoadResult struct {
	Loaded   []ManifestEntry
	Failures []*ItemError
}

// Err は項目ごとの失敗をまとめて返す（無ければnil）
func (r *LoadResult) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// LoaderOptions はDependencyLoaderの設定
type LoaderOptions struct {
	Fetcher     AssetFetcher
	Sounds      SoundRegistrar
	Tables      *AssetTables
	BasePath    string
	Concurrency int
	Logger      *slog.Logger
}

// DependencyLoader はマニフェストの項目を取得し、結果をAssetTablesに振り分ける
// ローダーは一度しか実行できない
type DependencyLoader struct {
	opts LoaderOptions
	log  *slog.Logger

	mu       sync.Mutex
	manifest []ManifestEntry
	onLoad   []func(FileLoad)
	onError  []func(*ItemError)
	started  bool

	cbMu sync.Mutex
}

// NewDependencyLoader はmanifest用のローダーを作成する
func NewDependencyLoader(manifest []ManifestEntry, opts LoaderOptions) *DependencyLoader {
	if opts.Tables == nil {
		opts.Tables = NewAssetTables()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &DependencyLoader{
		opts:     opts,
		log:      logger.OrNop(opts.Logger),
		manifest: append([]ManifestEntry(nil), manifest...),
	}
}

// Add はLoad開始前に項目を追加する
func (l *DependencyLoader) Add(entries ...ManifestEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return fmt.Errorf("%w: loader already started", ErrState)
	}
	l.manifest = append(l.manifest, entries...)
	return nil
}

// Manifest は登録済み項目のコピーを返す
func (l *DependencyLoader) Manifest() []ManifestEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ManifestEntry(nil), l.manifest...)
}

// BasePath は相対パスに付けるプレフィックスを返す
func (l *DependencyLoader) BasePath() string { return l.opts.BasePath }

// OnFileLoad は項目ごとの完了コールバックを登録する
func (l *DependencyLoader) OnFileLoad(fn func(FileLoad)) {
	l.mu.Lock()
	l.onLoad = append(l.onLoad, fn)
	l.mu.Unlock()
}

// OnFileError は項目ごとの失敗コールバックを登録する
func (l *DependencyLoader) OnFileError(fn func(*ItemError)) {
	l.mu.Lock()
	l.onError = append(l.onError, fn)
	l.mu.Unlock()
}

// Load は全項目を取得し、すべて決着したら戻る
// 項目の失敗は結果に集める。エラーを返すのはローダーを再利用したときか
// ctxがキャンセルされたときだけ
func (l *DependencyLoader) Load(ctx context.Context) (*LoadResult, error) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: loader already started", ErrState)
	}
	l.started = true
	manifest := l.manifest
	onLoad, onError := l.onLoad, l.onError
	l.mu.Unlock()

	defer l.release()

	res := &LoadResult{}
	if len(manifest) == 0 {
		return res, nil
	}

	loaded := make([]bool, len(manifest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, entry := range manifest {
		g.Go(func() error {
			src := ResolveSrc(l.opts.BasePath, entry.Src)
			result, err := l.loadItem(gctx, entry, src)

			l.cbMu.Lock()
			defer l.cbMu.Unlock()
			if err != nil {
				ie := &ItemError{Entry: entry, Src: src, Err: err}
				l.log.Warn("failed to load manifest item", "id", entry.ID, "src", src, "error", err)
				res.Failures = append(res.Failures, ie)
				for _, fn := range onError {
					fn(ie)
				}
				return nil
			}
			loaded[i] = true
			l.log.Debug("manifest item loaded", "id", entry.ID, "src", src)
			for _, fn := range onLoad {
				fn(FileLoad{Entry: entry, Src: src, Result: result})
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, ok := range loaded {
		if ok {
			res.Loaded = append(res.Loaded, manifest[i])
		}
	}
	return res, ctx.Err()
}

func (l *DependencyLoader) release() {
	l.mu.Lock()
	l.onLoad = nil
	l.onError = nil
	l.mu.Unlock()
}

func (l *DependencyLoader) loadItem(ctx context.Context, entry ManifestEntry, src string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tables := l.opts.Tables

	switch entry.Type {
	case AssetSound:
		d := sound.Descriptor{ID: entry.ID, Src: src}
		if l.opts.Sounds != nil {
			ld, err := l.opts.Sounds.Register(d)
			if err != nil {
				return nil, err
			}
			if err := ld.Load(ctx); err != nil {
				return nil, err
			}
		}
		tables.AppendSound(d)
		return d, nil

	case AssetImage:
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		img, _, err := asset.DecodeImage(data)
		if err != nil {
			return nil, err
		}
		tables.SetImage(entry.ID, img)
		return img, nil

	case AssetSpriteSheet:
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		sheet, err := asset.ParseSpriteSheet(data)
		if err != nil {
			return nil, err
		}
		for i, imgSrc := range sheet.ImageSources() {
			imgData, err := l.fetch(ctx, relativeTo(src, imgSrc))
			if err != nil {
				return nil, err
			}
			img, _, err := asset.DecodeImage(imgData)
			if err != nil {
				return nil, fmt.Errorf("sheet image %q: %w", imgSrc, err)
			}
			if err := sheet.SetImage(i, img); err != nil {
				return nil, err
			}
		}
		tables.SetSpriteSheet(entry.ID, sheet)
		return sheet, nil

	default:
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		tables.SetOther(entry.ID, data)
		return data, nil
	}
}

func (l *DependencyLoader) fetch(ctx context.Context, src string) ([]byte, error) {
	if l.opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: no asset fetcher", ErrConfiguration)
	}
	data, err := l.opts.Fetcher.FetchAsset(ctx, src)
	if err != nil {
		return nil, &TransportError{Locator: src, Err: err}
	}
	return data, nil
}

// ResolveSrc はsrcが絶対パスでもスキーム付きでもなければbaseを前に付ける
func ResolveSrc(base, src string) string {
	if base == "" || src == "" || isAbsolute(src) {
		return src
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimPrefix(src, "./")
}

// relativeTo はbaseにあるドキュメントの位置を基準にrefを解決する
func relativeTo(base, ref string) string {
	if isAbsolute(ref) {
		return ref
	}
	if hasScheme(base) {
		if b, err := url.Parse(base); err == nil {
			if r, err := url.Parse(ref); err == nil {
				return b.ResolveReference(r).String()
			}
		}
	}
	dir := path.Dir(base)
	if dir == "." {
		return ref
	}
	return path.Join(dir, ref)
}

func isAbsolute(src string) bool {
	return strings.HasPrefix(src, "/") || hasScheme(src)
}

// hasScheme はsが "scheme:" で始まるかを返す
// 1文字の場合はWindowsのドライブレターとみなしスキームとしない
func hasScheme(s string) bool {
	i := strings.IndexByte(s, ':')
	if i < 2 {
		return false
	}
	for j := 0; j < i; j++ {
		c := s[j]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
