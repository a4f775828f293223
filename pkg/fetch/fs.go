package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// FSFetcher はfs.FSからリソースを読み込む
// 見つからない場合は大文字小文字を無視して探す
type FSFetcher struct {
	fsys fs.FS
	base string
}

// NewFSFetcher はfs.FS（embed.FSなど）用のFetcherを作成する
func NewFSFetcher(fsys fs.FS, base string) *FSFetcher {
	return &FSFetcher{fsys: fsys, base: cleanPath(base)}
}

// NewDirFetcher は実ディレクトリ用のFetcherを作成する
func NewDirFetcher(dir string) *FSFetcher {
	return NewFSFetcher(os.DirFS(dir), ".")
}

// Fetch はファイルの内容を読み込む
func (f *FSFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := f.resolve(locator)
	data, err := fs.ReadFile(f.fsys, name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", locator, err)
	}

	actual, findErr := f.findCaseInsensitive(name)
	if findErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	data, err = fs.ReadFile(f.fsys, actual)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", locator, err)
	}
	return data, nil
}

// resolve はロケーターをfs.FS上のパスに変換する
func (f *FSFetcher) resolve(locator string) string {
	name := strings.TrimPrefix(locator, "file://")
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if f.base != "." {
		name = f.base + "/" + name
	}
	return cleanPath(name)
}

// findCaseInsensitive はパスの各要素を大文字小文字を無視して辿る
func (f *FSFetcher) findCaseInsensitive(name string) (string, error) {
	dir := "."
	for _, part := range strings.Split(name, "/") {
		entries, err := fs.ReadDir(f.fsys, dir)
		if err != nil {
			return "", err
		}
		found := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name(), part) {
				found = e.Name()
				break
			}
		}
		if found == "" {
			return "", fs.ErrNotExist
		}
		if dir == "." {
			dir = found
		} else {
			dir = dir + "/" + found
		}
	}
	return dir, nil
}

func cleanPath(p string) string {
	if p == "" {
		return "."
	}
	return path.Clean(strings.TrimLeft(p, "/"))
}
