package app

import (
	"os"
	"path/filepath"
)

// DefaultSoundFontName は設定が無いときに探すSoundFontのファイル名
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont は以下の順でSoundFontファイルを探す:
//  1. 設定されたパス
//  2. ムービーのディレクトリ
//  3. カレントディレクトリ
//
// 見つからなければ""を返す
func findSoundFont(configured, movieDir string) string {
	if configured != "" {
		if isFile(configured) {
			return configured
		}
		if movieDir != "" && !filepath.IsAbs(configured) {
			if p := filepath.Join(movieDir, configured); isFile(p) {
				return p
			}
		}
		return ""
	}

	if movieDir != "" {
		if p := filepath.Join(movieDir, DefaultSoundFontName); isFile(p) {
			return p
		}
	}
	if isFile(DefaultSoundFontName) {
		return DefaultSoundFontName
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
