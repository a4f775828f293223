// Package config はTOMLファイルからflashstageの設定を読み込む
//
// 値はデフォルト、ファイル、環境変数(LOG_LEVEL, HEADLESS, TIMEOUT)、
// 呼び出し側が適用するコマンドラインフラグの順に決まる
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName はパス未指定時に作業ディレクトリで探すファイル名
const DefaultFileName = "flashstage.toml"

// Logging はログ出力の設定
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text, json, auto のいずれか
}

// Player はウィンドウと実行ループの設定
type Player struct {
	Title    string `toml:"title"`
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	Headless bool   `toml:"headless"`
	Timeout  int    `toml:"timeout"` // 秒、0は無制限
}

// Movie はムービーマネージャーの設定
type Movie struct {
	Root             string `toml:"root"`
	BaseManifestPath string `toml:"base_manifest_path"`
	Cache            bool   `toml:"cache"`
	Concurrency      int    `toml:"concurrency"`
}

// Sound はサウンドの設定
type Sound struct {
	// Plugins は優先順のバックエンド一覧（ebiten, native, silent）
	Plugins             []string `toml:"plugins"`
	SoundFont           string   `toml:"soundfont"`
	Volume              float64  `toml:"volume"`
	ForgetBufferOnClean bool     `toml:"forget_buffer_on_clean"`
}

// Fetch はスクリプトとアセットの取得設定
type Fetch struct {
	Timeout   int    `toml:"timeout"` // リクエスト毎の秒数
	Retries   int    `toml:"retries"`
	UserAgent string `toml:"user_agent"`
}

// Config は全ての設定値をまとめる
type Config struct {
	Logging Logging `toml:"logging"`
	Player  Player  `toml:"player"`
	Movie   Movie   `toml:"movie"`
	Sound   Sound   `toml:"sound"`
	Fetch   Fetch   `toml:"fetch"`
}

// Load はpath（空ならDefaultFileName）を読み込み、環境変数を適用して検証する
// ファイルが無くてもエラーにはならず、existsで読み込んだかを返す
func Load(path string) (cfg *Config, exists bool, err error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		exists = true
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("config %s: %w", path, err)
	default:
		return nil, false, fmt.Errorf("read config: %w", err)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, exists, err
	}
	return &c, exists, nil
}

// Parse はデフォルトの上にTOMLをデコードする（環境変数は見ない）
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.normalizeValues()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode はcをTOMLにする
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// PlayerTimeout は実行のタイムアウトを返す（0は無制限）
func (c *Config) PlayerTimeout() time.Duration {
	return time.Duration(c.Player.Timeout) * time.Second
}

// FetchTimeout はリクエスト毎のタイムアウトを返す
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.Timeout) * time.Second
}
