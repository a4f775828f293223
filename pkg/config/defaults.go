package config

const (
	defaultLogLevel     = "info"
	defaultLogFormat    = "auto"
	defaultTitle        = "flashstage"
	defaultWidth        = 640
	defaultHeight       = 480
	defaultRoot         = "Main"
	defaultConcurrency  = 4
	defaultVolume       = 1.0
	defaultFetchTimeout = 30
	defaultRetries      = 2
	defaultUserAgent    = "flashstage"
)

var defaultPlugins = []string{"ebiten", "silent"}

// Default は組み込みのデフォルト設定を返す
func Default() Config {
	return Config{
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Player: Player{
			Title:  defaultTitle,
			Width:  defaultWidth,
			Height: defaultHeight,
		},
		Movie: Movie{
			Root:        defaultRoot,
			Cache:       true,
			Concurrency: defaultConcurrency,
		},
		Sound: Sound{
			Plugins: append([]string(nil), defaultPlugins...),
			Volume:  defaultVolume,
		},
		Fetch: Fetch{
			Timeout:   defaultFetchTimeout,
			Retries:   defaultRetries,
			UserAgent: defaultUserAgent,
		},
	}
}
