package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LOG_LEVEL", "HEADLESS", "TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Movie.Root != "Main" || !c.Movie.Cache {
		t.Errorf("movie defaults = %+v", c.Movie)
	}
	if !slices.Equal(c.Sound.Plugins, []string{"ebiten", "silent"}) {
		t.Errorf("plugins = %v", c.Sound.Plugins)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
[logging]
level = "DEBUG"
format = "json"

[player]
width = 320
height = 240
timeout = 5

[movie]
root = "Intro"
base_manifest_path = "assets/"
cache = false

[sound]
plugins = ["native", " Silent ", ""]
soundfont = "gm.sf2"
forget_buffer_on_clean = true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Logging.Level != "debug" || c.Logging.Format != "json" {
		t.Errorf("logging = %+v", c.Logging)
	}
	if c.Player.Width != 320 || c.PlayerTimeout() != 5*time.Second {
		t.Errorf("player = %+v", c.Player)
	}
	if c.Movie.Root != "Intro" || c.Movie.BaseManifestPath != "assets/" || c.Movie.Cache {
		t.Errorf("movie = %+v", c.Movie)
	}
	if c.Movie.Concurrency != defaultConcurrency {
		t.Errorf("concurrency should keep its default, got %d", c.Movie.Concurrency)
	}
	if !slices.Equal(c.Sound.Plugins, []string{"native", "silent"}) {
		t.Errorf("plugins = %v", c.Sound.Plugins)
	}
	if !c.Sound.ForgetBufferOnClean || c.Sound.SoundFont != "gm.sf2" {
		t.Errorf("sound = %+v", c.Sound)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"level":   "[logging]\nlevel = \"loud\"",
		"format":  "[logging]\nformat = \"xml\"",
		"size":    "[player]\nwidth = 0",
		"timeout": "[player]\ntimeout = -1",
		"root":    "[movie]\nroot = \" \"",
		"plugin":  "[sound]\nplugins = [\"webaudio\"]",
		"volume":  "[sound]\nvolume = 1.5",
		"retries": "[fetch]\nretries = -2",
		"syntax":  "[player\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(src)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("[movie]\nroot = \"Stage1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || c.Movie.Root != "Stage1" {
		t.Errorf("exists=%v root=%q", exists, c.Movie.Root)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestLoad_DefaultFileAbsent(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	c, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("no file should have been read")
	}
	if c.Player.Width != defaultWidth {
		t.Errorf("expected defaults, got %+v", c.Player)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("HEADLESS", "true")
	t.Setenv("TIMEOUT", "7")
	t.Chdir(t.TempDir())

	c, _, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Logging.Level != "warn" || !c.Player.Headless || c.Player.Timeout != 7 {
		t.Errorf("env not applied: %+v %+v", c.Logging, c.Player)
	}
}

func TestLoad_EnvIgnoresBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMEOUT", "soon")
	t.Chdir(t.TempDir())
	c, _, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Player.Timeout != 0 {
		t.Errorf("timeout = %d", c.Player.Timeout)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	c := Default()
	c.Movie.Root = "Intro"
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "root = 'Intro'") && !strings.Contains(string(data), `root = "Intro"`) {
		t.Errorf("encoded config lacks root:\n%s", data)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse encoded: %v", err)
	}
	if back.Movie.Root != "Intro" {
		t.Errorf("root = %q", back.Movie.Root)
	}
}
