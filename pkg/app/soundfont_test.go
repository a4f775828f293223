package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDummySoundFont(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("RIFF....sfbk"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestFindSoundFont_Configured(t *testing.T) {
	dir := t.TempDir()
	sf := filepath.Join(dir, "custom.sf2")
	writeDummySoundFont(t, sf)

	if got := findSoundFont(sf, ""); got != sf {
		t.Errorf("expected %s, got %q", sf, got)
	}
}

func TestFindSoundFont_ConfiguredRelativeToMovie(t *testing.T) {
	t.Chdir(t.TempDir())
	movieDir := t.TempDir()
	writeDummySoundFont(t, filepath.Join(movieDir, "fonts", "gm.sf2"))

	want := filepath.Join(movieDir, "fonts", "gm.sf2")
	if got := findSoundFont(filepath.Join("fonts", "gm.sf2"), movieDir); got != want {
		t.Errorf("expected %s, got %q", want, got)
	}
}

func TestFindSoundFont_ConfiguredMissing(t *testing.T) {
	movieDir := t.TempDir()
	// 設定されたファイルが無ければ既定名は探さない
	writeDummySoundFont(t, filepath.Join(movieDir, DefaultSoundFontName))

	if got := findSoundFont("missing.sf2", movieDir); got != "" {
		t.Errorf("expected no SoundFont, got %q", got)
	}
}

func TestFindSoundFont_MovieDir(t *testing.T) {
	t.Chdir(t.TempDir())
	movieDir := t.TempDir()
	want := filepath.Join(movieDir, DefaultSoundFontName)
	writeDummySoundFont(t, want)

	if got := findSoundFont("", movieDir); got != want {
		t.Errorf("expected %s, got %q", want, got)
	}
}

func TestFindSoundFont_CurrentDir(t *testing.T) {
	t.Chdir(t.TempDir())
	writeDummySoundFont(t, DefaultSoundFontName)

	if got := findSoundFont("", t.TempDir()); got != DefaultSoundFontName {
		t.Errorf("expected %s, got %q", DefaultSoundFontName, got)
	}
}

func TestFindSoundFont_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	if got := findSoundFont("", t.TempDir()); got != "" {
		t.Errorf("expected no SoundFont, got %q", got)
	}
}
