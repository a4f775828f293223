package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json", "auto"}
	validPlugins    = []string{"ebiten", "native", "silent"}
)

// Validate は設定が使えるかを検証する
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateMovie(); err != nil {
		return err
	}
	if err := c.validateSound(); err != nil {
		return err
	}
	return c.validateFetch()
}

func (c *Config) validateLogging() error {
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	if !slices.Contains(validLogFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format %q must be text, json or auto", c.Logging.Format)
	}
	return nil
}

func (c *Config) validatePlayer() error {
	if c.Player.Width <= 0 || c.Player.Height <= 0 {
		return fmt.Errorf("player size must be positive, got %dx%d", c.Player.Width, c.Player.Height)
	}
	if c.Player.Timeout < 0 {
		return fmt.Errorf("player.timeout must be non-negative, got %d", c.Player.Timeout)
	}
	return nil
}

func (c *Config) validateMovie() error {
	if c.Movie.Root == "" {
		return errors.New("movie.root must be set")
	}
	if c.Movie.Concurrency < 0 {
		return fmt.Errorf("movie.concurrency must be positive, got %d", c.Movie.Concurrency)
	}
	return nil
}

func (c *Config) validateSound() error {
	for _, p := range c.Sound.Plugins {
		if !slices.Contains(validPlugins, p) {
			return fmt.Errorf("sound.plugins: unknown plugin %q", p)
		}
	}
	if c.Sound.Volume < 0 || c.Sound.Volume > 1 {
		return errors.New("sound.volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must be non-negative, got %d", c.Fetch.Timeout)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must be non-negative, got %d", c.Fetch.Retries)
	}
	return nil
}
