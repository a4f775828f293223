package config

import (
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() {
	c.applyEnv()
	c.normalizeValues()
}

// applyEnv はLOG_LEVEL, HEADLESS, TIMEOUTを読む
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv("HEADLESS"); ok && v != "" {
		c.Player.Headless = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := os.LookupEnv("TIMEOUT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Player.Timeout = n
		}
	}
}

func (c *Config) normalizeValues() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	c.Movie.Root = strings.TrimSpace(c.Movie.Root)
	if c.Movie.Concurrency == 0 {
		c.Movie.Concurrency = defaultConcurrency
	}

	plugins := c.Sound.Plugins[:0]
	for _, p := range c.Sound.Plugins {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			plugins = append(plugins, p)
		}
	}
	c.Sound.Plugins = plugins
	if len(c.Sound.Plugins) == 0 {
		c.Sound.Plugins = append([]string(nil), defaultPlugins...)
	}

	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}
