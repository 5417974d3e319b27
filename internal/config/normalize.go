package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeEnvironment()
	c.normalizeTarget()
	if err := c.normalizeLocal(); err != nil {
		return err
	}
	c.normalizeReload()
	c.normalizeNotifications()
	c.normalizeAPI()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeEnvironment() {
	if value, ok := os.LookupEnv("BUNDLEWATCH_ENV"); ok && strings.TrimSpace(value) != "" {
		c.Environment = value
	}
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	switch c.Environment {
	case "", "prod":
		c.Environment = EnvironmentProduction
	case "dev":
		c.Environment = EnvironmentDevelopment
	}
}

func (c *Config) normalizeTarget() {
	c.Target.URL = strings.TrimSpace(c.Target.URL)
	if c.Target.URL == "" {
		if value, ok := os.LookupEnv("BUNDLEWATCH_URL"); ok {
			c.Target.URL = strings.TrimSpace(value)
		}
	}
	if c.Target.IntervalSeconds <= 0 {
		c.Target.IntervalSeconds = defaultIntervalSeconds
	}
	if c.Target.RequestTimeout < 0 {
		c.Target.RequestTimeout = 0
	}
	c.Target.UserAgent = strings.TrimSpace(c.Target.UserAgent)
	if c.Target.UserAgent == "" {
		c.Target.UserAgent = defaultUserAgent
	}
	c.Target.CacheBustParam = strings.TrimSpace(c.Target.CacheBustParam)
	if c.Target.CacheBustParam == "" {
		c.Target.CacheBustParam = defaultCacheBustParam
	}
}

func (c *Config) normalizeLocal() error {
	c.Local.Source = strings.ToLower(strings.TrimSpace(c.Local.Source))
	if c.Local.Source == "" {
		c.Local.Source = defaultLocalSource
	}
	var err error
	if c.Local.DocumentPath, err = expandPath(strings.TrimSpace(c.Local.DocumentPath)); err != nil {
		return fmt.Errorf("local.document_path: %w", err)
	}
	c.Local.BrowserURL = strings.TrimSpace(c.Local.BrowserURL)
	c.Local.PageMatch = strings.TrimSpace(c.Local.PageMatch)
	if c.Local.PageMatch == "" {
		c.Local.PageMatch = c.Target.URL
	}
	return nil
}

func (c *Config) normalizeReload() {
	cmd := make([]string, 0, len(c.Reload.Command))
	for _, part := range c.Reload.Command {
		if part = strings.TrimSpace(part); part != "" {
			cmd = append(cmd, part)
		}
	}
	c.Reload.Command = cmd
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.Notifications.Title = strings.TrimSpace(c.Notifications.Title)
	if c.Notifications.Title == "" {
		c.Notifications.Title = defaultNotifyTitle
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("BUNDLEWATCH_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	c.API.PublicURL = strings.TrimRight(strings.TrimSpace(c.API.PublicURL), "/")
	if c.API.RatePerSecond <= 0 {
		c.API.RatePerSecond = defaultAPIRatePerSecond
	}
	if c.API.Burst <= 0 {
		c.API.Burst = defaultAPIBurst
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
