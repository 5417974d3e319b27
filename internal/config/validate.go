package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEnvironment(); err != nil {
		return err
	}
	if err := c.validateTarget(); err != nil {
		return err
	}
	if err := c.validateLocal(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEnvironment() error {
	switch c.Environment {
	case EnvironmentProduction, EnvironmentDevelopment:
		return nil
	default:
		return fmt.Errorf("environment must be %q or %q, got %q", EnvironmentProduction, EnvironmentDevelopment, c.Environment)
	}
}

func (c *Config) validateTarget() error {
	if c.Target.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("target.url is required. Set BUNDLEWATCH_URL env var or edit %s (create with 'bundlewatch config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Target.URL)
	if err != nil {
		return fmt.Errorf("target.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("target.url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("target.url must include a host")
	}
	return nil
}

func (c *Config) validateLocal() error {
	switch c.Local.Source {
	case LocalSourceOrigin:
	case LocalSourceFile:
		if c.Local.DocumentPath == "" {
			return errors.New("local.document_path must be set when local.source is \"file\"")
		}
	case LocalSourceBrowser:
		if c.Local.BrowserURL == "" {
			return errors.New("local.browser_url must be set when local.source is \"browser\"")
		}
	default:
		return fmt.Errorf("local.source must be one of origin, file, browser; got %q", c.Local.Source)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full topic URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: %w", err)
	}
	if c.API.PublicURL != "" {
		if _, err := url.Parse(c.API.PublicURL); err != nil {
			return fmt.Errorf("api.public_url: %w", err)
		}
	}
	return nil
}
