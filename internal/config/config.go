package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	// EnvironmentProduction enables the poll loop.
	EnvironmentProduction = "production"
	// EnvironmentDevelopment disables the poll loop; bundles change on every
	// rebuild there and prompting would be noise.
	EnvironmentDevelopment = "development"
)

// Target describes the deployed page whose bundle is watched.
// RequestTimeout bounds each remote check in seconds; zero leaves the request
// unbounded and a hung fetch then only delays its own tick.
type Target struct {
	URL             string `toml:"url"`
	IntervalSeconds int    `toml:"interval_seconds"`
	RequestTimeout  int    `toml:"request_timeout"`
	UserAgent       string `toml:"user_agent"`
	CacheBustParam  string `toml:"cache_bust_param"`
}

// Local selects where the currently loaded document is read from.
type Local struct {
	Source       string `toml:"source"` // origin | file | browser
	DocumentPath string `toml:"document_path"`
	BrowserURL   string `toml:"browser_url"`
	PageMatch    string `toml:"page_match"`
}

// Reload configures what the reload action does besides resetting state.
type Reload struct {
	Command []string `toml:"command"`
}

// Notifications configures the prompt surfaces.
type Notifications struct {
	Console        bool   `toml:"console"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Title          string `toml:"title"`
}

// API configures the local control server.
type API struct {
	Bind          string  `toml:"bind"`
	Token         string  `toml:"token"`
	PublicURL     string  `toml:"public_url"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// History configures the optional prompt audit log.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Paths contains runtime directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bundlewatch.
//
// Configuration sections by subsystem:
//   - Target: watched page URL and poll interval
//   - Local: source of the currently loaded document
//   - Reload: external reload hook
//   - Notifications: console and ntfy prompt settings
//   - API: control server bind address, token and rate limit
//   - History: SQLite audit log of prompts
//   - Paths: state (lock, pid) and log directories
//   - Logging: log format and level
type Config struct {
	Environment   string        `toml:"environment"`
	Target        Target        `toml:"target"`
	Local         Local         `toml:"local"`
	Reload        Reload        `toml:"reload"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	History       History       `toml:"history"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bundlewatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && c.History.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// IsDevelopment reports whether the poll loop should stay idle.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// PollInterval returns the tick period of the watcher.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Target.IntervalSeconds) * time.Second
}

// RequestTimeout returns the per-check timeout, zero when unbounded.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Target.RequestTimeout) * time.Second
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "bundlewatch.lock")
}

// PIDPath returns the pid file written by a running daemon.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "bundlewatch.pid")
}

// APIBaseURL returns the URL prompt controls use to reach the control API.
func (c *Config) APIBaseURL() string {
	if c.API.PublicURL != "" {
		return c.API.PublicURL
	}
	host, port, err := net.SplitHostPort(c.API.Bind)
	if err != nil {
		return "http://" + c.API.Bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
