package config

const (
	defaultConfigPath       = "~/.config/bundlewatch/config.toml"
	defaultStateDir         = "~/.local/share/bundlewatch"
	defaultLogDir           = "~/.local/share/bundlewatch/logs"
	defaultHistoryPath      = "~/.local/share/bundlewatch/history.db"
	defaultIntervalSeconds  = 60
	defaultUserAgent        = "bundlewatch/0.1"
	defaultCacheBustParam   = "t"
	defaultLocalSource      = LocalSourceOrigin
	defaultNotifyTimeout    = 10
	defaultNotifyTitle      = "New version available"
	defaultAPIBind          = "127.0.0.1:7489"
	defaultAPIRatePerSecond = 1.0
	defaultAPIBurst         = 5
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Local document sources.
const (
	LocalSourceOrigin  = "origin"
	LocalSourceFile    = "file"
	LocalSourceBrowser = "browser"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Environment: EnvironmentProduction,
		Target: Target{
			IntervalSeconds: defaultIntervalSeconds,
			UserAgent:       defaultUserAgent,
			CacheBustParam:  defaultCacheBustParam,
		},
		Local: Local{
			Source: defaultLocalSource,
		},
		Notifications: Notifications{
			Console:        true,
			RequestTimeout: defaultNotifyTimeout,
			Title:          defaultNotifyTitle,
		},
		API: API{
			Bind:          defaultAPIBind,
			RatePerSecond: defaultAPIRatePerSecond,
			Burst:         defaultAPIBurst,
		},
		History: History{
			Path: defaultHistoryPath,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
