package document

import (
	"fmt"
	"log/slog"

	"bundlewatch/internal/config"
)

// NewFromConfig builds the Source and Reloader selected by the [local] and
// [reload] sections. origin serves the snapshot for the "origin" source.
func NewFromConfig(cfg *config.Config, origin Fetcher, logger *slog.Logger) (Source, Reloader, error) {
	var (
		source Source
		chain  Chain
	)
	switch cfg.Local.Source {
	case config.LocalSourceOrigin:
		snapshot := NewSnapshot(origin)
		source = snapshot
		chain = append(chain, snapshot)
	case config.LocalSourceFile:
		source = NewFile(cfg.Local.DocumentPath)
	case config.LocalSourceBrowser:
		browser := NewBrowser(cfg.Local.BrowserURL, cfg.Local.PageMatch, logger)
		source = browser
		chain = append(chain, browser)
	default:
		return nil, nil, fmt.Errorf("unknown local source %q", cfg.Local.Source)
	}
	if len(cfg.Reload.Command) > 0 {
		chain = append(chain, NewCommand(cfg.Reload.Command))
	}
	if len(chain) == 0 {
		return source, Noop{}, nil
	}
	return source, chain, nil
}
