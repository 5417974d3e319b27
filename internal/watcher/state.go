package watcher

import (
	"time"

	"bundlewatch/internal/notify"
)

// Phase summarizes what the watcher is doing.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePolling    Phase = "polling"
	PhaseSuppressed Phase = "suppressed"
)

// State is a point-in-time copy of the watcher state.
type State struct {
	Phase      Phase          `json:"phase"`
	Enabled    bool           `json:"enabled"`
	PageURL    string         `json:"page_url"`
	Interval   time.Duration  `json:"interval"`
	Local      string         `json:"local"`
	Remote     string         `json:"remote"`
	Suppressed bool           `json:"suppressed"`
	Prompt     *notify.Update `json:"prompt,omitempty"`
}

// PromptOpen reports whether a prompt is currently shown.
func (s State) PromptOpen() bool {
	return s.Prompt != nil
}

// Stats counts watcher activity since start.
type Stats struct {
	Checks       int64     `json:"checks"`
	CheckErrors  int64     `json:"check_errors"`
	Prompts      int64     `json:"prompts"`
	PromptErrors int64     `json:"prompt_errors"`
	Dismissals   int64     `json:"dismissals"`
	Reloads      int64     `json:"reloads"`
	LastCheck    time.Time `json:"last_check,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}
