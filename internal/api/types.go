package api

import (
	"time"

	"bundlewatch/internal/notify"
	"bundlewatch/internal/watcher"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Prompt describes the open update prompt.
type Prompt struct {
	ID         string `json:"id"`
	Local      string `json:"local"`
	Remote     string `json:"remote"`
	Direction  string `json:"direction"`
	DetectedAt string `json:"detectedAt"`
	Title      string `json:"title"`
	IgnoreURL  string `json:"ignoreUrl,omitempty"`
	ReloadURL  string `json:"reloadUrl,omitempty"`
}

// WatcherStats mirrors watcher.Stats.
type WatcherStats struct {
	Checks       int64  `json:"checks"`
	CheckErrors  int64  `json:"checkErrors"`
	Prompts      int64  `json:"prompts"`
	PromptErrors int64  `json:"promptErrors"`
	Dismissals   int64  `json:"dismissals"`
	Reloads      int64  `json:"reloads"`
	LastCheck    string `json:"lastCheck,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// Status is the payload of GET /api/status and of the action routes.
type Status struct {
	Phase           string       `json:"phase"`
	Enabled         bool         `json:"enabled"`
	PageURL         string       `json:"pageUrl"`
	IntervalSeconds int          `json:"intervalSeconds"`
	Local           string       `json:"local"`
	Remote          string       `json:"remote"`
	Suppressed      bool         `json:"suppressed"`
	Prompt          *Prompt      `json:"prompt,omitempty"`
	Stats           WatcherStats `json:"stats"`
	Subscribers     int          `json:"subscribers"`
	PID             int          `json:"pid,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromWatcher converts watcher state and counters into a Status.
func FromWatcher(state watcher.State, stats watcher.Stats) Status {
	status := Status{
		Phase:           string(state.Phase),
		Enabled:         state.Enabled,
		PageURL:         state.PageURL,
		IntervalSeconds: int(state.Interval / time.Second),
		Local:           state.Local,
		Remote:          state.Remote,
		Suppressed:      state.Suppressed,
		Stats: WatcherStats{
			Checks:       stats.Checks,
			CheckErrors:  stats.CheckErrors,
			Prompts:      stats.Prompts,
			PromptErrors: stats.PromptErrors,
			Dismissals:   stats.Dismissals,
			Reloads:      stats.Reloads,
			LastCheck:    formatTime(stats.LastCheck),
			LastError:    stats.LastError,
		},
	}
	if state.Prompt != nil {
		status.Prompt = fromUpdate(*state.Prompt)
	}
	return status
}

func fromUpdate(u notify.Update) *Prompt {
	return &Prompt{
		ID:         u.ID,
		Local:      u.Local,
		Remote:     u.Remote,
		Direction:  string(u.Direction),
		DetectedAt: formatTime(u.DetectedAt),
		Title:      u.Title,
		IgnoreURL:  u.IgnoreURL,
		ReloadURL:  u.ReloadURL,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
